package types

import "testing"

func tagged(tag float32) Frame {
	return Frame{Height: 1, Width: 1, Pixels: []float32{tag, tag, tag}}
}

func TestStateBufferKeepsLastFrames(t *testing.T) {
	b := NewStateBuffer(StateBufferLen)
	for i := 0; i < 10; i++ {
		b.Push(tagged(float32(i)))
	}
	snap := b.Snapshot()
	if len(snap) != StateBufferLen {
		t.Fatalf("expected %d frames, got %d", StateBufferLen, len(snap))
	}
	for i, f := range snap {
		if want := float32(6 + i); f.Pixels[0] != want {
			t.Errorf("frame %d: expected tag %v, got %v", i, want, f.Pixels[0])
		}
	}
}

func TestStateBufferSnapshotIsIndependent(t *testing.T) {
	b := NewStateBuffer(StateBufferLen)
	for i := 0; i < StateBufferLen; i++ {
		b.Push(tagged(float32(i)))
	}
	snap := b.Snapshot()
	b.Push(tagged(100))
	b.Push(tagged(101))

	for i, f := range snap {
		if f.Pixels[0] != float32(i) {
			t.Errorf("snapshot frame %d changed to %v after later pushes", i, f.Pixels[0])
		}
	}
	if last := b.Snapshot()[StateBufferLen-1]; last.Pixels[0] != 101 {
		t.Errorf("expected newest frame 101, got %v", last.Pixels[0])
	}
}

func TestStateBufferPartialAndReset(t *testing.T) {
	b := NewStateBuffer(StateBufferLen)
	b.Push(tagged(1))
	b.Push(tagged(2))
	if b.Len() != 2 {
		t.Fatalf("expected 2 frames, got %d", b.Len())
	}
	b.Reset()
	if b.Len() != 0 || len(b.Snapshot()) != 0 {
		t.Errorf("expected empty buffer after reset")
	}
}

func TestCropFrame(t *testing.T) {
	width, height := 256, 144
	data := make([]byte, width*height*4)
	// mark pixel (row 76, col 3) which lands at (0, 3) after cropping
	offset := (76*width + 3) * 4
	data[offset], data[offset+1], data[offset+2], data[offset+3] = 10, 20, 30, 255

	f, err := CropFrame(RawImage{Width: width, Height: height, Data: data})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Height != CropBottom-CropTop || f.Width != CropRight-CropLeft {
		t.Fatalf("unexpected frame size %dx%d", f.Width, f.Height)
	}
	if len(f.Pixels) != f.Height*f.Width*FrameChannel {
		t.Fatalf("unexpected pixel count %d", len(f.Pixels))
	}
	if f.At(0, 3, 0) != 10 || f.At(0, 3, 1) != 20 || f.At(0, 3, 2) != 30 {
		t.Errorf("crop did not keep the first three channels: %v %v %v", f.At(0, 3, 0), f.At(0, 3, 1), f.At(0, 3, 2))
	}

	if _, err := CropFrame(RawImage{Width: 100, Height: 100, Data: make([]byte, 100*100*4)}); err == nil {
		t.Errorf("expected error for an image smaller than the crop window")
	}
	if _, err := CropFrame(RawImage{Width: width, Height: height, Data: data[:10]}); err == nil {
		t.Errorf("expected error for a truncated buffer")
	}
}

func TestEpochRecordTerminal(t *testing.T) {
	r := NewEpochRecord()
	r.MarkTerminal()
	if r.Len() != 0 {
		t.Fatalf("empty record must stay empty")
	}
	for i := 0; i < 3; i++ {
		r.Append(Transition{Action: Action(i), Reward: 1})
	}
	r.MarkTerminal()
	for i, tr := range r.Transitions {
		if tr.IsTerminal != (i == 2) {
			t.Errorf("transition %d: terminal=%v", i, tr.IsTerminal)
		}
	}
	if r.TotalReward() != 3 {
		t.Errorf("expected total reward 3, got %v", r.TotalReward())
	}
}
