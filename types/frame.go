package types

import "fmt"

// Crop window applied to every camera image: the central horizontal band, first 3 channels
const (
	CropTop      = 76
	CropBottom   = 135
	CropLeft     = 0
	CropRight    = 255
	FrameChannel = 3
	rawChannels  = 4
)

// Frame is one cropped observation stored row-major as height x width x 3.
// Frames are never mutated after CropFrame builds them, so they can be shared between transitions.
type Frame struct {
	Height int
	Width  int
	Pixels []float32
}

// At returns channel c of pixel (row, col)
func (f Frame) At(row, col, c int) float32 {
	return f.Pixels[(row*f.Width+col)*FrameChannel+c]
}

// CropFrame converts a raw RGBA image into a Frame restricted to the crop window
func CropFrame(img RawImage) (Frame, error) {
	if img.Height < CropBottom || img.Width < CropRight {
		return Frame{}, fmt.Errorf("image %dx%d smaller than crop window %dx%d", img.Width, img.Height, CropRight, CropBottom)
	}
	if len(img.Data) != img.Width*img.Height*rawChannels {
		return Frame{}, fmt.Errorf("image buffer has %d bytes, expected %d", len(img.Data), img.Width*img.Height*rawChannels)
	}

	height := CropBottom - CropTop
	width := CropRight - CropLeft
	pixels := make([]float32, 0, height*width*FrameChannel)
	for row := CropTop; row < CropBottom; row++ {
		for col := CropLeft; col < CropRight; col++ {
			offset := (row*img.Width + col) * rawChannels
			for c := 0; c < FrameChannel; c++ {
				pixels = append(pixels, float32(img.Data[offset+c]))
			}
		}
	}
	return Frame{Height: height, Width: width, Pixels: pixels}, nil
}
