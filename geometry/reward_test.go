package geometry

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

const difTol = 1e-9

func TestRewardTerminalConditions(t *testing.T) {
	e := NewRewardEvaluator([]Segment{{A: r3.Vec{}, B: r3.Vec{X: 10}}})

	if r, off := e.Evaluate(true, 10, r3.Vec{X: 5}); r != 0 || !off {
		t.Errorf("collided: expected (0, true), got (%v, %v)", r, off)
	}
	if r, off := e.Evaluate(false, 1.9, r3.Vec{X: 5}); r != 0 || !off {
		t.Errorf("stopped: expected (0, true), got (%v, %v)", r, off)
	}
}

func TestRewardDistance(t *testing.T) {
	e := NewRewardEvaluator([]Segment{{A: r3.Vec{}, B: r3.Vec{X: 10}}})

	cases := []struct {
		name     string
		pos      r3.Vec
		distance float64
		offTrack bool
	}{
		{"beside", r3.Vec{X: 5, Y: 1}, 1, false},
		{"far", r3.Vec{X: 5, Y: 10}, 10, true},
		{"past end", r3.Vec{X: 13, Y: 4}, 5, true},
		{"on line", r3.Vec{X: 2}, 0, false},
		{"threshold", r3.Vec{X: 5, Y: ThreshDist}, ThreshDist, false},
	}
	for _, c := range cases {
		r, off := e.Evaluate(false, 10, c.pos)
		want := math.Exp(-c.distance * DistanceDecayRate)
		if math.Abs(r-want) > difTol {
			t.Errorf("%s: expected reward %v, got %v", c.name, want, r)
		}
		if off != c.offTrack {
			t.Errorf("%s: expected offTrack %v, got %v", c.name, c.offTrack, off)
		}
	}
}

func TestRewardNearestOfManySegments(t *testing.T) {
	e := NewRewardEvaluator([]Segment{
		{A: r3.Vec{}, B: r3.Vec{X: 10}},
		{A: r3.Vec{X: 20, Y: -5}, B: r3.Vec{X: 20, Y: 5}},
	})
	if d := e.DistanceToNearest(r3.Vec{X: 18, Y: 1}); math.Abs(d-2) > difTol {
		t.Errorf("expected distance 2 to the second road, got %v", d)
	}
}

func TestRewardZeroLengthSegment(t *testing.T) {
	e := NewRewardEvaluator([]Segment{{A: r3.Vec{X: 3, Y: 3}, B: r3.Vec{X: 3, Y: 3}}})
	if d := e.DistanceToNearest(r3.Vec{X: 50, Y: 50}); d != 0 {
		t.Errorf("zero length segment should report distance 0, got %v", d)
	}
}
