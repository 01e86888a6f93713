package geometry

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// start positions are kept away from both segment ends
	minInterp = 0.3
	maxInterp = 0.7

	// tolerances of the axis alignment test
	closeAbsTol = 1e-8
	closeRelTol = 1e-5
)

// StartPose is where and which way the car is placed at the beginning of an epoch
type StartPose struct {
	Position r3.Vec
	Yaw      float64
}

type orientation int

const (
	diagonal orientation = iota
	alongX                // both end points share Y
	alongY                // both end points share X
)

func classify(s Segment) orientation {
	switch {
	case scalar.EqualWithinAbsOrRel(s.A.Y, s.B.Y, closeAbsTol, closeRelTol):
		return alongX
	case scalar.EqualWithinAbsOrRel(s.A.X, s.B.X, closeAbsTol, closeRelTol):
		return alongY
	default:
		return diagonal
	}
}

// StartSelector picks random starting poses on the road network.
// Only axis-aligned segments are used: there is no facing rule for diagonal roads,
// so they are skipped rather than guessed.
type StartSelector struct {
	segments []Segment
	kinds    []orientation
	skipped  int
	rand     *rand.Rand
}

func NewStartSelector(road []Segment, rng *rand.Rand) (*StartSelector, error) {
	s := &StartSelector{
		segments: make([]Segment, 0, len(road)),
		kinds:    make([]orientation, 0, len(road)),
		rand:     rng,
	}
	for _, seg := range road {
		kind := classify(seg)
		if kind == diagonal {
			s.skipped++
			continue
		}
		s.segments = append(s.segments, seg)
		s.kinds = append(s.kinds, kind)
	}
	if len(s.segments) == 0 {
		return nil, ErrNoAxisAlignedRoad
	}
	return s, nil
}

// Skipped is the number of diagonal segments left out of start selection
func (s *StartSelector) Skipped() int {
	return s.skipped
}

// NextStart draws a random segment, a point in the middle part of it and a facing direction along it
func (s *StartSelector) NextStart() StartPose {
	i := s.rand.Intn(len(s.segments))
	interp := s.rand.Float64()*(maxInterp-minInterp) + minInterp
	coin := s.rand.Float64()

	seg := s.segments[i]
	pos := r3.Vec{
		X: seg.A.X + (seg.B.X-seg.A.X)*interp,
		Y: seg.A.Y + (seg.B.Y-seg.A.Y)*interp,
	}

	var yaw float64
	switch s.kinds[i] {
	case alongX:
		if coin > 0.5 {
			yaw = 0
		} else {
			yaw = math.Pi
		}
	case alongY:
		if coin > 0.5 {
			yaw = math.Pi / 2
		} else {
			yaw = -math.Pi / 2
		}
	}
	return StartPose{Position: pos, Yaw: yaw}
}
