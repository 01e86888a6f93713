package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// MinSpeed below which the car counts as stopped
	MinSpeed = 2.0
	// DistanceDecayRate of the exponential distance reward
	DistanceDecayRate = 1.2
	// ThreshDist is the largest distance to a centerline before the car is off the road
	ThreshDist = 3.5
)

// RewardEvaluator scores the vehicle by its distance to the nearest centerline of any road
type RewardEvaluator struct {
	Segments []Segment
}

func NewRewardEvaluator(segments []Segment) *RewardEvaluator {
	return &RewardEvaluator{Segments: segments}
}

// Evaluate returns the reward and whether the epoch should end because the car left the road
func (e *RewardEvaluator) Evaluate(collided bool, speed float64, pos r3.Vec) (float64, bool) {
	if collided {
		return 0.0, true
	}
	if speed < MinSpeed {
		return 0.0, true
	}
	distance := e.DistanceToNearest(pos)
	return math.Exp(-(distance * DistanceDecayRate)), distance > ThreshDist
}

// DistanceToNearest is the planar distance from pos to the closest point of any segment
func (e *RewardEvaluator) DistanceToNearest(pos r3.Vec) float64 {
	point := r3.Vec{X: pos.X, Y: pos.Y}
	distance := math.Inf(1)
	for _, s := range e.Segments {
		distance = math.Min(distance, pointToSegment(point, s))
	}
	return distance
}

func pointToSegment(p r3.Vec, s Segment) float64 {
	dir := r3.Sub(s.B, s.A)
	lengthSquared := r3.Dot(dir, dir)
	if lengthSquared == 0 {
		return 0
	}
	t := r3.Dot(r3.Sub(p, s.A), dir) / lengthSquared
	t = math.Max(0, math.Min(1, t))
	proj := r3.Add(s.A, r3.Scale(t, dir))
	return r3.Norm(r3.Sub(proj, p))
}
