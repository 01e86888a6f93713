package geometry

import (
	"math"

	"github.com/zeu5/driving-rl/types"
)

// ToQuaternion converts euler angles in radians to the simulator's orientation quaternion
func ToQuaternion(pitch, roll, yaw float64) types.Quaternion {
	t0 := math.Cos(yaw * 0.5)
	t1 := math.Sin(yaw * 0.5)
	t2 := math.Cos(roll * 0.5)
	t3 := math.Sin(roll * 0.5)
	t4 := math.Cos(pitch * 0.5)
	t5 := math.Sin(pitch * 0.5)

	return types.Quaternion{
		W: t0*t2*t4 + t1*t3*t5,
		X: t0*t3*t4 - t1*t2*t5,
		Y: t0*t2*t5 + t1*t3*t4,
		Z: t1*t2*t4 - t0*t3*t5,
	}
}

// Pose is the simulator pose for the start: on the ground, facing along the road
func (p StartPose) Pose() types.Pose {
	return types.Pose{
		Position:    types.Vector3{X: p.Position.X, Y: p.Position.Y},
		Orientation: ToQuaternion(0, 0, p.Yaw),
	}
}
