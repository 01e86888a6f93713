package types

import (
	"context"
	"errors"
)

// ErrConnectionLost is returned by any simulator call that times out or loses its transport.
// The epoch in progress is discarded and the supervisor reconnects.
var ErrConnectionLost = errors.New("simulator connection lost")

// Simulator is the control and telemetry surface of the driving simulator.
// Every call may block on I/O and must return ErrConnectionLost (possibly wrapped) on timeout.
type Simulator interface {
	// Ping confirms the link is alive
	Ping(context.Context) error
	EnableAPIControl(context.Context, bool) error
	// SetPose teleports the vehicle, resetKinematics asks the simulator to clear its motion state
	SetPose(ctx context.Context, pose Pose, resetKinematics bool) error
	SetControls(context.Context, Controls) error
	VehicleState(context.Context) (VehicleState, error)
	CollisionInfo(context.Context) (CollisionInfo, error)
	// Image returns the scene camera image as a raw RGBA buffer
	Image(context.Context) (RawImage, error)
	Close() error
}

type Vector3 struct {
	X float64
	Y float64
	Z float64
}

type Quaternion struct {
	W float64
	X float64
	Y float64
	Z float64
}

type Pose struct {
	Position    Vector3
	Orientation Quaternion
}

// Controls sent to the vehicle, all values in [0,1] except steering in [-1,1]
type Controls struct {
	Steering float64
	Throttle float64
	Brake    float64
}

type VehicleState struct {
	Speed    float64
	Gear     int
	Position Vector3
}

type CollisionInfo struct {
	HasCollided bool
}

// RawImage is an uncompressed camera frame with 4 channels per pixel
type RawImage struct {
	Width  int
	Height int
	Data   []byte
}
