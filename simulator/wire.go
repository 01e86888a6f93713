package simulator

import "github.com/zeu5/driving-rl/types"

// msgpack map layouts of the simulator's RPC structs

const sceneImage = 0

type wireVector3 struct {
	X float64 `codec:"x_val"`
	Y float64 `codec:"y_val"`
	Z float64 `codec:"z_val"`
}

type wireQuaternion struct {
	W float64 `codec:"w_val"`
	X float64 `codec:"x_val"`
	Y float64 `codec:"y_val"`
	Z float64 `codec:"z_val"`
}

type wirePose struct {
	Position    wireVector3    `codec:"position"`
	Orientation wireQuaternion `codec:"orientation"`
}

type wireCarControls struct {
	Throttle     float64 `codec:"throttle"`
	Steering     float64 `codec:"steering"`
	Brake        float64 `codec:"brake"`
	Handbrake    bool    `codec:"handbrake"`
	IsManualGear bool    `codec:"is_manual_gear"`
	ManualGear   int     `codec:"manual_gear"`
}

type wireKinematics struct {
	Position wireVector3 `codec:"position"`
}

type wireCarState struct {
	Speed          float64        `codec:"speed"`
	Gear           int            `codec:"gear"`
	KinematicsTrue wireKinematics `codec:"kinematics_true"`
}

type wireCollisionInfo struct {
	HasCollided bool `codec:"has_collided"`
}

type wireImageRequest struct {
	CameraID      int  `codec:"camera_id"`
	ImageType     int  `codec:"image_type"`
	PixelsAsFloat bool `codec:"pixels_as_float"`
	Compress      bool `codec:"compress"`
}

type wireImageResponse struct {
	ImageData []byte `codec:"image_data_uint8"`
	Width     int    `codec:"width"`
	Height    int    `codec:"height"`
}

func toWirePose(p types.Pose) wirePose {
	return wirePose{
		Position: wireVector3{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z},
		Orientation: wireQuaternion{
			W: p.Orientation.W,
			X: p.Orientation.X,
			Y: p.Orientation.Y,
			Z: p.Orientation.Z,
		},
	}
}

func toWireControls(c types.Controls) wireCarControls {
	return wireCarControls{
		Throttle: c.Throttle,
		Steering: c.Steering,
		Brake:    c.Brake,
	}
}

func (s wireCarState) toVehicleState() types.VehicleState {
	p := s.KinematicsTrue.Position
	return types.VehicleState{
		Speed:    s.Speed,
		Gear:     s.Gear,
		Position: types.Vector3{X: p.X, Y: p.Y, Z: p.Z},
	}
}
