package types

import "encoding/json"

// Model maps states to actions and actions to vehicle controls.
// The learning algorithm behind it is opaque to the agent.
type Model interface {
	// RandomState picks an action uniformly from the action space
	RandomState() Action
	// PredictState returns the best action for the state and its predicted reward
	PredictState(state []Frame) (Action, float64, error)
	StateToControls(Action, VehicleState) Controls
	// UpdateCritic performs one critic/target update step
	UpdateCritic() error
	// ToPacket serializes the model, target selects the target network over the online one
	ToPacket(target bool) (json.RawMessage, error)
	FromPacket(json.RawMessage) error
}

// Trainer is implemented by models that can learn from sampled transitions locally
type Trainer interface {
	Train([]Transition) error
}
