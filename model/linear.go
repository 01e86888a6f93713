package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/zeu5/driving-rl/types"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

const (
	// number of vertical bands every frame is averaged into
	bands       = 16
	numFeatures = types.StateBufferLen*bands + 1

	defaultLearningRate = 0.01
	defaultDiscount     = 0.99
	cruiseSpeed         = 7.0
)

// SteeringBins are the steering angles behind each action index
var SteeringBins = []float64{-0.5, -0.25, 0, 0.25, 0.5}

// Packet is the serialized form of the model
type Packet struct {
	Weights [][]float64 `json:"weights"`
	Gains   []float64   `json:"gains"`
}

type params struct {
	weights [][]float64
	gains   []float64
}

func (p params) clone() params {
	out := params{
		weights: make([][]float64, len(p.weights)),
		gains:   append([]float64(nil), p.gains...),
	}
	for i, w := range p.weights {
		out.weights[i] = append([]float64(nil), w...)
	}
	return out
}

// Linear is a baseline Q model: Q(s, a) = w_a . (gains * features(s)).
// Features are brightness averages over vertical bands of each frame of the state.
// The target copy only moves on UpdateCritic.
type Linear struct {
	online        params
	target        params
	LearningRate  float64
	Discount      float64
	TrainFeatures bool
	rand          *rand.Rand
}

var (
	_ types.Model   = &Linear{}
	_ types.Trainer = &Linear{}
)

func NewLinear(trainFeatures bool, rng *rand.Rand) *Linear {
	p := params{
		weights: make([][]float64, len(SteeringBins)),
		gains:   make([]float64, numFeatures),
	}
	for i := range p.weights {
		p.weights[i] = make([]float64, numFeatures)
	}
	for i := range p.gains {
		p.gains[i] = 1
	}
	return &Linear{
		online:        p,
		target:        p.clone(),
		LearningRate:  defaultLearningRate,
		Discount:      defaultDiscount,
		TrainFeatures: trainFeatures,
		rand:          rng,
	}
}

// LoadFile reads initial weights from a packet file
func (m *Linear) LoadFile(path string) error {
	bs, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.FromPacket(bs)
}

func (m *Linear) RandomState() types.Action {
	return types.Action(m.rand.Intn(len(SteeringBins)))
}

func (m *Linear) PredictState(state []types.Frame) (types.Action, float64, error) {
	a, q := m.best(m.online, features(state))
	return a, q, nil
}

func (m *Linear) StateToControls(a types.Action, vs types.VehicleState) types.Controls {
	i := int(a)
	if i < 0 || i >= len(SteeringBins) {
		i = len(SteeringBins) / 2
	}
	c := types.Controls{Steering: SteeringBins[i]}
	if vs.Speed < cruiseSpeed {
		c.Throttle = 1
	}
	return c
}

// Train runs one SGD pass over the transitions toward r + discount * max Q_target(post)
func (m *Linear) Train(batch []types.Transition) error {
	for _, t := range batch {
		a := int(t.Action)
		if a < 0 || a >= len(SteeringBins) {
			return fmt.Errorf("action %d outside the action space", a)
		}
		raw := features(t.PreState)
		x := scaled(raw, m.online.gains)

		target := t.Reward
		if !t.IsTerminal {
			_, next := m.best(m.target, features(t.PostState))
			target += m.Discount * next
		}
		diff := target - floats.Dot(m.online.weights[a], x)

		if m.TrainFeatures {
			grad := make([]float64, numFeatures)
			floats.MulTo(grad, m.online.weights[a], raw)
			floats.AddScaled(m.online.gains, m.LearningRate*diff, grad)
		}
		floats.AddScaled(m.online.weights[a], m.LearningRate*diff, x)
	}
	return nil
}

func (m *Linear) UpdateCritic() error {
	m.target = m.online.clone()
	return nil
}

func (m *Linear) ToPacket(target bool) (json.RawMessage, error) {
	p := m.online
	if target {
		p = m.target
	}
	return json.Marshal(Packet{Weights: p.weights, Gains: p.gains})
}

func (m *Linear) FromPacket(raw json.RawMessage) error {
	packet := Packet{}
	if err := json.Unmarshal(raw, &packet); err != nil {
		return err
	}
	if len(packet.Weights) != len(SteeringBins) || len(packet.Gains) != numFeatures {
		return errors.New("packet shape does not match the model")
	}
	for _, w := range packet.Weights {
		if len(w) != numFeatures {
			return errors.New("packet shape does not match the model")
		}
	}
	m.online = params{weights: packet.Weights, gains: packet.Gains}
	m.target = m.online.clone()
	return nil
}

func (m *Linear) best(p params, raw []float64) (types.Action, float64) {
	x := scaled(raw, p.gains)
	best, bestQ := 0, floats.Dot(p.weights[0], x)
	for a := 1; a < len(p.weights); a++ {
		if q := floats.Dot(p.weights[a], x); q > bestQ {
			best, bestQ = a, q
		}
	}
	return types.Action(best), bestQ
}

func scaled(raw, gains []float64) []float64 {
	x := make([]float64, len(raw))
	floats.MulTo(x, raw, gains)
	return x
}

// features averages each frame over vertical bands, normalized to [0,1], plus a bias term
func features(state []types.Frame) []float64 {
	out := make([]float64, numFeatures)
	out[numFeatures-1] = 1
	for i, f := range state {
		if i >= types.StateBufferLen || f.Width == 0 || f.Height == 0 {
			continue
		}
		counts := make([]float64, bands)
		for row := 0; row < f.Height; row++ {
			for col := 0; col < f.Width; col++ {
				b := col * bands / f.Width
				for c := 0; c < types.FrameChannel; c++ {
					out[i*bands+b] += float64(f.At(row, col, c))
				}
				counts[b] += types.FrameChannel
			}
		}
		for b := 0; b < bands; b++ {
			if counts[b] > 0 {
				out[i*bands+b] /= counts[b] * 255
			}
		}
	}
	return out
}
