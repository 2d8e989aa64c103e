package landmark

import (
	"sync"

	"github.com/okian/facegate/internal/domain/model"
)

// Simulated eye aspect ratios.
const (
	SimOpenEAR   = 0.32
	SimClosedEAR = 0.12
)

// Simulator fakes a subject who blinks every Period frames, with the eyes
// closed for Closed consecutive frames. It stands in for a real model during
// kiosk rehearsals.
type Simulator struct {
	Period int
	Closed int

	mu    sync.Mutex
	count int
}

// NewSimulator creates a simulator; non-positive values fall back to a blink
// every 30 frames lasting 2 frames.
func NewSimulator(period, closed int) *Simulator {
	if period <= 0 {
		period = 30
	}
	if closed <= 0 || closed >= period {
		closed = 2
	}
	return &Simulator{Period: period, Closed: closed}
}

// Detect implements DetectFunc.
func (s *Simulator) Detect(_ []byte) ([]model.Face, error) {
	s.mu.Lock()
	s.count++
	phase := s.count % s.Period
	s.mu.Unlock()

	ear := SimOpenEAR
	if phase >= s.Period-s.Closed {
		ear = SimClosedEAR
	}
	return []model.Face{{
		Box:      [4]float64{0.25, 0.2, 0.75, 0.8},
		LeftEye:  SimulatedEye(ear),
		RightEye: SimulatedEye(ear),
		Score:    0.99,
	}}, nil
}

// SimulatedEye returns landmarks whose aspect ratio is exactly ear.
func SimulatedEye(ear float64) model.EyeLandmarks {
	h := ear * 10
	return model.EyeLandmarks{
		{X: 0, Y: 0},
		{X: 3, Y: -h / 2},
		{X: 7, Y: -h / 2},
		{X: 10, Y: 0},
		{X: 7, Y: h / 2},
		{X: 3, Y: h / 2},
	}
}
