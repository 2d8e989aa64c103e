// Package lighting estimates frame illumination and classifies it into
// capture guidance levels.
package lighting

import (
	"github.com/okian/facegate/internal/domain/model"
)

// Default classification thresholds on the 0-255 luminance scale.
const (
	DefaultTooDarkBelow = 50.0
	DefaultGoodFrom     = 80.0
	DefaultStride       = 10
)

// Level is the classified illumination of a frame.
type Level int

const (
	// Unknown is reported before the first sample of a round.
	Unknown Level = iota
	TooDark
	Suboptimal
	Good
)

// String returns the metric/JSON name of the level.
func (l Level) String() string {
	switch l {
	case TooDark:
		return "too_dark"
	case Suboptimal:
		return "suboptimal"
	case Good:
		return "good"
	default:
		return "unknown"
	}
}

// MarshalText renders the level by name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Brightness returns the mean perceptual luminance (0.299R + 0.587G + 0.114B)
// of every stride-th pixel of frame, starting at the first pixel. An empty or
// malformed frame yields 0.
func Brightness(frame model.Frame, stride int) float64 {
	if stride < 1 {
		stride = 1
	}
	step := stride * model.BytesPerPixel
	pix := frame.Pix
	var sum float64
	var n int
	for i := 0; i+2 < len(pix); i += step {
		sum += 0.299*float64(pix[i]) + 0.587*float64(pix[i+1]) + 0.114*float64(pix[i+2])
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
