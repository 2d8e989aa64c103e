package lighting

import (
	"github.com/okian/facegate/internal/domain/guidance"
	"github.com/okian/facegate/internal/domain/model"
)

// Option applies a configuration option to the Advisor.
type Option func(*Advisor)

// WithThresholds overrides the TooDark and Good boundaries. Ignored unless
// 0 < tooDarkBelow <= goodFrom.
func WithThresholds(tooDarkBelow, goodFrom float64) Option {
	return func(a *Advisor) {
		if tooDarkBelow > 0 && tooDarkBelow <= goodFrom {
			a.tooDarkBelow = tooDarkBelow
			a.goodFrom = goodFrom
		}
	}
}

// WithStride sets the pixel sampling stride.
func WithStride(stride int) Option {
	return func(a *Advisor) {
		if stride > 0 {
			a.stride = stride
		}
	}
}

// Advisor classifies frames by brightness. It is stateless and safe for
// concurrent use; the controller owns the sampling cadence.
type Advisor struct {
	tooDarkBelow float64
	goodFrom     float64
	stride       int
}

// NewAdvisor creates an advisor with the default thresholds.
func NewAdvisor(opts ...Option) *Advisor {
	a := &Advisor{
		tooDarkBelow: DefaultTooDarkBelow,
		goodFrom:     DefaultGoodFrom,
		stride:       DefaultStride,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Classify maps a brightness value to a Level.
func (a *Advisor) Classify(brightness float64) Level {
	switch {
	case brightness < a.tooDarkBelow:
		return TooDark
	case brightness < a.goodFrom:
		return Suboptimal
	default:
		return Good
	}
}

// Sample measures and classifies frame.
func (a *Advisor) Sample(frame model.Frame) (Level, float64) {
	b := Brightness(frame, a.stride)
	return a.Classify(b), b
}

// Guidance returns the user-facing message for level.
func Guidance(level Level) guidance.Message {
	switch level {
	case TooDark:
		return guidance.Message{
			Text:     "It is too dark. Move to a brighter spot or face a light source.",
			Severity: guidance.SeverityError,
			Source:   guidance.SourceLighting,
		}
	case Suboptimal:
		return guidance.Message{
			Text:     "Lighting is dim. More light will improve your photo. Blink when ready.",
			Severity: guidance.SeverityWarning,
			Source:   guidance.SourceLighting,
		}
	case Good:
		return guidance.Message{
			Text:     "Lighting looks good. Look at the camera and blink.",
			Severity: guidance.SeverityInfo,
			Source:   guidance.SourceLighting,
		}
	default:
		return guidance.Message{
			Text:     "Checking lighting...",
			Severity: guidance.SeverityInfo,
			Source:   guidance.SourceLighting,
		}
	}
}
