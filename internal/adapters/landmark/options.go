package landmark

import (
	"time"

	"github.com/okian/facegate/pkg/logger"
)

// Option applies a configuration option to the ProcessDetector.
type Option func(*ProcessDetector)

// WithModel passes the model asset path to the helper as its last argument.
func WithModel(path string) Option {
	return func(d *ProcessDetector) {
		d.model = path
	}
}

// WithTimeout bounds model loading and each inference.
func WithTimeout(t time.Duration) Option {
	return func(d *ProcessDetector) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithEnv appends environment variables for the helper process.
func WithEnv(env ...string) Option {
	return func(d *ProcessDetector) {
		d.env = append(d.env, env...)
	}
}

// WithJPEGQuality sets the quality of frames sent to the helper.
func WithJPEGQuality(q int) Option {
	return func(d *ProcessDetector) {
		if q > 0 && q <= 100 {
			d.quality = q
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(d *ProcessDetector) {
		if l != nil {
			d.logger = l
		}
	}
}
