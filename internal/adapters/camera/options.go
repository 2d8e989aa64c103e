// Package camera provides frame sources for the capture pipeline: a live
// V4L2 camera read through ffmpeg and a directory replay source.
package camera

import (
	"github.com/okian/facegate/pkg/logger"
)

// Defaults match a typical front-facing kiosk webcam.
const (
	DefaultDevice = "/dev/video0"
	DefaultWidth  = 640
	DefaultHeight = 480
	DefaultFPS    = 15
	DefaultBinary = "ffmpeg"
)

type settings struct {
	width  int
	height int
	fps    int
	binary string
	logger logger.Logger
}

func defaultSettings() settings {
	return settings{
		width:  DefaultWidth,
		height: DefaultHeight,
		fps:    DefaultFPS,
		binary: DefaultBinary,
	}
}

// Option applies a configuration option to a frame source.
type Option func(*settings)

// WithResolution sets the requested capture size.
func WithResolution(width, height int) Option {
	return func(s *settings) {
		if width > 0 && height > 0 {
			s.width, s.height = width, height
		}
	}
}

// WithFPS sets the capture (or replay) rate. For DirectorySource 0 disables
// pacing.
func WithFPS(fps int) Option {
	return func(s *settings) {
		if fps >= 0 {
			s.fps = fps
		}
	}
}

// WithBinary overrides the ffmpeg executable.
func WithBinary(path string) Option {
	return func(s *settings) {
		if path != "" {
			s.binary = path
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
