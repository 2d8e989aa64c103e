// Package config defines kiosk configuration and its loading layers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Camera modes.
const (
	CameraFFmpeg    = "ffmpeg"
	CameraDirectory = "dir"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the kiosk HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// EnrollURL is the enrollment service endpoint receiving POST /register.
	EnrollURL       string `koanf:"enroll_url"`
	SubmitTimeoutMS int    `koanf:"submit_timeout_ms"`

	// MinCodeLength is the local invite code guard.
	MinCodeLength int `koanf:"min_code_length"`

	BlinkIntervalMS    int     `koanf:"blink_interval_ms"`
	LightingIntervalMS int     `koanf:"lighting_interval_ms"`
	EARThreshold       float64 `koanf:"ear_threshold"`

	// TooDarkBelow and GoodFrom bound the lighting levels on the 0-255 scale.
	TooDarkBelow     float64 `koanf:"too_dark_below"`
	GoodFrom         float64 `koanf:"good_from"`
	BrightnessStride int     `koanf:"brightness_stride"`

	// CameraMode selects the frame source: ffmpeg or dir.
	CameraMode   string `koanf:"camera_mode"`
	CameraDevice string `koanf:"camera_device"`
	CameraWidth  int    `koanf:"camera_width"`
	CameraHeight int    `koanf:"camera_height"`
	CameraFPS    int    `koanf:"camera_fps"`
	// CameraDir is the replay directory for the dir mode.
	CameraDir string `koanf:"camera_dir"`

	// LandmarkCommand starts the landmark helper process.
	LandmarkCommand   string `koanf:"landmark_command"`
	LandmarkModel     string `koanf:"landmark_model"`
	LandmarkTimeoutMS int    `koanf:"landmark_timeout_ms"`

	JPEGQuality   int `koanf:"jpeg_quality"`
	MaxPhotoWidth int `koanf:"max_photo_width"`

	// UsedInviteCache bounds the used-invite ledger.
	UsedInviteCache int `koanf:"used_invite_cache"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		EnrollURL:          "http://localhost:8000/register",
		SubmitTimeoutMS:    30_000,
		MinCodeLength:      5,
		BlinkIntervalMS:    100,
		LightingIntervalMS: 500,
		EARThreshold:       0.25,
		TooDarkBelow:       50,
		GoodFrom:           80,
		BrightnessStride:   10,
		CameraMode:         CameraFFmpeg,
		CameraDevice:       "/dev/video0",
		CameraWidth:        640,
		CameraHeight:       480,
		CameraFPS:          15,
		LandmarkCommand:    "facegate-landmarks",
		LandmarkTimeoutMS:  10_000,
		JPEGQuality:        95,
		MaxPhotoWidth:      1024,
		UsedInviteCache:    10_000,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !strings.HasPrefix(c.EnrollURL, "http://") && !strings.HasPrefix(c.EnrollURL, "https://"):
		return fmt.Errorf("%w: enroll_url must be an http(s) URL, got %q", ErrInvalidConfig, c.EnrollURL)
	case c.MinCodeLength < 1:
		return fmt.Errorf("%w: min_code_length must be positive", ErrInvalidConfig)
	case c.BlinkIntervalMS <= 0 || c.LightingIntervalMS <= 0:
		return fmt.Errorf("%w: polling intervals must be positive", ErrInvalidConfig)
	case c.EARThreshold <= 0 || c.EARThreshold >= 1:
		return fmt.Errorf("%w: ear_threshold must be in (0,1), got %v", ErrInvalidConfig, c.EARThreshold)
	case c.TooDarkBelow <= 0 || c.GoodFrom > 255 || c.TooDarkBelow > c.GoodFrom:
		return fmt.Errorf("%w: need 0 < too_dark_below <= good_from <= 255", ErrInvalidConfig)
	case c.BrightnessStride < 1:
		return fmt.Errorf("%w: brightness_stride must be positive", ErrInvalidConfig)
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		return fmt.Errorf("%w: jpeg_quality must be in [1,100]", ErrInvalidConfig)
	case c.MaxPhotoWidth < 1:
		return fmt.Errorf("%w: max_photo_width must be positive", ErrInvalidConfig)
	case c.LandmarkCommand == "":
		return fmt.Errorf("%w: landmark_command must not be empty", ErrInvalidConfig)
	}
	switch c.CameraMode {
	case CameraFFmpeg:
		if c.CameraDevice == "" {
			return fmt.Errorf("%w: camera_device must not be empty", ErrInvalidConfig)
		}
	case CameraDirectory:
		if c.CameraDir == "" {
			return fmt.Errorf("%w: camera_dir is required in dir mode", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown camera_mode %q", ErrInvalidConfig, c.CameraMode)
	}
	return nil
}

// Duration helpers.
func (c *Config) SubmitTimeout() time.Duration    { return ms(c.SubmitTimeoutMS) }
func (c *Config) BlinkInterval() time.Duration    { return ms(c.BlinkIntervalMS) }
func (c *Config) LightingInterval() time.Duration { return ms(c.LightingIntervalMS) }
func (c *Config) LandmarkTimeout() time.Duration  { return ms(c.LandmarkTimeoutMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
