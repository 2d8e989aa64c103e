package main

import (
	"context"
	"runtime"
	"time"

	"github.com/okian/facegate/internal/adapters/camera"
	"github.com/okian/facegate/internal/adapters/enrollment"
	"github.com/okian/facegate/internal/adapters/landmark"
	"github.com/okian/facegate/internal/app"
	"github.com/okian/facegate/internal/config"
	"github.com/okian/facegate/internal/domain/dedupe"
	"github.com/okian/facegate/internal/domain/lighting"
	"github.com/okian/facegate/pkg/logger"
	"github.com/okian/facegate/pkg/metrics"
)

const systemMetricsInterval = 10 * time.Second

// newFrameSource builds the configured camera.
func newFrameSource(c *config.Config, log logger.Logger) app.FrameSource {
	opts := []camera.Option{
		camera.WithResolution(c.CameraWidth, c.CameraHeight),
		camera.WithFPS(c.CameraFPS),
		camera.WithLogger(log.Named("camera")),
	}
	if c.CameraMode == config.CameraDirectory {
		return camera.NewDirectorySource(c.CameraDir, opts...)
	}
	return camera.NewFFmpegSource(c.CameraDevice, opts...)
}

// newController wires the configured adapters into a capture controller.
func newController(c *config.Config, log logger.Logger) *app.Controller {
	detector := landmark.NewProcessDetector(c.LandmarkCommand,
		landmark.WithModel(c.LandmarkModel),
		landmark.WithTimeout(c.LandmarkTimeout()),
		landmark.WithLogger(log.Named("landmark")),
	)
	client := enrollment.NewClient(c.EnrollURL,
		enrollment.WithTimeout(c.SubmitTimeout()),
		enrollment.WithLogger(log.Named("enrollment")),
	)
	return app.New(newFrameSource(c, log), detector, client,
		app.WithLogger(log.Named("capture")),
		app.WithMinCodeLength(c.MinCodeLength),
		app.WithBlinkInterval(c.BlinkInterval()),
		app.WithLightingInterval(c.LightingInterval()),
		app.WithBlinkThreshold(c.EARThreshold),
		app.WithAdvisor(lighting.NewAdvisor(
			lighting.WithThresholds(c.TooDarkBelow, c.GoodFrom),
			lighting.WithStride(c.BrightnessStride),
		)),
		app.WithEncoder(enrollment.NewEncoder(c.JPEGQuality, c.MaxPhotoWidth)),
		app.WithLedger(dedupe.NewInMemoryLedger(dedupe.WithMaxSize(c.UsedInviteCache))),
	)
}

// startSystemMetricsUpdater updates system metrics until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
