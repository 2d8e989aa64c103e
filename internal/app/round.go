package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/facegate/internal/adapters/mq/worker"
	"github.com/okian/facegate/internal/domain/blink"
	"github.com/okian/facegate/internal/domain/guidance"
	"github.com/okian/facegate/internal/domain/lighting"
	"github.com/okian/facegate/internal/domain/model"
	"github.com/okian/facegate/pkg/logger"
	"github.com/okian/facegate/pkg/metrics"
)

// Task names of a detection round.
const (
	taskBlink    = "blink"
	taskLighting = "lighting"
)

// round is one detection round: a fresh blink detector plus the blink and
// lighting tasks. Ticks carry their round and are ignored once it is no
// longer current.
type round struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
	blink  *blink.Detector
	group  *worker.Group
	since  time.Time

	frameFailures  int
	detectFailures int
}

func (r *round) stop() {
	r.cancel()
	r.group.Stop()
}

// shutdown stops the round and waits for both tasks to exit.
func (r *round) shutdown(ctx context.Context) error {
	r.cancel()
	return r.group.Shutdown(ctx)
}

// staleFrame reports whether f was captured before r started, e.g. a frame
// still buffered from the previous round's freeze.
func (r *round) staleFrame(f model.Frame) bool { //nolint:gocritic // hugeParam: frame shares Pix
	return !f.Timestamp.IsZero() && f.Timestamp.Before(r.since)
}

// startRoundLocked begins a new round and moves to Detecting.
func (c *Controller) startRoundLocked() {
	c.rounds++
	ctx, cancel := context.WithCancel(context.Background())
	r := &round{
		id:     c.rounds,
		ctx:    ctx,
		cancel: cancel,
		blink:  blink.NewDetector(blink.WithThreshold(c.blinkThreshold), blink.WithClock(c.now)),
		// frame timestamps come from the source clock, not c.now
		since: time.Now(),
	}
	log := c.logger.With(logger.String("session", c.sessionID), logger.Uint64("round", r.id))
	r.group = worker.NewGroup(
		worker.NewPeriodic(taskBlink, c.blinkInterval, func(ctx context.Context, at time.Time) {
			c.blinkTick(ctx, r, at)
		}, worker.WithLogger(log), worker.WithTickerFactory(c.tickers)),
		worker.NewPeriodic(taskLighting, c.lightingInterval, func(ctx context.Context, _ time.Time) {
			c.lightingTick(ctx, r)
		}, worker.WithLogger(log), worker.WithTickerFactory(c.tickers)),
	)
	c.round = r
	c.transitionLocked(StateDetecting)
	r.group.Start(ctx)
	log.Debug(ctx, "detection round started")
}

// currentLocked reports whether r may still change the session.
func (c *Controller) currentLocked(r *round) bool {
	return c.round == r && c.state == StateDetecting && r.ctx.Err() == nil
}

func (c *Controller) isCurrent(r *round) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked(r)
}

// blinkTick samples one frame, skips it when too dark, otherwise runs
// landmark detection and feeds the round's blink detector.
func (c *Controller) blinkTick(ctx context.Context, r *round, _ time.Time) {
	if !c.isCurrent(r) {
		metrics.RecordStaleTick(taskBlink)
		return
	}

	frame, err := c.source.NextFrame(ctx)
	if err != nil {
		c.frameFailure(ctx, r, taskBlink, err)
		return
	}
	if r.staleFrame(frame) {
		c.skipStaleFrame(r, taskBlink)
		return
	}
	level, brightness := c.advisor.Sample(frame)
	if level == lighting.TooDark {
		c.mu.Lock()
		if c.currentLocked(r) {
			r.frameFailures = 0
			c.counters.suppressedTicks++
		}
		c.mu.Unlock()
		metrics.RecordBlinkTickSuppressed()
		return
	}

	faces, err := c.detector.Detect(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.detectFailure(ctx, r, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(r) {
		metrics.RecordStaleTick(taskBlink)
		c.counters.staleTicks++
		return
	}
	r.frameFailures, r.detectFailures = 0, 0
	c.counters.blinkTicks++
	metrics.RecordBlinkTick()

	ev, ok := r.blink.Observe(faces)
	if len(faces) > 0 {
		metrics.UpdateEAR(r.blink.LastEAR())
	}
	if !ok {
		return
	}
	c.freezeLocked(ctx, r, frame, ev, brightness)
}

// freezeLocked captures the blink frame, ends the round and pauses the camera.
func (c *Controller) freezeLocked(ctx context.Context, r *round, frame model.Frame, ev blink.Event, brightness float64) { //nolint:gocritic // hugeParam: frame shares Pix
	data, w, h, err := c.encoder.Encode(frame)
	if err != nil {
		// keep detecting; the next blink gets another chance
		r.blink.Reset()
		c.logger.Warn(ctx, "blink frame could not be encoded", logger.Error(err))
		return
	}
	c.photo = model.CapturedPhoto{
		ID:         uuid.NewString(),
		JPEG:       data,
		Width:      w,
		Height:     h,
		FrameSeq:   frame.Seq,
		EAR:        ev.EAR,
		Brightness: brightness,
		CapturedAt: ev.At,
	}
	c.hasPhoto = true
	c.counters.blinkEvents++
	c.transitionLocked(StateFrozen)
	r.stop()
	c.source.Pause()
	c.cameraPaused = true
	c.board.Pin(guidance.Message{Text: msgBlinked, Severity: guidance.SeveritySuccess, Source: guidance.SourceBlink})
	metrics.RecordBlinkEvent()
	c.logger.Info(ctx, "blink detected",
		logger.String("session", c.sessionID),
		logger.Uint64("round", r.id),
		logger.Float64("ear", ev.EAR),
		logger.Uint64("frame", frame.Seq),
	)
}

// lightingTick samples one frame and publishes lighting guidance.
func (c *Controller) lightingTick(ctx context.Context, r *round) {
	if !c.isCurrent(r) {
		metrics.RecordStaleTick(taskLighting)
		return
	}
	frame, err := c.source.NextFrame(ctx)
	if err != nil {
		c.frameFailure(ctx, r, taskLighting, err)
		return
	}
	if r.staleFrame(frame) {
		c.skipStaleFrame(r, taskLighting)
		return
	}
	level, brightness := c.advisor.Sample(frame)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(r) {
		metrics.RecordStaleTick(taskLighting)
		c.counters.staleTicks++
		return
	}
	r.frameFailures = 0
	c.level, c.brightness = level, brightness
	c.counters.lightingSamples++
	metrics.RecordLightingSample(level.String(), brightness)
	c.board.Advise(lighting.Guidance(level))
}

func (c *Controller) skipStaleFrame(r *round, task string) {
	c.mu.Lock()
	if c.currentLocked(r) {
		c.counters.staleFrames++
	}
	c.mu.Unlock()
	metrics.RecordFrameDrop()
	c.logger.Debug(r.ctx, "frame predates the round", logger.String("task", task), logger.Uint64("round", r.id))
}

func (c *Controller) frameFailure(ctx context.Context, r *round, task string, err error) {
	if ctx.Err() != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(r) {
		return
	}
	r.frameFailures++
	c.counters.frameFailures++
	c.logger.Warn(ctx, "frame unavailable", logger.String("task", task), logger.Int("consecutive", r.frameFailures), logger.Error(err))
	if r.frameFailures < c.maxTickFailures {
		return
	}
	c.failRoundLocked(ctx, r, KindCameraDenied, "The camera stopped delivering images. Try again or ask staff for help.",
		fmt.Errorf("%w: %w", model.ErrCameraAccessDenied, err))
}

func (c *Controller) detectFailure(ctx context.Context, r *round, err error) {
	metrics.RecordLandmarkError()
	c.mu.Lock()
	if !c.currentLocked(r) {
		c.mu.Unlock()
		return
	}
	r.detectFailures++
	c.counters.detectFailures++
	c.logger.Warn(ctx, "landmark detection failed", logger.Int("consecutive", r.detectFailures), logger.Error(err))
	if r.detectFailures < c.maxTickFailures {
		c.mu.Unlock()
		return
	}
	if !errors.Is(err, model.ErrModelLoadFailure) {
		err = fmt.Errorf("%w: %w", model.ErrModelLoadFailure, err)
	}
	c.failRoundLocked(ctx, r, KindModelFailed, "Face detection stopped working. Please ask staff for help.", err)
	c.modelLoaded = false
	c.mu.Unlock()

	if cerr := c.detector.Close(); cerr != nil {
		c.logger.Warn(ctx, "landmark detector close failed", logger.Error(cerr))
	}
}

// failRoundLocked ends r and moves the session to Failed. The round stays
// attached so Retake and Reset can wait for its tasks.
func (c *Controller) failRoundLocked(ctx context.Context, r *round, kind, text string, err error) {
	r.stop()
	c.setErrorLocked(kind, text)
	c.transitionLocked(StateFailed)
	c.board.Fail(guidance.SourceSession, text)
	metrics.RecordErrorByComponent("capture", kind)
	c.logger.Error(ctx, "detection round failed", logger.Uint64("round", r.id), logger.String("kind", kind), logger.Error(err))
}
