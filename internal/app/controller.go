// Package app implements the capture controller: the state machine that turns
// a camera feed into one liveness-confirmed, well-lit enrollment photo.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/facegate/internal/adapters/enrollment"
	"github.com/okian/facegate/internal/adapters/mq/worker"
	"github.com/okian/facegate/internal/domain/blink"
	"github.com/okian/facegate/internal/domain/dedupe"
	"github.com/okian/facegate/internal/domain/guidance"
	"github.com/okian/facegate/internal/domain/lighting"
	"github.com/okian/facegate/internal/domain/model"
	"github.com/okian/facegate/pkg/logger"
	"github.com/okian/facegate/pkg/metrics"
)

// Default controller configuration constants.
const (
	defaultBlinkInterval    = 100 * time.Millisecond
	defaultLightingInterval = 500 * time.Millisecond
	defaultMaxTickFailures  = 20
	roundShutdownTimeout    = 5 * time.Second
)

// Guidance texts owned by the controller.
const (
	msgEnterCode  = "Enter your invite code to begin."
	msgLoading    = "Preparing the camera..."
	msgLookBlink  = "Look at the camera and blink."
	msgBlinked    = "Blink detected! Review your photo, then confirm or retake."
	msgSubmitting = "Submitting your photo..."
	msgDone       = "You are registered. Thank you!"
)

// Controller owns one capture session at a time. User operations are
// serialized; detection ticks run concurrently and apply their results only
// while their own round is current and the state is Detecting.
type Controller struct {
	source    FrameSource
	detector  LandmarkDetector
	submitter Submitter
	encoder   PhotoEncoder
	advisor   *lighting.Advisor
	ledger    dedupe.Ledger
	board     *guidance.Board
	logger    logger.Logger

	minCodeLen       int
	blinkInterval    time.Duration
	lightingInterval time.Duration
	blinkThreshold   float64
	maxTickFailures  int
	tickers          worker.TickerFactory
	now              func() time.Time

	// opMu serializes user operations.
	opMu sync.Mutex

	// mu guards everything below.
	mu             sync.Mutex
	closed         bool
	sessionID      string
	state          State
	invite         model.InviteCode
	claimed        bool
	modelLoaded    bool
	cameraAcquired bool
	cameraPaused   bool
	round          *round
	rounds         uint64
	photo          model.CapturedPhoto
	hasPhoto       bool
	level          lighting.Level
	brightness     float64
	retakes        int
	submitAttempts int
	lastError      string
	errorKind      string
	lastResult     *enrollment.Result
	updatedAt      time.Time
	counters       counters
}

type counters struct {
	sessions        uint64
	blinkTicks      uint64
	suppressedTicks uint64
	blinkEvents     uint64
	lightingSamples uint64
	staleTicks      uint64
	staleFrames     uint64
	frameFailures   uint64
	detectFailures  uint64
	submissions     uint64
}

// New creates a controller in CodeEntry.
func New(source FrameSource, detector LandmarkDetector, submitter Submitter, opts ...Option) *Controller {
	c := &Controller{
		source:           source,
		detector:         detector,
		submitter:        submitter,
		encoder:          enrollment.NewEncoder(enrollment.DefaultQuality, enrollment.DefaultMaxWidth),
		advisor:          lighting.NewAdvisor(),
		ledger:           dedupe.NewInMemoryLedger(),
		minCodeLen:       model.DefaultMinCodeLength,
		blinkInterval:    defaultBlinkInterval,
		lightingInterval: defaultLightingInterval,
		blinkThreshold:   blink.DefaultThreshold,
		maxTickFailures:  defaultMaxTickFailures,
		tickers:          worker.SystemTicker,
		now:              time.Now,
		logger:           logger.Get().Named("capture"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.board = guidance.NewBoard(guidance.Message{Text: msgEnterCode, Source: guidance.SourceSession})
	c.sessionID = uuid.NewString()
	c.state = StateCodeEntry
	c.updatedAt = c.now()
	metrics.RecordStateTransition(StateCodeEntry.String(), StateCodeEntry.String())
	return c
}

// Guidance returns the guidance channel.
func (c *Controller) Guidance() *guidance.Board { return c.board }

// SubmitCode validates raw, loads the model, acquires the camera and starts
// detecting.
func (c *Controller) SubmitCode(ctx context.Context, raw string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if err := c.checkOpenLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state != StateCodeEntry {
		err := c.invalidTransitionLocked("submit code")
		c.mu.Unlock()
		return err
	}

	code, err := model.ParseInviteCode(raw, c.minCodeLen)
	if err != nil {
		c.setErrorLocked(KindInvalidCode, fmt.Sprintf("Invite codes have at least %d characters.", c.minCodeLen))
		c.board.Fail(guidance.SourceSession, c.lastError)
		c.mu.Unlock()
		c.logger.Info(ctx, "invite code rejected", logger.Int("length", len([]rune(raw))))
		return err
	}
	if !c.ledger.Claim(ctx, code.String()) {
		c.setErrorLocked(KindInviteUsed, "This invite code has already been used on this kiosk.")
		c.board.Fail(guidance.SourceSession, c.lastError)
		c.mu.Unlock()
		c.logger.Info(ctx, "invite code already used", logger.String("invite", code.Masked()))
		return fmt.Errorf("%w: %s", model.ErrInviteAlreadyUsed, code.Masked())
	}

	c.invite, c.claimed = code, true
	c.clearErrorLocked()
	c.counters.sessions++
	c.transitionLocked(StateModelLoading)
	c.board.Set(guidance.Message{Text: msgLoading, Source: guidance.SourceSession})
	needModel := !c.modelLoaded
	sessionID := c.sessionID
	c.mu.Unlock()

	metrics.RecordSessionStarted()
	c.logger.Info(ctx, "session started", logger.String("session", sessionID), logger.String("invite", code.Masked()))

	if err := c.acquire(ctx, needModel); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.startRoundLocked()
	c.board.Set(guidance.Message{Text: msgLookBlink, Source: guidance.SourceSession})
	return nil
}

// SubmitDeepLink extracts the invite code from an invitation link.
func (c *Controller) SubmitDeepLink(ctx context.Context, link string) error {
	code, err := model.ParseDeepLink(link, c.minCodeLen)
	if err != nil {
		c.opMu.Lock()
		c.mu.Lock()
		if c.state == StateCodeEntry {
			c.setErrorLocked(KindInvalidCode, "The invitation link does not contain a valid invite code.")
			c.board.Fail(guidance.SourceSession, c.lastError)
		}
		c.mu.Unlock()
		c.opMu.Unlock()
		return err
	}
	return c.SubmitCode(ctx, code.String())
}

// acquire loads the model (at most once per session) and opens the camera.
// Failures move the session to Failed.
func (c *Controller) acquire(ctx context.Context, needModel bool) error {
	if needModel {
		if err := c.detector.Load(ctx); err != nil {
			if !errors.Is(err, model.ErrModelLoadFailure) {
				err = fmt.Errorf("%w: %w", model.ErrModelLoadFailure, err)
			}
			c.failLoading(ctx, KindModelFailed, "The face model could not be loaded. Please ask staff for help.", err)
			return err
		}
		c.mu.Lock()
		c.modelLoaded = true
		c.mu.Unlock()
	}

	if err := c.source.Open(ctx); err != nil {
		if !errors.Is(err, model.ErrCameraAccessDenied) {
			err = fmt.Errorf("%w: %w", model.ErrCameraAccessDenied, err)
		}
		c.failLoading(ctx, KindCameraDenied, "The camera is not available. Please allow camera access and try again.", err)
		return err
	}
	c.mu.Lock()
	c.cameraAcquired, c.cameraPaused = true, false
	c.mu.Unlock()
	return nil
}

func (c *Controller) failLoading(ctx context.Context, kind, text string, err error) {
	c.mu.Lock()
	c.setErrorLocked(kind, text)
	c.transitionLocked(StateFailed)
	c.board.Fail(guidance.SourceSession, text)
	c.mu.Unlock()
	metrics.RecordErrorByComponent("capture", kind)
	c.logger.Error(ctx, "session setup failed", logger.String("kind", kind), logger.Error(err))
}

// Confirm submits the frozen photo. On failure the session returns to Frozen
// with the same photo so the user can retry or retake.
func (c *Controller) Confirm(ctx context.Context) (enrollment.Result, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if err := c.checkOpenLocked(); err != nil {
		c.mu.Unlock()
		return enrollment.Result{}, err
	}
	if c.state != StateFrozen || !c.hasPhoto {
		err := c.invalidTransitionLocked("confirm")
		c.mu.Unlock()
		return enrollment.Result{}, err
	}
	photo, code := c.photo, c.invite
	c.submitAttempts++
	c.counters.submissions++
	attempt := c.submitAttempts
	c.transitionLocked(StateSubmitting)
	c.board.Set(guidance.Message{Text: msgSubmitting, Source: guidance.SourceSubmit})
	c.mu.Unlock()

	res, err := c.submitter.Submit(ctx, photo, code)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if !errors.Is(err, model.ErrSubmissionFailure) {
			err = fmt.Errorf("%w: %w", model.ErrSubmissionFailure, err)
		}
		text := err.Error()
		var um userMessage
		if errors.As(err, &um) && um.Message() != "" {
			text = um.Message()
		}
		c.setErrorLocked(KindSubmissionFailed, text)
		c.transitionLocked(StateFrozen)
		c.board.Fail(guidance.SourceSubmit, text)
		metrics.RecordErrorByComponent("capture", KindSubmissionFailed)
		c.logger.Warn(ctx, "submission failed",
			logger.String("session", c.sessionID),
			logger.Int("attempt", attempt),
			logger.String("detail", text),
		)
		return enrollment.Result{}, err
	}

	c.lastResult = &res
	c.clearErrorLocked()
	c.transitionLocked(StateDone)
	c.ledger.Commit(ctx, c.invite.String())
	c.releaseCameraLocked(ctx)
	text := msgDone
	if res.Message != "" {
		text = res.Message
	}
	c.board.Unpin(guidance.Message{Text: text, Severity: guidance.SeveritySuccess, Source: guidance.SourceSubmit})
	c.logger.Info(ctx, "enrollment complete",
		logger.String("session", c.sessionID),
		logger.String("photo_id", photo.ID),
		logger.Int("attempts", attempt),
		logger.Int("retakes", c.retakes),
	)
	return res, nil
}

// Retake discards the frozen photo and starts a new detection round once the
// previous round's tasks have fully exited. From Failed it is only allowed
// while the model and camera are still held.
func (c *Controller) Retake(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if err := c.checkOpenLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	from := c.state
	switch {
	case from == StateFrozen:
	case from == StateFailed && c.modelLoaded && c.cameraAcquired:
	default:
		err := c.invalidTransitionLocked("retake")
		c.mu.Unlock()
		return err
	}
	old := c.round
	c.photo, c.hasPhoto = model.CapturedPhoto{}, false
	c.mu.Unlock()

	if old != nil {
		if err := old.shutdown(ctx); err != nil {
			return err
		}
	}

	if from == StateFailed {
		// reacquire in case the feed itself broke
		if err := c.source.Close(); err != nil {
			c.logger.Warn(ctx, "camera release failed", logger.Error(err))
		}
		c.mu.Lock()
		c.cameraAcquired = false
		c.mu.Unlock()
		if err := c.source.Open(ctx); err != nil {
			if !errors.Is(err, model.ErrCameraAccessDenied) {
				err = fmt.Errorf("%w: %w", model.ErrCameraAccessDenied, err)
			}
			c.failLoading(ctx, KindCameraDenied, "The camera is not available. Please allow camera access and try again.", err)
			return err
		}
		c.mu.Lock()
		c.cameraAcquired = true
		c.mu.Unlock()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.retakes++
	c.clearErrorLocked()
	metrics.RecordRetake()
	c.source.Resume()
	c.cameraPaused = false
	c.board.Unpin(guidance.Message{Text: msgLookBlink, Source: guidance.SourceSession})
	c.startRoundLocked()
	c.logger.Info(ctx, "retake", logger.String("session", c.sessionID), logger.Int("retakes", c.retakes))
	return nil
}

// Reset abandons the session from any state: tasks stop, the camera and the
// model are released, an unfinished invite claim is dropped and a new
// session begins in CodeEntry.
func (c *Controller) Reset(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.reset(ctx)
}

func (c *Controller) reset(ctx context.Context) error {
	c.mu.Lock()
	old := c.round
	c.round = nil
	invite, release := c.invite, c.claimed && c.state != StateDone
	hadModel, hadCamera := c.modelLoaded, c.cameraAcquired
	prevSession := c.sessionID

	c.transitionLocked(StateCodeEntry)
	c.sessionID = uuid.NewString()
	c.invite, c.claimed = "", false
	c.photo, c.hasPhoto = model.CapturedPhoto{}, false
	c.modelLoaded, c.cameraAcquired, c.cameraPaused = false, false, false
	c.level, c.brightness = lighting.Unknown, 0
	c.retakes, c.submitAttempts = 0, 0
	c.lastResult = nil
	c.clearErrorLocked()
	c.mu.Unlock()

	var waitErr error
	if old != nil {
		wctx, cancel := context.WithTimeout(ctx, roundShutdownTimeout)
		waitErr = old.shutdown(wctx)
		cancel()
		if waitErr != nil {
			c.logger.Warn(ctx, "detection tasks did not stop in time", logger.Error(waitErr))
		}
	}
	if release {
		c.ledger.Release(ctx, invite.String())
	}
	if hadCamera {
		if err := c.source.Close(); err != nil {
			c.logger.Warn(ctx, "camera release failed", logger.Error(err))
		}
	}
	if hadModel {
		if err := c.detector.Close(); err != nil {
			c.logger.Warn(ctx, "landmark detector close failed", logger.Error(err))
		}
	}
	c.board.Unpin(guidance.Message{Text: msgEnterCode, Source: guidance.SourceSession})
	c.logger.Info(ctx, "session reset", logger.String("previous", prevSession))
	return waitErr
}

// Close resets the session and rejects further operations.
func (c *Controller) Close(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	err := c.reset(ctx)
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return err
}

// State returns a snapshot of the session.
func (c *Controller) State() PipelineState {
	c.mu.Lock()
	defer c.mu.Unlock()
	ps := PipelineState{
		SessionID:      c.sessionID,
		State:          c.state,
		Invite:         c.invite.Masked(),
		Round:          c.rounds,
		Lighting:       c.level,
		Brightness:     c.brightness,
		ModelLoaded:    c.modelLoaded,
		CameraAcquired: c.cameraAcquired,
		CameraPaused:   c.cameraPaused,
		HasPhoto:       c.hasPhoto,
		Retakes:        c.retakes,
		SubmitAttempts: c.submitAttempts,
		LastError:      c.lastError,
		ErrorKind:      c.errorKind,
		Guidance:       c.board.Current(),
		UpdatedAt:      c.updatedAt,
	}
	if c.round != nil {
		ps.BlinkLatched = c.round.blink.Latched()
	}
	if c.hasPhoto {
		ps.PhotoID = c.photo.ID
	}
	return ps
}

// Photo returns the frozen photo, if any.
func (c *Controller) Photo() (model.CapturedPhoto, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.photo, c.hasPhoto
}

// LastResult returns the accepted enrollment of the current session.
func (c *Controller) LastResult() (enrollment.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastResult == nil {
		return enrollment.Result{}, false
	}
	return *c.lastResult, true
}

// GetStats returns controller statistics for monitoring.
func (c *Controller) GetStats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]interface{}{
		"sessionID":        c.sessionID,
		"state":            c.state.String(),
		"rounds":           c.rounds,
		"retakes":          c.retakes,
		"submitAttempts":   c.submitAttempts,
		"sessions":         c.counters.sessions,
		"blinkTicks":       c.counters.blinkTicks,
		"suppressedTicks":  c.counters.suppressedTicks,
		"blinkEvents":      c.counters.blinkEvents,
		"lightingSamples":  c.counters.lightingSamples,
		"staleTicks":       c.counters.staleTicks,
		"staleFrames":      c.counters.staleFrames,
		"frameFailures":    c.counters.frameFailures,
		"detectFailures":   c.counters.detectFailures,
		"submissions":      c.counters.submissions,
		"usedInvites":      c.ledger.Size(),
		"modelLoaded":      c.modelLoaded,
		"cameraAcquired":   c.cameraAcquired,
		"blinkInterval":    c.blinkInterval.String(),
		"lightingInterval": c.lightingInterval.String(),
	}
}

func (c *Controller) checkOpenLocked() error {
	if c.closed {
		return ErrClosed
	}
	return nil
}

func (c *Controller) invalidTransitionLocked(op string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, c.state)
}

func (c *Controller) transitionLocked(to State) {
	from := c.state
	c.state = to
	c.updatedAt = c.now()
	if from != to {
		metrics.RecordStateTransition(from.String(), to.String())
	}
}

func (c *Controller) setErrorLocked(kind, text string) {
	c.errorKind, c.lastError = kind, text
}

func (c *Controller) clearErrorLocked() {
	c.errorKind, c.lastError = "", ""
}

func (c *Controller) releaseCameraLocked(ctx context.Context) {
	if !c.cameraAcquired {
		return
	}
	if err := c.source.Close(); err != nil {
		c.logger.Warn(ctx, "camera release failed", logger.Error(err))
	}
	c.cameraAcquired, c.cameraPaused = false, false
}
