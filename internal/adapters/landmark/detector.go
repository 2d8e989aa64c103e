// Package landmark runs face landmark inference in a helper process.
//
// The helper receives frames on stdin and answers on file descriptor 3, both
// as [uint32 big-endian length][payload] messages: requests are JPEG images,
// replies are JSON. Keeping replies off stdout means stray prints in the
// helper cannot corrupt the stream, and stderr is captured for diagnostics.
package landmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/okian/facegate/internal/domain/model"
	"github.com/okian/facegate/pkg/logger"
	"github.com/okian/facegate/pkg/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	defaultQuality = 90
	stderrTail     = 2048
)

// ProcessDetector implements landmark detection over a helper process.
type ProcessDetector struct {
	command []string
	model   string
	env     []string
	timeout time.Duration
	quality int
	logger  logger.Logger

	// mu serializes requests; the helper handles one frame at a time.
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	data   io.ReadCloser
	stderr *bytes.Buffer
	loaded bool
	broken error
}

// NewProcessDetector creates a detector for the given helper command line.
func NewProcessDetector(command string, opts ...Option) *ProcessDetector {
	d := &ProcessDetector{
		command: strings.Fields(command),
		timeout: defaultTimeout,
		quality: defaultQuality,
		logger:  logger.Get().Named("landmark"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Loaded reports whether the helper completed its handshake.
func (d *ProcessDetector) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Load starts the helper and waits for {"ready": true}. Calling Load on a
// loaded detector is a no-op. Any failure wraps model.ErrModelLoadFailure.
func (d *ProcessDetector) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return nil
	}
	if len(d.command) == 0 {
		return fmt.Errorf("%w: %w", model.ErrModelLoadFailure, ErrNoCommand)
	}

	args := append([]string(nil), d.command[1:]...)
	if d.model != "" {
		args = append(args, d.model)
	}
	cmd := exec.Command(d.command[0], args...) //nolint:gosec // helper command comes from operator config
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	if len(d.env) > 0 {
		cmd.Env = append(os.Environ(), d.env...)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("%w: reply pipe: %v", model.ErrModelLoadFailure, err)
	}
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = w.Close()
		_ = r.Close()
		return fmt.Errorf("%w: stdin pipe: %v", model.ErrModelLoadFailure, err)
	}
	if err := cmd.Start(); err != nil {
		_ = w.Close()
		_ = r.Close()
		return fmt.Errorf("%w: start %s: %v", model.ErrModelLoadFailure, d.command[0], err)
	}
	// only the child keeps the write end, so a crash surfaces as EOF
	_ = w.Close()

	d.cmd, d.stdin, d.data, d.stderr, d.broken = cmd, stdin, r, stderr, nil

	start := time.Now()
	reply, err := d.roundTrip(ctx, nil)
	if err != nil {
		d.teardownLocked()
		return fmt.Errorf("%w: %v%s", model.ErrModelLoadFailure, err, d.stderrSuffix(stderr))
	}
	if reply.Error != "" || !reply.Ready {
		d.teardownLocked()
		reason := reply.Error
		if reason == "" {
			reason = "helper did not report ready"
		}
		return fmt.Errorf("%w: %s%s", model.ErrModelLoadFailure, reason, d.stderrSuffix(stderr))
	}

	d.loaded = true
	d.logger.Info(ctx, "landmark model loaded",
		logger.String("command", d.command[0]),
		logger.String("model", d.model),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Detect returns the faces found in f. Once the helper has failed, every call
// returns that failure until the detector is closed and loaded again.
func (d *ProcessDetector) Detect(ctx context.Context, f model.Frame) ([]model.Face, error) { //nolint:gocritic // hugeParam: frames are passed by value
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Image(), &jpeg.Options{Quality: d.quality}); err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.Seq, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.broken != nil {
		return nil, d.broken
	}
	if !d.loaded {
		return nil, ErrNotLoaded
	}

	start := time.Now()
	reply, err := d.roundTrip(ctx, buf.Bytes())
	metrics.RecordLandmarkLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordLandmarkError()
		if ctx.Err() == nil {
			// the helper is dead or wedged; stop talking to it
			d.teardownLocked()
			d.broken = fmt.Errorf("%w: %v%s", ErrHelperFailed, err, d.stderrSuffix(d.stderr))
			d.logger.Error(ctx, "landmark helper failed", logger.Error(d.broken))
			return nil, d.broken
		}
		return nil, err
	}
	if reply.Error != "" {
		metrics.RecordLandmarkError()
		return nil, fmt.Errorf("%w: %s", ErrHelperFailed, reply.Error)
	}

	faces := make([]model.Face, 0, len(reply.Faces))
	for _, wf := range reply.Faces {
		face, err := wf.toModel()
		if err != nil {
			metrics.RecordLandmarkError()
			return nil, err
		}
		faces = append(faces, face)
	}
	return faces, nil
}

// roundTrip sends payload (nothing for the handshake) and reads one reply,
// giving up after the timeout or when ctx ends. Must be called with d.mu held.
func (d *ProcessDetector) roundTrip(ctx context.Context, payload []byte) (response, error) {
	type result struct {
		body []byte
		err  error
	}
	done := make(chan result, 1)
	stdin, data := d.stdin, d.data
	go func() {
		if payload != nil {
			if err := writeMessage(stdin, payload); err != nil {
				done <- result{err: fmt.Errorf("write request: %w", err)}
				return
			}
		}
		body, err := readMessage(data)
		done <- result{body: body, err: err}
	}()

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	ctxDone := ctx.Done()
	var res result
wait:
	for {
		select {
		case res = <-done:
			break wait
		case <-timer.C:
			// unblock the reader goroutine
			d.teardownLocked()
			<-done
			return response{}, fmt.Errorf("no reply within %s", d.timeout)
		case <-ctxDone:
			if payload == nil {
				d.teardownLocked()
				<-done
				return response{}, ctx.Err()
			}
			// an unread reply would desynchronize the stream; wait for it
			ctxDone = nil
		}
	}
	if res.err != nil {
		return response{}, fmt.Errorf("read reply: %w", res.err)
	}
	if err := ctx.Err(); err != nil {
		return response{}, err
	}

	var reply response
	if err := json.Unmarshal(res.body, &reply); err != nil {
		return response{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return reply, nil
}

func (d *ProcessDetector) stderrSuffix(buf *bytes.Buffer) string {
	if buf == nil || buf.Len() == 0 {
		return ""
	}
	s := strings.TrimSpace(buf.String())
	if len(s) > stderrTail {
		s = s[len(s)-stderrTail:]
	}
	return " (helper stderr: " + s + ")"
}

// teardownLocked kills the helper and closes the pipes. Must be called with
// d.mu held.
func (d *ProcessDetector) teardownLocked() {
	if d.cmd == nil {
		return
	}
	_ = d.stdin.Close()
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	_ = d.data.Close()
	_ = d.cmd.Wait()
	d.cmd, d.stdin, d.data = nil, nil, nil
	d.loaded = false
}

// Close stops the helper. The detector can be loaded again afterwards.
func (d *ProcessDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd != nil {
		d.logger.Debug(context.Background(), "stopping landmark helper")
	}
	d.teardownLocked()
	d.broken = nil
	return nil
}
