package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/facegate/internal/adapters/mq/queue"
	"github.com/okian/facegate/internal/domain/model"
	"github.com/okian/facegate/pkg/logger"
	"github.com/okian/facegate/pkg/metrics"
)

// FFmpegSource reads a V4L2 camera through ffmpeg emitting MJPEG on stdout.
// Decoded frames land in a latest-frame mailbox, so consumers never see a
// backlog.
type FFmpegSource struct {
	device string
	cfg    settings

	mu      sync.Mutex
	cmd     *exec.Cmd
	stderr  *bytes.Buffer
	cancel  context.CancelFunc
	mailbox *queue.Mailbox
	readers sync.WaitGroup

	gate *gate
	seq  atomic.Uint64
	log  logger.Logger
}

// NewFFmpegSource creates a source for device (DefaultDevice when empty).
func NewFFmpegSource(device string, opts ...Option) *FFmpegSource {
	if device == "" {
		device = DefaultDevice
	}
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.fps <= 0 {
		cfg.fps = DefaultFPS
	}
	s := &FFmpegSource{device: device, cfg: cfg, gate: newGate()}
	s.log = cfg.logger
	if s.log == nil {
		s.log = logger.Get().Named("camera")
	}
	return s
}

// Args returns the ffmpeg command line used for the device.
func (s *FFmpegSource) Args() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2",
		"-framerate", strconv.Itoa(s.cfg.fps),
		"-video_size", fmt.Sprintf("%dx%d", s.cfg.width, s.cfg.height),
		"-i", s.device,
		"-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "3",
		"-",
	}
}

// Open checks the binary and device, then starts capturing. Permission and
// availability problems are reported as model.ErrCameraAccessDenied.
func (s *FFmpegSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return nil
	}

	bin, err := exec.LookPath(s.cfg.binary)
	if err != nil {
		return fmt.Errorf("%w: %w: %s", model.ErrCameraAccessDenied, ErrNoBinary, s.cfg.binary)
	}
	if err := checkDevice(s.device); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(runCtx, bin, s.Args()...) //nolint:gosec // binary and device come from operator config
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("%w: stdout pipe: %v", model.ErrCameraAccessDenied, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("%w: start %s: %v", model.ErrCameraAccessDenied, bin, err)
	}

	s.cmd, s.stderr, s.cancel = cmd, stderr, cancel
	mb := queue.NewMailbox(queue.WithLogger(s.log))
	s.mailbox = mb
	s.readers.Add(1)
	go func() {
		defer s.readers.Done()
		n := s.ingest(stdout, mb)
		werr := cmd.Wait()
		if runCtx.Err() == nil {
			s.log.Warn(ctx, "ffmpeg exited",
				logger.String("device", s.device),
				logger.Int64("frames", int64(n)),
				logger.String("stderr", stderr.String()),
				logger.Error(werr),
			)
			metrics.RecordErrorByComponent("camera", "ffmpeg_exit")
		}
		_ = mb.Close()
	}()

	s.log.Info(ctx, "camera opened",
		logger.String("device", s.device),
		logger.Int("width", s.cfg.width),
		logger.Int("height", s.cfg.height),
		logger.Int("fps", s.cfg.fps),
	)
	return nil
}

// checkDevice opens the device node read-only to surface permission errors
// before ffmpeg hides them in its log.
func checkDevice(device string) error {
	f, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %s: %v", model.ErrCameraAccessDenied, device, err)
		}
		return fmt.Errorf("%w: %w: %s: %v", model.ErrCameraAccessDenied, ErrNoDevice, device, err)
	}
	return f.Close()
}

// ingest decodes every JPEG in r and publishes it. Frames arriving while the
// source is paused are discarded undecoded.
func (s *FFmpegSource) ingest(r io.Reader, mb *queue.Mailbox) uint64 {
	scanner := newJPEGScanner(r)
	var n uint64
	for scanner.Scan() {
		if s.gate.isPaused() {
			continue
		}
		img, err := jpeg.Decode(bytes.NewReader(scanner.Bytes()))
		if err != nil {
			metrics.RecordFrameDecodeError()
			continue
		}
		n++
		if !mb.Publish(model.FrameFromImage(img, s.seq.Add(1), time.Now())) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.Warn(context.Background(), "mjpeg stream error", logger.Error(err))
	}
	return n
}

// NextFrame returns the newest frame, blocking while paused. Frames captured
// before the last Resume are skipped.
func (s *FFmpegSource) NextFrame(ctx context.Context) (model.Frame, error) {
	s.mu.Lock()
	mb := s.mailbox
	s.mu.Unlock()
	if mb == nil {
		return model.Frame{}, ErrNotOpen
	}
	for {
		if err := s.gate.wait(ctx); err != nil {
			return model.Frame{}, err
		}
		f, err := mb.Next(ctx)
		if errors.Is(err, queue.ErrClosed) {
			return model.Frame{}, fmt.Errorf("%w: %s", ErrSourceEnd, s.device)
		}
		if err != nil {
			return model.Frame{}, err
		}
		if s.gate.isPaused() || f.Timestamp.Before(s.gate.resumedAt()) {
			metrics.RecordFrameDrop()
			continue
		}
		return f, nil
	}
}

// Pause stops delivering frames until Resume and drops the unread one.
func (s *FFmpegSource) Pause() {
	s.gate.pause()
	s.discard()
}

// Resume restarts frame delivery. Whatever was buffered while paused is
// dropped.
func (s *FFmpegSource) Resume() {
	s.gate.resume()
	s.discard()
}

func (s *FFmpegSource) discard() {
	s.mu.Lock()
	mb := s.mailbox
	s.mu.Unlock()
	if mb != nil {
		mb.Discard()
	}
}

// Close stops ffmpeg and releases the device. Safe to call more than once.
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	cmd, cancel, mb := s.cmd, s.cancel, s.mailbox
	s.cmd, s.cancel = nil, nil
	s.mu.Unlock()
	if cmd == nil {
		return nil
	}
	cancel()
	s.gate.resume()
	s.readers.Wait()
	_ = mb.Close()
	s.log.Info(context.Background(), "camera released",
		logger.String("device", s.device),
		logger.Uint64("frames", mb.Published()),
		logger.Uint64("dropped", mb.Drops()))
	return nil
}
