package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"

	"github.com/okian/facegate/internal/domain/model"
	"github.com/okian/facegate/pkg/logger"
	"github.com/okian/facegate/pkg/metrics"
)

var replayExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// DirectorySource replays the images of a directory in name order, looping
// forever. It stands in for a camera during demos and rehearsals.
type DirectorySource struct {
	dir string
	cfg settings

	mu     sync.Mutex
	frames []model.Frame
	next   int
	seq    uint64
	last   time.Time

	gate *gate
	log  logger.Logger
}

// NewDirectorySource creates a replay source over dir.
func NewDirectorySource(dir string, opts ...Option) *DirectorySource {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &DirectorySource{dir: dir, cfg: cfg, gate: newGate()}
	s.log = cfg.logger
	if s.log == nil {
		s.log = logger.Get().Named("camera")
	}
	return s
}

// Open decodes every supported image up front. A missing or empty directory
// is reported as model.ErrCameraAccessDenied.
func (s *DirectorySource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames != nil {
		return nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("%w: %w: %v", model.ErrCameraAccessDenied, ErrNoDevice, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !replayExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	frames := make([]model.Frame, 0, len(names))
	for _, name := range names {
		img, err := decodeFile(filepath.Join(s.dir, name))
		if err != nil {
			metrics.RecordFrameDecodeError()
			s.log.Warn(ctx, "skipping unreadable image", logger.String("file", name), logger.Error(err))
			continue
		}
		frames = append(frames, model.FrameFromImage(img, 0, time.Time{}))
	}
	if len(frames) == 0 {
		return fmt.Errorf("%w: %w: %s", model.ErrCameraAccessDenied, ErrNoFrames, s.dir)
	}

	s.frames, s.next, s.seq = frames, 0, 0
	s.log.Info(ctx, "replay source opened", logger.String("dir", s.dir), logger.Int("frames", len(frames)))
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // operator-provided replay directory
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// NextFrame returns the next image, paced at the configured fps.
func (s *DirectorySource) NextFrame(ctx context.Context) (model.Frame, error) {
	if err := s.gate.wait(ctx); err != nil {
		return model.Frame{}, err
	}

	s.mu.Lock()
	if s.frames == nil {
		s.mu.Unlock()
		return model.Frame{}, ErrNotOpen
	}
	var wait time.Duration
	if s.cfg.fps > 0 && !s.last.IsZero() {
		wait = time.Second/time.Duration(s.cfg.fps) - time.Since(s.last)
	}
	s.mu.Unlock()

	if wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return model.Frame{}, ctx.Err()
		case <-t.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames == nil {
		return model.Frame{}, ErrNotOpen
	}
	f := s.frames[s.next]
	s.next = (s.next + 1) % len(s.frames)
	s.seq++
	f.Seq = s.seq
	f.Timestamp = time.Now()
	s.last = f.Timestamp
	metrics.RecordFrameReceived()
	return f, nil
}

// Pause blocks NextFrame until Resume.
func (s *DirectorySource) Pause() { s.gate.pause() }

// Resume unblocks NextFrame.
func (s *DirectorySource) Resume() { s.gate.resume() }

// Close drops the decoded frames.
func (s *DirectorySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
	s.last = time.Time{}
	s.gate.resume()
	return nil
}
