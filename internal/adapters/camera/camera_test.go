package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/image/bmp"

	"github.com/okian/facegate/internal/adapters/mq/queue"
	"github.com/okian/facegate/internal/domain/model"
	"github.com/okian/facegate/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func jpegBytes(t *testing.T, c color.RGBA) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(16, 16, c), &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSplitJPEG(t *testing.T) {
	first := []byte{0xFF, 0xD8, 0x01, 0x02, 0x03, 0xFF, 0xD9}
	second := []byte{0xFF, 0xD8, 0x04, 0xFF, 0xD9}

	stream := []byte{0x00, 0x00}
	stream = append(stream, first...)
	stream = append(stream, 0x00, 0xFF)
	stream = append(stream, second...)
	stream = append(stream, 0xFF, 0xD8, 0x05) // truncated tail

	scanner := bufio.NewScanner(bytes.NewReader(stream))
	scanner.Buffer(make([]byte, 4), 1024)
	scanner.Split(SplitJPEG)

	var tokens [][]byte
	for scanner.Scan() {
		tokens = append(tokens, append([]byte(nil), scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("unexpected scan error: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 images, got %d", len(tokens))
	}
	if !bytes.Equal(tokens[0], first) || !bytes.Equal(tokens[1], second) {
		t.Errorf("unexpected tokens: %X", tokens)
	}
}

func TestFFmpegIngest(t *testing.T) {
	Convey("Given an MJPEG stream with a corrupt image in the middle", t, func() {
		So(logger.Init(), ShouldBeNil)
		src := NewFFmpegSource("")

		var stream bytes.Buffer
		stream.Write(jpegBytes(t, color.RGBA{R: 250, A: 255}))
		stream.Write([]byte{0xFF, 0xD8, 0x00, 0x01, 0xFF, 0xD9})
		stream.Write(jpegBytes(t, color.RGBA{G: 250, A: 255}))
		stream.Write(jpegBytes(t, color.RGBA{B: 250, A: 255}))

		mb := queue.NewMailbox(queue.WithMetrics(false))

		Convey("When it is ingested", func() {
			n := src.ingest(&stream, mb)

			Convey("Then the decodable images are published in order", func() {
				So(n, ShouldEqual, 3)
				So(mb.Published(), ShouldEqual, 3)
				f, err := mb.Next(context.Background())
				So(err, ShouldBeNil)
				So(f.Seq, ShouldEqual, 3)
				So(f.Width, ShouldEqual, 16)
				So(f.Pix[2], ShouldBeGreaterThan, 200)
			})
		})

		Convey("When the source is paused", func() {
			src.Pause()
			n := src.ingest(&stream, mb)

			Convey("Then nothing is published", func() {
				So(n, ShouldEqual, 0)
				So(mb.Published(), ShouldEqual, 0)
			})
		})
	})
}

func TestFFmpegPauseDropsBufferedFrames(t *testing.T) {
	Convey("Given an open feed holding a frame captured before a freeze", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		src := NewFFmpegSource("")
		mb := queue.NewMailbox(queue.WithMetrics(false))
		src.mailbox = mb

		old := model.SolidFrame(4, 4, 10, 10, 10, 7)
		old.Timestamp = time.Now().Add(-30 * time.Second)
		So(mb.Publish(old), ShouldBeTrue)

		Convey("When the feed is paused and resumed", func() {
			src.Pause()
			src.Resume()

			Convey("Then the old frame is never returned", func() {
				tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
				defer cancel()
				f, err := src.NextFrame(tctx)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(f.Seq, ShouldEqual, 0)
			})

			Convey("Then the next captured frame is returned", func() {
				So(mb.Publish(model.SolidFrame(4, 4, 10, 10, 10, 8)), ShouldBeTrue)
				f, err := src.NextFrame(ctx)
				So(err, ShouldBeNil)
				So(f.Seq, ShouldEqual, 8)
			})
		})

		Convey("When a frame decoded during the pause lands after resume", func() {
			src.Pause()
			during := model.SolidFrame(4, 4, 10, 10, 10, 9)
			time.Sleep(time.Millisecond)
			src.Resume()
			So(mb.Publish(during), ShouldBeTrue)

			Convey("Then it is skipped as older than the resume", func() {
				tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
				defer cancel()
				_, err := src.NextFrame(tctx)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})
	})
}

func TestFFmpegOpenFailures(t *testing.T) {
	Convey("Given a camera source", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()

		Convey("When ffmpeg is not installed", func() {
			err := NewFFmpegSource("/dev/video0", WithBinary("facegate-missing-ffmpeg")).Open(ctx)

			Convey("Then access is denied", func() {
				So(errors.Is(err, model.ErrCameraAccessDenied), ShouldBeTrue)
				So(errors.Is(err, ErrNoBinary), ShouldBeTrue)
			})
		})

		Convey("When the device does not exist", func() {
			err := NewFFmpegSource(filepath.Join(t.TempDir(), "video9"), WithBinary("sh")).Open(ctx)

			Convey("Then access is denied", func() {
				So(errors.Is(err, model.ErrCameraAccessDenied), ShouldBeTrue)
				So(errors.Is(err, ErrNoDevice), ShouldBeTrue)
			})
		})

		Convey("When reading before open", func() {
			_, err := NewFFmpegSource("").NextFrame(ctx)
			So(errors.Is(err, ErrNotOpen), ShouldBeTrue)
		})

		Convey("Then the command line targets the device", func() {
			args := NewFFmpegSource("/dev/video2", WithResolution(1280, 720), WithFPS(30)).Args()
			So(args, ShouldContain, "/dev/video2")
			So(args, ShouldContain, "1280x720")
			So(args, ShouldContain, "30")
			So(args, ShouldContain, "image2pipe")
		})

		Convey("Then closing an unopened source is a no-op", func() {
			So(NewFFmpegSource("").Close(), ShouldBeNil)
		})
	})
}

func writeImages(t *testing.T, dir string) {
	write := func(name string, enc func(*os.File) error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if err := enc(f); err != nil {
			t.Fatal(err)
		}
	}
	write("a.png", func(f *os.File) error { return png.Encode(f, solid(8, 8, color.RGBA{R: 255, A: 255})) })
	write("b.bmp", func(f *os.File) error { return bmp.Encode(f, solid(8, 8, color.RGBA{G: 255, A: 255})) })
	write("c.jpg", func(f *os.File) error {
		return jpeg.Encode(f, solid(8, 8, color.RGBA{B: 255, A: 255}), &jpeg.Options{Quality: 100})
	})
	write("notes.txt", func(f *os.File) error { _, err := f.WriteString("ignore me"); return err })
	write("d.png", func(f *os.File) error { _, err := f.WriteString("broken"); return err })
}

func TestDirectorySource(t *testing.T) {
	Convey("Given a replay directory", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		dir := t.TempDir()
		writeImages(t, dir)
		src := NewDirectorySource(dir, WithFPS(0))

		Convey("When reading before open", func() {
			_, err := src.NextFrame(ctx)
			So(errors.Is(err, ErrNotOpen), ShouldBeTrue)
		})

		Convey("When opened", func() {
			So(src.Open(ctx), ShouldBeNil)

			Convey("Then frames come in name order and loop", func() {
				var reds, greens, blues []byte
				var seqs []uint64
				for i := 0; i < 4; i++ {
					f, err := src.NextFrame(ctx)
					So(err, ShouldBeNil)
					reds = append(reds, f.Pix[0])
					greens = append(greens, f.Pix[1])
					blues = append(blues, f.Pix[2])
					seqs = append(seqs, f.Seq)
				}
				So(reds[0], ShouldEqual, 255)
				So(greens[1], ShouldEqual, 255)
				So(blues[2], ShouldBeGreaterThan, 240)
				So(reds[3], ShouldEqual, 255)
				So(seqs, ShouldResemble, []uint64{1, 2, 3, 4})
			})

			Convey("Then pausing blocks reads until resumed", func() {
				src.Pause()
				tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
				defer cancel()
				_, err := src.NextFrame(tctx)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)

				src.Resume()
				_, err = src.NextFrame(ctx)
				So(err, ShouldBeNil)
			})

			Convey("Then closing releases the frames", func() {
				So(src.Close(), ShouldBeNil)
				_, err := src.NextFrame(ctx)
				So(errors.Is(err, ErrNotOpen), ShouldBeTrue)
			})
		})

		Convey("When the directory has no images", func() {
			err := NewDirectorySource(t.TempDir()).Open(ctx)

			Convey("Then access is denied", func() {
				So(errors.Is(err, model.ErrCameraAccessDenied), ShouldBeTrue)
				So(errors.Is(err, ErrNoFrames), ShouldBeTrue)
			})
		})

		Convey("When the directory is missing", func() {
			err := NewDirectorySource(filepath.Join(dir, "missing")).Open(ctx)
			So(errors.Is(err, model.ErrCameraAccessDenied), ShouldBeTrue)
		})
	})
}

func TestDirectorySourcePacing(t *testing.T) {
	Convey("Given a replay source at 50 fps", t, func() {
		So(logger.Init(), ShouldBeNil)
		dir := t.TempDir()
		writeImages(t, dir)
		src := NewDirectorySource(dir, WithFPS(50))
		So(src.Open(context.Background()), ShouldBeNil)

		Convey("Then consecutive frames are spaced by the frame interval", func() {
			start := time.Now()
			for i := 0; i < 3; i++ {
				_, err := src.NextFrame(context.Background())
				So(err, ShouldBeNil)
			}
			So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 35*time.Millisecond)
		})
	})
}
