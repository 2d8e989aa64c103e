package landmark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"testing"
	"time"

	"github.com/okian/facegate/internal/domain/model"
	"github.com/okian/facegate/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const helperEnv = "FACEGATE_LANDMARK_HELPER"

// TestHelperProcess is not a real test: it is the landmark helper spawned by
// the tests below.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		return
	}
	os.Exit(runHelper(mode, os.Stdin, os.NewFile(3, "reply")))
}

func eye(open float64) [][2]float64 {
	return [][2]float64{{0, 0}, {3, -open}, {7, -open}, {10, 0}, {7, open}, {3, open}}
}

func runHelper(mode string, in io.Reader, out io.Writer) int {
	reply := func(v any) {
		b, _ := json.Marshal(v)
		_ = writeMessage(out, b)
	}
	switch mode {
	case "refuse":
		fmt.Fprintln(os.Stderr, "model file missing: /nope.onnx")
		reply(map[string]any{"error": "cannot open model"})
		return 1
	case "hang":
		time.Sleep(time.Minute)
		return 0
	case "crash":
		fmt.Fprintln(os.Stderr, "segfault in loader")
		return 3
	}
	reply(map[string]any{"ready": true})

	for {
		req, err := readMessage(in)
		if err != nil {
			return 0
		}
		switch mode {
		case "die-on-request":
			fmt.Fprintln(os.Stderr, "out of memory")
			return 2
		case "error-reply":
			reply(map[string]any{"error": "inference failed"})
			continue
		case "bad-eyes":
			reply(map[string]any{"faces": []any{map[string]any{
				"box": []float64{0, 0, 1, 1}, "left_eye": [][2]float64{{0, 0}}, "right_eye": [][2]float64{{0, 0}},
			}}})
			continue
		}

		img, err := jpeg.Decode(bytes.NewReader(req))
		if err != nil {
			reply(map[string]any{"error": err.Error()})
			continue
		}
		r, g, _, _ := img.At(0, 0).RGBA()
		switch {
		case r>>8 > 128:
			reply(map[string]any{"faces": []any{map[string]any{
				"box": []float64{10, 10, 100, 100}, "left_eye": eye(1.5), "right_eye": eye(1.5), "score": 0.9,
			}}})
		case g>>8 > 128:
			reply(map[string]any{"faces": []any{map[string]any{
				"box": []float64{10, 10, 100, 100}, "left_eye": eye(0.5), "right_eye": eye(0.5),
			}}})
		default:
			reply(map[string]any{"faces": []any{}})
		}
	}
}

func helper(mode string, opts ...Option) *ProcessDetector {
	opts = append([]Option{WithEnv(helperEnv + "=" + mode), WithModel("face_landmarker.task")}, opts...)
	return NewProcessDetector(os.Args[0]+" -test.run=TestHelperProcess --", opts...)
}

func TestProcessDetector(t *testing.T) {
	Convey("Given a healthy landmark helper", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		d := helper("ok")
		defer d.Close()

		Convey("When detecting before loading", func() {
			_, err := d.Detect(ctx, model.SolidFrame(8, 8, 255, 0, 0, 1))
			So(errors.Is(err, ErrNotLoaded), ShouldBeTrue)
		})

		Convey("When the model is loaded", func() {
			So(d.Load(ctx), ShouldBeNil)
			So(d.Loaded(), ShouldBeTrue)
			So(d.Load(ctx), ShouldBeNil)

			Convey("Then a face with open eyes is returned", func() {
				faces, err := d.Detect(ctx, model.SolidFrame(32, 32, 255, 0, 0, 1))
				So(err, ShouldBeNil)
				So(len(faces), ShouldEqual, 1)
				So(faces[0].Box, ShouldResemble, [4]float64{10, 10, 100, 100})
				So(faces[0].LeftEye[1], ShouldResemble, model.Point{X: 3, Y: -1.5})
				So(faces[0].Score, ShouldEqual, 0.9)
			})

			Convey("Then consecutive requests stay in sync", func() {
				for i := 0; i < 5; i++ {
					faces, err := d.Detect(ctx, model.SolidFrame(32, 32, 0, 255, 0, uint64(i)))
					So(err, ShouldBeNil)
					So(len(faces), ShouldEqual, 1)
					So(faces[0].RightEye[4].Y, ShouldEqual, 0.5)
				}
				faces, err := d.Detect(ctx, model.SolidFrame(32, 32, 0, 0, 0, 9))
				So(err, ShouldBeNil)
				So(faces, ShouldBeEmpty)
			})

			Convey("Then a cancelled request leaves the helper usable", func() {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				_, err := d.Detect(cctx, model.SolidFrame(32, 32, 255, 0, 0, 1))
				So(errors.Is(err, context.Canceled), ShouldBeTrue)

				faces, err := d.Detect(ctx, model.SolidFrame(32, 32, 255, 0, 0, 2))
				So(err, ShouldBeNil)
				So(len(faces), ShouldEqual, 1)
			})

			Convey("Then close and reload work", func() {
				So(d.Close(), ShouldBeNil)
				So(d.Loaded(), ShouldBeFalse)
				So(d.Load(ctx), ShouldBeNil)
				_, err := d.Detect(ctx, model.SolidFrame(32, 32, 255, 0, 0, 1))
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestProcessDetectorFailures(t *testing.T) {
	Convey("Given misbehaving landmark helpers", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()

		Convey("When no command is configured", func() {
			err := NewProcessDetector("").Load(ctx)
			So(errors.Is(err, model.ErrModelLoadFailure), ShouldBeTrue)
			So(errors.Is(err, ErrNoCommand), ShouldBeTrue)
		})

		Convey("When the command does not exist", func() {
			err := NewProcessDetector("/nonexistent/facegate-landmarks").Load(ctx)
			So(errors.Is(err, model.ErrModelLoadFailure), ShouldBeTrue)
		})

		Convey("When the helper refuses to load", func() {
			d := helper("refuse")
			err := d.Load(ctx)

			Convey("Then the reason and stderr are reported", func() {
				So(errors.Is(err, model.ErrModelLoadFailure), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "cannot open model")
				So(d.Loaded(), ShouldBeFalse)
			})
		})

		Convey("When the helper crashes during load", func() {
			err := helper("crash").Load(ctx)

			Convey("Then stderr is attached", func() {
				So(errors.Is(err, model.ErrModelLoadFailure), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "segfault in loader")
			})
		})

		Convey("When the helper never answers", func() {
			err := helper("hang", WithTimeout(100*time.Millisecond)).Load(ctx)
			So(errors.Is(err, model.ErrModelLoadFailure), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "no reply")
		})

		Convey("When the helper dies on a request", func() {
			d := helper("die-on-request")
			defer d.Close()
			So(d.Load(ctx), ShouldBeNil)

			_, err := d.Detect(ctx, model.SolidFrame(8, 8, 255, 0, 0, 1))

			Convey("Then the detector stays failed until reloaded", func() {
				So(errors.Is(err, ErrHelperFailed), ShouldBeTrue)
				_, again := d.Detect(ctx, model.SolidFrame(8, 8, 255, 0, 0, 2))
				So(errors.Is(again, ErrHelperFailed), ShouldBeTrue)
			})
		})

		Convey("When the helper reports an inference error", func() {
			d := helper("error-reply")
			defer d.Close()
			So(d.Load(ctx), ShouldBeNil)

			_, err := d.Detect(ctx, model.SolidFrame(8, 8, 255, 0, 0, 1))
			So(errors.Is(err, ErrHelperFailed), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "inference failed")
		})

		Convey("When the helper returns malformed eyes", func() {
			d := helper("bad-eyes")
			defer d.Close()
			So(d.Load(ctx), ShouldBeNil)

			_, err := d.Detect(ctx, model.SolidFrame(8, 8, 255, 0, 0, 1))
			So(errors.Is(err, ErrBadResponse), ShouldBeTrue)
		})
	})
}

func TestProtocol(t *testing.T) {
	Convey("Given the length-prefixed protocol", t, func() {
		var buf bytes.Buffer

		Convey("Then messages round trip in order", func() {
			So(writeMessage(&buf, []byte("one")), ShouldBeNil)
			So(writeMessage(&buf, []byte{}), ShouldBeNil)
			first, err := readMessage(&buf)
			So(err, ShouldBeNil)
			So(string(first), ShouldEqual, "one")
			second, err := readMessage(&buf)
			So(err, ShouldBeNil)
			So(second, ShouldBeEmpty)
		})

		Convey("Then oversized headers are rejected", func() {
			buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
			_, err := readMessage(&buf)
			So(errors.Is(err, ErrFrameTooLarge), ShouldBeTrue)
		})
	})
}
