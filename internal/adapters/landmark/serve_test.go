package landmark

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/facegate/internal/domain/blink"
	"github.com/okian/facegate/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServe(t *testing.T) {
	Convey("Given a helper serving the simulator", t, func() {
		var in, out bytes.Buffer
		for i := 0; i < 4; i++ {
			So(writeMessage(&in, []byte{0xFF, 0xD8, 0xFF, 0xD9}), ShouldBeNil)
		}
		sim := NewSimulator(4, 1)

		Convey("When the request stream ends", func() {
			err := Serve(&in, &out, nil, sim.Detect)

			Convey("Then the handshake and one reply per request were written", func() {
				So(err, ShouldBeNil)
				var replies []response
				for out.Len() > 0 {
					body, err := readMessage(&out)
					So(err, ShouldBeNil)
					var r response
					So(json.Unmarshal(body, &r), ShouldBeNil)
					replies = append(replies, r)
				}
				So(len(replies), ShouldEqual, 5)
				So(replies[0].Ready, ShouldBeTrue)

				var ears []float64
				for _, r := range replies[1:] {
					So(len(r.Faces), ShouldEqual, 1)
					face, err := r.Faces[0].toModel()
					So(err, ShouldBeNil)
					ear, ok := blink.FaceEAR(face)
					So(ok, ShouldBeTrue)
					ears = append(ears, ear)
				}
				So(ears[1], ShouldAlmostEqual, SimOpenEAR, 1e-9)
				So(ears[2], ShouldAlmostEqual, SimClosedEAR, 1e-9)
				So(ears[3], ShouldAlmostEqual, SimOpenEAR, 1e-9)
			})
		})

		Convey("When the model fails to load", func() {
			err := Serve(&in, &out, errors.New("no weights"), sim.Detect)

			Convey("Then the error is sent as the handshake", func() {
				So(err, ShouldNotBeNil)
				body, rerr := readMessage(&out)
				So(rerr, ShouldBeNil)
				So(string(body), ShouldContainSubstring, "no weights")
			})
		})

		Convey("When detection fails", func() {
			err := Serve(&in, &out, nil, func([]byte) ([]model.Face, error) {
				return nil, errors.New("inference failed")
			})

			Convey("Then each reply carries the error", func() {
				So(err, ShouldBeNil)
				_, _ = readMessage(&out)
				body, _ := readMessage(&out)
				So(string(body), ShouldContainSubstring, "inference failed")
			})
		})
	})
}
