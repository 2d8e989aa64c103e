package blink_test

import (
	"math"
	"testing"

	"github.com/okian/facegate/internal/domain/blink"
	"github.com/okian/facegate/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// eyeWithEAR builds an eye whose aspect ratio is exactly ear: corners 10px
// apart, both lid pairs ear*10 apart.
func eyeWithEAR(ear float64) model.EyeLandmarks {
	h := ear * 10
	return model.EyeLandmarks{
		{X: 0, Y: 0},
		{X: 3, Y: -h / 2},
		{X: 7, Y: -h / 2},
		{X: 10, Y: 0},
		{X: 7, Y: h / 2},
		{X: 3, Y: h / 2},
	}
}

func faceWithEAR(ear float64) model.Face {
	return model.Face{LeftEye: eyeWithEAR(ear), RightEye: eyeWithEAR(ear)}
}

func TestEyeAspectRatio(t *testing.T) {
	Convey("Given eye landmarks", t, func() {
		Convey("When the lids are open", func() {
			ear, ok := blink.EyeAspectRatio(eyeWithEAR(0.3))

			Convey("Then the ratio matches the geometry", func() {
				So(ok, ShouldBeTrue)
				So(ear, ShouldAlmostEqual, 0.3, 1e-9)
			})
		})

		Convey("When the corners coincide", func() {
			_, ok := blink.EyeAspectRatio(model.EyeLandmarks{})

			Convey("Then the ratio is unusable", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the two eyes differ", func() {
			face := model.Face{LeftEye: eyeWithEAR(0.2), RightEye: eyeWithEAR(0.3)}
			ear, ok := blink.FaceEAR(face)

			Convey("Then the face EAR is their mean", func() {
				So(ok, ShouldBeTrue)
				So(ear, ShouldAlmostEqual, 0.25, 1e-9)
			})
		})

		Convey("When the lids close", func() {
			open, _ := blink.EyeAspectRatio(eyeWithEAR(0.32))
			half, _ := blink.EyeAspectRatio(eyeWithEAR(0.2))
			closed, _ := blink.EyeAspectRatio(eyeWithEAR(0.05))

			Convey("Then the ratio decreases monotonically", func() {
				So(open, ShouldBeGreaterThan, half)
				So(half, ShouldBeGreaterThan, closed)
			})
		})
	})
}

func TestDetectorObserve(t *testing.T) {
	Convey("Given a fresh blink detector", t, func() {
		d := blink.NewDetector()

		Convey("When the EAR sequence 0.30 0.30 0.18 0.19 0.31 is observed", func() {
			seq := []float64{0.30, 0.30, 0.18, 0.19, 0.31}
			var fired []int
			for i, ear := range seq {
				if _, ok := d.Observe([]model.Face{faceWithEAR(ear)}); ok {
					fired = append(fired, i)
				}
			}

			Convey("Then exactly one event fires at the first sample below threshold", func() {
				So(fired, ShouldResemble, []int{2})
				So(d.Latched(), ShouldBeFalse)
			})
		})

		Convey("When a dip spans many ticks", func() {
			count := 0
			for i := 0; i < 20; i++ {
				if _, ok := d.ObserveEAR(0.1); ok {
					count++
				}
			}

			Convey("Then only one event is raised and the latch holds", func() {
				So(count, ShouldEqual, 1)
				So(d.Latched(), ShouldBeTrue)
			})
		})

		Convey("When several dips are separated by recoveries", func() {
			seq := []float64{0.3, 0.2, 0.2, 0.3, 0.1, 0.3, 0.3, 0.24, 0.25, 0.2}
			count := 0
			for _, ear := range seq {
				if _, ok := d.ObserveEAR(ear); ok {
					count++
				}
			}

			Convey("Then one event is raised per dip", func() {
				So(count, ShouldEqual, 4)
			})
		})

		Convey("When no face is present during a dip", func() {
			_, first := d.ObserveEAR(0.1)
			_, none := d.Observe(nil)
			_, again := d.ObserveEAR(0.1)

			Convey("Then detection is paused, not reset", func() {
				So(first, ShouldBeTrue)
				So(none, ShouldBeFalse)
				So(again, ShouldBeFalse)
				So(d.Latched(), ShouldBeTrue)
			})
		})

		Convey("When several faces are present", func() {
			faces := []model.Face{faceWithEAR(0.3), faceWithEAR(0.1)}
			_, ok := d.Observe(faces)

			Convey("Then only the first face is evaluated", func() {
				So(ok, ShouldBeFalse)
				So(d.LastEAR(), ShouldAlmostEqual, 0.3, 1e-9)
			})
		})

		Convey("When the first face has degenerate landmarks", func() {
			d.ObserveEAR(0.1)
			_, ok := d.Observe([]model.Face{{}})

			Convey("Then nothing changes", func() {
				So(ok, ShouldBeFalse)
				So(d.Latched(), ShouldBeTrue)
			})
		})

		Convey("When the detector is reset while latched", func() {
			d.ObserveEAR(0.1)
			d.Reset()
			_, ok := d.ObserveEAR(0.1)

			Convey("Then a new dip fires again", func() {
				So(ok, ShouldBeTrue)
			})
		})
	})

	Convey("Given a detector with a custom threshold", t, func() {
		d := blink.NewDetector(blink.WithThreshold(0.2))
		_, ok := d.ObserveEAR(0.22)
		So(ok, ShouldBeFalse)
		So(d.Threshold(), ShouldEqual, 0.2)
		ev, ok := d.ObserveEAR(0.19)
		So(ok, ShouldBeTrue)
		So(math.Abs(ev.EAR-0.19), ShouldBeLessThan, 1e-12)
	})
}
