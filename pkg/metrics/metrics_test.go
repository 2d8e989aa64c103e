package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

// gathered returns the value of the named metric on the custom registry whose
// labels include all of want. Counters and gauges only.
func gathered(name string, want map[string]string) float64 {
	families, err := GetRegistry().Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, m := range f.GetMetric() {
			have := map[string]string{}
			for _, l := range m.GetLabel() {
				have[l.GetName()] = l.GetValue()
			}
			for k, v := range want {
				if have[k] != v {
					continue next
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created with the capture namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "facegate")
				So(manager.subsystem, ShouldEqual, "capture")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("kiosk"),
				WithSubsystem("lobby"),
				WithMetricPrefix("test"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithCustomLabels(map[string]string{"site": "hall-a"}),
				WithPrometheusRegistry(registry),
			)
			manager.retakes.Inc()

			Convey("Then the collectors use the configured names", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "kiosk_lobby_test_retakes_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "hall-a")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording liveness metrics", func() {
			before := gathered("facegate_capture_blink_events_total", nil)
			RecordBlinkTick()
			RecordBlinkTickSuppressed()
			RecordBlinkEvent()
			RecordStaleTick("blink")
			UpdateEAR(0.21)

			Convey("Then the blink counter advances by one", func() {
				So(gathered("facegate_capture_blink_events_total", nil), ShouldEqual, before+1)
				So(gathered("facegate_capture_eye_aspect_ratio", nil), ShouldAlmostEqual, 0.21)
			})
		})

		Convey("When recording a state transition", func() {
			RecordStateTransition("detecting", "frozen")

			Convey("Then only the new state gauge is set", func() {
				So(gathered("facegate_capture_state", map[string]string{"state": "frozen"}), ShouldEqual, 1)
				So(gathered("facegate_capture_state", map[string]string{"state": "detecting"}), ShouldEqual, 0)
			})
		})

		Convey("When recording lighting and submission metrics", func() {
			RecordLightingSample("too_dark", 40)
			RecordSubmission("accepted", 120)

			Convey("Then the brightness gauge holds the sample", func() {
				So(gathered("facegate_capture_brightness", nil), ShouldEqual, 40)
				So(gathered("facegate_capture_submissions_total", map[string]string{"outcome": "accepted"}), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording the remaining metrics", func() {
			So(func() {
				RecordSessionStarted()
				RecordRetake()
				RecordLandmarkLatency(12)
				RecordLandmarkError()
				RecordFrameReceived()
				RecordFrameDrop()
				RecordFrameDecodeError()
				UpdateMailboxUtilization(0.5)
				RecordHTTPRequest("session", "POST", "200")
				RecordHTTPRequestDuration("session", "POST", "200", 3)
				RecordErrorByComponent("camera", "decode")
				RecordErrorByEndpoint("session", "POST", "client_error")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
		})

		Convey("When gathering the custom registry", func() {
			RecordSessionStarted()
			families, err := GetRegistry().Gather()

			Convey("Then capture metrics are exposed", func() {
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "facegate_capture_sessions_started_total")
			})
		})
	})
}
