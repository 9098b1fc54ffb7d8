package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/ayusman/mudra/internal/detection"
	"github.com/ayusman/mudra/internal/pose"
	"github.com/ayusman/mudra/internal/remote"
)

// sample sums every series of the named family.
func sample(reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	if err != nil {
		return -1
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return total
}

func TestMetrics(t *testing.T) {
	Convey("Given metrics on a fresh registry", t, func() {
		m := New()
		reg := m.Registry()

		Convey("When the orchestrator reports frames and results", func() {
			m.FrameProcessed(2 * time.Millisecond)
			m.FrameProcessed(3 * time.Millisecond)
			m.ResultEmitted(detection.MovementResult{IsIntentional: true, Source: "heuristic"})
			m.ResultEmitted(detection.MovementResult{Source: "trainable"})
			m.Suppressed(pose.LeftWrist)

			Convey("Then the counters reflect them", func() {
				So(sample(reg, "mudra_frames_processed_total"), ShouldEqual, 2)
				So(sample(reg, "mudra_frame_processing_seconds"), ShouldEqual, 2)
				So(sample(reg, "mudra_results_emitted_total"), ShouldEqual, 2)
				So(sample(reg, "mudra_cooldown_suppressions_total"), ShouldEqual, 1)
			})
		})

		Convey("When remote outcomes and training runs are recorded", func() {
			m.RemoteOutcome(remote.OutcomeOK)
			m.RemoteOutcome(remote.OutcomeTimeout)
			m.TrainingRun(TrainingSucceeded)
			m.SetQuality(72.5)
			m.SetModelAccuracy(0.9)

			Convey("Then they are exported", func() {
				So(sample(reg, "mudra_remote_calls_total"), ShouldEqual, 2)
				So(sample(reg, "mudra_training_runs_total"), ShouldEqual, 1)
				So(sample(reg, "mudra_calibration_quality"), ShouldEqual, 72.5)
				So(sample(reg, "mudra_model_validation_accuracy"), ShouldEqual, 0.9)
			})
		})

		Convey("When the handler is scraped", func() {
			m.FrameProcessed(time.Millisecond)
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
			body, _ := io.ReadAll(rec.Body)

			Convey("Then it serves the exposition format", func() {
				So(rec.Code, ShouldEqual, 200)
				So(strings.Contains(string(body), "mudra_frames_processed_total 1"), ShouldBeTrue)
			})
		})
	})

	Convey("Given custom options", t, func() {
		reg := prometheus.NewRegistry()
		m := New(WithNamespace("test"), WithRegistry(reg), WithLatencyBuckets([]float64{0.1}))

		Convey("Then collectors use the namespace and registry", func() {
			m.FrameProcessed(time.Millisecond)
			So(m.Registry(), ShouldEqual, reg)
			So(sample(reg, "test_frames_processed_total"), ShouldEqual, 1)
		})
	})

	Convey("Metrics satisfies the orchestrator observer", t, func() {
		var obs detection.Observer = New()
		So(obs, ShouldNotBeNil)
	})
}
