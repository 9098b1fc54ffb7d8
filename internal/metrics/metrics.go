// Package metrics exposes Prometheus instrumentation for the detection
// pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/mudra/internal/detection"
	"github.com/ayusman/mudra/internal/pose"
)

const defaultNamespace = "mudra"

// Training outcomes.
const (
	TrainingSucceeded = "succeeded"
	TrainingFailed    = "failed"
	TrainingRejected  = "rejected"
)

// Metrics holds the pipeline collectors. It implements detection.Observer.
type Metrics struct {
	namespace      string
	latencyBuckets []float64
	registry       *prometheus.Registry

	framesProcessed prometheus.Counter
	frameLatency    prometheus.Histogram
	results         *prometheus.CounterVec
	suppressions    *prometheus.CounterVec
	remoteOutcomes  *prometheus.CounterVec
	trainingRuns    *prometheus.CounterVec
	quality         prometheus.Gauge
	modelAccuracy   prometheus.Gauge
}

// New creates and registers the collectors. Without WithRegistry a fresh
// registry is used, so several instances can coexist in tests.
func New(opts ...Option) *Metrics {
	m := &Metrics{
		namespace:      defaultNamespace,
		latencyBuckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(m.registry)

	m.framesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "frames_processed_total",
		Help:      "Pose frames pushed through the orchestrator.",
	})
	m.frameLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "frame_processing_seconds",
		Help:      "Time spent classifying one frame.",
		Buckets:   m.latencyBuckets,
	})
	m.results = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "results_emitted_total",
		Help:      "Movement results emitted, by verdict and classifier source.",
	}, []string{"verdict", "source"})
	m.suppressions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cooldown_suppressions_total",
		Help:      "Intentional verdicts forced unintentional by the cooldown.",
	}, []string{"landmark"})
	m.remoteOutcomes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "remote_calls_total",
		Help:      "Remote classifier calls, by outcome.",
	}, []string{"outcome"})
	m.trainingRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "training_runs_total",
		Help:      "Trainable classifier training runs, by outcome.",
	}, []string{"outcome"})
	m.quality = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "calibration_quality",
		Help:      "Current calibration quality score (0-100).",
	})
	m.modelAccuracy = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "model_validation_accuracy",
		Help:      "Validation accuracy of the active trained model.",
	})

	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// FrameProcessed implements detection.Observer.
func (m *Metrics) FrameProcessed(elapsed time.Duration) {
	m.framesProcessed.Inc()
	m.frameLatency.Observe(elapsed.Seconds())
}

// ResultEmitted implements detection.Observer.
func (m *Metrics) ResultEmitted(r detection.MovementResult) {
	verdict := "unintentional"
	if r.IsIntentional {
		verdict = "intentional"
	}
	m.results.WithLabelValues(verdict, r.Source).Inc()
}

// Suppressed implements detection.Observer.
func (m *Metrics) Suppressed(name pose.LandmarkName) {
	m.suppressions.WithLabelValues(string(name)).Inc()
}

// RemoteOutcome records the outcome of a remote call. It matches the remote
// delegate's observer signature.
func (m *Metrics) RemoteOutcome(outcome string) {
	m.remoteOutcomes.WithLabelValues(outcome).Inc()
}

// TrainingRun records a finished training attempt.
func (m *Metrics) TrainingRun(outcome string) {
	m.trainingRuns.WithLabelValues(outcome).Inc()
}

// SetQuality records the current calibration quality.
func (m *Metrics) SetQuality(q float64) {
	m.quality.Set(q)
}

// SetModelAccuracy records the active model's validation accuracy.
func (m *Metrics) SetModelAccuracy(acc float64) {
	m.modelAccuracy.Set(acc)
}
