// Package detection drives per-frame movement-intention classification.
package detection

import (
	"context"
	"time"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/pose"
	"github.com/ayusman/mudra/internal/remote"
)

// MovementResult is the orchestrator's output for one landmark in one frame.
type MovementResult struct {
	Landmark      pose.LandmarkName  `json:"landmark"`
	IsIntentional bool               `json:"isIntentional"`
	Velocity      float64            `json:"velocity"` // px/s
	Direction     features.Direction `json:"direction"`
	Confidence    float64            `json:"confidence"`
	Source        string             `json:"source"`
	Timestamp     int64              `json:"timestamp"`
	Suppressed    bool               `json:"suppressed,omitempty"` // forced unintentional by the cooldown
}

// Config holds the orchestrator parameters.
type Config struct {
	HistoryCapacity int
	MinHistory      int
	Cooldown        time.Duration
	NotableVelocity float64 // px/s; slower unintentional movements are not emitted
	ConfidenceFloor float64
	Landmarks       []pose.LandmarkName
	Features        features.Config
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		HistoryCapacity: pose.DefaultHistoryCapacity,
		MinHistory:      10,
		Cooldown:        200 * time.Millisecond,
		NotableVelocity: 10,
		ConfidenceFloor: 0.5,
		Landmarks:       pose.TrackedLandmarks(),
		Features:        features.DefaultConfig(),
	}
}

// Capabilities selects the optional classification paths. Paths whose
// service is missing are disabled at construction.
type Capabilities struct {
	Remote    bool
	Trainable bool
}

// ModelClassifier is a trained classifier that may not yet have a model.
type ModelClassifier interface {
	Classify(f features.MovementFeatures) (classifier.Verdict, bool)
}

// RemoteClassifier submits asynchronous remote classifications.
type RemoteClassifier interface {
	Submit(name pose.LandmarkName, f features.MovementFeatures) *remote.Call
}

// Observer receives per-frame instrumentation.
type Observer interface {
	FrameProcessed(elapsed time.Duration)
	ResultEmitted(r MovementResult)
	Suppressed(name pose.LandmarkName)
}

type nopObserver struct{}

func (nopObserver) FrameProcessed(time.Duration) {}
func (nopObserver) ResultEmitted(MovementResult) {}
func (nopObserver) Suppressed(pose.LandmarkName) {}

// Services are the collaborators injected into an Orchestrator. Heuristic is
// required; the rest are optional.
type Services struct {
	Heuristic *classifier.Heuristic
	Trainable ModelClassifier
	Remote    RemoteClassifier
	Logger    logger.Logger
	Observer  Observer
}

// Orchestrator turns pose frames into movement results. It is not safe for
// concurrent use: ProcessFrame, ExtractAll and Reset must be called from one
// goroutine or serialized by the caller.
type Orchestrator struct {
	config    Config
	caps      Capabilities
	extractor *features.Extractor
	heuristic *classifier.Heuristic
	trainable ModelClassifier
	remote    RemoteClassifier
	log       logger.Logger
	observer  Observer
	state     *State
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(config Config, caps Capabilities, svc Services) *Orchestrator {
	if config.MinHistory <= 0 {
		config.MinHistory = DefaultConfig().MinHistory
	}
	if len(config.Landmarks) == 0 {
		config.Landmarks = pose.TrackedLandmarks()
	}
	if svc.Heuristic == nil {
		svc.Heuristic = classifier.NewHeuristic(classifier.DefaultHeuristicConfig())
	}
	if svc.Logger == nil {
		svc.Logger = logger.Nop()
	}
	if svc.Observer == nil {
		svc.Observer = nopObserver{}
	}

	caps.Remote = caps.Remote && svc.Remote != nil
	caps.Trainable = caps.Trainable && svc.Trainable != nil

	return &Orchestrator{
		config:    config,
		caps:      caps,
		extractor: features.NewExtractor(config.Features),
		heuristic: svc.Heuristic,
		trainable: svc.Trainable,
		remote:    svc.Remote,
		log:       svc.Logger,
		observer:  svc.Observer,
		state:     NewState(config.HistoryCapacity, config.Features),
	}
}

// Capabilities returns the resolved capabilities.
func (o *Orchestrator) Capabilities() Capabilities {
	return o.caps
}

// State exposes the detector state for inspection.
func (o *Orchestrator) State() *State {
	return o.state
}

type candidate struct {
	name     pose.LandmarkName
	features features.MovementFeatures
	call     *remote.Call
}

// ProcessFrame pushes frame into the history and classifies every tracked
// landmark that has features. It never fails; landmarks without features are
// skipped.
func (o *Orchestrator) ProcessFrame(ctx context.Context, frame pose.Frame) []MovementResult {
	start := time.Now()
	defer func() { o.observer.FrameProcessed(time.Since(start)) }()

	o.state.History.Push(frame)
	if o.state.History.Len() < o.config.MinHistory {
		return nil
	}
	window := o.state.History.Window(o.extractor.Config().WindowSize)

	var candidates []candidate
	for _, name := range o.config.Landmarks {
		lm, ok := frame.Find(name)
		if !ok || lm.Confidence < o.config.ConfidenceFloor {
			continue
		}
		f, ok := o.extractor.Extract(window, name)
		if !ok {
			continue
		}
		o.state.Tracker.Observe(name, lm, &f)
		o.state.latest[name] = f
		candidates = append(candidates, candidate{name: name, features: f})
	}

	// Submit every remote request before waiting on any, so the frame waits
	// at most one timeout.
	if o.caps.Remote {
		for i := range candidates {
			candidates[i].call = o.remote.Submit(candidates[i].name, candidates[i].features)
		}
	}

	var results []MovementResult
	for _, c := range candidates {
		v := o.classify(ctx, c)

		r := MovementResult{
			Landmark:      c.name,
			IsIntentional: v.Intentional,
			Velocity:      c.features.Speed(),
			Direction:     c.features.Direction,
			Confidence:    v.Confidence,
			Source:        v.Source,
			Timestamp:     frame.Timestamp,
		}

		if r.IsIntentional {
			if last, ok := o.state.lastIntentional[c.name]; ok && frame.Timestamp-last < o.config.Cooldown.Milliseconds() {
				r.IsIntentional = false
				r.Suppressed = true
				o.observer.Suppressed(c.name)
				o.log.Debug(ctx, "intentional movement within cooldown",
					logger.String("landmark", string(c.name)),
					logger.Int("since_ms", int(frame.Timestamp-last)))
			} else {
				o.state.lastIntentional[c.name] = frame.Timestamp
			}
		}

		if r.IsIntentional || r.Velocity > o.config.NotableVelocity {
			results = append(results, r)
			o.observer.ResultEmitted(r)
		}
	}

	return results
}

// classify picks the local verdict (trainable model if available, else the
// heuristic) and lets a successful remote verdict override it when the remote
// is more confident.
func (o *Orchestrator) classify(ctx context.Context, c candidate) classifier.Verdict {
	var v classifier.Verdict
	local := false
	if o.caps.Trainable {
		v, local = o.trainable.Classify(c.features)
	}
	if !local {
		v = o.heuristic.Classify(c.features)
	}

	if c.call != nil {
		if rv, ok := c.call.Verdict(ctx); ok && rv.Confidence > v.Confidence {
			return rv
		}
	}
	return v
}

// ExtractAll returns features for every tracked landmark from the current
// history, without advancing the movement tracker.
func (o *Orchestrator) ExtractAll() []features.LandmarkFeatures {
	if o.state.History.Len() < o.config.MinHistory {
		return nil
	}
	window := o.state.History.Window(o.extractor.Config().WindowSize)

	var out []features.LandmarkFeatures
	for _, name := range o.config.Landmarks {
		lm, ok := o.extractor.Position(window, name)
		if !ok || lm.Confidence < o.config.ConfidenceFloor {
			continue
		}
		f, ok := o.extractor.Extract(window, name)
		if !ok {
			continue
		}
		o.state.Tracker.Peek(name, lm, &f)
		out = append(out, features.LandmarkFeatures{Landmark: name, Features: f})
	}
	return out
}

// Reset drops all history and per-landmark state.
func (o *Orchestrator) Reset() {
	o.state.Reset()
}
