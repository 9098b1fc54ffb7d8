// Package app wires the movement detection pipeline: pose frames in, movement
// results out to subscribers and output plugins, with calibration and
// training driven from the API or CLI.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/detection"
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/pose"
	"github.com/ayusman/mudra/internal/store"
)

// Config holds configuration options for the application.
type Config struct {
	UserID       string
	Detection    detection.Config
	Capabilities detection.Capabilities
	Calibration  calibration.Config
}

// Recorder receives pipeline instrumentation.
type Recorder interface {
	detection.Observer
	TrainingRun(outcome string)
	SetQuality(q float64)
	SetModelAccuracy(acc float64)
}

type nopRecorder struct{}

func (nopRecorder) FrameProcessed(time.Duration)           {}
func (nopRecorder) ResultEmitted(detection.MovementResult) {}
func (nopRecorder) Suppressed(pose.LandmarkName)           {}
func (nopRecorder) TrainingRun(string)                     {}
func (nopRecorder) SetQuality(float64)                     {}
func (nopRecorder) SetModelAccuracy(float64)               {}

// Services are the collaborators injected into an App. Every field is
// optional: without Trainable the heuristic alone classifies, without Store
// nothing is persisted.
type Services struct {
	Heuristic  *classifier.Heuristic
	Trainable  *classifier.Trainable
	Remote     detection.RemoteClassifier
	Store      *store.Store
	Dispatcher *Dispatcher
	Recorder   Recorder
	Logger     logger.Logger
}

// App owns the detector state and everything that reads or mutates it.
type App struct {
	config     Config
	trainable  *classifier.Trainable
	store      *store.Store
	persist    *store.Persistence
	dispatcher *Dispatcher
	recorder   Recorder
	log        logger.Logger

	// mu serializes access to the orchestrator: the frame loop and
	// calibration requests from the API both touch its state.
	mu    sync.Mutex
	orch  *detection.Orchestrator
	calib *calibration.Manager

	subMu       sync.RWMutex
	subscribers map[int]func([]detection.MovementResult)
	nextSub     int

	statusMu sync.RWMutex
	status   TrainingStatus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new App with the given configuration and services.
func New(config Config, svc Services) *App {
	if config.UserID == "" {
		config.UserID = "default"
	}
	if svc.Logger == nil {
		svc.Logger = logger.Nop()
	}
	if svc.Recorder == nil {
		svc.Recorder = nopRecorder{}
	}

	a := &App{
		config:      config,
		trainable:   svc.Trainable,
		store:       svc.Store,
		dispatcher:  svc.Dispatcher,
		recorder:    svc.Recorder,
		log:         svc.Logger,
		subscribers: make(map[int]func([]detection.MovementResult)),
		status:      TrainingStatus{State: TrainingIdle},
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	dsvc := detection.Services{
		Heuristic: svc.Heuristic,
		Remote:    svc.Remote,
		Logger:    svc.Logger.Named("detection"),
		Observer:  svc.Recorder,
	}
	// A nil *Trainable must not become a non-nil interface.
	if svc.Trainable != nil {
		dsvc.Trainable = svc.Trainable
	}
	a.orch = detection.NewOrchestrator(config.Detection, config.Capabilities, dsvc)
	a.calib = calibration.NewManager(config.Calibration, lockedSource{a}, svc.Logger.Named("calibration"))

	if svc.Store != nil {
		a.persist = store.NewPersistence(svc.Store, svc.Logger.Named("store"))
	}

	return a
}

// lockedSource reads features from the orchestrator under the App lock.
type lockedSource struct {
	a *App
}

func (s lockedSource) ExtractAll() []features.LandmarkFeatures {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()
	return s.a.orch.ExtractAll()
}

// UserID returns the user the App calibrates and trains for.
func (a *App) UserID() string {
	return a.config.UserID
}

// Capabilities returns the classification paths in use.
func (a *App) Capabilities() detection.Capabilities {
	return a.orch.Capabilities()
}

// Subscribe registers fn to receive every non-empty batch of results. The
// returned function removes the subscription.
func (a *App) Subscribe(fn func([]detection.MovementResult)) (unsubscribe func()) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	id := a.nextSub
	a.nextSub++
	a.subscribers[id] = fn

	return func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		delete(a.subscribers, id)
	}
}

func (a *App) publish(results []detection.MovementResult) {
	a.subMu.RLock()
	defer a.subMu.RUnlock()
	for _, fn := range a.subscribers {
		fn(results)
	}
}

// Reset clears the detector history and per-landmark state.
func (a *App) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orch.Reset()
}

// Close stops background training and output dispatch.
func (a *App) Close() {
	a.cancel()
	a.wg.Wait()
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
}
