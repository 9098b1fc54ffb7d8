package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/store"
)

// TrainingState is the lifecycle of the most recent training run.
type TrainingState string

const (
	TrainingIdle      TrainingState = "idle"
	TrainingRunning   TrainingState = "running"
	TrainingSucceeded TrainingState = "succeeded"
	TrainingFailed    TrainingState = "failed"
)

// TrainingStatus describes the most recent training run.
type TrainingStatus struct {
	State      TrainingState            `json:"state"`
	Progress   float64                  `json:"progress"`
	Result     *calibration.TrainResult `json:"result,omitempty"`
	Error      string                   `json:"error,omitempty"`
	StartedAt  *time.Time               `json:"startedAt,omitempty"`
	FinishedAt *time.Time               `json:"finishedAt,omitempty"`
}

// ErrNoTrainer is returned when training is requested but the trainable
// classifier is disabled.
var ErrNoTrainer = errors.New("trainable classifier is disabled")

func statusKey(userID string) string {
	return "training.last." + userID
}

// TrainingStatus returns the status of the most recent training run.
func (a *App) TrainingStatus() TrainingStatus {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.status
}

// Model returns the active trained model, or nil.
func (a *App) Model() *classifier.Model {
	if a.trainable == nil {
		return nil
	}
	return a.trainable.Model()
}

// Train gates on the collected samples, trains the classifier and persists
// the new model. It blocks until training ends.
func (a *App) Train(ctx context.Context, progress classifier.ProgressFunc) (calibration.TrainResult, error) {
	if a.trainable == nil {
		return calibration.TrainResult{}, ErrNoTrainer
	}
	if !a.claimTraining() {
		a.recorder.TrainingRun(metrics.TrainingRejected)
		return calibration.TrainResult{}, classifier.ErrTrainingInProgress
	}
	return a.train(ctx, progress)
}

// StartTraining checks the calibration data and starts training in the
// background. It fails immediately with a *calibration.DataError when the
// data cannot be trained on, or classifier.ErrTrainingInProgress when a run
// is already active. Poll TrainingStatus for the outcome.
func (a *App) StartTraining(ctx context.Context) error {
	if a.trainable == nil {
		return ErrNoTrainer
	}
	if _, err := a.calib.Check(); err != nil {
		a.recorder.TrainingRun(metrics.TrainingRejected)
		return err
	}
	if !a.claimTraining() {
		return classifier.ErrTrainingInProgress
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		// Training outlives the request that started it.
		a.train(a.ctx, nil)
	}()

	a.log.Info(ctx, "training started", logger.String("user_id", a.config.UserID))
	return nil
}

// claimTraining marks a run as started unless one is already active.
func (a *App) claimTraining() bool {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	if a.status.State == TrainingRunning || a.trainable.Training() {
		return false
	}
	now := time.Now()
	a.status = TrainingStatus{State: TrainingRunning, StartedAt: &now}
	return true
}

func (a *App) train(ctx context.Context, progress classifier.ProgressFunc) (calibration.TrainResult, error) {
	res, err := a.calib.Train(ctx, a.trainable, func(p float64) {
		a.setStatus(func(s *TrainingStatus) { s.Progress = p })
		if progress != nil {
			progress(p)
		}
	})
	a.finish(ctx, res, err)
	return res, err
}

func (a *App) finish(ctx context.Context, res calibration.TrainResult, err error) {
	now := time.Now()

	if err != nil {
		outcome := metrics.TrainingFailed
		if errors.Is(err, classifier.ErrInsufficientData) || errors.Is(err, classifier.ErrTrainingInProgress) {
			outcome = metrics.TrainingRejected
		}
		a.recorder.TrainingRun(outcome)
		a.log.Warn(ctx, "training failed", logger.Error(err))
		a.setStatus(func(s *TrainingStatus) {
			s.State = TrainingFailed
			s.Error = err.Error()
			s.FinishedAt = &now
		})
		a.saveStatus(ctx)
		return
	}

	a.recorder.TrainingRun(metrics.TrainingSucceeded)
	a.recorder.SetModelAccuracy(res.ValidationAccuracy)
	a.setStatus(func(s *TrainingStatus) {
		s.State = TrainingSucceeded
		s.Progress = 1
		s.Result = &res
		s.FinishedAt = &now
	})

	if a.persist != nil {
		if err := a.persist.SaveModel(a.config.UserID, a.trainable.Model(), res.Quality.Total); err != nil {
			a.log.Error(ctx, "failed to persist model", logger.Error(err))
		}
	}
	a.saveStatus(ctx)

	a.log.Info(ctx, "training finished",
		logger.String("model_id", res.ModelID),
		logger.Float64("accuracy", res.Accuracy),
		logger.Float64("validation_accuracy", res.ValidationAccuracy),
		logger.Bool("low_confidence", res.LowConfidence))
}

func (a *App) setStatus(fn func(*TrainingStatus)) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	fn(&a.status)
}

func (a *App) saveStatus(ctx context.Context) {
	if a.store == nil {
		return
	}
	data, err := json.Marshal(a.TrainingStatus())
	if err != nil {
		return
	}
	if err := a.store.Settings().Set(statusKey(a.config.UserID), string(data)); err != nil {
		a.log.Warn(ctx, "failed to persist training status", logger.Error(err))
	}
}

func (a *App) restoreStatus(ctx context.Context) {
	raw, err := a.store.Settings().Get(statusKey(a.config.UserID))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.log.Warn(ctx, "failed to read training status", logger.Error(err))
		}
		return
	}

	var status TrainingStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		a.log.Warn(ctx, "ignoring unreadable training status", logger.Error(err))
		return
	}
	// A run interrupted by a restart did not finish.
	if status.State == TrainingRunning {
		status.State = TrainingFailed
		status.Error = "interrupted by restart"
	}
	a.setStatus(func(s *TrainingStatus) { *s = status })
}
