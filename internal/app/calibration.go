package app

import (
	"context"
	"fmt"

	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/logger"
)

// AddSample labels the current movement of every tracked landmark and
// persists the new samples. It returns the samples added, which is empty when
// no landmark has features yet.
func (a *App) AddSample(ctx context.Context, intentional bool) ([]calibration.Sample, error) {
	added := a.calib.AddSample(intentional)
	a.recorder.SetQuality(a.calib.Quality())

	if len(added) == 0 || a.store == nil {
		return added, nil
	}
	if err := a.store.Samples().Add(a.config.UserID, added); err != nil {
		a.log.Error(ctx, "failed to persist calibration samples", logger.Error(err))
		return added, fmt.Errorf("persist samples: %w", err)
	}
	return added, nil
}

// Quality returns the current calibration quality breakdown.
func (a *App) Quality() calibration.Breakdown {
	return a.calib.Breakdown()
}

// Counts returns the number of intentional and unintentional samples.
func (a *App) Counts() (intentional, unintentional int) {
	return a.calib.Counts()
}

// ClearCalibration drops every collected sample, in memory and in storage.
// The trained model, if any, is kept.
func (a *App) ClearCalibration(ctx context.Context) error {
	a.calib.Clear()
	a.recorder.SetQuality(0)

	if a.store == nil {
		return nil
	}
	if err := a.store.Samples().Clear(a.config.UserID); err != nil {
		return fmt.Errorf("clear samples: %w", err)
	}
	a.log.Info(ctx, "calibration cleared", logger.String("user_id", a.config.UserID))
	return nil
}

// Restore loads stored calibration samples, the trained model and the last
// training status. A corrupt model is treated as absent.
func (a *App) Restore(ctx context.Context) error {
	if a.store == nil {
		return nil
	}

	samples, err := a.persist.LoadSamples(ctx, a.config.UserID)
	if err != nil {
		return err
	}
	a.calib.Clear()
	a.calib.AddSamples(samples...)
	a.recorder.SetQuality(a.calib.Quality())

	a.restoreStatus(ctx)

	if a.trainable == nil {
		a.log.Info(ctx, "calibration restored", logger.Int("samples", len(samples)))
		return nil
	}

	m, quality, ok := a.persist.LoadModel(ctx, a.config.UserID)
	if ok {
		a.trainable.SetModel(m)
		a.recorder.SetModelAccuracy(m.ValidationAccuracy)
	}
	a.log.Info(ctx, "calibration restored",
		logger.Int("samples", len(samples)),
		logger.Bool("model", ok),
		logger.Float64("model_quality", quality))
	return nil
}
