package app

import (
	"context"
	"errors"

	"github.com/ayusman/mudra/internal/detection"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/pose"
)

// ProcessFrame classifies one frame and fans the results out to subscribers
// and the plugin dispatcher.
func (a *App) ProcessFrame(ctx context.Context, frame pose.Frame) []detection.MovementResult {
	a.mu.Lock()
	results := a.orch.ProcessFrame(ctx, frame)
	a.mu.Unlock()

	if len(results) == 0 {
		return nil
	}
	a.publish(results)
	if a.dispatcher != nil {
		a.dispatcher.Dispatch(results)
	}
	return results
}

// Run feeds frames from src through the pipeline until the source ends, it
// fails, or ctx is cancelled. Cancellation is not an error.
func (a *App) Run(ctx context.Context, src pose.Source) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames, errs := src.Frames(ctx)
	a.log.Info(ctx, "detection pipeline started",
		logger.String("user_id", a.config.UserID),
		logger.Bool("remote", a.Capabilities().Remote),
		logger.Bool("trainable", a.Capabilities().Trainable))

	processed := 0
	defer func() {
		a.log.Info(context.Background(), "detection pipeline stopped", logger.Int("frames", processed))
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				// The source closes errs after frames; drain it for a
				// terminal error.
				if err, ok := <-errs; ok && err != nil {
					return a.sourceError(ctx, err)
				}
				return nil
			}
			a.ProcessFrame(ctx, frame)
			processed++
		}
	}
}

func (a *App) sourceError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return nil
	}
	a.log.Error(ctx, "pose source failed", logger.Error(err))
	return err
}
