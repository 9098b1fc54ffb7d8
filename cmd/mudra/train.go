package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/classifier"
)

const progressSteps = 100

func trainCmd() *cobra.Command {
	var epochs int

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the personal classifier from stored calibration samples",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd.Context(), cmd.OutOrStdout(), epochs)
		},
	}
	cmd.Flags().IntVar(&epochs, "epochs", 0, "override the configured number of epochs")
	return cmd
}

func runTrain(ctx context.Context, out io.Writer, epochs int) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()
	cfg := e.cfg

	training := cfg.TrainingConfig()
	if epochs > 0 {
		training.Epochs = epochs
	}

	a := app.New(app.Config{
		UserID:       cfg.Calibration.UserID,
		Detection:    cfg.DetectionConfig(),
		Capabilities: cfg.Capabilities(),
		Calibration:  cfg.CalibrationConfig(),
	}, app.Services{
		Store: e.store,
		Trainable: classifier.NewTrainable(training,
			classifier.WithAugmenter(cfg.Augmenter()),
			classifier.WithThreshold(cfg.Trainable.Threshold),
			classifier.WithLogger(e.log.Named("trainable"))),
		Logger: e.log,
	})
	defer a.Close()

	if err := a.Restore(ctx); err != nil {
		return err
	}
	pos, neg := a.Counts()
	fmt.Fprintf(out, "Training on %d samples (%d intentional, %d unintentional)\n", pos+neg, pos, neg)

	bar := progressbar.NewOptions(progressSteps,
		progressbar.OptionSetWriter(out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Training...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(out)
		}),
	)

	res, err := a.Train(ctx, func(p float64) {
		bar.Set(int(math.Round(p * progressSteps)))
	})
	if err != nil {
		bar.Exit()
		fmt.Fprintln(out)
		return trainError(err)
	}

	fmt.Fprintf(out, "Model %s\n", res.ModelID)
	fmt.Fprintf(out, "  accuracy:            %.1f%%\n", res.Accuracy*100)
	fmt.Fprintf(out, "  validation accuracy: %.1f%%\n", res.ValidationAccuracy*100)
	fmt.Fprintf(out, "  final loss:          %.4f\n", res.FinalLoss)
	fmt.Fprintf(out, "  examples:            %d (%d synthetic)\n", res.Samples, res.Synthetic)
	if res.LowConfidence {
		fmt.Fprintln(out, "Warning: calibration data is imbalanced; collect more of the minority class.")
	}
	return nil
}

func trainError(err error) error {
	var dataErr *calibration.DataError
	if errors.As(err, &dataErr) {
		switch dataErr.Deficiency {
		case calibration.TooFewSamples:
			return fmt.Errorf("not enough calibration samples (%d intentional, %d unintentional): collect more before training",
				dataErr.Intentional, dataErr.Unintentional)
		case calibration.MissingClass:
			return fmt.Errorf("calibration needs both intentional and unintentional samples (%d/%d)",
				dataErr.Intentional, dataErr.Unintentional)
		case calibration.ExtremeImbalance:
			return fmt.Errorf("calibration samples are too imbalanced (%d/%d)",
				dataErr.Intentional, dataErr.Unintentional)
		}
	}
	return fmt.Errorf("training failed: %w", err)
}
