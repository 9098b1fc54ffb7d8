package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/calibration"
)

func qualityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quality",
		Short: "Print the calibration quality breakdown",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuality(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runQuality(ctx context.Context, out io.Writer) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	a := app.New(app.Config{
		UserID:      e.cfg.Calibration.UserID,
		Calibration: e.cfg.CalibrationConfig(),
	}, app.Services{Store: e.store, Logger: e.log})
	defer a.Close()

	if err := a.Restore(ctx); err != nil {
		return err
	}

	pos, neg := a.Counts()
	printQuality(out, a.UserID(), a.Quality(), pos, neg)

	status := a.TrainingStatus()
	if status.Result != nil {
		fmt.Fprintf(out, "Last training: %s, model %s (validation accuracy %.1f%%)\n",
			status.State, status.Result.ModelID, status.Result.ValidationAccuracy*100)
	} else if status.State != app.TrainingIdle {
		fmt.Fprintf(out, "Last training: %s %s\n", status.State, status.Error)
	}
	return nil
}

func printQuality(out io.Writer, userID string, b calibration.Breakdown, intentional, unintentional int) {
	fmt.Fprintf(out, "Calibration for %s: %d samples (%d intentional, %d unintentional)\n",
		userID, intentional+unintentional, intentional, unintentional)
	fmt.Fprintf(out, "  count:        %5.1f / %.0f\n", b.Count, calibration.MaxSubScore)
	fmt.Fprintf(out, "  balance:      %5.1f / %.0f\n", b.Balance, calibration.MaxSubScore)
	fmt.Fprintf(out, "  diversity:    %5.1f / %.0f\n", b.Diversity, calibration.MaxSubScore)
	fmt.Fprintf(out, "  separability: %5.1f / %.0f\n", b.Separability, calibration.MaxSubScore)
	fmt.Fprintf(out, "  total:        %5.1f / 100 (%s)\n", b.Total, b.Status())
}
