package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/detection"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/pose"
	"github.com/ayusman/mudra/internal/remote"
	"github.com/ayusman/mudra/internal/server"
)

func serveCmd() *cobra.Command {
	var poseCmd, poseFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the detection pipeline and HTTP API",
		Long: `Reads pose frames from a pose estimator subprocess or an NDJSON file,
classifies every tracked landmark's movement, and serves the calibration API,
the live results websocket and prometheus metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), poseCmd, poseFile)
		},
	}
	cmd.Flags().StringVar(&poseCmd, "pose-cmd", "", "pose estimator command writing NDJSON frames to stdout")
	cmd.Flags().StringVar(&poseFile, "pose-file", "", "NDJSON frame file to replay (- for stdin)")
	cmd.MarkFlagsMutuallyExclusive("pose-cmd", "pose-file")
	return cmd
}

func runServe(ctx context.Context, poseCmd, poseFile string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()
	cfg, log := e.cfg, e.log

	src, closeSrc, err := poseSource(poseCmd, poseFile)
	if err != nil {
		return err
	}
	defer closeSrc()

	m := metrics.New()

	svc := app.Services{
		Heuristic: classifier.NewHeuristic(cfg.HeuristicConfig()),
		Store:     e.store,
		Recorder:  m,
		Logger:    log,
	}

	if cfg.Trainable.Enabled {
		svc.Trainable = classifier.NewTrainable(cfg.TrainingConfig(),
			classifier.WithAugmenter(cfg.Augmenter()),
			classifier.WithThreshold(cfg.Trainable.Threshold),
			classifier.WithLogger(log.Named("trainable")))
	}

	if cfg.Remote.Enabled {
		delegate := remote.NewDelegate(
			remote.NewClient(cfg.Remote.URL, remote.WithAPIKey(cfg.Remote.APIKey)),
			remote.WithTimeout(cfg.Remote.Timeout),
			remote.WithWorkers(cfg.Remote.Workers),
			remote.WithQueueSize(cfg.Remote.QueueSize),
			remote.WithLogger(log.Named("remote")),
			remote.WithObserver(m.RemoteOutcome))
		defer delegate.Close()
		svc.Remote = delegate
	}

	plugins := plugin.NewManager(cfg.Plugins.Dir, log.Named("plugin"))
	if err := plugins.Discover(); err != nil {
		return fmt.Errorf("failed to discover plugins: %w", err)
	}
	svc.Dispatcher = app.NewDispatcher(plugins, plugin.NewExecutor(cfg.Plugins.Timeout),
		log.Named("dispatch"), app.DefaultDispatchWorkers, app.DefaultDispatchQueue)

	a := app.New(app.Config{
		UserID:       cfg.Calibration.UserID,
		Detection:    cfg.DetectionConfig(),
		Capabilities: cfg.Capabilities(),
		Calibration:  cfg.CalibrationConfig(),
	}, svc)
	defer a.Close()

	if err := a.Restore(ctx); err != nil {
		return err
	}

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	srv := server.New(server.Config{
		StaticDir: staticDir,
		App:       a,
		Plugins:   plugins,
		Metrics:   m.Handler(),
		Logger:    log.Named("server"),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(ctx, cfg.Server.Addr)
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- a.Run(ctx, src)
	}()

	for {
		select {
		case err := <-serveErr:
			cancel()
			return err
		case err := <-runErr:
			if err != nil {
				cancel()
				<-serveErr
				return fmt.Errorf("pose source: %w", err)
			}
			// A replayed file is exhausted; keep serving the API.
			log.Info(ctx, "pose source finished", logger.String("capabilities", capabilities(a.Capabilities())))
			runErr = nil
		}
	}
}

// poseSource selects the frame source. Without flags it looks for the bundled
// pose estimator script.
func poseSource(poseCmd, poseFile string) (pose.Source, func(), error) {
	nop := func() {}

	switch {
	case poseFile == "-":
		return pose.NewStreamSource(os.Stdin), nop, nil
	case poseFile != "":
		f, err := os.Open(poseFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open pose file: %w", err)
		}
		return pose.NewStreamSource(f), func() { f.Close() }, nil
	case poseCmd != "":
		args := strings.Fields(poseCmd)
		if len(args) == 0 {
			return nil, nil, errors.New("--pose-cmd is blank")
		}
		return pose.NewProcessSource(args[0], args[1:]...), nop, nil
	}

	src, err := pose.NewDefaultProcessSource()
	if err != nil {
		return nil, nil, fmt.Errorf("no pose source: pass --pose-cmd or --pose-file (%w)", err)
	}
	return src, nop, nil
}

func capabilities(c detection.Capabilities) string {
	parts := []string{"heuristic"}
	if c.Trainable {
		parts = append(parts, "trainable")
	}
	if c.Remote {
		parts = append(parts, "remote")
	}
	return strings.Join(parts, ",")
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.mudra/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".mudra", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
