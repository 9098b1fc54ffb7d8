package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detection"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/pose"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/testdata"
)

type collector struct {
	mu      sync.Mutex
	results []detection.MovementResult
}

func (c *collector) add(r []detection.MovementResult) {
	c.mu.Lock()
	c.results = append(c.results, r...)
	c.mu.Unlock()
}

func (c *collector) take() []detection.MovementResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.results
	c.results = nil
	return out
}

func intentional(results []detection.MovementResult, name pose.LandmarkName) int {
	n := 0
	for _, r := range results {
		if r.Landmark == name && r.IsIntentional {
			n++
		}
	}
	return n
}

func newApp(t *testing.T, cfg *config.Config, s *store.Store, m *metrics.Metrics) *app.App {
	t.Helper()
	trainable := classifier.NewTrainable(cfg.TrainingConfig(),
		classifier.WithAugmenter(cfg.Augmenter()),
		classifier.WithThreshold(cfg.Trainable.Threshold))

	a := app.New(app.Config{
		UserID:       cfg.Calibration.UserID,
		Detection:    cfg.DetectionConfig(),
		Capabilities: cfg.Capabilities(),
		Calibration:  cfg.CalibrationConfig(),
	}, app.Services{
		Heuristic: classifier.NewHeuristic(cfg.HeuristicConfig()),
		Trainable: trainable,
		Store:     s,
		Recorder:  m,
	})
	t.Cleanup(a.Close)
	if err := a.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	return a
}

func replay(t *testing.T, a *app.App, name string) {
	t.Helper()
	src, err := testdata.Open(name)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", name, err)
	}
	a.Reset()
	if err := a.Run(context.Background(), src); err != nil {
		t.Fatalf("Run(%s) error = %v", name, err)
	}
}

func postJSON(t *testing.T, client *http.Client, url, body string) *http.Response {
	t.Helper()
	resp, err := client.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	return resp
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	cfg := config.New()
	cfg.Store.Path = filepath.Join(tmpDir, "data.db")
	cfg.Training.Epochs = 20

	s, err := store.New(cfg.Store.Path)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	m := metrics.New()
	application := newApp(t, cfg, s, m)

	seen := &collector{}
	application.Subscribe(seen.add)

	srv := server.New(server.Config{App: application, Metrics: m.Handler()})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	t.Run("DetectDeliberateReach", func(t *testing.T) {
		replay(t, application, testdata.Reach)
		results := seen.take()

		if intentional(results, pose.RightWrist) == 0 {
			t.Error("expected the reaching wrist to be intentional")
		}
		if n := intentional(results, pose.LeftWrist); n != 0 {
			t.Errorf("resting wrist reported %d intentional movements", n)
		}
	})

	t.Run("IgnoreTremor", func(t *testing.T) {
		replay(t, application, testdata.Tremor)
		if n := intentional(seen.take(), pose.LeftWrist); n != 0 {
			t.Errorf("tremor reported %d intentional movements", n)
		}
	})

	t.Run("IgnoreRest", func(t *testing.T) {
		replay(t, application, testdata.Rest)
		if results := seen.take(); len(results) != 0 {
			t.Errorf("expected no results at rest, got %d", len(results))
		}
	})

	t.Run("Calibrate", func(t *testing.T) {
		for i := 0; i < 7; i++ {
			replay(t, application, testdata.Reach)
			resp := postJSON(t, client, ts.URL+"/api/calibration/samples", `{"intentional": true}`)
			resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				t.Fatalf("label intentional status = %d", resp.StatusCode)
			}

			replay(t, application, testdata.Tremor)
			resp = postJSON(t, client, ts.URL+"/api/calibration/samples", `{"intentional": false}`)
			resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				t.Fatalf("label unintentional status = %d", resp.StatusCode)
			}
		}
		seen.take()

		pos, neg := application.Counts()
		if pos != 21 || neg != 14 {
			t.Errorf("counts = %d/%d, want 21/14", pos, neg)
		}
		if q := application.Quality(); q.Total <= 0 {
			t.Errorf("expected positive quality, got %+v", q)
		}
	})

	t.Run("Train", func(t *testing.T) {
		resp := postJSON(t, client, ts.URL+"/api/calibration/train", "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("train status = %d, want %d", resp.StatusCode, http.StatusAccepted)
		}

		var status app.TrainingStatus
		deadline := time.Now().Add(time.Minute)
		for time.Now().Before(deadline) {
			resp, err := client.Get(ts.URL + "/api/calibration/train")
			if err != nil {
				t.Fatalf("GET train error = %v", err)
			}
			json.NewDecoder(resp.Body).Decode(&status)
			resp.Body.Close()
			if status.State != app.TrainingRunning {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}

		if status.State != app.TrainingSucceeded {
			t.Fatalf("training state = %s (%s)", status.State, status.Error)
		}
		if status.Result == nil || !status.Result.LowConfidence {
			t.Errorf("expected a low-confidence result for 21/14 samples, got %+v", status.Result)
		}
		if application.Model() == nil {
			t.Fatal("expected a trained model")
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics error = %v", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read /metrics error = %v", err)
		}
		for _, want := range []string{
			`mudra_training_runs_total{outcome="succeeded"} 1`,
			"mudra_frames_processed_total",
			"mudra_calibration_quality",
		} {
			if !strings.Contains(string(body), want) {
				t.Errorf("metrics missing %q", want)
			}
		}
	})

	t.Run("RestartRestoresState", func(t *testing.T) {
		restarted := newApp(t, cfg, s, metrics.New())

		model := restarted.Model()
		if model == nil {
			t.Fatal("expected the model to be restored")
		}
		if model.ID != application.Model().ID {
			t.Errorf("restored model %s, want %s", model.ID, application.Model().ID)
		}
		pos, neg := restarted.Counts()
		if pos != 21 || neg != 14 {
			t.Errorf("restored counts = %d/%d, want 21/14", pos, neg)
		}
		if restarted.TrainingStatus().State != app.TrainingSucceeded {
			t.Errorf("restored status = %s", restarted.TrainingStatus().State)
		}

		results := collectRun(t, restarted, testdata.Reach)
		for _, r := range results {
			if r.Source != classifier.SourceTrainable {
				t.Errorf("expected trainable verdicts after restore, got %s", r.Source)
				break
			}
		}
	})
}

func collectRun(t *testing.T, a *app.App, name string) []detection.MovementResult {
	t.Helper()
	c := &collector{}
	unsubscribe := a.Subscribe(c.add)
	defer unsubscribe()
	replay(t, a, name)
	return c.take()
}

func TestE2E_TrainingRejectedWithoutData(t *testing.T) {
	cfg := config.New()
	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	a := newApp(t, cfg, s, metrics.New())
	err = a.StartTraining(context.Background())

	var dataErr *calibration.DataError
	if !errors.As(err, &dataErr) || dataErr.Deficiency != calibration.TooFewSamples {
		t.Fatalf("StartTraining() error = %v, want too few samples", err)
	}
}
