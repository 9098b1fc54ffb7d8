// Package api provides HTTP API handlers for calibration and training.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/classifier"
)

// Calibrator is the part of the application the calibration API drives.
type Calibrator interface {
	AddSample(ctx context.Context, intentional bool) ([]calibration.Sample, error)
	Quality() calibration.Breakdown
	Counts() (intentional, unintentional int)
	ClearCalibration(ctx context.Context) error
	StartTraining(ctx context.Context) error
	TrainingStatus() app.TrainingStatus
	Model() *classifier.Model
}

// CalibrationHandler handles HTTP requests under /api/calibration.
type CalibrationHandler struct {
	calib Calibrator
}

// NewCalibrationHandler creates a new CalibrationHandler.
func NewCalibrationHandler(c Calibrator) *CalibrationHandler {
	return &CalibrationHandler{calib: c}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/calibration/{samples,quality,train,model}
	path := strings.TrimPrefix(r.URL.Path, "/api/calibration")
	path = strings.Trim(path, "/")

	switch path {
	case "samples":
		switch r.Method {
		case http.MethodPost:
			h.addSample(w, r)
		case http.MethodDelete:
			h.clear(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "quality":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.quality(w, r)
	case "train":
		switch r.Method {
		case http.MethodPost:
			h.train(w, r)
		case http.MethodGet:
			writeJSON(w, http.StatusOK, h.calib.TrainingStatus())
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "model":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.model(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// Request and response types

type addSampleRequest struct {
	Intentional *bool `json:"intentional"`
}

type sampleResponse struct {
	Landmark      string `json:"landmark"`
	IsIntentional bool   `json:"isIntentional"`
}

type addSampleResponse struct {
	Added   int              `json:"added"`
	Samples []sampleResponse `json:"samples"`
	Quality qualityResponse  `json:"quality"`
}

type qualityResponse struct {
	calibration.Breakdown
	Status        string `json:"status"`
	Intentional   int    `json:"intentional"`
	Unintentional int    `json:"unintentional"`
}

type dataErrorResponse struct {
	Error         string                 `json:"error"`
	Deficiency    calibration.Deficiency `json:"deficiency"`
	Intentional   int                    `json:"intentional"`
	Unintentional int                    `json:"unintentional"`
}

type modelResponse struct {
	ID                 string  `json:"id"`
	Accuracy           float64 `json:"accuracy"`
	ValidationAccuracy float64 `json:"validationAccuracy"`
	TrainedAt          string  `json:"trainedAt"`
}

func (h *CalibrationHandler) qualityResponse() qualityResponse {
	b := h.calib.Quality()
	pos, neg := h.calib.Counts()
	return qualityResponse{
		Breakdown:     b,
		Status:        b.Status(),
		Intentional:   pos,
		Unintentional: neg,
	}
}

// addSample handles POST /api/calibration/samples
func (h *CalibrationHandler) addSample(w http.ResponseWriter, r *http.Request) {
	var req addSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Intentional == nil {
		writeError(w, http.StatusBadRequest, "intentional is required")
		return
	}

	added, err := h.calib.AddSample(r.Context(), *req.Intentional)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save samples")
		return
	}

	response := addSampleResponse{
		Added:   len(added),
		Samples: make([]sampleResponse, 0, len(added)),
		Quality: h.qualityResponse(),
	}
	for _, s := range added {
		response.Samples = append(response.Samples, sampleResponse{
			Landmark:      string(s.Landmark),
			IsIntentional: s.IsIntentional,
		})
	}

	status := http.StatusCreated
	if len(added) == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, response)
}

// clear handles DELETE /api/calibration/samples
func (h *CalibrationHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.calib.ClearCalibration(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear samples")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// quality handles GET /api/calibration/quality
func (h *CalibrationHandler) quality(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.qualityResponse())
}

// train handles POST /api/calibration/train
func (h *CalibrationHandler) train(w http.ResponseWriter, r *http.Request) {
	err := h.calib.StartTraining(r.Context())

	var dataErr *calibration.DataError
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, h.calib.TrainingStatus())
	case errors.As(err, &dataErr):
		writeJSON(w, http.StatusUnprocessableEntity, dataErrorResponse{
			Error:         err.Error(),
			Deficiency:    dataErr.Deficiency,
			Intentional:   dataErr.Intentional,
			Unintentional: dataErr.Unintentional,
		})
	case errors.Is(err, classifier.ErrTrainingInProgress):
		writeError(w, http.StatusConflict, "Training already in progress")
	case errors.Is(err, app.ErrNoTrainer):
		writeError(w, http.StatusServiceUnavailable, "Trainable classifier is disabled")
	default:
		writeError(w, http.StatusInternalServerError, "Failed to start training")
	}
}

// model handles GET /api/calibration/model
func (h *CalibrationHandler) model(w http.ResponseWriter, r *http.Request) {
	m := h.calib.Model()
	if m == nil {
		writeError(w, http.StatusNotFound, "No trained model")
		return
	}
	writeJSON(w, http.StatusOK, modelResponse{
		ID:                 m.ID,
		Accuracy:           m.Accuracy,
		ValidationAccuracy: m.ValidationAccuracy,
		TrainedAt:          m.TrainedAt.Format(time.RFC3339),
	})
}
