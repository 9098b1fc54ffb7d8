package classifier

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/features"
)

// ModelFormatVersion is bumped whenever the feature vector or network layout
// changes incompatibly.
const ModelFormatVersion = 1

// ModelState is the persisted form of a Model.
type ModelState struct {
	Version            int       `json:"version"`
	UserID             string    `json:"userId"`
	ModelID            string    `json:"modelId"`
	FeatureNames       []string  `json:"featureNames"`
	Layers             []Layer   `json:"layers"`
	Accuracy           float64   `json:"accuracy"`
	ValidationAccuracy float64   `json:"validationAccuracy"`
	TrainedAt          time.Time `json:"trainedAt"`
}

// Serialize encodes the current model for userID. It returns ErrNoModel when
// untrained.
func (t *Trainable) Serialize(userID string) ([]byte, error) {
	m := t.model.Load()
	if m == nil {
		return nil, ErrNoModel
	}
	return EncodeModel(userID, m)
}

// Deserialize decodes data and publishes it as the current model. On error
// the current model is left unchanged.
func (t *Trainable) Deserialize(userID string, data []byte) error {
	m, err := DecodeModel(userID, data)
	if err != nil {
		return err
	}
	t.model.Store(m)
	return nil
}

// EncodeModel encodes m as a versioned ModelState.
func EncodeModel(userID string, m *Model) ([]byte, error) {
	state := ModelState{
		Version:            ModelFormatVersion,
		UserID:             userID,
		ModelID:            m.ID,
		FeatureNames:       features.FeatureNames(),
		Layers:             m.Network.Layers,
		Accuracy:           m.Accuracy,
		ValidationAccuracy: m.ValidationAccuracy,
		TrainedAt:          m.TrainedAt,
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal model: %w", err)
	}
	return data, nil
}

// DecodeModel decodes and validates a ModelState produced by EncodeModel.
func DecodeModel(userID string, data []byte) (*Model, error) {
	var state ModelState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal model: %w", err)
	}
	if state.Version != ModelFormatVersion {
		return nil, fmt.Errorf("unsupported model version %d", state.Version)
	}
	if state.UserID != userID {
		return nil, fmt.Errorf("model belongs to user %q, not %q", state.UserID, userID)
	}

	net := &Network{Layers: state.Layers}
	if !net.Valid(features.VectorSize) {
		return nil, fmt.Errorf("model %s has invalid layers", state.ModelID)
	}

	return &Model{
		ID:                 state.ModelID,
		Network:            net,
		Accuracy:           state.Accuracy,
		ValidationAccuracy: state.ValidationAccuracy,
		TrainedAt:          state.TrainedAt,
	}, nil
}
