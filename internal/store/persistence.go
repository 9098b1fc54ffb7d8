package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/logger"
)

// Persistence saves and restores trained classifier models and calibration
// samples.
type Persistence struct {
	models  *ModelRepository
	samples *SampleRepository
	log     logger.Logger
}

// NewPersistence creates a Persistence backed by s.
func NewPersistence(s *Store, log logger.Logger) *Persistence {
	if log == nil {
		log = logger.Nop()
	}
	return &Persistence{models: s.Models(), samples: s.Samples(), log: log}
}

// SaveModel serializes m for userID and stores it with the calibration
// quality it was trained at.
func (p *Persistence) SaveModel(userID string, m *classifier.Model, quality float64) error {
	if m == nil {
		return classifier.ErrNoModel
	}
	data, err := classifier.EncodeModel(userID, m)
	if err != nil {
		return err
	}
	err = p.models.Save(&ModelRecord{
		UserID:             userID,
		ModelID:            m.ID,
		Data:               data,
		Quality:            quality,
		Accuracy:           m.Accuracy,
		ValidationAccuracy: m.ValidationAccuracy,
		TrainedAt:          m.TrainedAt,
	})
	if err != nil {
		return fmt.Errorf("save model %s: %w", m.ID, err)
	}
	return nil
}

// LoadModel returns the stored model for userID and the quality it was
// trained at. A missing, unreadable or corrupt model reports false; the
// caller then runs without a trained model.
func (p *Persistence) LoadModel(ctx context.Context, userID string) (*classifier.Model, float64, bool) {
	rec, err := p.models.Get(userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			p.log.Error(ctx, "failed to read stored model",
				logger.String("user_id", userID), logger.Error(err))
		}
		return nil, 0, false
	}

	m, err := classifier.DecodeModel(userID, rec.Data)
	if err != nil {
		p.log.Warn(ctx, "stored model is corrupt, recalibration required",
			logger.String("user_id", userID),
			logger.String("model_id", rec.ModelID),
			logger.Error(err))
		return nil, 0, false
	}
	return m, rec.Quality, true
}

// DeleteModel removes the stored model for userID, if any.
func (p *Persistence) DeleteModel(userID string) error {
	if err := p.models.Delete(userID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// LoadSamples returns the stored calibration samples for userID. Corrupt rows
// are dropped with a warning; only a failed query is an error.
func (p *Persistence) LoadSamples(ctx context.Context, userID string) ([]calibration.Sample, error) {
	samples, err := p.samples.List(userID)
	var corrupt *CorruptSamplesError
	if errors.As(err, &corrupt) {
		p.log.Warn(ctx, "skipping corrupt calibration samples",
			logger.String("user_id", userID),
			logger.Int("skipped", corrupt.Skipped),
			logger.Int("loaded", len(samples)),
			logger.Error(corrupt.First))
		return samples, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	return samples, nil
}
