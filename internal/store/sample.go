package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/pose"
)

// SampleRepository stores calibration samples per user.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Add inserts samples for userID in a single transaction.
func (r *SampleRepository) Add(userID string, samples []calibration.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO calibration_samples (user_id, landmark, intentional, features) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		data, err := json.Marshal(s.Features)
		if err != nil {
			return fmt.Errorf("marshal features: %w", err)
		}
		if _, err := stmt.Exec(userID, string(s.Landmark), s.IsIntentional, string(data)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CorruptSamplesError reports sample rows whose features could not be
// decoded. List returns it together with every row that did decode.
type CorruptSamplesError struct {
	Skipped int
	First   error
}

func (e *CorruptSamplesError) Error() string {
	return fmt.Sprintf("%d corrupt calibration samples skipped: %v", e.Skipped, e.First)
}

func (e *CorruptSamplesError) Unwrap() error {
	return e.First
}

// List retrieves all samples for userID in insertion order. Rows with
// undecodable features are skipped and reported as a *CorruptSamplesError
// alongside the remaining samples.
func (r *SampleRepository) List(userID string) ([]calibration.Sample, error) {
	rows, err := r.db.Query(
		`SELECT landmark, intentional, features
		 FROM calibration_samples
		 WHERE user_id = ?
		 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		samples []calibration.Sample
		corrupt *CorruptSamplesError
	)
	for rows.Next() {
		var (
			landmark string
			data     string
			s        calibration.Sample
		)
		if err := rows.Scan(&landmark, &s.IsIntentional, &data); err != nil {
			return nil, err
		}
		var f features.MovementFeatures
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			if corrupt == nil {
				corrupt = &CorruptSamplesError{First: fmt.Errorf("unmarshal features for %s: %w", landmark, err)}
			}
			corrupt.Skipped++
			continue
		}
		s.Landmark = pose.LandmarkName(landmark)
		s.Features = f
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	if corrupt != nil {
		return samples, corrupt
	}

	return samples, nil
}

// Count returns the number of samples stored for userID.
func (r *SampleRepository) Count(userID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM calibration_samples WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// Clear removes all samples for userID.
func (r *SampleRepository) Clear(userID string) error {
	_, err := r.db.Exec(`DELETE FROM calibration_samples WHERE user_id = ?`, userID)
	return err
}
