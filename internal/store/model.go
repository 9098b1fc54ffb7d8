package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ModelRecord is a serialized classifier model and the calibration quality it
// was trained at.
type ModelRecord struct {
	UserID             string
	ModelID            string
	Data               []byte
	Quality            float64
	Accuracy           float64
	ValidationAccuracy float64
	TrainedAt          time.Time
	UpdatedAt          time.Time
}

// ModelRepository stores one model per user.
type ModelRepository struct {
	db *sql.DB
}

// Models returns the model repository for this store.
func (s *Store) Models() *ModelRepository {
	return &ModelRepository{db: s.db}
}

// Save inserts or replaces the model for rec.UserID.
func (r *ModelRepository) Save(rec *ModelRecord) error {
	rec.UpdatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO models (user_id, model_id, data, quality, accuracy, validation_accuracy, trained_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			model_id = excluded.model_id,
			data = excluded.data,
			quality = excluded.quality,
			accuracy = excluded.accuracy,
			validation_accuracy = excluded.validation_accuracy,
			trained_at = excluded.trained_at,
			updated_at = excluded.updated_at`,
		rec.UserID, rec.ModelID, string(rec.Data), rec.Quality, rec.Accuracy,
		rec.ValidationAccuracy, rec.TrainedAt, rec.UpdatedAt,
	)
	return err
}

// Get retrieves the model for userID.
func (r *ModelRepository) Get(userID string) (*ModelRecord, error) {
	rec := &ModelRecord{}
	var data string

	err := r.db.QueryRow(
		`SELECT user_id, model_id, data, quality, accuracy, validation_accuracy, trained_at, updated_at
		 FROM models WHERE user_id = ?`,
		userID,
	).Scan(&rec.UserID, &rec.ModelID, &data, &rec.Quality, &rec.Accuracy,
		&rec.ValidationAccuracy, &rec.TrainedAt, &rec.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rec.Data = []byte(data)
	return rec, nil
}

// Delete removes the model for userID.
func (r *ModelRepository) Delete(userID string) error {
	result, err := r.db.Exec(`DELETE FROM models WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
