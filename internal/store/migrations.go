package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Models table - one trained classifier per user
		`CREATE TABLE IF NOT EXISTS models (
			user_id TEXT PRIMARY KEY,
			model_id TEXT NOT NULL,
			data TEXT NOT NULL,
			quality REAL NOT NULL DEFAULT 0,
			accuracy REAL NOT NULL DEFAULT 0,
			validation_accuracy REAL NOT NULL DEFAULT 0,
			trained_at DATETIME NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Calibration samples table - labeled movement features
		`CREATE TABLE IF NOT EXISTS calibration_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			landmark TEXT NOT NULL,
			intentional INTEGER NOT NULL CHECK(intentional IN (0, 1)),
			features TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_calibration_samples_user_id ON calibration_samples(user_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
