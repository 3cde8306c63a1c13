package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Settings table - sampler tuning as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Presets table - named region layouts reused across videos
		`CREATE TABLE IF NOT EXISTS presets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Preset regions table - one row per tracked region of a preset
		`CREATE TABLE IF NOT EXISTS preset_regions (
			preset_id TEXT NOT NULL REFERENCES presets(id) ON DELETE CASCADE,
			kind TEXT NOT NULL CHECK(kind IN ('reaction', 'background')),
			x REAL NOT NULL,
			y REAL NOT NULL,
			width REAL NOT NULL,
			height REAL NOT NULL,
			PRIMARY KEY (preset_id, kind)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_preset_regions_preset_id ON preset_regions(preset_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
