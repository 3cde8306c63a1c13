package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ayusman/hueassay/internal/sampler"
)

// Setting keys for the persisted sampler tuning.
const (
	KeyInterval    = "interval_seconds"
	KeyEndEpsilon  = "end_epsilon_seconds"
	KeySeekTimeout = "seek_timeout_ms"
	KeySettleDelay = "settle_delay_ms"
	KeyStaleCheck  = "stale_check"
)

// SettingsRepository stores string values by key.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored under key.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// Set inserts or replaces the value under key.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// Delete removes key. Deleting a missing key is not an error.
func (r *SettingsRepository) Delete(key string) error {
	_, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	return err
}

// All returns every stored setting.
func (r *SettingsRepository) All() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// LoadSampler overlays the stored sampler settings on base. Keys that were
// never saved keep the base value.
func (r *SettingsRepository) LoadSampler(base sampler.Config) (sampler.Config, error) {
	stored, err := r.All()
	if err != nil {
		return base, err
	}

	cfg := base
	for key, value := range stored {
		switch key {
		case KeyInterval:
			cfg.Interval, err = strconv.ParseFloat(value, 64)
		case KeyEndEpsilon:
			cfg.EndEpsilon, err = strconv.ParseFloat(value, 64)
		case KeySeekTimeout:
			cfg.SeekTimeout, err = parseMillis(value)
		case KeySettleDelay:
			cfg.SettleDelay, err = parseMillis(value)
		case KeyStaleCheck:
			cfg.StaleCheck, err = strconv.ParseBool(value)
		default:
			continue
		}
		if err != nil {
			return base, fmt.Errorf("setting %s=%q: %w", key, value, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

// SaveSampler stores every sampler setting in one transaction.
func (r *SettingsRepository) SaveSampler(cfg sampler.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	values := map[string]string{
		KeyInterval:    strconv.FormatFloat(cfg.Interval, 'f', -1, 64),
		KeyEndEpsilon:  strconv.FormatFloat(cfg.EndEpsilon, 'f', -1, 64),
		KeySeekTimeout: strconv.FormatInt(cfg.SeekTimeout.Milliseconds(), 10),
		KeySettleDelay: strconv.FormatInt(cfg.SettleDelay.Milliseconds(), 10),
		KeyStaleCheck:  strconv.FormatBool(cfg.StaleCheck),
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for key, value := range values {
		_, err := tx.Exec(
			`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func parseMillis(s string) (time.Duration, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
