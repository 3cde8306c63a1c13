package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/hueassay/internal/region"
)

// Preset is a named pair of regions that can be applied to any loaded video.
type Preset struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Reaction   region.Normalized `json:"reaction"`
	Background region.Normalized `json:"background"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Validate checks the name and both regions.
func (p *Preset) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: preset name is required", region.ErrInvalid)
	}
	if err := p.Reaction.Validate(); err != nil {
		return fmt.Errorf("reaction: %w", err)
	}
	if err := p.Background.Validate(); err != nil {
		return fmt.Errorf("background: %w", err)
	}
	return nil
}

// PresetRepository provides CRUD operations for presets.
type PresetRepository struct {
	db *sql.DB
}

// Presets returns the preset repository for this store.
func (s *Store) Presets() *PresetRepository {
	return &PresetRepository{db: s.db}
}

// Create inserts p, assigning a new ID when p.ID is empty.
func (r *PresetRepository) Create(p *Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO presets (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("preset %q: %w", p.Name, ErrDuplicate)
	}
	if err != nil {
		return err
	}

	if err := insertRegions(tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID retrieves a preset by its ID.
func (r *PresetRepository) GetByID(id string) (*Preset, error) {
	presets, err := r.query(`WHERE p.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(presets) == 0 {
		return nil, ErrNotFound
	}
	return presets[0], nil
}

// GetByName retrieves a preset by its name.
func (r *PresetRepository) GetByName(name string) (*Preset, error) {
	presets, err := r.query(`WHERE p.name = ?`, name)
	if err != nil {
		return nil, err
	}
	if len(presets) == 0 {
		return nil, ErrNotFound
	}
	return presets[0], nil
}

// List retrieves all presets, newest first.
func (r *PresetRepository) List() ([]*Preset, error) {
	return r.query(``)
}

// Update replaces the name and regions of an existing preset.
func (r *PresetRepository) Update(p *Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.UpdatedAt = time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE presets SET name = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.UpdatedAt, p.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("preset %q: %w", p.Name, ErrDuplicate)
	}
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM preset_regions WHERE preset_id = ?`, p.ID); err != nil {
		return err
	}
	if err := insertRegions(tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a preset and its regions.
func (r *PresetRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM presets WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PresetRepository) query(where string, args ...any) ([]*Preset, error) {
	rows, err := r.db.Query(
		`SELECT p.id, p.name, p.created_at, p.updated_at, pr.kind, pr.x, pr.y, pr.width, pr.height
		 FROM presets p JOIN preset_regions pr ON pr.preset_id = p.id `+where+`
		 ORDER BY p.created_at DESC, p.id, pr.kind`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var presets []*Preset
	var current *Preset
	for rows.Next() {
		var (
			p    Preset
			kind string
			n    region.Normalized
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt, &kind, &n.X, &n.Y, &n.Width, &n.Height); err != nil {
			return nil, err
		}

		if current == nil || current.ID != p.ID {
			current = &p
			presets = append(presets, current)
		}

		switch region.Kind(kind) {
		case region.KindReaction:
			current.Reaction = n
		case region.KindBackground:
			current.Background = n
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return presets, nil
}

func insertRegions(tx *sql.Tx, p *Preset) error {
	regions := []struct {
		kind region.Kind
		r    region.Normalized
	}{
		{region.KindReaction, p.Reaction},
		{region.KindBackground, p.Background},
	}

	for _, pr := range regions {
		_, err := tx.Exec(
			`INSERT INTO preset_regions (preset_id, kind, x, y, width, height) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, string(pr.kind), pr.r.X, pr.r.Y, pr.r.Width, pr.r.Height,
		)
		if err != nil {
			return fmt.Errorf("inserting %s region: %w", pr.kind, err)
		}
	}
	return nil
}
