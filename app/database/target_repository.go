package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ TargetRepository = (*TargetRepositoryImpl)(nil)

// TargetRepositoryImpl handles database operations for watch targets
type TargetRepositoryImpl struct {
	db *DB
}

func NewTargetRepository(db *DB) *TargetRepositoryImpl {
	return &TargetRepositoryImpl{db: db}
}

const targetColumns = `id, platform, target_type, external_id, symbol, keyword,
	display_name, enabled, created_at, updated_at`

// ListEnabled returns enabled targets for a platform
func (r *TargetRepositoryImpl) ListEnabled(platform string) ([]WatchTarget, error) {
	rows, err := r.db.Query(`
		SELECT `+targetColumns+`
		FROM watch_targets
		WHERE platform = ? AND enabled = 1
		ORDER BY id
	`, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled targets: %w", err)
	}
	defer rows.Close()

	return scanTargets(rows)
}

// ListAll returns all targets regardless of enabled state
func (r *TargetRepositoryImpl) ListAll() ([]WatchTarget, error) {
	rows, err := r.db.Query(`
		SELECT ` + targetColumns + `
		FROM watch_targets
		ORDER BY platform, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	return scanTargets(rows)
}

func (r *TargetRepositoryImpl) GetTarget(id int64) (*WatchTarget, error) {
	row := r.db.QueryRow(`
		SELECT `+targetColumns+`
		FROM watch_targets
		WHERE id = ?
	`, id)

	target, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	return &target, nil
}

func (r *TargetRepositoryImpl) CreateTarget(target WatchTarget) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO watch_targets (platform, target_type, external_id, symbol, keyword, display_name, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, target.Platform, target.TargetType, target.ExternalID, target.Symbol,
		target.Keyword, target.DisplayName, target.Enabled)
	if err != nil {
		return 0, fmt.Errorf("failed to create target: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get target id: %w", err)
	}
	return id, nil
}

func (r *TargetRepositoryImpl) UpdateTarget(target WatchTarget) error {
	_, err := r.db.Exec(`
		UPDATE watch_targets
		SET platform = ?, target_type = ?, external_id = ?, symbol = ?,
		    keyword = ?, display_name = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`, target.Platform, target.TargetType, target.ExternalID, target.Symbol,
		target.Keyword, target.DisplayName, target.Enabled, time.Now().UTC(), target.ID)
	if err != nil {
		return fmt.Errorf("failed to update target: %w", err)
	}
	return nil
}

func (r *TargetRepositoryImpl) DeleteTarget(id int64) error {
	_, err := r.db.Exec("DELETE FROM watch_targets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete target: %w", err)
	}
	return nil
}

// UpsertSeed registers a seed-file target, matching on its identity fields.
// Display name and enabled flag follow the seed file on every sync.
func (r *TargetRepositoryImpl) UpsertSeed(target WatchTarget) (int64, bool, error) {
	var id int64
	err := r.db.QueryRow(`
		SELECT id FROM watch_targets
		WHERE platform = ? AND target_type = ? AND external_id = ? AND symbol = ? AND keyword = ?
	`, target.Platform, target.TargetType, target.ExternalID, target.Symbol, target.Keyword).Scan(&id)

	if err == sql.ErrNoRows {
		id, err = r.CreateTarget(target)
		if err != nil {
			return 0, false, err
		}
		return id, true, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to check existing target: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE watch_targets
		SET display_name = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`, target.DisplayName, target.Enabled, time.Now().UTC(), id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to update seeded target: %w", err)
	}

	return id, false, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTarget(row rowScanner) (WatchTarget, error) {
	var target WatchTarget
	err := row.Scan(
		&target.ID, &target.Platform, &target.TargetType, &target.ExternalID,
		&target.Symbol, &target.Keyword, &target.DisplayName, &target.Enabled,
		&target.CreatedAt, &target.UpdatedAt,
	)
	return target, err
}

func scanTargets(rows *sql.Rows) ([]WatchTarget, error) {
	var targets []WatchTarget
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target row: %w", err)
		}
		targets = append(targets, target)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating target rows: %w", err)
	}
	return targets, nil
}
