package history

import (
	"context"
	"fmt"
	"time"

	"github.com/knobgrid/knobgrid-core/internal/infrastructure/database"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// SQLiteRepository implements Repository on the mutation_history table.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a repository over an open database. The
// mutation_history schema is created by the embedded migrations.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record appends one mutation entry.
func (r *SQLiteRepository) Record(ctx context.Context, entry Entry) error {
	if entry.Knob == "" {
		return fmt.Errorf("knob name is required")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mutation_history
		 (channel, knob_index, knob_name, directive, source, old_value, new_value)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Channel,
		entry.Index,
		entry.Knob,
		entry.Directive,
		entry.Source,
		entry.Old,
		entry.New,
	)
	if err != nil {
		return fmt.Errorf("inserting mutation entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first.
// Limit defaults to 50 and is capped at 500.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, channel, knob_index, knob_name, directive, source,
		        old_value, new_value, created_at
		 FROM mutation_history
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying mutation history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var createdAt string
		if err := rows.Scan(
			&entry.ID, &entry.Channel, &entry.Index, &entry.Knob,
			&entry.Directive, &entry.Source, &entry.Old, &entry.New,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning mutation entry: %w", err)
		}

		timestamp, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mutation history: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than the given duration.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM mutation_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting mutation history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

// parseTimestamp parses a timestamp stored by SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}
	timestamp, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return timestamp, nil
}
