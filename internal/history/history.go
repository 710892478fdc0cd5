package history

import (
	"context"
	"time"
)

// Entry is one recorded knob mutation.
type Entry struct {
	ID        int64     `json:"id"`
	Channel   int       `json:"channel"`
	Index     int       `json:"index"`
	Knob      string    `json:"knob"`
	Directive string    `json:"directive"`
	Source    string    `json:"source"`
	Old       float64   `json:"old"`
	New       float64   `json:"new"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists mutation entries.
type Repository interface {
	// Record appends one mutation entry.
	Record(ctx context.Context, entry Entry) error

	// Recent returns the newest entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Prune deletes entries older than the given duration and returns the
	// number deleted.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
