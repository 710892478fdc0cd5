package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/knobgrid/knobgrid-core/internal/infrastructure/config"
	"github.com/knobgrid/knobgrid-core/internal/infrastructure/database"
	_ "github.com/knobgrid/knobgrid-core/migrations"
)

// setupTestRepo opens a temp-file database, runs the embedded migrations,
// and returns a repository over it.
func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(config.HistoryConfig{
		Enabled:     true,
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	return NewSQLiteRepository(db)
}

// insertWithTimestamp writes an entry with an explicit created_at, bypassing
// the column default so pruning can be exercised.
func insertWithTimestamp(t *testing.T, repo *SQLiteRepository, entry Entry, createdAt time.Time) {
	t.Helper()

	_, err := repo.db.Exec(
		`INSERT INTO mutation_history
		 (channel, knob_index, knob_name, directive, source, old_value, new_value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Channel, entry.Index, entry.Knob, entry.Directive,
		entry.Source, entry.Old, entry.New,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("failed to insert entry: %v", err)
	}
}

func TestRecordAndRecent(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	entry := Entry{
		Channel:   2,
		Index:     1,
		Knob:      "release",
		Directive: "set",
		Source:    "serial",
		Old:       50,
		New:       120,
	}
	if err := repo.Record(ctx, entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}

	got := entries[0]
	if got.ID == 0 {
		t.Error("ID = 0, want non-zero")
	}
	if got.Channel != 2 || got.Index != 1 {
		t.Errorf("position = (%d, %d), want (2, 1)", got.Channel, got.Index)
	}
	if got.Knob != "release" {
		t.Errorf("Knob = %q, want %q", got.Knob, "release")
	}
	if got.Directive != "set" {
		t.Errorf("Directive = %q, want %q", got.Directive, "set")
	}
	if got.Source != "serial" {
		t.Errorf("Source = %q, want %q", got.Source, "serial")
	}
	if got.Old != 50 || got.New != 120 {
		t.Errorf("values = (%g, %g), want (50, 120)", got.Old, got.New)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero, want non-zero")
	}
}

func TestRecordRequiresKnobName(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.Record(context.Background(), Entry{Directive: "set"})
	if err == nil {
		t.Fatal("Record() with empty knob name succeeded, want error")
	}
}

func TestRecentOrderingAndLimit(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := Entry{
			Knob:      "attack",
			Directive: "increment",
			Old:       float64(i),
			New:       float64(i + 1),
		}
		if err := repo.Record(ctx, entry); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		entries, err := repo.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(entries) != 5 {
			t.Fatalf("entries length = %d, want 5", len(entries))
		}
		if entries[0].New != 5 {
			t.Errorf("first entry New = %g, want 5 (newest)", entries[0].New)
		}
		if entries[4].New != 1 {
			t.Errorf("last entry New = %g, want 1 (oldest)", entries[4].New)
		}
	})

	t.Run("limit enforced", func(t *testing.T) {
		entries, err := repo.Recent(ctx, 2)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("entries length = %d, want 2", len(entries))
		}
	})

	t.Run("zero limit uses default", func(t *testing.T) {
		entries, err := repo.Recent(ctx, 0)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(entries) != 5 {
			t.Fatalf("entries length = %d, want 5", len(entries))
		}
	})
}

func TestRecentEmpty(t *testing.T) {
	repo := setupTestRepo(t)

	entries, err := repo.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries length = %d, want 0", len(entries))
	}
}

func TestPrune(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	insertWithTimestamp(t, repo, Entry{Knob: "old", Directive: "set"}, now.Add(-48*time.Hour))
	insertWithTimestamp(t, repo, Entry{Knob: "older", Directive: "set"}, now.Add(-72*time.Hour))
	insertWithTimestamp(t, repo, Entry{Knob: "fresh", Directive: "set"}, now)

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("Prune() deleted = %d, want 2", deleted)
	}

	entries, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}
	if entries[0].Knob != "fresh" {
		t.Errorf("surviving Knob = %q, want %q", entries[0].Knob, "fresh")
	}
}

func TestPruneRejectsNonPositive(t *testing.T) {
	repo := setupTestRepo(t)

	if _, err := repo.Prune(context.Background(), 0); err == nil {
		t.Error("Prune(0) succeeded, want error")
	}
	if _, err := repo.Prune(context.Background(), -time.Hour); err == nil {
		t.Error("Prune(-1h) succeeded, want error")
	}
}
