package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/knobgrid/knobgrid-core/internal/infrastructure/config"
	"github.com/knobgrid/knobgrid-core/internal/infrastructure/logging"
	"github.com/knobgrid/knobgrid-core/internal/protocol"
)

// fakeRepo captures recorded entries in memory.
type fakeRepo struct {
	mu      sync.Mutex
	entries []Entry
	pruned  int
}

func (f *fakeRepo) Record(_ context.Context, entry Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeRepo) Recent(_ context.Context, _ int) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeRepo) Prune(_ context.Context, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruned++
	return 0, nil
}

func (f *fakeRepo) recorded() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

func TestRecorderObserve(t *testing.T) {
	repo := &fakeRepo{}
	recorder := NewRecorder(repo, 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	recorder.Start(ctx)

	recorder.Observe(protocol.MutationEvent{
		Channel:   1,
		Index:     0,
		Knob:      "attack",
		Directive: "set",
		Source:    "tcp",
		Old:       5,
		New:       30,
	})

	// The worker drains asynchronously; poll until it lands.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(repo.recorded()) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	recorder.Stop()

	entries := repo.recorded()
	if len(entries) != 1 {
		t.Fatalf("recorded entries = %d, want 1", len(entries))
	}

	got := entries[0]
	want := Entry{
		Channel: 1, Index: 0, Knob: "attack",
		Directive: "set", Source: "tcp", Old: 5, New: 30,
	}
	if got != want {
		t.Errorf("entry = %+v, want %+v", got, want)
	}
}

func TestRecorderDrainsOnShutdown(t *testing.T) {
	repo := &fakeRepo{}
	recorder := NewRecorder(repo, 0, testLogger())

	// Queue events before the worker starts, then cancel immediately:
	// the shutdown path must still drain them.
	for i := 0; i < 10; i++ {
		recorder.Observe(protocol.MutationEvent{Knob: "release", Directive: "increment"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	recorder.Start(ctx)
	recorder.Stop()

	if got := len(repo.recorded()); got != 10 {
		t.Errorf("recorded entries = %d, want 10", got)
	}
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	repo := &fakeRepo{}
	recorder := NewRecorder(repo, 0, testLogger())

	// No worker running: fill the queue past capacity. Observe must not
	// block and the overflow must be dropped.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < recordQueueSize+50; i++ {
			recorder.Observe(protocol.MutationEvent{Knob: "cr", Directive: "set"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Observe blocked on a full queue")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	recorder.Start(ctx)
	recorder.Stop()

	if got := len(repo.recorded()); got != recordQueueSize {
		t.Errorf("recorded entries = %d, want %d", got, recordQueueSize)
	}
}
