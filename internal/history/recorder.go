package history

import (
	"context"
	"sync"
	"time"

	"github.com/knobgrid/knobgrid-core/internal/infrastructure/logging"
	"github.com/knobgrid/knobgrid-core/internal/protocol"
)

const (
	// recordQueueSize bounds the pending-write queue. Mutations arrive from
	// the protocol engine's dispatch path, which must never block on disk.
	recordQueueSize = 256

	// recordTimeout bounds a single insert.
	recordTimeout = 5 * time.Second

	// pruneInterval is how often old entries are purged.
	pruneInterval = time.Hour
)

// Recorder persists protocol mutation events asynchronously.
//
// Observe is safe to register as an engine mutation callback: it enqueues
// the event and returns immediately. A background worker drains the queue,
// so a slow or failing database never stalls command dispatch. When the
// queue is full the event is dropped and logged.
type Recorder struct {
	repo      Repository
	logger    *logging.Logger
	retention time.Duration

	queue chan Entry
	wg    sync.WaitGroup
}

// NewRecorder creates a recorder over the given repository.
// A retention of zero disables pruning.
func NewRecorder(repo Repository, retention time.Duration, logger *logging.Logger) *Recorder {
	return &Recorder{
		repo:      repo,
		logger:    logger,
		retention: retention,
		queue:     make(chan Entry, recordQueueSize),
	}
}

// Start launches the background worker. It runs until ctx is cancelled.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.run(ctx)
}

// Stop waits for the worker to drain and exit.
func (r *Recorder) Stop() {
	r.wg.Wait()
}

// Observe enqueues a mutation event for persistence. It never blocks.
func (r *Recorder) Observe(event protocol.MutationEvent) {
	entry := Entry{
		Channel:   event.Channel,
		Index:     event.Index,
		Knob:      event.Knob,
		Directive: event.Directive,
		Source:    event.Source,
		Old:       event.Old,
		New:       event.New,
	}

	select {
	case r.queue <- entry:
	default:
		r.logger.Warn("mutation history queue full, dropping entry",
			"knob", entry.Knob,
			"channel", entry.Channel,
		)
	}
}

// run drains the queue and prunes on a timer until ctx is cancelled.
func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-r.queue:
			r.record(entry)

		case <-ticker.C:
			r.prune(ctx)

		case <-ctx.Done():
			// Drain whatever is already queued before exiting.
			for {
				select {
				case entry := <-r.queue:
					r.record(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) record(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.repo.Record(ctx, entry); err != nil {
		r.logger.Error("failed to record mutation",
			"knob", entry.Knob,
			"channel", entry.Channel,
			"error", err,
		)
	}
}

func (r *Recorder) prune(ctx context.Context) {
	if r.retention <= 0 {
		return
	}

	deleted, err := r.repo.Prune(ctx, r.retention)
	if err != nil {
		r.logger.Error("failed to prune mutation history", "error", err)
		return
	}
	if deleted > 0 {
		r.logger.Debug("pruned mutation history", "deleted", deleted)
	}
}
