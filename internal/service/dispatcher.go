package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/autograder-io/examflow-api/internal/observability"
)

// SubmissionQueue is the ingestion-facing side of the dispatcher. Enqueue
// returns immediately; processing happens on the worker pool.
type SubmissionQueue interface {
	Enqueue(submissionID uint)
}

// ProcessFunc handles one dequeued submission. It must not panic; the
// pipeline owns its own failure finalization.
type ProcessFunc func(ctx context.Context, submissionID uint)

// Tombstones tracks submissions deleted while a worker may still hold them.
// Workers consult the set before persisting state so a deleted submission is
// never resurrected by an in-flight job.
type Tombstones struct {
	mu  sync.Mutex
	ids map[uint]struct{}
}

func NewTombstones() *Tombstones {
	return &Tombstones{ids: make(map[uint]struct{})}
}

func (t *Tombstones) Mark(id uint) {
	t.mu.Lock()
	t.ids[id] = struct{}{}
	t.mu.Unlock()
}

func (t *Tombstones) Contains(id uint) bool {
	t.mu.Lock()
	_, ok := t.ids[id]
	t.mu.Unlock()
	return ok
}

func (t *Tombstones) Clear(id uint) {
	t.mu.Lock()
	delete(t.ids, id)
	t.mu.Unlock()
}

// Dispatcher runs a fixed pool of workers over an unbounded in-memory FIFO
// queue. Uploads enqueue without blocking regardless of backlog; at most
// `workers` submissions are processed concurrently.
type Dispatcher struct {
	process ProcessFunc
	workers int
	logger  zerolog.Logger

	mu    sync.Mutex
	queue []uint

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(workers int, process ProcessFunc, logger zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		process: process,
		workers: workers,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
		wake:    make(chan struct{}, 1),
	}
}

// Start launches the worker pool. It must be called exactly once.
func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}

	d.logger.Info().Int("workers", d.workers).Msg("dispatcher started")
}

// Enqueue appends a submission to the queue and wakes an idle worker.
func (d *Dispatcher) Enqueue(submissionID uint) {
	d.mu.Lock()
	d.queue = append(d.queue, submissionID)
	observability.QueueDepth().Set(float64(len(d.queue)))
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Shutdown stops the workers and waits for in-flight jobs to finish or the
// context to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	logger := d.logger.With().Int("worker", id).Logger()
	for {
		submissionID, ok := d.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-d.wake:
				continue
			}
		}

		logger.Debug().Uint("submission_id", submissionID).Msg("processing submission")
		d.process(ctx, submissionID)
	}
}

// next pops the queue head. When items remain it re-signals so sibling
// workers sleeping on a coalesced wakeup also drain.
func (d *Dispatcher) next() (uint, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) == 0 {
		return 0, false
	}

	submissionID := d.queue[0]
	d.queue = d.queue[1:]
	observability.QueueDepth().Set(float64(len(d.queue)))

	if len(d.queue) > 0 {
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}

	return submissionID, true
}
