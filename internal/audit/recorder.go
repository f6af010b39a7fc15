package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"app-activate/internal/workerutil"
)

const (
	// defaultQueueSize bounds launches waiting for the disk. Chords arrive at
	// human speed, so a full queue means the writer is stuck.
	defaultQueueSize = 64

	insertTimeout = 5 * time.Second
)

var (
	ErrQueueFull      = errors.New("audit queue full")
	ErrRecorderClosed = errors.New("audit recorder closed")
	ErrWriterStopped  = errors.New("audit writer stopped after repeated panics")
)

// inserter is the write side of Store.
type inserter interface {
	Insert(ctx context.Context, ts time.Time, application string) (string, error)
}

type entry struct {
	ts     time.Time
	target string
}

// Recorder writes launches asynchronously so the chord path never waits on
// disk I/O. Record only enqueues.
type Recorder struct {
	store  inserter
	queue  chan entry
	mu     sync.RWMutex
	closed atomic.Bool
	broken atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup

	written atomic.Int64
	failed  atomic.Int64
}

// NewRecorder starts the background writer. Close must be called to flush.
func NewRecorder(ctx context.Context, store inserter) *Recorder {
	return newRecorder(ctx, store, defaultQueueSize)
}

func newRecorder(ctx context.Context, store inserter, queueSize int) *Recorder {
	ctx, cancel := context.WithCancel(ctx)
	r := &Recorder{
		store:  store,
		queue:  make(chan entry, queueSize),
		cancel: cancel,
	}
	workerutil.RunWithPanicRecovery(ctx, "audit-writer", &r.wg, r.run, workerutil.RecoveryOptions{
		MaxRetries: 3,
		IsShutdown: r.closed.Load,
		OnFatal: func(worker string, _ int) {
			r.broken.Store(true)
			slog.Error("[audit] writer stopped; launches are no longer recorded", "worker", worker)
		},
	})
	return r
}

// Record enqueues one launch. It never blocks.
func (r *Recorder) Record(ts time.Time, target string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed.Load() {
		return ErrRecorderClosed
	}
	if r.broken.Load() {
		return ErrWriterStopped
	}
	select {
	case r.queue <- entry{ts: ts, target: target}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stats returns the number of rows written and failed so far.
func (r *Recorder) Stats() (written, failed int64) {
	return r.written.Load(), r.failed.Load()
}

// Close stops accepting entries, flushes the queue and stops the writer.
// It is idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed.Swap(true) {
		r.mu.Unlock()
		return nil
	}
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	r.cancel()
	if pending := len(r.queue); pending > 0 {
		slog.Warn("[audit] dropped unwritten launches on close", "count", pending)
	}
	return nil
}

func (r *Recorder) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-r.queue:
			if !ok {
				return
			}
			r.write(ctx, e)
		}
	}
}

func (r *Recorder) write(ctx context.Context, e entry) {
	insertCtx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()
	id, err := r.store.Insert(insertCtx, e.ts, e.target)
	if err != nil {
		r.failed.Add(1)
		slog.Warn("[audit] failed to record launch", "target", e.target, "error", err)
		return
	}
	r.written.Add(1)
	slog.Debug("[audit] launch recorded", "target", e.target, "launchID", id)
}
