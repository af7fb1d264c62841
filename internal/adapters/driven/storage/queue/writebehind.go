// Package queue provides a write-behind decorator for driven.ProjectStore.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
	"github.com/custodia-labs/nexus-canvas/internal/logger"
)

// Config holds the write-behind tunables.
type Config struct {
	// Quiet is how long the queue waits after the last Put before flushing.
	Quiet time.Duration

	// RequestsPerSecond paces writes to the underlying store during a flush.
	RequestsPerSecond float64

	// BurstSize is the number of writes allowed back to back.
	BurstSize int
}

// DefaultConfig matches the canvas save debounce.
func DefaultConfig() Config {
	return Config{
		Quiet:             650 * time.Millisecond,
		RequestsPerSecond: 20,
		BurstSize:         4,
	}
}

// Ensure WriteBehind implements the interface.
var _ driven.ProjectStore = (*WriteBehind)(nil)

// WriteBehind coalesces Puts per project and writes them to the next store
// once writes have been quiet for a while. Only the latest snapshot of each
// project is written. Reads see queued snapshots.
type WriteBehind struct {
	next    driven.ProjectStore
	quiet   time.Duration
	limiter *rate.Limiter

	mu       sync.Mutex
	pending  map[string][]byte
	inflight map[string][]byte
	closed   bool

	// flushMu serializes flushes and deletes against each other.
	flushMu sync.Mutex

	kick chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

// New starts a write-behind queue in front of next. Call Close to drain it.
func New(next driven.ProjectStore, cfg Config) *WriteBehind {
	defaults := DefaultConfig()
	if cfg.Quiet <= 0 {
		cfg.Quiet = defaults.Quiet
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if cfg.BurstSize < 1 {
		cfg.BurstSize = defaults.BurstSize
	}

	q := &WriteBehind{
		next:     next,
		quiet:    cfg.Quiet,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		pending:  make(map[string][]byte),
		inflight: make(map[string][]byte),
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// maxRetryDelay caps the backoff between retries of a failed flush.
const maxRetryDelay = 30 * time.Second

// run flushes once Puts have been quiet. A flush that leaves snapshots
// queued is retried with a doubling delay until it succeeds or a new Put
// restarts the quiet period.
func (q *WriteBehind) run() {
	defer q.wg.Done()

	timer := time.NewTimer(q.quiet)
	timer.Stop()
	defer timer.Stop()

	retry := q.quiet
	for {
		select {
		case <-q.kick:
			retry = q.quiet
			resetTimer(timer, q.quiet)
		case <-timer.C:
			err := q.Flush(context.Background())
			if err == nil {
				retry = q.quiet
				continue
			}
			if q.Pending() == 0 {
				logger.Error("write-behind flush: %v", err)
				continue
			}
			logger.Error("write-behind flush: %v (retrying in %s)", err, retry)
			timer.Reset(retry)
			retry = min(retry*2, maxRetryDelay)
		case <-q.stop:
			return
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// Put queues a snapshot. It returns once the snapshot is queued, not written.
func (q *WriteBehind) Put(_ context.Context, projectID string, snapshot []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return domain.ErrStoreClosed
	}
	q.pending[projectID] = append([]byte(nil), snapshot...)
	q.mu.Unlock()

	select {
	case q.kick <- struct{}{}:
	default:
	}
	return nil
}

// Get returns the newest snapshot, queued or stored.
func (q *WriteBehind) Get(ctx context.Context, projectID string) ([]byte, error) {
	q.mu.Lock()
	data, ok := q.pending[projectID]
	if !ok {
		data, ok = q.inflight[projectID]
	}
	q.mu.Unlock()
	if ok {
		return append([]byte(nil), data...), nil
	}
	return q.next.Get(ctx, projectID)
}

// Delete drops any queued snapshot and deletes the stored one.
func (q *WriteBehind) Delete(ctx context.Context, projectID string) error {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	q.mu.Lock()
	delete(q.pending, projectID)
	q.mu.Unlock()

	return q.next.Delete(ctx, projectID)
}

// List returns the stored projects plus queued ones not yet written.
func (q *WriteBehind) List(ctx context.Context) ([]domain.ProjectInfo, error) {
	stored, err := q.next.List(ctx)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[string]int, len(stored))
	for i, p := range stored {
		seen[p.ID] = i
	}
	now := time.Now()
	var queued []domain.ProjectInfo
	for id, data := range q.pending {
		if i, ok := seen[id]; ok {
			stored[i].UpdatedAt = now
			stored[i].Size = int64(len(data))
			continue
		}
		queued = append(queued, domain.ProjectInfo{ID: id, UpdatedAt: now, Size: int64(len(data))})
	}
	sort.Slice(queued, func(i, j int) bool { return queued[i].ID < queued[j].ID })

	out := append(queued, stored...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Pending returns the number of projects waiting to be written.
func (q *WriteBehind) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush writes every queued snapshot now. Failed writes stay queued unless
// a newer snapshot arrived meanwhile.
func (q *WriteBehind) Flush(ctx context.Context) error {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	q.mu.Lock()
	batch := q.pending
	q.pending = make(map[string][]byte)
	for id, data := range batch {
		q.inflight[id] = data
	}
	q.mu.Unlock()

	ids := make([]string, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for i, id := range ids {
		if err := q.limiter.Wait(ctx); err != nil {
			for _, rest := range ids[i:] {
				q.requeue(rest, batch[rest])
			}
			errs = append(errs, err)
			break
		}
		if err := q.next.Put(ctx, id, batch[id]); err != nil {
			q.requeue(id, batch[id])
			errs = append(errs, fmt.Errorf("write %s: %w", id, err))
			continue
		}
		q.mu.Lock()
		delete(q.inflight, id)
		q.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (q *WriteBehind) requeue(id string, data []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, id)
	if _, newer := q.pending[id]; !newer {
		q.pending[id] = data
	}
}

// Close stops the background flusher and writes everything still queued.
// Later Puts fail with domain.ErrStoreClosed.
func (q *WriteBehind) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	close(q.stop)
	q.wg.Wait()
	return q.Flush(ctx)
}
