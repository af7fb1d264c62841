package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/nexus-canvas/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
)

// manualScheduler runs debounced work only when the test advances its clock.
type manualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks map[string]*manualTask
	idle  []func()
}

type manualTask struct {
	due time.Duration
	seq int
	fn  func()
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{tasks: make(map[string]*manualTask)}
}

func (s *manualScheduler) Debounce(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.tasks[key] = &manualTask{due: s.now + delay, seq: s.seq, fn: fn}
}

func (s *manualScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, key)
}

func (s *manualScheduler) Idle(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle = append(s.idle, fn)
}

func (s *manualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]*manualTask)
	s.idle = nil
}

// Advance moves the clock forward, running due callbacks in due order.
// Callbacks scheduled by callbacks run too if they fall inside the window.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var (
			key  string
			next *manualTask
		)
		for k, t := range s.tasks {
			if t.due > target {
				continue
			}
			if next == nil || t.due < next.due || (t.due == next.due && t.seq < next.seq) {
				key, next = k, t
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		delete(s.tasks, key)
		if next.due > s.now {
			s.now = next.due
		}
		s.mu.Unlock()
		next.fn()
	}
}

// Settle runs everything that is scheduled, however far out.
func (s *manualScheduler) Settle() {
	s.Advance(time.Hour)
}

// RunIdle runs queued idle callbacks until none are left.
func (s *manualScheduler) RunIdle() int {
	n := 0
	for {
		s.mu.Lock()
		if len(s.idle) == 0 {
			s.mu.Unlock()
			return n
		}
		fn := s.idle[0]
		s.idle = s.idle[1:]
		s.mu.Unlock()
		fn()
		n++
	}
}

// Pending reports whether a callback whose key ends in suffix is queued.
func (s *manualScheduler) Pending(suffix string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.tasks {
		if strings.HasSuffix(k, "/"+suffix) {
			return true
		}
	}
	return false
}

// countingStore wraps the memory store, counting writes and failing on demand.
type countingStore struct {
	*memory.ProjectStore

	mu       sync.Mutex
	puts     int
	failNext int
}

var errDiskFull = errors.New("disk full")

func newCountingStore() *countingStore {
	return &countingStore{ProjectStore: memory.NewProjectStore()}
}

func (s *countingStore) Put(ctx context.Context, id string, data []byte) error {
	s.mu.Lock()
	s.puts++
	if s.failNext > 0 {
		s.failNext--
		s.mu.Unlock()
		return errDiskFull
	}
	s.mu.Unlock()
	return s.ProjectStore.Put(ctx, id, data)
}

func (s *countingStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func (s *countingStore) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// reverseCodec is a reversible stand-in for a real compressor.
type reverseCodec struct{}

func (reverseCodec) Name() string { return "reverse" }

func (reverseCodec) Compress(src []byte) ([]byte, error) {
	out := bytes.Clone(src)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (c reverseCodec) Decompress(src []byte) ([]byte, error) {
	return c.Compress(src)
}

// eventRecorder collects canvas events.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) OnCanvasEvent(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) Count(kind domain.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	canvas    *Canvas
	scheduler *manualScheduler
	store     *countingStore
	events    *eventRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, domain.DefaultCanvasSettings(), nil)
}

func newFixtureWith(t *testing.T, settings domain.CanvasSettings, codec driven.CompactionCodec) *fixture {
	t.Helper()
	f := &fixture{
		scheduler: newManualScheduler(),
		store:     newCountingStore(),
		events:    &eventRecorder{},
	}
	f.canvas = NewCanvas(settings, f.store, f.scheduler, codec, f.events)
	return f
}

// loaded returns a fixture with project "p1" loaded and autosave settled.
func loaded(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	require.NoError(t, f.canvas.LoadProject(context.Background(), "p1"))
	f.scheduler.Settle()
	f.events.Reset()
	return f
}

// requireInvariants checks the document invariants that must hold after
// every public call.
func requireInvariants(t *testing.T, c *Canvas) {
	t.Helper()
	nodes := c.Nodes()
	edges := c.Edges()
	zmax := c.Settings().ZMax

	ids := make(map[string]struct{})
	for _, n := range nodes {
		_, dup := ids[n.ID]
		require.False(t, dup, "duplicate node id %s", n.ID)
		ids[n.ID] = struct{}{}
		require.GreaterOrEqual(t, n.ZIndex, 0, "node %s", n.ID)
		require.LessOrEqual(t, n.ZIndex, zmax, "node %s", n.ID)
	}
	edgeIDs := make(map[string]struct{})
	for _, e := range edges {
		_, dup := edgeIDs[e.ID]
		require.False(t, dup, "duplicate edge id %s", e.ID)
		edgeIDs[e.ID] = struct{}{}
		require.Contains(t, ids, e.Source, "edge %s source", e.ID)
		require.Contains(t, ids, e.Target, "edge %s target", e.ID)
	}
}
