// Package scheduler provides the timer-backed driven.Scheduler used in
// production. Tests of the core use a manual clock instead.
package scheduler

import (
	"sync"
	"time"

	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
	"github.com/custodia-labs/nexus-canvas/internal/logger"
)

// Ensure TimerScheduler implements the interface.
var _ driven.Scheduler = (*TimerScheduler)(nil)

type task struct {
	gen   uint64
	timer *time.Timer
	fn    func()
}

type dueTask struct {
	key string
	gen uint64
}

// TimerScheduler runs callbacks one at a time on a single worker goroutine.
// Due debounced callbacks always run before idle ones.
type TimerScheduler struct {
	mu      sync.Mutex
	gen     uint64
	tasks   map[string]*task
	due     []dueTask
	idle    []func()
	running bool

	kick   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a scheduler and starts its worker.
func New() *TimerScheduler {
	s := &TimerScheduler{
		tasks:   make(map[string]*task),
		running: true,
		kick:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Debounce runs fn after delay, replacing any pending callback for key.
func (s *TimerScheduler) Debounce(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	if old, ok := s.tasks[key]; ok {
		old.timer.Stop()
	}
	s.gen++
	gen := s.gen
	t := &task{gen: gen, fn: fn}
	t.timer = time.AfterFunc(delay, func() { s.fire(key, gen) })
	s.tasks[key] = t
}

// Cancel drops the pending callback for key. A callback that is already
// running is not interrupted.
func (s *TimerScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[key]; ok {
		t.timer.Stop()
		delete(s.tasks, key)
	}
}

// Idle queues fn to run once no debounced callback is due.
func (s *TimerScheduler) Idle(fn func()) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.idle = append(s.idle, fn)
	s.mu.Unlock()
	s.wake()
}

// Stop cancels all pending work and waits for a running callback to return.
// Further calls are ignored.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for key, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, key)
	}
	s.due = nil
	s.idle = nil
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

// Pending returns the number of scheduled debounced callbacks.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *TimerScheduler) fire(key string, gen uint64) {
	s.mu.Lock()
	t, ok := s.tasks[key]
	if !ok || t.gen != gen || !s.running {
		s.mu.Unlock()
		return
	}
	s.due = append(s.due, dueTask{key: key, gen: gen})
	s.mu.Unlock()
	s.wake()
}

func (s *TimerScheduler) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *TimerScheduler) run() {
	defer s.wg.Done()
	for {
		if fn := s.next(); fn != nil {
			s.call(fn)
			continue
		}
		select {
		case <-s.stopCh:
			return
		case <-s.kick:
		}
	}
}

// next pops the next runnable callback, due work first.
// A due entry whose key was cancelled or re-debounced since it fired is
// skipped.
func (s *TimerScheduler) next() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	for len(s.due) > 0 {
		d := s.due[0]
		s.due = s.due[1:]
		t, ok := s.tasks[d.key]
		if !ok || t.gen != d.gen {
			continue
		}
		delete(s.tasks, d.key)
		return t.fn
	}
	if len(s.idle) > 0 {
		fn := s.idle[0]
		s.idle = s.idle[1:]
		return fn
	}
	return nil
}

func (s *TimerScheduler) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduler: callback panicked: %v", r)
		}
	}()
	fn()
}
