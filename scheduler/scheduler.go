// Package scheduler runs deferred tasks keyed by an id, such as the automatic
// close of a timed flight. Scheduling a key again replaces its pending task.
package scheduler

import (
	"sync"
	"time"
)

type task struct {
	timer *time.Timer
	gen   uint64
	due   time.Time
}

// Scheduler holds at most one pending task per key.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*task
	gen     uint64
	stopped bool
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{tasks: make(map[string]*task)}
}

// Schedule arms fn to run after delay under key. A task already pending for
// key is cancelled first, in the same critical section, so at most one of
// them can ever run. fn runs on its own goroutine and must itself tolerate
// the work having been done by another path.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.cancelLocked(key)
	s.gen++
	gen := s.gen
	t := &task{gen: gen, due: time.Now().Add(delay)}
	t.timer = time.AfterFunc(delay, func() {
		if !s.claim(key, gen) {
			return
		}
		fn()
	})
	s.tasks[key] = t
}

// claim removes the task for key if it is still generation gen. A task that
// was cancelled or replaced after its timer fired loses the claim.
func (s *Scheduler) claim(key string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok || t.gen != gen {
		return false
	}
	delete(s.tasks, key)
	return true
}

// Cancel drops the pending task for key and reports whether there was one.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(key)
}

func (s *Scheduler) cancelLocked(key string) bool {
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, key)
	return true
}

// Due returns when the pending task for key will run.
func (s *Scheduler) Due(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok {
		return time.Time{}, false
	}
	return t.due, true
}

// Len returns the number of pending tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every pending task and refuses new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.tasks {
		s.cancelLocked(key)
	}
	s.stopped = true
}
