package watcher

import (
	"sync"
	"time"

	"vigil/internal/shared/observability"
)

// ChangeType is the kind of filesystem change a job carries. When a
// pending job is replaced, only the latest event's kind survives.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeChanged ChangeType = "changed"
	ChangeDeleted ChangeType = "deleted"
)

// Event is one debounced filesystem change.
type Event struct {
	Path string
	Type ChangeType
}

type pathState struct {
	timer    *time.Timer
	event    Event
	gen      uint64
	running  bool
	canceled bool
	queued   *Event
}

// Scheduler collapses bursts of events into one fire per path. The
// invariant it enforces is at-most-one pending or in-flight job per
// path: an event for a Pending path cancels and rearms its timer, an
// event during an in-flight run is parked and rearmed after the run.
// Fire-vs-rearm races are resolved by a per-job generation counter
// checked under the scheduler mutex.
type Scheduler struct {
	mu     sync.Mutex
	delay  time.Duration
	fire   func(Event)
	paths  map[string]*pathState
	closed bool
}

func NewScheduler(delay time.Duration, fire func(Event)) *Scheduler {
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &Scheduler{
		delay: delay,
		fire:  fire,
		paths: make(map[string]*pathState),
	}
}

// Schedule arms (or rearms) the pending job for the event's path.
func (s *Scheduler) Schedule(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	st, ok := s.paths[ev.Path]
	if !ok {
		st = &pathState{event: ev}
		s.paths[ev.Path] = st
		s.arm(ev.Path, st)
		observability.DebounceArmedTotal.Inc()
		observability.PendingJobs.Set(float64(len(s.paths)))
		return
	}

	if st.running {
		// Park the latest event; the finished run rearms it.
		queued := ev
		st.queued = &queued
		return
	}

	st.event = ev
	st.timer.Stop()
	s.arm(ev.Path, st)
	observability.DebounceRearmedTotal.Inc()
}

// arm must be called with the mutex held.
func (s *Scheduler) arm(path string, st *pathState) {
	st.gen++
	gen := st.gen
	st.timer = time.AfterFunc(s.delay, func() {
		s.fireJob(path, gen)
	})
}

func (s *Scheduler) fireJob(path string, gen uint64) {
	s.mu.Lock()
	st, ok := s.paths[path]
	if !ok || st.gen != gen || st.running || st.canceled {
		// A rearm or cancel won the race; this timer is stale.
		s.mu.Unlock()
		return
	}
	st.running = true
	ev := st.event
	s.mu.Unlock()

	observability.DebounceFiredTotal.Inc()
	s.fire(ev)

	s.mu.Lock()
	defer s.mu.Unlock()
	st.running = false
	if st.canceled || s.closed || st.queued == nil {
		delete(s.paths, path)
	} else {
		st.event = *st.queued
		st.queued = nil
		s.arm(path, st)
		observability.DebounceArmedTotal.Inc()
	}
	observability.PendingJobs.Set(float64(len(s.paths)))
}

// Cancel drops the pending job for one path, if any. An in-flight run
// finishes but will not rearm.
func (s *Scheduler) Cancel(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.paths[path]
	if !ok {
		return
	}
	st.timer.Stop()
	st.queued = nil
	if st.running {
		st.canceled = true
		return
	}
	delete(s.paths, path)
	observability.PendingJobs.Set(float64(len(s.paths)))
}

// CancelUnder drops every pending job for paths under the given root.
func (s *Scheduler) CancelUnder(root string) {
	s.mu.Lock()
	paths := make([]string, 0, len(s.paths))
	for path := range s.paths {
		if path == root || hasPathPrefix(path, root) {
			paths = append(paths, path)
		}
	}
	s.mu.Unlock()
	for _, path := range paths {
		s.Cancel(path)
	}
}

// Close cancels every timer and rejects further scheduling. Idempotent.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for path, st := range s.paths {
		st.timer.Stop()
		st.queued = nil
		if st.running {
			st.canceled = true
			continue
		}
		delete(s.paths, path)
	}
	observability.PendingJobs.Set(float64(len(s.paths)))
}

// Pending returns the number of armed or in-flight jobs. Test hook.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}
