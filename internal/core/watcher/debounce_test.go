package watcher

import (
	"sync"
	"testing"
	"time"
)

type fireRecorder struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
}

func (r *fireRecorder) fire(ev Event) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *fireRecorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestScheduler_CollapsesBurst(t *testing.T) {
	rec := &fireRecorder{}
	sched := NewScheduler(30*time.Millisecond, rec.fire)
	defer sched.Close()

	for i := 0; i < 10; i++ {
		sched.Schedule(Event{Path: "/srv/a.js", Type: ChangeChanged})
	}
	sched.Schedule(Event{Path: "/srv/a.js", Type: ChangeDeleted})

	waitFor(t, time.Second, func() bool { return len(rec.snapshot()) == 1 })

	events := rec.snapshot()
	if events[0].Type != ChangeDeleted {
		t.Fatalf("expected the last event's kind to win, got %s", events[0].Type)
	}

	// No further fires after the burst collapsed.
	time.Sleep(80 * time.Millisecond)
	if got := len(rec.snapshot()); got != 1 {
		t.Fatalf("expected exactly one fire, got %d", got)
	}
}

func TestScheduler_IndependentPaths(t *testing.T) {
	rec := &fireRecorder{}
	sched := NewScheduler(20*time.Millisecond, rec.fire)
	defer sched.Close()

	sched.Schedule(Event{Path: "/srv/a.js", Type: ChangeChanged})
	sched.Schedule(Event{Path: "/srv/b.js", Type: ChangeAdded})

	waitFor(t, time.Second, func() bool { return len(rec.snapshot()) == 2 })

	seen := map[string]ChangeType{}
	for _, ev := range rec.snapshot() {
		seen[ev.Path] = ev.Type
	}
	if seen["/srv/a.js"] != ChangeChanged || seen["/srv/b.js"] != ChangeAdded {
		t.Fatalf("unexpected events %#v", seen)
	}
}

func TestScheduler_EventDuringRunIsParked(t *testing.T) {
	rec := &fireRecorder{block: make(chan struct{})}
	sched := NewScheduler(10*time.Millisecond, rec.fire)
	defer sched.Close()

	sched.Schedule(Event{Path: "/srv/a.js", Type: ChangeAdded})

	// Wait until the job is in flight, then schedule while it runs.
	waitFor(t, time.Second, func() bool {
		sched.mu.Lock()
		defer sched.mu.Unlock()
		st, ok := sched.paths["/srv/a.js"]
		return ok && st.running
	})
	sched.Schedule(Event{Path: "/srv/a.js", Type: ChangeChanged})
	sched.Schedule(Event{Path: "/srv/a.js", Type: ChangeDeleted})
	close(rec.block)

	waitFor(t, time.Second, func() bool { return len(rec.snapshot()) == 2 })

	events := rec.snapshot()
	if events[0].Type != ChangeAdded {
		t.Fatalf("first fire should carry the original event, got %s", events[0].Type)
	}
	if events[1].Type != ChangeDeleted {
		t.Fatalf("rearmed fire should carry the latest parked event, got %s", events[1].Type)
	}
}

func TestScheduler_Cancel(t *testing.T) {
	rec := &fireRecorder{}
	sched := NewScheduler(40*time.Millisecond, rec.fire)
	defer sched.Close()

	sched.Schedule(Event{Path: "/srv/a.js", Type: ChangeChanged})
	sched.Cancel("/srv/a.js")

	time.Sleep(100 * time.Millisecond)
	if got := len(rec.snapshot()); got != 0 {
		t.Fatalf("expected no fires after cancel, got %d", got)
	}
	if sched.Pending() != 0 {
		t.Fatalf("expected no pending jobs, got %d", sched.Pending())
	}
}

func TestScheduler_CancelUnder(t *testing.T) {
	rec := &fireRecorder{}
	sched := NewScheduler(40*time.Millisecond, rec.fire)
	defer sched.Close()

	sched.Schedule(Event{Path: "/srv/app/a.js", Type: ChangeChanged})
	sched.Schedule(Event{Path: "/srv/app/sub/b.js", Type: ChangeChanged})
	sched.Schedule(Event{Path: "/srv/other/c.js", Type: ChangeChanged})

	sched.CancelUnder("/srv/app")

	waitFor(t, time.Second, func() bool { return len(rec.snapshot()) == 1 })
	time.Sleep(60 * time.Millisecond)

	events := rec.snapshot()
	if len(events) != 1 || events[0].Path != "/srv/other/c.js" {
		t.Fatalf("expected only the unrelated path to fire, got %#v", events)
	}
}

func TestScheduler_CloseIsIdempotent(t *testing.T) {
	rec := &fireRecorder{}
	sched := NewScheduler(30*time.Millisecond, rec.fire)

	sched.Schedule(Event{Path: "/srv/a.js", Type: ChangeChanged})
	sched.Close()
	sched.Close()

	sched.Schedule(Event{Path: "/srv/b.js", Type: ChangeChanged})
	time.Sleep(80 * time.Millisecond)

	if got := len(rec.snapshot()); got != 0 {
		t.Fatalf("expected no fires after close, got %d", got)
	}
	if sched.Pending() != 0 {
		t.Fatalf("expected pending cleared on close, got %d", sched.Pending())
	}
}
