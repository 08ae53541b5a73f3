// Package notification keeps a bounded, auto-expiring queue of ephemeral
// status messages and reports their lifecycle to a renderer.
package notification

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"screen-capture/src/clock"
)

const (
	// DefaultCapacity is the maximum number of live entries.
	DefaultCapacity = 3
	// DefaultHold is how long an entry stays before it removes itself.
	DefaultHold = 1800 * time.Millisecond
	// DefaultExitLead is how long before removal the exit transition starts.
	DefaultExitLead = 300 * time.Millisecond
)

// Phase is an observable instant in an entry's life.
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseExiting
	PhaseRemoved
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseExiting:
		return "exiting"
	case PhaseRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Notification is an immutable queue entry identified by ID.
type Notification struct {
	ID        string
	Kind      Kind
	CreatedAt time.Time
}

// Observer receives lifecycle instants in order: Created, at most one
// Exiting, then Removed. It is called outside the queue lock and must not
// call back into the queue.
type Observer func(n Notification, phase Phase)

// Options configures a Queue. Zero values take the defaults.
type Options struct {
	Capacity int
	Hold     time.Duration
	ExitLead time.Duration
	Clock    clock.Clock
	Observer Observer
}

type entry struct {
	n         Notification
	exitTimer clock.Timer
	dropTimer clock.Timer
}

func (e *entry) stopTimers() {
	if e.exitTimer != nil {
		e.exitTimer.Stop()
	}
	if e.dropTimer != nil {
		e.dropTimer.Stop()
	}
}

type event struct {
	n     Notification
	phase Phase
}

// Queue holds at most Capacity live notifications in insertion order. Each
// entry owns its timers; every removal path stops them.
type Queue struct {
	// emitMu is taken before mu and held until the observer has seen the
	// events of one change.
	emitMu   sync.Mutex
	mu       sync.Mutex
	entries  []*entry
	capacity int
	hold     time.Duration
	exitAt   time.Duration
	clock    clock.Clock
	observer Observer
}

// New creates an empty queue.
func New(opts Options) *Queue {
	q := &Queue{
		capacity: opts.Capacity,
		hold:     opts.Hold,
		clock:    opts.Clock,
		observer: opts.Observer,
	}
	if q.capacity <= 0 {
		q.capacity = DefaultCapacity
	}
	if q.hold <= 0 {
		q.hold = DefaultHold
	}
	if q.clock == nil {
		q.clock = clock.Real()
	}
	lead := opts.ExitLead
	if lead <= 0 {
		lead = DefaultExitLead
	}
	q.exitAt = q.hold - lead
	if q.exitAt < 0 {
		q.exitAt = 0
	}
	return q
}

// Push appends a notification of kind and returns its id. When the queue is
// full the oldest entry is evicted.
func (q *Queue) Push(kind Kind) string {
	n := Notification{ID: uuid.NewString(), Kind: kind, CreatedAt: q.clock.Now()}
	e := &entry{n: n}

	q.emitMu.Lock()
	defer q.emitMu.Unlock()
	q.mu.Lock()
	var events []event
	for len(q.entries) >= q.capacity {
		oldest := q.entries[0]
		q.entries = q.entries[1:]
		oldest.stopTimers()
		events = append(events, event{oldest.n, PhaseRemoved})
	}
	q.entries = append(q.entries, e)
	events = append(events, event{n, PhaseCreated})
	e.exitTimer = q.clock.AfterFunc(q.exitAt, func() { q.beginExit(n.ID) })
	e.dropTimer = q.clock.AfterFunc(q.hold, func() { q.Remove(n.ID) })
	q.mu.Unlock()

	log.Printf("notification: push %s id=%s", kind, n.ID)
	q.emit(events)
	return n.ID
}

// Remove drops the entry with id. Removing an unknown or already evicted id is a no-op.
func (q *Queue) Remove(id string) bool {
	q.emitMu.Lock()
	defer q.emitMu.Unlock()
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return false
	}
	e := q.entries[idx]
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	e.stopTimers()
	q.mu.Unlock()

	q.emit([]event{{e.n, PhaseRemoved}})
	return true
}

// RemoveAll clears the queue and cancels every pending timer.
func (q *Queue) RemoveAll() {
	q.emitMu.Lock()
	defer q.emitMu.Unlock()
	q.mu.Lock()
	entries := q.entries
	q.entries = nil
	events := make([]event, 0, len(entries))
	for _, e := range entries {
		e.stopTimers()
		events = append(events, event{e.n, PhaseRemoved})
	}
	q.mu.Unlock()

	q.emit(events)
}

// Visible returns the live entries in display order.
func (q *Queue) Visible() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.n
	}
	return out
}

// Len returns the number of live entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// beginExit emits Exiting only if id is still live once emission is ours.
func (q *Queue) beginExit(id string) {
	q.emitMu.Lock()
	defer q.emitMu.Unlock()
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return
	}
	n := q.entries[idx].n
	q.mu.Unlock()
	q.emit([]event{{n, PhaseExiting}})
}

func (q *Queue) indexLocked(id string) int {
	for i, e := range q.entries {
		if e.n.ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) emit(events []event) {
	if q.observer == nil {
		return
	}
	for _, ev := range events {
		q.observer(ev.n, ev.phase)
	}
}
