// Package hotkey owns the global input hook: it matches shortcut bindings and
// fans raw pointer/keyboard events out to interactive overlays.
package hotkey

import (
	"context"
	"log"
	"sync"

	gohook "github.com/robotn/gohook"
)

// EventKind classifies an input event.
type EventKind int

const (
	EventKeyDown EventKind = iota
	EventKeyUp
	EventPointerDown
	EventPointerUp
	EventPointerMove
)

// Event is a platform-neutral input event in virtual-screen coordinates.
// Button is 0 for primary, 1 for secondary, 2 for middle.
type Event struct {
	Kind    EventKind
	Rawcode uint16
	Button  int
	X, Y    int
}

// Trigger is emitted when a binding is completed.
type Trigger struct {
	Action Action
	Combo  string
}

// Listener matches shortcuts and fans input out to subscribers.
type Listener struct {
	mu      sync.Mutex
	mode    Mode
	matcher *Matcher
	subs    map[int]chan Event
	nextSub int

	triggers chan Trigger
	done     chan struct{}
	once     sync.Once
}

// New creates a listener for mode. Call Start to attach the system hook.
func New(mode Mode) *Listener {
	if mode != ModeNative {
		mode = ModeSafe
	}
	return &Listener{
		mode:     mode,
		matcher:  NewMatcher(Bindings(mode)),
		subs:     make(map[int]chan Event),
		triggers: make(chan Trigger, 8),
		done:     make(chan struct{}),
	}
}

// Triggers delivers completed shortcuts.
func (l *Listener) Triggers() <-chan Trigger { return l.triggers }

// Mode returns the active shortcut mode.
func (l *Listener) Mode() Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

// SetMode swaps the binding table. An unknown mode leaves the current table
// in place and returns an error.
func (l *Listener) SetMode(mode Mode) error {
	m, err := ParseMode(string(mode))
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.mode = m
	l.matcher = NewMatcher(Bindings(m))
	l.mu.Unlock()
	log.Printf("hotkey: shortcut mode set to %s", m)
	return nil
}

// Subscribe returns a channel of raw input events and a function that ends
// the subscription. Events are dropped for a subscriber that falls behind.
func (l *Listener) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
		})
	}
}

// Start attaches the gohook event loop. It returns immediately; the hook is
// released when ctx is done or Stop is called.
func (l *Listener) Start(ctx context.Context) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in hotkey goroutine: %v", r)
			}
		}()

		log.Printf("Starting gohook event loop...")
		evChan := gohook.Start()
		if evChan == nil {
			log.Printf("ERROR: gohook.Start() returned nil channel")
			return
		}
		defer gohook.End()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.done:
				return
			case ev, ok := <-evChan:
				if !ok {
					log.Printf("Event channel closed")
					return
				}
				if e, ok := translate(ev); ok {
					l.dispatch(e)
				}
			}
		}
	}()
}

// Stop releases the system hook.
func (l *Listener) Stop() {
	l.once.Do(func() { close(l.done) })
}

func (l *Listener) dispatch(e Event) {
	l.mu.Lock()
	var (
		b       Binding
		matched bool
	)
	switch e.Kind {
	case EventKeyDown:
		b, matched = l.matcher.KeyDown(e.Rawcode)
	case EventKeyUp:
		l.matcher.KeyUp(e.Rawcode)
	}
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
	l.mu.Unlock()

	if !matched {
		return
	}
	log.Printf("hotkey: %s (%s)", b.Action, b.Combo)
	select {
	case l.triggers <- Trigger{Action: b.Action, Combo: b.Combo}:
	default:
		log.Printf("hotkey: trigger queue full, dropping %s", b.Action)
	}
}

// translate maps a gohook event. gohook names libuiohook's key-pressed event
// KeyHold (KeyDown is key-typed) and its mouse pressed/released events
// MouseHold/MouseDown. The matcher ignores the duplicate key press.
func translate(ev gohook.Event) (Event, bool) {
	e := Event{Rawcode: ev.Rawcode, X: int(ev.X), Y: int(ev.Y)}
	switch ev.Kind {
	case gohook.KeyDown, gohook.KeyHold:
		e.Kind = EventKeyDown
	case gohook.KeyUp:
		e.Kind = EventKeyUp
	case gohook.MouseHold:
		e.Kind = EventPointerDown
		e.Button = mouseButton(ev.Button)
	case gohook.MouseDown:
		e.Kind = EventPointerUp
		e.Button = mouseButton(ev.Button)
	case gohook.MouseMove, gohook.MouseDrag:
		e.Kind = EventPointerMove
	default:
		return Event{}, false
	}
	return e, true
}

func mouseButton(b uint16) int {
	switch b {
	case 2:
		return 1
	case 3:
		return 2
	default:
		return 0
	}
}
