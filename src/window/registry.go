// Package window deduplicates auxiliary surfaces per logical subject.
//
// Every auxiliary surface (editor, pin, selection overlay, settings, recording
// control) is opened through a Registry. The label of a surface is derived
// from its role and subject, so a second request for the same pair focuses
// the live surface instead of creating another one.
package window

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Role is the kind of auxiliary surface.
type Role string

const (
	RoleEditor           Role = "editor"
	RolePin              Role = "pin"
	RoleSelection        Role = "selection"
	RoleSettings         Role = "settings"
	RoleRecordingControl Role = "recording-control"
	RoleHistory          Role = "history"
	RoleCaptureMenu      Role = "capture-menu"
)

// Config describes a surface to create.
type Config struct {
	Title       string
	URL         string
	X, Y        int
	Width       int
	Height      int
	Borderless  bool
	AlwaysOnTop bool
	Resizable   bool
	Fullscreen  bool
	// OnClosed runs when the user closes the surface, not on Registry.Close.
	OnClosed func()
}

// Handle identifies a registered surface.
type Handle struct {
	Label     string
	Role      Role
	SubjectID string
}

// Surface is a live window owned by the window system.
type Surface interface {
	Focus() error
	Close() error
}

// Factory creates surfaces. onClosed must be invoked when the user closes the
// surface so the registry can forget it.
type Factory interface {
	Create(label string, cfg Config, onClosed func()) (Surface, error)
}

// ErrNoFactory is returned by Open when the registry has no factory.
var ErrNoFactory = errors.New("window: no surface factory")

type slot struct {
	handle  Handle
	surface Surface
	gen     uint64
	// pending is true while the factory is creating the surface.
	pending  bool
	focus    bool
	onClosed func()
}

// Registry maps labels to at most one live surface.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	slots   map[string]*slot
	gen     uint64
}

// NewRegistry creates an empty registry backed by factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, slots: make(map[string]*slot)}
}

// Label derives the deterministic label for (role, subjectID). Characters
// outside [A-Za-z0-9_-] are replaced so labels are valid window identifiers.
func Label(role Role, subjectID string) string {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return string(role)
	}
	var b strings.Builder
	b.WriteString(string(role))
	b.WriteByte('-')
	for _, r := range subjectID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Open focuses the live surface for (role, subjectID) or creates one with cfg.
func (r *Registry) Open(role Role, subjectID string, cfg Config) (Handle, error) {
	label := Label(role, subjectID)
	h := Handle{Label: label, Role: role, SubjectID: subjectID}

	r.mu.Lock()
	if s, ok := r.slots[label]; ok {
		if s.pending {
			s.focus = true
			r.mu.Unlock()
			return s.handle, nil
		}
		surface := s.surface
		r.mu.Unlock()
		err := surface.Focus()
		if err == nil {
			log.Printf("window: focus %s", label)
			return s.handle, nil
		}
		log.Printf("window: focus %s failed, recreating: %v", label, err)
		r.mu.Lock()
		cur, ok := r.slots[label]
		if ok && cur != s {
			// Another caller already replaced the stale surface.
			r.mu.Unlock()
			return cur.handle, nil
		}
		delete(r.slots, label)
	}
	if r.factory == nil {
		r.mu.Unlock()
		return Handle{}, ErrNoFactory
	}
	r.gen++
	s := &slot{handle: h, gen: r.gen, pending: true, onClosed: cfg.OnClosed}
	r.slots[label] = s
	r.mu.Unlock()

	log.Printf("window: create %s", label)
	surface, err := r.factory.Create(label, cfg, func() { r.closed(label, s.gen) })

	r.mu.Lock()
	if err != nil {
		if cur, ok := r.slots[label]; ok && cur == s {
			delete(r.slots, label)
		}
		r.mu.Unlock()
		return Handle{}, fmt.Errorf("create %s: %w", label, err)
	}
	if cur, ok := r.slots[label]; !ok || cur != s {
		// Closed while being created.
		r.mu.Unlock()
		_ = surface.Close()
		return h, nil
	}
	s.surface = surface
	s.pending = false
	focus := s.focus
	s.focus = false
	r.mu.Unlock()

	if focus {
		_ = surface.Focus()
	}
	return h, nil
}

// Close closes the surface with label. Unknown labels are a no-op.
func (r *Registry) Close(label string) error {
	r.mu.Lock()
	s, ok := r.slots[label]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.slots, label)
	surface := s.surface
	r.mu.Unlock()

	if surface == nil {
		return nil
	}
	log.Printf("window: close %s", label)
	return surface.Close()
}

// Lookup returns the handle registered under label.
func (r *Registry) Lookup(label string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[label]
	if !ok {
		return Handle{}, false
	}
	return s.handle, true
}

// Handles returns all registered handles.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Handle, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, s.handle)
	}
	return out
}

// CloseAll closes every registered surface.
func (r *Registry) CloseAll() {
	for _, h := range r.Handles() {
		_ = r.Close(h.Label)
	}
}

// closed forgets label when the user closed the surface of generation gen.
func (r *Registry) closed(label string, gen uint64) {
	r.mu.Lock()
	s, ok := r.slots[label]
	if !ok || s.gen != gen {
		r.mu.Unlock()
		return
	}
	delete(r.slots, label)
	r.mu.Unlock()
	log.Printf("window: %s closed by user", label)
	if s.onClosed != nil {
		s.onClosed()
	}
}
