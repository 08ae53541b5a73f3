// Package selector turns raw pointer input into a confirmed capture region.
//
// A Selector lives for one interactive selection. Pointer and key events may
// arrive from any goroutine; confirmation is single-shot, so duplicate
// pointer-up or Enter events after a confirm are no-ops.
package selector

import (
	"errors"
	"log"
	"sync"

	"screen-capture/src/screenshot"
)

// MinSelectionSpan is the usability threshold: a selection must be strictly
// wider and taller than this many pixels to be confirmed.
const MinSelectionSpan = 5

// ErrCancelled is returned by interactive selections the user cancelled.
var ErrCancelled = errors.New("selection cancelled")

// Phase is the selection state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDragging
	PhaseSettled
	PhaseConfirmed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDragging:
		return "dragging"
	case PhaseSettled:
		return "settled"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Button identifies a pointer button.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)

// Options configures a Selector. Callbacks run outside the selector lock on
// the goroutine that delivered the triggering event.
type Options struct {
	MinSpan   int
	OnConfirm func(region screenshot.Region)
	OnCancel  func()
}

// Selector is the RegionSelector state machine.
type Selector struct {
	mu        sync.Mutex
	minSpan   int
	onConfirm func(screenshot.Region)
	onCancel  func()

	phase     Phase
	anchor    screenshot.Point
	rect      screenshot.Region
	hasRect   bool
	confirmed bool
}

// New creates an idle selector.
func New(opts Options) *Selector {
	span := opts.MinSpan
	if span <= 0 {
		span = MinSelectionSpan
	}
	return &Selector{
		minSpan:   span,
		onConfirm: opts.OnConfirm,
		onCancel:  opts.OnCancel,
	}
}

// PointerDown starts a drag when the primary button is pressed while idle.
func (s *Selector) PointerDown(p screenshot.Point, b Button) bool {
	if b != ButtonPrimary {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseIdle {
		return false
	}
	s.phase = PhaseDragging
	s.anchor = p
	s.hasRect = false
	return true
}

// PointerMove recomputes the normalized rectangle while dragging.
func (s *Selector) PointerMove(p screenshot.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseDragging && s.phase != PhaseSettled {
		return false
	}
	s.rect = screenshot.RegionFromPoints(s.anchor, p)
	s.hasRect = true
	s.phase = PhaseSettled
	return true
}

// PointerUp ends the drag. It returns true only when this call confirmed the
// selection; selections at or below the threshold are discarded.
func (s *Selector) PointerUp(p screenshot.Point) bool {
	s.mu.Lock()
	if s.phase != PhaseDragging && s.phase != PhaseSettled {
		s.mu.Unlock()
		return false
	}
	rect := screenshot.RegionFromPoints(s.anchor, p)
	if !rect.Exceeds(s.minSpan) {
		log.Printf("selector: discarding %s (threshold %dpx)", rect, s.minSpan)
		s.resetLocked()
		s.mu.Unlock()
		return false
	}
	return s.confirmAndUnlock(rect)
}

// Confirm finalizes a settled selection above the threshold (Enter key).
func (s *Selector) Confirm() bool {
	s.mu.Lock()
	if s.phase != PhaseSettled || !s.rect.Exceeds(s.minSpan) {
		s.mu.Unlock()
		return false
	}
	return s.confirmAndUnlock(s.rect)
}

// Cancel abandons the selection (Escape key). It is ignored once confirmed.
func (s *Selector) Cancel() bool {
	s.mu.Lock()
	if s.phase == PhaseConfirmed {
		s.mu.Unlock()
		return false
	}
	s.resetLocked()
	cb := s.onCancel
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
	return true
}

// Phase returns the current phase.
func (s *Selector) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Current returns the rectangle to render, or false when there is none.
func (s *Selector) Current() (screenshot.Region, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasRect {
		return screenshot.Region{}, false
	}
	return s.rect, true
}

// Handles returns the eight resize affordances of the current rectangle:
// corners and edge midpoints, clockwise from the top-left corner.
func (s *Selector) Handles() []screenshot.Point {
	r, ok := s.Current()
	if !ok {
		return nil
	}
	return HandlePoints(r)
}

// HandlePoints computes the eight handle positions for r.
func HandlePoints(r screenshot.Region) []screenshot.Point {
	fractions := [8][2]int{{0, 0}, {1, 0}, {2, 0}, {2, 1}, {2, 2}, {1, 2}, {0, 2}, {0, 1}}
	out := make([]screenshot.Point, 0, len(fractions))
	for _, f := range fractions {
		out = append(out, screenshot.Point{
			X: r.X + r.Width*f[0]/2,
			Y: r.Y + r.Height*f[1]/2,
		})
	}
	return out
}

func (s *Selector) confirmAndUnlock(rect screenshot.Region) bool {
	if s.confirmed {
		s.mu.Unlock()
		return false
	}
	s.confirmed = true
	s.phase = PhaseConfirmed
	s.rect = rect
	s.hasRect = true
	cb := s.onConfirm
	s.mu.Unlock()
	log.Printf("selector: confirmed %s", rect)
	if cb != nil {
		cb(rect)
	}
	return true
}

func (s *Selector) resetLocked() {
	s.phase = PhaseIdle
	s.hasRect = false
	s.rect = screenshot.Region{}
}
