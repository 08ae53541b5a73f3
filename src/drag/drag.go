// Package drag tracks a pointer drag that repositions a floating surface.
package drag

import "screen-capture/src/screenshot"

// Tracker converts pointer positions into absolute surface positions. The
// offset between pointer and surface origin is captured once at Start so the
// surface does not jump under the pointer.
type Tracker struct {
	offset screenshot.Point
	active bool
}

// Start begins a drag at pointer for a surface currently positioned at origin.
func (t *Tracker) Start(pointer, origin screenshot.Point) {
	t.offset = screenshot.Point{X: pointer.X - origin.X, Y: pointer.Y - origin.Y}
	t.active = true
}

// Move returns the new surface origin for pointer. ok is false when no drag is active.
func (t *Tracker) Move(pointer screenshot.Point) (origin screenshot.Point, ok bool) {
	if !t.active {
		return screenshot.Point{}, false
	}
	return screenshot.Point{X: pointer.X - t.offset.X, Y: pointer.Y - t.offset.Y}, true
}

// End finishes the drag.
func (t *Tracker) End() { t.active = false }

// Active reports whether a drag is in progress.
func (t *Tracker) Active() bool { return t.active }
