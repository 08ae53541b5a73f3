package recording

import (
	"sync"

	"screen-capture/src/drag"
	"screen-capture/src/screenshot"
)

// ControlSurface is the position of the floating recording controls. Dragging
// it is independent of the session state.
type ControlSurface struct {
	mu      sync.Mutex
	pos     screenshot.Point
	tracker drag.Tracker
}

// NewControlSurface places the controls at pos.
func NewControlSurface(pos screenshot.Point) *ControlSurface {
	return &ControlSurface{pos: pos}
}

func (c *ControlSurface) DragStart(pointer screenshot.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracker.Start(pointer, c.pos)
}

// DragMove moves the controls and returns the new position.
func (c *ControlSurface) DragMove(pointer screenshot.Point) (screenshot.Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.tracker.Move(pointer)
	if ok {
		c.pos = p
	}
	return c.pos, ok
}

func (c *ControlSurface) DragEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracker.End()
}

func (c *ControlSurface) Position() screenshot.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}
