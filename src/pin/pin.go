// Package pin controls a floating pinned screenshot: zoom, aspect-locked
// corner resize, discrete opacity, drag lock and keyboard shortcuts.
package pin

import (
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"strings"
	"sync"

	"screen-capture/src/drag"
	"screen-capture/src/notification"
	"screen-capture/src/screenshot"
)

const (
	// MinSize is the smallest width a pin can be resized to.
	MinSize = 50
	// MaxScale bounds zoom and resize relative to the initial size.
	MaxScale = 3.0
	// ZoomStep is the scale change per zoom step.
	ZoomStep = 0.1
)

// OpacityLevels are the selectable opacities, most opaque first.
var OpacityLevels = []float64{1.0, 0.8, 0.6, 0.4, 0.2}

// ErrInvalidOpacity rejects opacities outside OpacityLevels.
var ErrInvalidOpacity = errors.New("pin: opacity must be one of 100, 80, 60, 40 or 20 percent")

// Corner is a resize handle.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

// Copier puts the pinned image on the clipboard.
type Copier interface {
	WriteImage(img image.Image) error
}

// Notifier shows a transient notification.
type Notifier interface {
	Push(kind notification.Kind) string
}

// Options wires a Controller.
type Options struct {
	Copier   Copier
	Notifier Notifier
	// OnClose is called once when the pin should close.
	OnClose func()
	// OnChange is called after every change of the viewport.
	OnChange func(Viewport)
}

// Viewport is the rendered state of a pin.
type Viewport struct {
	X, Y     int
	Width    float64
	Height   float64
	Scale    float64
	Opacity  float64
	Locked   bool
	MenuOpen bool
}

type resizeState struct {
	corner  Corner
	pointer screenshot.Point
	w, h    float64
	x, y    int
}

// Controller is safe for concurrent use.
type Controller struct {
	opts  Options
	image image.Image

	mu       sync.Mutex
	initialW float64
	initialH float64
	aspect   float64
	scale    float64
	x, y     int
	width    float64
	height   float64
	opacity  float64
	locked   bool
	menuOpen bool
	closed   bool
	resize   *resizeState
	move     drag.Tracker
}

// New pins img with its top-left corner at origin.
func New(img image.Image, origin screenshot.Point, opts Options) (*Controller, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("pin: empty image")
	}
	w, h := float64(b.Dx()), float64(b.Dy())
	return &Controller{
		opts:     opts,
		image:    img,
		initialW: w,
		initialH: h,
		aspect:   w / h,
		scale:    1,
		x:        origin.X,
		y:        origin.Y,
		width:    w,
		height:   h,
		opacity:  1,
	}, nil
}

func (c *Controller) viewportLocked() Viewport {
	return Viewport{
		X: c.x, Y: c.y,
		Width: c.width, Height: c.height,
		Scale:   c.scale,
		Opacity: c.opacity,
		Locked:  c.locked, MenuOpen: c.menuOpen,
	}
}

// Viewport returns the current state.
func (c *Controller) Viewport() Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewportLocked()
}

// changed releases the lock and reports the new viewport.
func (c *Controller) changed() {
	v := c.viewportLocked()
	c.mu.Unlock()
	if c.opts.OnChange != nil {
		c.opts.OnChange(v)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Zoom changes the scale by steps*ZoomStep, clamped to
// [MinSize/initialWidth, MaxScale].
func (c *Controller) Zoom(steps int) {
	c.mu.Lock()
	s := c.scale + float64(steps)*ZoomStep
	s = math.Round(s*1e6) / 1e6
	c.scale = clamp(s, MinSize/c.initialW, MaxScale)
	c.width = c.initialW * c.scale
	c.height = c.initialH * c.scale
	c.changed()
}

func (c *Controller) ZoomIn()  { c.Zoom(1) }
func (c *Controller) ZoomOut() { c.Zoom(-1) }

// BeginResize starts an aspect-locked resize from corner.
func (c *Controller) BeginResize(corner Corner, pointer screenshot.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resize = &resizeState{corner: corner, pointer: pointer, w: c.width, h: c.height, x: c.x, y: c.y}
}

// ResizeTo applies the resize for the current pointer. The growth is taken
// from whichever axis grows the rectangle more from the dragged corner; the
// opposite corner stays anchored.
func (c *Controller) ResizeTo(pointer screenshot.Point) bool {
	c.mu.Lock()
	r := c.resize
	if r == nil {
		c.mu.Unlock()
		return false
	}
	dx := float64(pointer.X - r.pointer.X)
	dy := float64(pointer.Y - r.pointer.Y)
	var delta float64
	switch r.corner {
	case BottomRight:
		delta = math.Max(dx, dy)
	case BottomLeft:
		delta = math.Max(-dx, dy)
	case TopRight:
		delta = math.Max(dx, -dy)
	case TopLeft:
		delta = math.Max(-dx, -dy)
	}
	w := clamp(r.w+delta, MinSize, c.initialW*MaxScale)
	h := w / c.aspect
	c.width, c.height = w, h
	c.scale = w / c.initialW

	c.x, c.y = r.x, r.y
	if r.corner == TopLeft || r.corner == BottomLeft {
		c.x = r.x + int(math.Round(r.w-w))
	}
	if r.corner == TopLeft || r.corner == TopRight {
		c.y = r.y + int(math.Round(r.h-h))
	}
	c.changed()
	return true
}

func (c *Controller) EndResize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resize = nil
}

// BeginMove starts dragging the pin by its background. It is refused while
// the pin is locked.
func (c *Controller) BeginMove(pointer screenshot.Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked {
		return false
	}
	c.move.Start(pointer, screenshot.Point{X: c.x, Y: c.y})
	return true
}

func (c *Controller) MoveTo(pointer screenshot.Point) bool {
	c.mu.Lock()
	p, ok := c.move.Move(pointer)
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.x, c.y = p.X, p.Y
	c.changed()
	return true
}

func (c *Controller) EndMove() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.move.End()
}

// ToggleLock flips the background drag lock. Locking ends a drag in progress.
func (c *Controller) ToggleLock() {
	c.mu.Lock()
	c.locked = !c.locked
	if c.locked {
		c.move.End()
	}
	c.changed()
}

func (c *Controller) ToggleOpacityMenu() {
	c.mu.Lock()
	c.menuOpen = !c.menuOpen
	c.changed()
}

// CloseOpacityMenu handles a click outside the menu.
func (c *Controller) CloseOpacityMenu() {
	c.mu.Lock()
	if !c.menuOpen {
		c.mu.Unlock()
		return
	}
	c.menuOpen = false
	c.changed()
}

// SelectOpacity sets one of OpacityLevels and closes the menu.
func (c *Controller) SelectOpacity(level float64) error {
	valid := false
	for _, l := range OpacityLevels {
		if math.Abs(l-level) < 1e-9 {
			level, valid = l, true
			break
		}
	}
	if !valid {
		return ErrInvalidOpacity
	}
	c.mu.Lock()
	c.opacity = level
	c.menuOpen = false
	c.changed()
	return nil
}

// Copy puts the pinned image on the clipboard. Failures are logged and
// swallowed.
func (c *Controller) Copy() {
	if c.opts.Copier == nil {
		return
	}
	if err := c.opts.Copier.WriteImage(c.image); err != nil {
		log.Printf("pin: copy failed: %v", err)
		return
	}
	if c.opts.Notifier != nil {
		c.opts.Notifier.Push(notification.KindCopy)
	}
}

// Close requests the pin to close. OnClose runs at most once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	if c.opts.OnClose != nil {
		c.opts.OnClose()
	}
}

// Key is a key press on the pin surface.
type Key struct {
	Name     string // "escape", "-", "=", "l", "c", "o", ...
	Modifier bool   // Ctrl on Windows/Linux, Cmd on macOS
}

// HandleKey applies the pin shortcuts and reports whether the key was used.
func (c *Controller) HandleKey(k Key) bool {
	name := strings.ToLower(k.Name)
	switch {
	case name == "escape" || name == "esc":
		c.Close()
	case k.Modifier && (name == "=" || name == "+"):
		c.ZoomIn()
	case k.Modifier && name == "-":
		c.ZoomOut()
	case k.Modifier && name == "l":
		c.ToggleLock()
	case k.Modifier && name == "c":
		c.Copy()
	case !k.Modifier && name == "o":
		c.ToggleOpacityMenu()
	default:
		return false
	}
	return true
}
