package gui

import (
	"fmt"
	"image"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"screen-capture/src/pin"
	"screen-capture/src/recording"
	"screen-capture/src/screenshot"
	"screen-capture/src/window"
)

// cornerGrip is the size of the square at each pin corner that resizes
// instead of moving.
const cornerGrip = 14

// keyTarget receives raw key events from the hosting window.
type keyTarget interface {
	KeyDown(ev *fyne.KeyEvent)
	KeyUp(ev *fyne.KeyEvent)
}

// windowAware content is told which window hosts it.
type windowAware interface {
	AttachWindow(w fyne.Window)
}

// Views renders interactive surfaces. Controllers are bound by label before
// the registry opens the surface; unbound labels show their title.
type Views struct {
	mu       sync.Mutex
	pins     map[string]*pinView
	controls map[string]*controlView
}

func NewViews() *Views {
	return &Views{pins: make(map[string]*pinView), controls: make(map[string]*controlView)}
}

// Content is a ContentFunc.
func (v *Views) Content(label string, cfg window.Config) fyne.CanvasObject {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p, ok := v.pins[label]; ok {
		return p
	}
	if c, ok := v.controls[label]; ok {
		return c
	}
	return container.NewCenter(widget.NewLabel(cfg.Title))
}

// BindPin prepares the view of a pin surface.
func (v *Views) BindPin(label string, img image.Image, c *pin.Controller) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pins[label] = newPinView(img, c)
}

// UpdatePin redraws a pin after its viewport changed.
func (v *Views) UpdatePin(label string, vp pin.Viewport) {
	v.mu.Lock()
	p := v.pins[label]
	v.mu.Unlock()
	if p != nil {
		fyne.Do(func() { p.apply(vp) })
	}
}

// BindRecordingControl prepares the floating recording controls.
func (v *Views) BindRecordingControl(label string, m *recording.Machine, c *recording.ControlSurface) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.controls[label] = newControlView(m, c)
}

// UpdateRecordingControl shows the elapsed time on the controls.
func (v *Views) UpdateRecordingControl(label, elapsed string) {
	v.mu.Lock()
	c := v.controls[label]
	v.mu.Unlock()
	if c != nil {
		fyne.Do(func() { c.clock.SetText("● " + elapsed) })
	}
}

func (v *Views) Unbind(label string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.pins, label)
	delete(v.controls, label)
}

func toPoint(p fyne.Position) screenshot.Point {
	return screenshot.Point{X: int(p.X), Y: int(p.Y)}
}

// modifiers tracks Ctrl/Cmd from key down/up events.
type modifiers struct {
	held map[fyne.KeyName]bool
}

func (m *modifiers) down(name fyne.KeyName) bool {
	switch name {
	case desktop.KeyControlLeft, desktop.KeyControlRight, desktop.KeySuperLeft, desktop.KeySuperRight:
		if m.held == nil {
			m.held = make(map[fyne.KeyName]bool)
		}
		m.held[name] = true
		return true
	}
	return false
}

func (m *modifiers) up(name fyne.KeyName) {
	delete(m.held, name)
}

func (m *modifiers) active() bool { return len(m.held) > 0 }

type gesture int

const (
	gestureNone gesture = iota
	gestureMove
	gestureResize
)

// pinView shows a pinned image and feeds pointer and key input into its
// controller.
type pinView struct {
	widget.BaseWidget

	ctrl   *pin.Controller
	img    *canvas.Image
	menu   *fyne.Container
	win    fyne.Window
	mods   modifiers
	active gesture
}

func newPinView(img image.Image, c *pin.Controller) *pinView {
	p := &pinView{ctrl: c, img: canvas.NewImageFromImage(img)}
	p.img.FillMode = canvas.ImageFillStretch
	p.menu = container.NewHBox()
	for _, level := range pin.OpacityLevels {
		level := level
		p.menu.Add(widget.NewButton(fmt.Sprintf("%.0f%%", level*100), func() {
			_ = p.ctrl.SelectOpacity(level)
		}))
	}
	p.menu.Hide()
	p.ExtendBaseWidget(p)
	return p
}

func (p *pinView) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(container.NewStack(p.img, container.NewVBox(p.menu)))
}

func (p *pinView) AttachWindow(w fyne.Window) { p.win = w }

// apply runs on the fyne goroutine.
func (p *pinView) apply(vp pin.Viewport) {
	p.img.Translucency = 1 - vp.Opacity
	p.img.Refresh()
	if vp.MenuOpen {
		p.menu.Show()
	} else {
		p.menu.Hide()
	}
	if p.win != nil {
		p.win.Resize(fyne.NewSize(float32(vp.Width), float32(vp.Height)))
	}
}

// corner returns the resize corner under pos, if any.
func (p *pinView) corner(pos fyne.Position) (pin.Corner, bool) {
	size := p.Size()
	left, top := pos.X <= cornerGrip, pos.Y <= cornerGrip
	right, bottom := pos.X >= size.Width-cornerGrip, pos.Y >= size.Height-cornerGrip
	switch {
	case top && left:
		return pin.TopLeft, true
	case top && right:
		return pin.TopRight, true
	case bottom && left:
		return pin.BottomLeft, true
	case bottom && right:
		return pin.BottomRight, true
	}
	return 0, false
}

func (p *pinView) Dragged(ev *fyne.DragEvent) {
	if p.active == gestureNone {
		start := fyne.NewPos(ev.Position.X-ev.Dragged.DX, ev.Position.Y-ev.Dragged.DY)
		absStart := toPoint(fyne.NewPos(ev.AbsolutePosition.X-ev.Dragged.DX, ev.AbsolutePosition.Y-ev.Dragged.DY))
		if corner, ok := p.corner(start); ok {
			p.ctrl.BeginResize(corner, absStart)
			p.active = gestureResize
		} else if p.ctrl.BeginMove(absStart) {
			p.active = gestureMove
		} else {
			return
		}
	}
	switch p.active {
	case gestureResize:
		p.ctrl.ResizeTo(toPoint(ev.AbsolutePosition))
	case gestureMove:
		p.ctrl.MoveTo(toPoint(ev.AbsolutePosition))
	}
}

func (p *pinView) DragEnd() {
	switch p.active {
	case gestureResize:
		p.ctrl.EndResize()
	case gestureMove:
		p.ctrl.EndMove()
	}
	p.active = gestureNone
}

// Tapped outside the opacity buttons closes the menu.
func (p *pinView) Tapped(*fyne.PointEvent) { p.ctrl.CloseOpacityMenu() }

func (p *pinView) KeyDown(ev *fyne.KeyEvent) {
	if p.mods.down(ev.Name) {
		return
	}
	p.ctrl.HandleKey(pin.Key{Name: string(ev.Name), Modifier: p.mods.active()})
}

func (p *pinView) KeyUp(ev *fyne.KeyEvent) { p.mods.up(ev.Name) }

// controlView is the floating recording bar: elapsed time, stop and cancel.
type controlView struct {
	widget.BaseWidget

	machine  *recording.Machine
	surface  *recording.ControlSurface
	clock    *widget.Label
	dragging bool
}

func newControlView(m *recording.Machine, s *recording.ControlSurface) *controlView {
	c := &controlView{machine: m, surface: s, clock: widget.NewLabel("● 00:00.0")}
	c.ExtendBaseWidget(c)
	return c
}

func (c *controlView) CreateRenderer() fyne.WidgetRenderer {
	stop := widget.NewButton("Stop", func() { _ = c.machine.Stop() })
	cancel := widget.NewButton("Cancel", func() { c.machine.Cancel() })
	return widget.NewSimpleRenderer(container.NewHBox(c.clock, stop, cancel))
}

func (c *controlView) Dragged(ev *fyne.DragEvent) {
	if !c.dragging {
		c.surface.DragStart(toPoint(fyne.NewPos(ev.AbsolutePosition.X-ev.Dragged.DX, ev.AbsolutePosition.Y-ev.Dragged.DY)))
		c.dragging = true
	}
	c.surface.DragMove(toPoint(ev.AbsolutePosition))
}

func (c *controlView) DragEnd() {
	c.surface.DragEnd()
	c.dragging = false
}

func (c *controlView) KeyDown(ev *fyne.KeyEvent) {
	if ev.Name == fyne.KeyEscape {
		c.machine.HandleEscape()
	}
}

func (c *controlView) KeyUp(*fyne.KeyEvent) {}
