package gui

import (
	"context"
	"image"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-capture/src/backend"
	"screen-capture/src/pin"
	"screen-capture/src/recording"
	"screen-capture/src/screenshot"
	"screen-capture/src/window"
)

func boundPin(t *testing.T, v *Views, label string) (*pin.Controller, *pinView) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	c, err := pin.New(img, screenshot.Point{X: 100, Y: 100}, pin.Options{
		OnChange: func(vp pin.Viewport) { v.UpdatePin(label, vp) },
	})
	require.NoError(t, err)
	v.BindPin(label, img, c)
	view, ok := v.Content(label, window.Config{}).(*pinView)
	require.True(t, ok)
	view.Resize(fyne.NewSize(200, 100))
	return c, view
}

func drag(from, to fyne.Position, offset fyne.Position) *fyne.DragEvent {
	return &fyne.DragEvent{
		PointEvent: fyne.PointEvent{
			Position:         to,
			AbsolutePosition: fyne.NewPos(to.X+offset.X, to.Y+offset.Y),
		},
		Dragged: fyne.NewDelta(to.X-from.X, to.Y-from.Y),
	}
}

func TestPinViewRoutesKeys(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()
	c, view := boundPin(t, NewViews(), "pin-a")

	view.KeyDown(&fyne.KeyEvent{Name: desktop.KeyControlLeft})
	view.KeyDown(&fyne.KeyEvent{Name: fyne.KeyEqual})
	assert.InDelta(t, 1.1, c.Viewport().Scale, 1e-9)
	view.KeyDown(&fyne.KeyEvent{Name: fyne.KeyL})
	assert.True(t, c.Viewport().Locked)
	view.KeyUp(&fyne.KeyEvent{Name: desktop.KeyControlLeft})

	view.KeyDown(&fyne.KeyEvent{Name: fyne.KeyO})
	assert.True(t, c.Viewport().MenuOpen)
	assert.True(t, view.menu.Visible())
	view.Tapped(&fyne.PointEvent{})
	assert.False(t, c.Viewport().MenuOpen)

	view.KeyDown(&fyne.KeyEvent{Name: fyne.KeyL})
	assert.True(t, c.Viewport().Locked, "L without modifier is not a shortcut")
}

func TestPinViewCornerDragResizes(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()
	c, view := boundPin(t, NewViews(), "pin-b")
	offset := fyne.NewPos(100, 100)

	start := fyne.NewPos(198, 98)
	view.Dragged(drag(start, start, offset))
	view.Dragged(drag(start, fyne.NewPos(228, 108), offset))
	view.DragEnd()

	vp := c.Viewport()
	assert.InDelta(t, 230, vp.Width, 1e-9)
	assert.InDelta(t, 115, vp.Height, 1e-9)
	assert.Equal(t, 100, vp.X)
}

func TestPinViewBackgroundDragMoves(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()
	c, view := boundPin(t, NewViews(), "pin-c")
	offset := fyne.NewPos(100, 100)

	start := fyne.NewPos(100, 50)
	view.Dragged(drag(start, start, offset))
	view.Dragged(drag(start, fyne.NewPos(140, 70), offset))
	view.DragEnd()
	vp := c.Viewport()
	assert.Equal(t, 140, vp.X)
	assert.Equal(t, 120, vp.Y)

	c.ToggleLock()
	view.Dragged(drag(start, start, offset))
	view.Dragged(drag(start, fyne.NewPos(0, 0), offset))
	view.DragEnd()
	assert.Equal(t, 140, c.Viewport().X, "locked pins do not move")
}

type instantRecorder struct{}

func (instantRecorder) StartRecording(context.Context, backend.Target, backend.RecordingConfig) error {
	return nil
}

func (instantRecorder) StopRecording(context.Context) (*backend.Item, error) {
	return &backend.Item{ID: "gif"}, nil
}

func (instantRecorder) CancelRecording(context.Context) error { return nil }

func TestControlViewEscapeStops(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	m := recording.New(recording.Options{Backend: instantRecorder{}})
	defer m.Close()
	target := backend.Fullscreen(0)
	require.NoError(t, m.Request(recording.Request{Target: &target, Config: backend.DefaultRecordingConfig()}))
	require.Eventually(t, func() bool { return m.State() == recording.Recording }, time.Second, time.Millisecond)

	v := NewViews()
	surface := recording.NewControlSurface(screenshot.Point{X: 40, Y: 40})
	v.BindRecordingControl("recording-control", m, surface)
	view, ok := v.Content("recording-control", window.Config{}).(*controlView)
	require.True(t, ok)

	from := fyne.NewPos(5, 5)
	view.Dragged(drag(from, from, fyne.NewPos(40, 40)))
	view.Dragged(drag(from, fyne.NewPos(25, 15), fyne.NewPos(40, 40)))
	view.DragEnd()
	assert.Equal(t, screenshot.Point{X: 60, Y: 50}, surface.Position())

	v.UpdateRecordingControl("recording-control", "00:01.5")
	assert.Equal(t, "● 00:01.5", view.clock.Text)

	view.KeyDown(&fyne.KeyEvent{Name: fyne.KeyEscape})
	require.Eventually(t, func() bool { return m.State() == recording.Idle }, time.Second, time.Millisecond)

	v.Unbind("recording-control")
	_, ok = v.Content("recording-control", window.Config{Title: "Recording"}).(*controlView)
	assert.False(t, ok)
}

func TestFactoryUsesBoundContent(t *testing.T) {
	fa := test.NewApp()
	a := &App{fa: fa}
	defer fa.Quit()

	v := NewViews()
	_, view := boundPin(t, v, "pin-d")
	f := NewFactory(a, v.Content)
	_, err := f.Create("pin-d", window.Config{Title: "Pin", Width: 200, Height: 100}, nil)
	require.NoError(t, err)

	windows := fa.Driver().AllWindows()
	require.Len(t, windows, 1)
	assert.Same(t, view, windows[0].Content())
	assert.Same(t, windows[0], view.win)
}
