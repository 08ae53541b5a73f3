package overlay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-capture/src/hotkey"
	"screen-capture/src/screenshot"
	"screen-capture/src/selector"
	"screen-capture/src/window"
)

type surface struct {
	mu     sync.Mutex
	closed bool
}

func (s *surface) Focus() error { return nil }

func (s *surface) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type factory struct {
	mu       sync.Mutex
	surfaces []*surface
	configs  []window.Config
}

func (f *factory) Create(_ string, cfg window.Config, _ func()) (window.Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &surface{}
	f.surfaces = append(f.surfaces, s)
	f.configs = append(f.configs, cfg)
	return s, nil
}

type feed struct {
	ch chan hotkey.Event
}

func (f *feed) Subscribe(int) (<-chan hotkey.Event, func()) { return f.ch, func() {} }

func newOverlay(t *testing.T) (*Overlay, *factory, *feed, *window.Registry) {
	t.Helper()
	fac := &factory{}
	reg := window.NewRegistry(fac)
	in := &feed{ch: make(chan hotkey.Event, 16)}
	o := New(Options{
		Registry: reg,
		Input:    in,
		Bounds: func() (screenshot.Region, error) {
			return screenshot.Region{Width: 1920, Height: 1080}, nil
		},
	})
	return o, fac, in, reg
}

func TestSelectConfirmsOnPointerUp(t *testing.T) {
	o, fac, in, reg := newOverlay(t)
	in.ch <- hotkey.Event{Kind: hotkey.EventPointerDown, X: 300, Y: 200}
	in.ch <- hotkey.Event{Kind: hotkey.EventPointerMove, X: 200, Y: 120}
	in.ch <- hotkey.Event{Kind: hotkey.EventPointerUp, X: 100, Y: 50}

	r, err := o.Select(context.Background())
	require.NoError(t, err)
	assert.Equal(t, screenshot.Region{X: 100, Y: 50, Width: 200, Height: 150}, r)

	require.Len(t, fac.surfaces, 1)
	assert.True(t, fac.surfaces[0].closed)
	assert.True(t, fac.configs[0].Fullscreen)
	assert.Equal(t, 1920, fac.configs[0].Width)
	assert.Empty(t, reg.Handles())
}

func TestSelectIgnoresTinyDragThenConfirmsWithEnter(t *testing.T) {
	o, _, in, _ := newOverlay(t)
	in.ch <- hotkey.Event{Kind: hotkey.EventPointerDown, X: 10, Y: 10}
	in.ch <- hotkey.Event{Kind: hotkey.EventPointerUp, X: 13, Y: 13}
	in.ch <- hotkey.Event{Kind: hotkey.EventPointerDown, X: 10, Y: 10}
	in.ch <- hotkey.Event{Kind: hotkey.EventPointerMove, X: 60, Y: 40}
	in.ch <- hotkey.Event{Kind: hotkey.EventKeyDown, Rawcode: hotkey.RawEnter}

	r, err := o.Select(context.Background())
	require.NoError(t, err)
	assert.Equal(t, screenshot.Region{X: 10, Y: 10, Width: 50, Height: 30}, r)
}

func TestSelectCancelledByEscape(t *testing.T) {
	o, fac, in, _ := newOverlay(t)
	in.ch <- hotkey.Event{Kind: hotkey.EventPointerDown, X: 10, Y: 10, Button: 1}
	in.ch <- hotkey.Event{Kind: hotkey.EventKeyDown, Rawcode: hotkey.RawEscape}

	_, err := o.Select(context.Background())
	assert.True(t, errors.Is(err, selector.ErrCancelled))
	assert.True(t, fac.surfaces[0].closed)
}

func TestSelectHonorsContext(t *testing.T) {
	o, fac, _, _ := newOverlay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := o.Select(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, fac.surfaces[0].closed)
}

func TestSelectBoundsError(t *testing.T) {
	o := New(Options{
		Registry: window.NewRegistry(&factory{}),
		Input:    &feed{ch: make(chan hotkey.Event)},
		Bounds:   func() (screenshot.Region, error) { return screenshot.Region{}, errors.New("no displays") },
	})
	_, err := o.Select(context.Background())
	assert.EqualError(t, err, "no displays")
}
