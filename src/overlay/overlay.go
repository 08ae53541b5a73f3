package overlay

import (
	"context"
	"log"

	"screen-capture/src/hotkey"
	"screen-capture/src/screenshot"
	"screen-capture/src/selector"
	"screen-capture/src/window"
)

// Selector defines a blocking region-selection API. It returns
// selector.ErrCancelled when the user abandons the selection.
type Selector interface {
	Select(ctx context.Context) (screenshot.Region, error)
}

// Input is a source of raw pointer and keyboard events.
type Input interface {
	Subscribe(buffer int) (<-chan hotkey.Event, func())
}

// Options configures an Overlay. Bounds defaults to the virtual screen.
type Options struct {
	Registry *window.Registry
	Input    Input
	MinSpan  int
	Bounds   func() (screenshot.Region, error)
}

// Overlay opens a full-screen selection surface and drives a selector from
// the global input stream until the user confirms or cancels.
type Overlay struct {
	opts Options
}

// New creates an overlay selector.
func New(opts Options) *Overlay {
	if opts.Bounds == nil {
		opts.Bounds = screenshot.VirtualBounds
	}
	return &Overlay{opts: opts}
}

type outcome struct {
	region    screenshot.Region
	cancelled bool
}

// Select blocks until a region is confirmed, the selection is cancelled or
// ctx is done. The selection surface is closed on every path.
func (o *Overlay) Select(ctx context.Context) (screenshot.Region, error) {
	bounds, err := o.opts.Bounds()
	if err != nil {
		return screenshot.Region{}, err
	}

	events, unsubscribe := o.opts.Input.Subscribe(256)
	defer unsubscribe()

	h, err := o.opts.Registry.Open(window.RoleSelection, "", window.Config{
		Title:       "Select area",
		X:           bounds.X,
		Y:           bounds.Y,
		Width:       bounds.Width,
		Height:      bounds.Height,
		Borderless:  true,
		AlwaysOnTop: true,
		Fullscreen:  true,
	})
	if err != nil {
		return screenshot.Region{}, err
	}
	defer func() {
		if err := o.opts.Registry.Close(h.Label); err != nil {
			log.Printf("overlay: close %s: %v", h.Label, err)
		}
	}()

	done := make(chan outcome, 1)
	report := func(out outcome) {
		select {
		case done <- out:
		default:
		}
	}
	sel := selector.New(selector.Options{
		MinSpan:   o.opts.MinSpan,
		OnConfirm: func(r screenshot.Region) { report(outcome{region: r}) },
		OnCancel:  func() { report(outcome{cancelled: true}) },
	})
	log.Printf("overlay: selecting within %s", bounds)

	for {
		select {
		case <-ctx.Done():
			sel.Cancel()
			return screenshot.Region{}, ctx.Err()
		case out := <-done:
			if out.cancelled {
				log.Printf("overlay: selection cancelled")
				return screenshot.Region{}, selector.ErrCancelled
			}
			return out.region, nil
		case ev, ok := <-events:
			if !ok {
				return screenshot.Region{}, selector.ErrCancelled
			}
			feed(sel, ev)
		}
	}
}

func feed(sel *selector.Selector, ev hotkey.Event) {
	p := screenshot.Point{X: ev.X, Y: ev.Y}
	switch ev.Kind {
	case hotkey.EventPointerDown:
		sel.PointerDown(p, selector.Button(ev.Button))
	case hotkey.EventPointerMove:
		sel.PointerMove(p)
	case hotkey.EventPointerUp:
		sel.PointerUp(p)
	case hotkey.EventKeyDown:
		switch ev.Rawcode {
		case hotkey.RawEscape:
			sel.Cancel()
		case hotkey.RawEnter:
			sel.Confirm()
		}
	}
}
