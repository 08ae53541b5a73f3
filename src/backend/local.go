package backend

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"sync"
	"time"

	"screen-capture/src/clock"
	"screen-capture/src/messages"
	"screen-capture/src/ocr"
	"screen-capture/src/screenshot"
	"screen-capture/src/storage"
)

// Permission states reported through permission:changed.
const (
	PermissionAuthorized = "authorized"
	PermissionDenied     = "denied"
)

// Options configures a Local backend.
type Options struct {
	Store *storage.Store
	OCR   ocr.Engine
	// Publish receives backend events; nil drops them.
	Publish func(messages.Message)
	Clock   clock.Clock
	Desktop Desktop
}

// Local captures the desktop of this machine. Recordings are animated GIFs.
type Local struct {
	store   *storage.Store
	engine  ocr.Engine
	publish func(messages.Message)
	clock   clock.Clock
	desktop Desktop

	mu         sync.Mutex
	rec        *gifRecorder
	permission string
}

// NewLocal creates a backend over opts.Store.
func NewLocal(opts Options) (*Local, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("backend: store is required")
	}
	l := &Local{
		store:   opts.Store,
		engine:  opts.OCR,
		publish: opts.Publish,
		clock:   opts.Clock,
		desktop: opts.Desktop,
	}
	if l.publish == nil {
		l.publish = func(messages.Message) {}
	}
	if l.clock == nil {
		l.clock = clock.Real()
	}
	if l.desktop == nil {
		l.desktop = liveDesktop{}
	}
	return l, nil
}

var _ Backend = (*Local)(nil)
var _ StatusReporter = (*Local)(nil)

// grab captures t and optionally paints the pointer into the frame.
func (l *Local) grab(t Target, includeCursor bool) (*image.RGBA, error) {
	img, origin, err := l.desktop.Grab(t)
	if err != nil {
		return nil, err
	}
	if includeCursor {
		if p, ok := l.desktop.Pointer(); ok {
			b := img.Bounds().Min
			drawCursor(img, image.Pt(p.X-origin.X+b.X, p.Y-origin.Y+b.Y))
		}
	}
	return img, nil
}

func (l *Local) capture(ctx context.Context, t Target, includeCursor bool, format ImageFormat) (*Item, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, wrap(ErrCaptureFailed, err)
	}
	img, err := l.grab(t, includeCursor)
	if err != nil {
		return nil, wrap(ErrCaptureFailed, err)
	}
	data, err := screenshot.Encode(img, format)
	if err != nil {
		return nil, wrap(ErrCaptureFailed, err)
	}
	item, err := l.save(storage.TypeScreenshot, format.Extension(), data)
	if err != nil {
		return nil, err
	}
	log.Printf("backend: captured %s to %s", t, item.Path)
	l.publish(messages.CaptureCompleted{Item: *item})
	return item, nil
}

func (l *Local) save(kind storage.CaptureType, ext string, data []byte) (*Item, error) {
	now := l.clock.Now()
	path, err := l.store.NewPath(kind, ext, now)
	if err != nil {
		return nil, wrap(ErrStorage, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, wrap(ErrStorage, err)
	}
	item, err := l.store.Add(kind, path, now)
	if err != nil {
		return nil, wrap(ErrStorage, err)
	}
	return item, nil
}

func (l *Local) CaptureFullscreen(ctx context.Context, displayID int, includeCursor bool, format ImageFormat) (*Item, error) {
	return l.capture(ctx, Fullscreen(displayID), includeCursor, format)
}

func (l *Local) CaptureArea(ctx context.Context, rect screenshot.Region, displayID int, includeCursor bool, format ImageFormat) (*Item, error) {
	return l.capture(ctx, Area(rect, displayID), includeCursor, format)
}

func (l *Local) CaptureWindow(ctx context.Context, windowID int, includeCursor bool, format ImageFormat) (*Item, error) {
	return l.capture(ctx, Window(windowID), includeCursor, format)
}

// StartRecording begins sampling target. Audio and click highlighting are
// not available for GIF output and are ignored.
func (l *Local) StartRecording(ctx context.Context, target Target, cfg RecordingConfig) error {
	if err := target.Validate(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return wrap(ErrRecordingFailed, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rec != nil {
		return errorf(ErrRecordingFailed, "a recording is already running")
	}
	if cfg.IncludeMicrophone || cfg.IncludeSystemAudio || cfg.ShowMouseClicks {
		log.Printf("backend: audio and click highlighting are not recorded in GIF output")
	}
	rec := newGIFRecorder(func() (*image.RGBA, error) { return l.grab(target, cfg.IncludeCursor) }, cfg)
	if err := rec.start(); err != nil {
		return wrap(ErrRecordingFailed, err)
	}
	l.rec = rec
	log.Printf("backend: recording %s at %v per frame", target, rec.interval)
	return nil
}

// StopRecording finishes the recording and saves it to the library.
func (l *Local) StopRecording(ctx context.Context) (*Item, error) {
	l.mu.Lock()
	rec := l.rec
	l.rec = nil
	l.mu.Unlock()
	if rec == nil {
		return nil, &Error{Kind: ErrRecordingNotActive}
	}

	data, err := rec.encode()
	if err != nil {
		l.publish(messages.RecordingFailed{Message: err.Error()})
		return nil, wrap(ErrRecordingFailed, err)
	}
	item, err := l.save(storage.TypeGIF, "gif", data)
	if err != nil {
		l.publish(messages.RecordingFailed{Message: err.Error()})
		return nil, err
	}
	log.Printf("backend: recording saved to %s", item.Path)
	l.publish(messages.RecordingCompleted{Item: *item})
	return item, nil
}

// CancelRecording discards the running recording.
func (l *Local) CancelRecording(ctx context.Context) error {
	l.mu.Lock()
	rec := l.rec
	l.rec = nil
	l.mu.Unlock()
	if rec == nil {
		return &Error{Kind: ErrRecordingNotActive}
	}
	rec.discard()
	log.Printf("backend: recording cancelled")
	return nil
}

// IsRecording reports whether a recording is running.
func (l *Local) IsRecording() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rec != nil
}

// RecognizeText runs the configured OCR engine on imagePath.
func (l *Local) RecognizeText(ctx context.Context, imagePath string, languages []string) ([]TextBlock, error) {
	if l.engine == nil {
		return nil, errorf(ErrOCRFailed, "no OCR engine configured")
	}
	start := time.Now()
	blocks, err := l.engine.Recognize(ctx, imagePath, languages)
	if err != nil {
		return nil, wrap(ErrOCRFailed, err)
	}
	log.Printf("backend: recognized %d blocks in %v", len(blocks), time.Since(start))
	return blocks, nil
}

func (l *Local) History() ([]Item, error) {
	items, err := l.store.History()
	return items, wrap(ErrStorage, err)
}

func (l *Local) DeleteCapture(id string) error {
	return wrap(ErrStorage, l.store.Delete(id))
}

func (l *Local) ToggleFavorite(id string) (bool, error) {
	fav, err := l.store.ToggleFavorite(id)
	return fav, wrap(ErrStorage, err)
}

func (l *Local) StorageInfo() (storage.Info, error) {
	info, err := l.store.Info()
	return info, wrap(ErrStorage, err)
}

// Displays lists the active displays.
func (l *Local) Displays() ([]DisplayInfo, error) {
	d, err := l.desktop.Displays()
	return d, wrap(ErrCaptureFailed, err)
}

// Windows lists capturable windows.
func (l *Local) Windows() ([]WindowInfo, error) {
	w, err := l.desktop.Windows()
	return w, wrap(ErrCaptureFailed, err)
}

// WindowAtPointer returns the smallest listed window containing the pointer.
func (l *Local) WindowAtPointer() (WindowInfo, error) {
	p, ok := l.desktop.Pointer()
	if !ok {
		return WindowInfo{}, errorf(ErrCaptureFailed, "pointer position unavailable")
	}
	windows, err := l.Windows()
	if err != nil {
		return WindowInfo{}, err
	}
	var (
		best  WindowInfo
		found bool
	)
	for _, w := range windows {
		if !image.Pt(p.X, p.Y).In(w.Bounds.Rect()) {
			continue
		}
		if !found || w.Bounds.Width*w.Bounds.Height < best.Bounds.Width*best.Bounds.Height {
			best, found = w, true
		}
	}
	if !found {
		return WindowInfo{}, errorf(ErrCaptureFailed, "no window under pointer at %d,%d", p.X, p.Y)
	}
	return best, nil
}

// CheckPermission grabs one pixel to test screen capture access and publishes
// permission:changed when the result differs from the previous check.
func (l *Local) CheckPermission() string {
	status := PermissionAuthorized
	if _, _, err := l.desktop.Grab(Area(screenshot.Region{Width: 1, Height: 1}, AllDisplays)); err != nil {
		log.Printf("backend: screen capture check failed: %v", err)
		status = PermissionDenied
	}
	l.mu.Lock()
	changed := status != l.permission
	l.permission = status
	l.mu.Unlock()
	if changed {
		l.publish(messages.PermissionChanged{Permission: "screen", Status: status})
	}
	return status
}
