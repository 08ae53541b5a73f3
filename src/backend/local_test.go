package backend

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-capture/src/clock"
	"screen-capture/src/messages"
	"screen-capture/src/screenshot"
	"screen-capture/src/storage"
)

type fakeDesktop struct {
	mu      sync.Mutex
	grabs   int
	err     error
	pointer screenshot.Point
	windows []WindowInfo
}

func (d *fakeDesktop) Grab(t Target) (*image.RGBA, screenshot.Point, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.grabs++
	if d.err != nil {
		return nil, screenshot.Point{}, d.err
	}
	w, h, origin := 64, 48, screenshot.Point{}
	if t.Kind == TargetArea {
		w, h = t.Area.Width, t.Area.Height
		origin = screenshot.Point{X: t.Area.X, Y: t.Area.Y}
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return img, origin, nil
}

func (d *fakeDesktop) Pointer() (screenshot.Point, bool) { return d.pointer, true }

func (d *fakeDesktop) Displays() ([]DisplayInfo, error) {
	return []DisplayInfo{{ID: 0, Bounds: screenshot.Region{Width: 64, Height: 48}, IsPrimary: true}}, nil
}

func (d *fakeDesktop) Windows() ([]WindowInfo, error) { return d.windows, nil }

type events struct {
	mu  sync.Mutex
	got []messages.Message
}

func (e *events) publish(m messages.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, m)
}

func (e *events) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, m := range e.got {
		out = append(out, m.Type())
	}
	return out
}

func newLocal(t *testing.T) (*Local, *fakeDesktop, *events) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(storage.Options{
		DatabasePath: filepath.Join(dir, "history.db"),
		Location:     storage.LocationCustom,
		CustomDir:    filepath.Join(dir, "out"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	desk := &fakeDesktop{}
	ev := &events{}
	l, err := NewLocal(Options{
		Store:   store,
		Publish: ev.publish,
		Clock:   clock.NewFake(time.Date(2025, 3, 4, 10, 11, 12, 0, time.Local)),
		Desktop: desk,
	})
	require.NoError(t, err)
	return l, desk, ev
}

func TestCaptureAreaSavesAndPublishes(t *testing.T) {
	l, desk, ev := newLocal(t)
	desk.pointer = screenshot.Point{X: 110, Y: 105}

	item, err := l.CaptureArea(context.Background(), screenshot.Region{X: 100, Y: 100, Width: 40, Height: 30}, AllDisplays, true, screenshot.Format{Kind: screenshot.FormatPNG})
	require.NoError(t, err)

	assert.Equal(t, storage.TypeScreenshot, item.Type)
	assert.Equal(t, "Screenshot 2025-03-04 at 10.11.12.png", item.Filename)
	_, err = os.Stat(item.Path)
	require.NoError(t, err)
	assert.Equal(t, []string{messages.TypeCaptureCompleted}, ev.types())

	f, err := os.Open(item.Path)
	require.NoError(t, err)
	defer f.Close()
	img, _, err := image.Decode(f)
	require.NoError(t, err)
	r, g, b, _ := img.At(10, 5).RGBA()
	assert.Zero(t, r+g+b, "cursor tip drawn at pointer position")
}

func TestCaptureRejectsInvalidTarget(t *testing.T) {
	l, _, _ := newLocal(t)
	_, err := l.CaptureArea(context.Background(), screenshot.Region{Width: 0, Height: 10}, 0, false, screenshot.Format{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = l.CaptureWindow(context.Background(), 0, false, screenshot.Format{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCaptureFailureIsTagged(t *testing.T) {
	l, desk, _ := newLocal(t)
	cause := errors.New("no display")
	desk.err = cause

	_, err := l.CaptureFullscreen(context.Background(), 0, false, screenshot.Format{})
	assert.ErrorIs(t, err, ErrCaptureFailed)
	assert.ErrorIs(t, err, cause)
}

func TestRecordingLifecycle(t *testing.T) {
	l, _, ev := newLocal(t)
	cfg := DefaultRecordingConfig()
	cfg.Quality = QualityLow

	require.NoError(t, l.StartRecording(context.Background(), Fullscreen(0), cfg))
	assert.True(t, l.IsRecording())
	assert.ErrorIs(t, l.StartRecording(context.Background(), Fullscreen(0), cfg), ErrRecordingFailed)

	item, err := l.StopRecording(context.Background())
	require.NoError(t, err)
	assert.False(t, l.IsRecording())
	assert.Equal(t, storage.TypeGIF, item.Type)
	assert.Contains(t, ev.types(), messages.TypeRecordingCompleted)

	f, err := os.Open(item.Path)
	require.NoError(t, err)
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.NotEmpty(t, anim.Image)
	assert.Equal(t, 100/MaxGIFFPS, anim.Delay[0])

	_, err = l.StopRecording(context.Background())
	assert.ErrorIs(t, err, ErrRecordingNotActive)
}

func TestRecordingStartFailure(t *testing.T) {
	l, desk, _ := newLocal(t)
	desk.err = errors.New("denied")

	err := l.StartRecording(context.Background(), Fullscreen(0), DefaultRecordingConfig())
	assert.ErrorIs(t, err, ErrRecordingFailed)
	assert.False(t, l.IsRecording())

	bad := DefaultRecordingConfig()
	bad.FPS = 0
	assert.ErrorIs(t, l.StartRecording(context.Background(), Fullscreen(0), bad), ErrInvalidConfig)
}

func TestCancelRecordingDiscards(t *testing.T) {
	l, _, _ := newLocal(t)
	require.NoError(t, l.StartRecording(context.Background(), Fullscreen(0), DefaultRecordingConfig()))
	require.NoError(t, l.CancelRecording(context.Background()))
	assert.False(t, l.IsRecording())
	assert.ErrorIs(t, l.CancelRecording(context.Background()), ErrRecordingNotActive)

	items, err := l.History()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRecognizeText(t *testing.T) {
	l, _, _ := newLocal(t)
	_, err := l.RecognizeText(context.Background(), "x.png", nil)
	assert.ErrorIs(t, err, ErrOCRFailed)

	l.engine = engineFunc(func(ctx context.Context, path string, langs []string) ([]TextBlock, error) {
		return []TextBlock{{Text: path + ":" + langs[0], Confidence: 1}}, nil
	})
	blocks, err := l.RecognizeText(context.Background(), "x.png", []string{"en"})
	require.NoError(t, err)
	assert.Equal(t, "x.png:en", blocks[0].Text)
}

type engineFunc func(ctx context.Context, path string, langs []string) ([]TextBlock, error)

func (f engineFunc) Recognize(ctx context.Context, path string, langs []string) ([]TextBlock, error) {
	return f(ctx, path, langs)
}

func TestLibraryDelegates(t *testing.T) {
	l, _, _ := newLocal(t)
	item, err := l.CaptureFullscreen(context.Background(), 0, false, screenshot.Format{Kind: screenshot.FormatJPEG, Quality: 0.8})
	require.NoError(t, err)
	assert.Equal(t, ".jpg", filepath.Ext(item.Path))

	fav, err := l.ToggleFavorite(item.ID)
	require.NoError(t, err)
	assert.True(t, fav)

	info, err := l.StorageInfo()
	require.NoError(t, err)
	assert.Equal(t, 1, info.TotalItems)

	require.NoError(t, l.DeleteCapture(item.ID))
	err = l.DeleteCapture(item.ID)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCheckPermissionPublishesChanges(t *testing.T) {
	l, desk, ev := newLocal(t)
	assert.Equal(t, PermissionAuthorized, l.CheckPermission())
	assert.Equal(t, PermissionAuthorized, l.CheckPermission())
	desk.mu.Lock()
	desk.err = errors.New("denied")
	desk.mu.Unlock()
	assert.Equal(t, PermissionDenied, l.CheckPermission())
	assert.Equal(t, []string{messages.TypePermissionChanged, messages.TypePermissionChanged}, ev.types())
}

func TestDrawCursorClipsToBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	drawCursor(img, image.Pt(2, 2))
	assert.Equal(t, color.RGBA{A: 0xff}, img.RGBAAt(2, 2))
	drawCursor(img, image.Pt(-50, -50))
}

func TestWindowAtPointerPicksInnermost(t *testing.T) {
	l, d, _ := newLocal(t)
	d.windows = []WindowInfo{
		{ID: 1, Title: "desktop shell", Bounds: screenshot.Region{Width: 1000, Height: 800}},
		{ID: 2, Title: "editor", Bounds: screenshot.Region{X: 100, Y: 100, Width: 300, Height: 200}},
	}

	d.pointer = screenshot.Point{X: 150, Y: 150}
	w, err := l.WindowAtPointer()
	require.NoError(t, err)
	assert.Equal(t, 2, w.ID)

	d.pointer = screenshot.Point{X: 900, Y: 50}
	w, err = l.WindowAtPointer()
	require.NoError(t, err)
	assert.Equal(t, 1, w.ID)

	d.pointer = screenshot.Point{X: 5000, Y: 5000}
	_, err = l.WindowAtPointer()
	assert.True(t, errors.Is(err, ErrCaptureFailed))
}
