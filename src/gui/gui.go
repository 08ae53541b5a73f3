// Package gui backs the window registry and notification queue with fyne.
package gui

import (
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"screen-capture/src/notification"
	"screen-capture/src/window"
)

// AppID identifies the fyne application for preferences storage.
const AppID = "dev.screencapture.app"

// App wraps the fyne application that owns every surface.
type App struct {
	fa fyne.App
}

// NewApp creates the fyne application. Run must be called from the main goroutine.
func NewApp() *App {
	return &App{fa: app.NewWithID(AppID)}
}

// Run blocks on the fyne event loop.
func (a *App) Run() { a.fa.Run() }

// OnStarted runs f once the event loop is up.
func (a *App) OnStarted(f func()) { a.fa.Lifecycle().SetOnStarted(f) }

// Quit stops the event loop.
func (a *App) Quit() { fyne.Do(a.fa.Quit) }

// OpenPath reveals path in the platform file manager.
func (a *App) OpenPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return a.fa.OpenURL(u)
}

// ContentFunc builds the body of a surface for its label and config.
type ContentFunc func(label string, cfg window.Config) fyne.CanvasObject

// Factory creates fyne windows for the registry.
type Factory struct {
	app     *App
	content ContentFunc
}

var _ window.Factory = (*Factory)(nil)

// NewFactory returns a registry factory. A nil content func shows the title.
func NewFactory(a *App, content ContentFunc) *Factory {
	if content == nil {
		content = func(_ string, cfg window.Config) fyne.CanvasObject {
			return container.NewCenter(widget.NewLabel(cfg.Title))
		}
	}
	return &Factory{app: a, content: content}
}

type surface struct {
	w    fyne.Window
	once sync.Once
}

func (s *surface) Focus() error {
	fyne.Do(func() {
		s.w.Show()
		s.w.RequestFocus()
	})
	return nil
}

func (s *surface) Close() error {
	s.once.Do(func() { fyne.Do(s.w.Close) })
	return nil
}

// Create builds and shows a window on the fyne goroutine. Borderless
// surfaces use a splash window when the driver supports it.
func (f *Factory) Create(label string, cfg window.Config, onClosed func()) (window.Surface, error) {
	done := make(chan *surface, 1)
	fyne.Do(func() {
		var w fyne.Window
		if drv, ok := f.app.fa.Driver().(desktop.Driver); ok && cfg.Borderless {
			w = drv.CreateSplashWindow()
		} else {
			w = f.app.fa.NewWindow(cfg.Title)
		}
		w.SetTitle(cfg.Title)
		content := f.content(label, cfg)
		w.SetContent(content)
		if aware, ok := content.(windowAware); ok {
			aware.AttachWindow(w)
		}
		if kt, ok := content.(keyTarget); ok {
			if dc, ok := w.Canvas().(desktop.Canvas); ok {
				dc.SetOnKeyDown(kt.KeyDown)
				dc.SetOnKeyUp(kt.KeyUp)
			}
		}
		if cfg.Width > 0 && cfg.Height > 0 {
			w.Resize(fyne.NewSize(float32(cfg.Width), float32(cfg.Height)))
		}
		w.SetFixedSize(!cfg.Resizable)
		w.SetFullScreen(cfg.Fullscreen)
		w.SetOnClosed(func() {
			log.Printf("gui: %s closed", label)
			if onClosed != nil {
				onClosed()
			}
		})
		w.Show()
		done <- &surface{w: w}
	})
	return <-done, nil
}

// Toasts renders queue lifecycle instants as desktop notifications.
type Toasts struct {
	app       *App
	localizer *notification.Localizer
}

// NewToasts renders with l; a nil localizer uses the English messages.
func NewToasts(a *App, l *notification.Localizer) *Toasts {
	return &Toasts{app: a, localizer: l}
}

// Observe is a notification.Observer.
func (t *Toasts) Observe(n notification.Notification, phase notification.Phase) {
	if phase != notification.PhaseCreated {
		return
	}
	msg := t.localizer.Message(n.Kind)
	fyne.Do(func() {
		t.app.fa.SendNotification(fyne.NewNotification("ScreenCapture", msg))
	})
}
