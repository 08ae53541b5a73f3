package eventloop

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"sync"
	"time"

	"screen-capture/src/backend"
	"screen-capture/src/config"
	"screen-capture/src/hotkey"
	"screen-capture/src/messages"
	"screen-capture/src/notification"
	"screen-capture/src/ocr"
	"screen-capture/src/overlay"
	"screen-capture/src/pin"
	"screen-capture/src/recording"
	"screen-capture/src/router"
	"screen-capture/src/screenshot"
	"screen-capture/src/session"
	"screen-capture/src/singleinstance"
	"screen-capture/src/tray"
	"screen-capture/src/window"
	"screen-capture/src/worker"
)

// ErrBusy is reported to a requester while another capture job runs.
var ErrBusy = errors.New("Busy, please retry")

// Backend is what the loop needs from the capture backend.
type Backend interface {
	backend.Backend
	backend.StatusReporter
	WindowAtPointer() (backend.WindowInfo, error)
}

// Indicator reflects loop state in the tray.
type Indicator interface {
	SetBusy(busy bool)
	SetRecording(state recording.State, elapsed string)
}

// Views renders the interactive surfaces the loop opens. Controllers are
// bound by label before the surface is created.
type Views interface {
	BindPin(label string, img image.Image, c *pin.Controller)
	UpdatePin(label string, vp pin.Viewport)
	BindRecordingControl(label string, m *recording.Machine, c *recording.ControlSurface)
	UpdateRecordingControl(label, elapsed string)
	Unbind(label string)
}

// Options wires a Loop. Optional collaborators may be nil.
type Options struct {
	Config        *config.Config
	Backend       Backend
	Selector      overlay.Selector
	Registry      *window.Registry
	Notifications session.Notifier
	Router        *router.Router
	Hotkeys       *hotkey.Listener
	Server        singleinstance.Server
	Indicator     Indicator
	Copier        pin.Copier
	Views         Views
	WriteText     session.TextWriter
	OpenPath      func(path string) error
	// Grab captures a region for OCR without adding it to the history.
	Grab func(r screenshot.Region) (image.Image, error)
	// OnQuit is called when the quit action is dispatched.
	OnQuit func()
}

type request struct {
	action string
	target session.ResultTarget
	done   func()
}

func (r request) finish() {
	if r.done != nil {
		r.done()
	}
}

type jobResult struct {
	req    request
	res    session.Result
	err    error
	kind   notification.Kind
	cancel context.CancelFunc
	after  func(session.Result)
}

// Loop is the single-goroutine coordinator for shortcuts, tray actions,
// delegated invocations and job results. Handlers never block: capture work
// runs on the worker pool and posts back into the loop.
type Loop struct {
	opts     Options
	pool     *worker.Pool
	rec      *recording.Machine
	deadline time.Duration

	busy    bool
	pins    map[string]*pin.Controller
	control *recording.ControlSurface
	results chan jobResult
	inbox   chan func()
	actions chan request
	done    chan struct{}

	// Recording states coalesce to the latest one instead of queueing.
	stateMu     sync.Mutex
	latestState recording.State
	stateCh     chan struct{}
}

// New creates a loop with a recording machine wired to opts.Backend.
func New(opts Options) (*Loop, error) {
	if opts.Config == nil || opts.Backend == nil || opts.Registry == nil || opts.Selector == nil {
		return nil, errors.New("eventloop: config, backend, registry and selector are required")
	}
	if opts.Notifications == nil {
		opts.Notifications = notification.New(notification.Options{})
	}
	if opts.Grab == nil {
		opts.Grab = func(r screenshot.Region) (image.Image, error) {
			return screenshot.CaptureRegion(r, backend.AllDisplays)
		}
	}
	deadlineSec := opts.Config.OCRDeadlineSec
	if deadlineSec <= 0 {
		deadlineSec = 20
	}

	l := &Loop{
		opts:     opts,
		pool:     worker.New(0),
		deadline: time.Duration(deadlineSec) * time.Second,
		pins:     make(map[string]*pin.Controller),
		results:  make(chan jobResult, 4),
		inbox:    make(chan func(), 64),
		actions:  make(chan request, 8),
		done:     make(chan struct{}),
		stateCh:  make(chan struct{}, 1),
		control:  recording.NewControlSurface(screenshot.Point{X: 40, Y: 40}),
	}
	l.rec = recording.New(recording.Options{
		Backend:  opts.Backend,
		Selector: opts.Selector,
		OnState: l.signalState,
		OnTick: func(elapsed time.Duration) {
			l.post(func() { l.recordingTick(elapsed) })
		},
		OnCompleted: func(item *backend.Item) {
			l.postWait(func() {
				log.Printf("eventloop: recording saved to %s", item.Path)
				l.opts.Notifications.Push(notification.KindSave)
			})
		},
		OnFailed: func(err error) {
			l.postWait(func() {
				log.Printf("eventloop: recording failed: %v", err)
				l.publish(messages.RecordingFailed{Message: err.Error()})
			})
		},
	})
	return l, nil
}

// Recording exposes the recording machine for surfaces such as the control bar.
func (l *Loop) Recording() *recording.Machine { return l.rec }

// Dispatch queues action from any goroutine. The result, if any, goes to
// target; nil uses the clipboard.
func (l *Loop) Dispatch(action string, target session.ResultTarget) {
	if target == nil {
		target = session.ClipboardTarget{Write: l.opts.WriteText}
	}
	select {
	case l.actions <- request{action: action, target: target}:
	default:
		log.Printf("eventloop: action queue full, dropping %s", action)
		_ = target.OnFailure(ErrBusy)
	}
}

func (l *Loop) post(f func()) {
	select {
	case l.inbox <- f:
	default:
		log.Printf("eventloop: inbox full, dropping callback")
	}
}

// postWait queues f, waiting for room instead of dropping it. It must not
// be called from the loop goroutine.
func (l *Loop) postWait(f func()) {
	select {
	case l.inbox <- f:
	case <-l.done:
	}
}

// signalState records s as the latest recording state and wakes the loop.
// It never blocks, so it is safe from the loop goroutine too.
func (l *Loop) signalState(s recording.State) {
	l.stateMu.Lock()
	l.latestState = s
	l.stateMu.Unlock()
	select {
	case l.stateCh <- struct{}{}:
	default:
	}
}

func (l *Loop) publish(msg messages.Message) {
	if l.opts.Router != nil {
		l.opts.Router.Publish(messages.ComponentMain, msg)
	}
}

// Run processes input until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.pool.Close()
	defer l.rec.Close()
	// Closed before the machine drains so late callbacks stop waiting.
	defer close(l.done)

	var routed <-chan messages.MessageEnvelope
	if l.opts.Router != nil {
		ch, err := l.opts.Router.Subscribe(messages.ComponentMain, 32)
		if err != nil {
			return err
		}
		defer l.opts.Router.Unsubscribe(messages.ComponentMain)
		routed = ch
	}

	var triggers <-chan hotkey.Trigger
	if l.opts.Hotkeys != nil {
		triggers = l.opts.Hotkeys.Triggers()
	}

	var conns <-chan singleinstance.Conn
	if l.opts.Server != nil {
		if err := l.opts.Server.Start(ctx); err != nil {
			return err
		}
		if p := l.opts.Server.Port(); p > 0 {
			log.Printf("Resident listening on 127.0.0.1:%d", p)
		}
		ch := make(chan singleinstance.Conn, 4)
		go func() {
			for {
				conn, err := l.opts.Server.Next(ctx)
				if err != nil {
					close(ch)
					return
				}
				select {
				case ch <- conn:
				case <-ctx.Done():
					_ = conn.Close()
					return
				}
			}
		}()
		conns = ch
	}

	for {
		select {
		case <-ctx.Done():
			l.rec.Cancel()
			return ctx.Err()
		case tr := <-triggers:
			l.publish(messages.ShortcutTriggered{Action: string(tr.Action), Combo: tr.Combo})
			l.handle(ctx, request{action: string(tr.Action), target: session.ClipboardTarget{Write: l.opts.WriteText}})
		case env, ok := <-routed:
			if !ok {
				routed = nil
				continue
			}
			l.handleMessage(ctx, env)
		case conn, ok := <-conns:
			if !ok {
				conns = nil
				continue
			}
			l.handleConn(ctx, conn)
		case req := <-l.actions:
			l.handle(ctx, req)
		case res := <-l.results:
			l.handleResult(res)
		case f := <-l.inbox:
			f()
		case <-l.stateCh:
			l.stateMu.Lock()
			s := l.latestState
			l.stateMu.Unlock()
			l.recordingState(s)
		}
	}
}

func (l *Loop) handleMessage(ctx context.Context, env messages.MessageEnvelope) {
	switch m := env.Message.(type) {
	case messages.TrayAction:
		l.handle(ctx, request{action: m.Action, target: session.ClipboardTarget{Write: l.opts.WriteText}})
	case messages.ShortcutTriggered:
		if env.From != messages.ComponentMain {
			l.handle(ctx, request{action: m.Action, target: session.ClipboardTarget{Write: l.opts.WriteText}})
		}
	case messages.PermissionChanged:
		if m.Status == backend.PermissionDenied {
			log.Printf("eventloop: %s capture permission denied; captures will fail until it is granted", m.Permission)
		} else {
			log.Printf("eventloop: %s capture permission %s", m.Permission, m.Status)
		}
	}
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	req := conn.Request()
	log.Printf("eventloop: delegated %s (stdout=%t)", req.Action, req.OutputToStdout)
	l.handle(ctx, request{
		action: req.Action,
		target: session.DelegatedTarget{Conn: conn, OutputToStdout: req.OutputToStdout, Write: l.opts.WriteText},
		done:   func() { _ = conn.Close() },
	})
}

func (l *Loop) setBusy(b bool) {
	l.busy = b
	if l.opts.Indicator != nil {
		l.opts.Indicator.SetBusy(b)
	}
}

// handle runs on the loop goroutine.
func (l *Loop) handle(ctx context.Context, req request) {
	log.Printf("eventloop: action %s", req.action)
	cfg := l.opts.Config
	format := screenshot.ParseFormat(cfg.ImageFormat, cfg.JPEGQuality)
	b := l.opts.Backend

	switch req.action {
	case string(hotkey.ActionCaptureFullscreen):
		l.startJob(ctx, req, notification.KindSave, nil, func(ctx context.Context) (session.Result, error) {
			item, err := b.CaptureFullscreen(ctx, backend.AllDisplays, cfg.IncludeCursor, format)
			return session.Result{Item: item}, err
		})
	case string(hotkey.ActionCaptureArea):
		l.startSession(ctx, req, notification.KindSave, nil, func(ctx context.Context, r screenshot.Region) (session.Result, error) {
			item, err := b.CaptureArea(ctx, r, backend.AllDisplays, cfg.IncludeCursor, format)
			return session.Result{Item: item}, err
		})
	case string(hotkey.ActionCaptureWindow):
		l.startJob(ctx, req, notification.KindSave, nil, func(ctx context.Context) (session.Result, error) {
			w, err := b.WindowAtPointer()
			if err != nil {
				return session.Result{}, err
			}
			item, err := b.CaptureWindow(ctx, w.ID, cfg.IncludeCursor, format)
			return session.Result{Item: item}, err
		})
	case string(hotkey.ActionOCR):
		l.startSession(ctx, req, notification.KindOCR, nil, l.recognize)
	case string(hotkey.ActionPin):
		var origin screenshot.Point
		after := func(res session.Result) { l.openPin(res, origin) }
		l.startSession(ctx, req, notification.KindPin, after, func(ctx context.Context, r screenshot.Region) (session.Result, error) {
			origin = screenshot.Point{X: r.X, Y: r.Y}
			item, err := b.CaptureArea(ctx, r, backend.AllDisplays, false, screenshot.Format{Kind: screenshot.FormatPNG})
			return session.Result{Item: item}, err
		})
	case string(hotkey.ActionRecordArea):
		l.toggleRecording(req, nil)
	case string(hotkey.ActionRecordFullscreen):
		t := backend.Fullscreen(backend.AllDisplays)
		l.toggleRecording(req, &t)
	case string(hotkey.ActionRecordWindow):
		if l.rec.State() != recording.Idle {
			l.toggleRecording(req, nil)
			return
		}
		w, err := b.WindowAtPointer()
		if err != nil {
			l.fail(req, err)
			return
		}
		t := backend.Window(w.ID)
		l.toggleRecording(req, &t)
	case tray.ActionStopRecording:
		l.immediate(req, l.rec.Stop())
	case tray.ActionCancelRecording:
		if !l.rec.Cancel() {
			l.fail(req, recording.ErrInvalidTransition)
			return
		}
		l.immediate(req, nil)
	case string(hotkey.ActionAllInOne):
		l.openSurface(req, window.RoleCaptureMenu, "", window.Config{
			Title: "Capture", Width: 420, Height: 120, AlwaysOnTop: true, Borderless: true,
		})
	case string(hotkey.ActionShowShortcuts):
		l.openSurface(req, window.RoleSettings, "shortcuts", window.Config{
			Title: "Keyboard Shortcuts", Width: 420, Height: 480,
		})
	case tray.ActionPreferences:
		l.openSurface(req, window.RoleSettings, "", window.Config{
			Title: "ScreenCapture Preferences", Width: 600, Height: 500, Resizable: true,
		})
	case string(hotkey.ActionOpenScreenshots), tray.ActionOpenFolder:
		l.openFolder(req)
	case tray.ActionQuit:
		l.immediate(req, nil)
		if l.opts.OnQuit != nil {
			l.opts.OnQuit()
		}
	default:
		l.fail(req, fmt.Errorf("unknown action %q", req.action))
	}
}

func (l *Loop) immediate(req request, err error) {
	if err != nil {
		l.fail(req, err)
		return
	}
	if err := req.target.OnSuccess(session.Result{}); err != nil {
		log.Printf("eventloop: delivery error: %v", err)
	}
	req.finish()
}

func (l *Loop) fail(req request, err error) {
	log.Printf("eventloop: %s failed: %v", req.action, err)
	_ = req.target.OnFailure(err)
	req.finish()
}

// gated reports whether a new job must be refused: a job is running or the
// recording machine owns the selection overlay.
func (l *Loop) gated() bool {
	return l.busy || l.rec.State() == recording.Selecting
}

// startJob runs fn on the pool under the OCR deadline and posts the result back.
func (l *Loop) startJob(ctx context.Context, req request, kind notification.Kind, after func(session.Result), fn func(ctx context.Context) (session.Result, error)) {
	if l.gated() {
		l.fail(req, ErrBusy)
		return
	}
	jobCtx, cancel := context.WithTimeout(ctx, l.deadline)
	l.setBusy(true)
	ok := worker.Go(l.pool, jobCtx, req.action, fn, func(res session.Result, err error) {
		l.results <- jobResult{req: req, res: res, err: err, kind: kind, cancel: cancel, after: after}
	})
	if !ok {
		cancel()
		l.setBusy(false)
		l.fail(req, ErrBusy)
	}
}

// startSession runs an interactive select-then-process flow on the pool. The
// selection deadline is separate from the processing deadline.
func (l *Loop) startSession(ctx context.Context, req request, kind notification.Kind, after func(session.Result), process session.ProcessFunc) {
	if l.gated() {
		l.fail(req, ErrBusy)
		return
	}
	l.setBusy(true)
	ok := l.pool.Submit(ctx, req.action, func(ctx context.Context) {
		res, err := session.Execute(ctx, session.Options{
			Deadline:     l.deadline,
			SelectRegion: l.opts.Selector.Select,
			Process:      process,
			Target:       noopTarget{},
		})
		l.results <- jobResult{req: req, res: res, err: err, kind: kind, after: after}
	})
	if !ok {
		l.setBusy(false)
		l.fail(req, ErrBusy)
	}
}

// noopTarget defers delivery to handleResult on the loop goroutine.
type noopTarget struct{}

func (noopTarget) OnSuccess(session.Result) error { return nil }
func (noopTarget) OnFailure(error) error          { return nil }

func (l *Loop) handleResult(res jobResult) {
	defer func() {
		l.setBusy(false)
		if res.cancel != nil {
			res.cancel()
		}
		res.req.finish()
	}()

	if res.err != nil {
		if errors.Is(res.err, session.ErrSelectionCancelled) {
			log.Printf("eventloop: %s cancelled", res.req.action)
		} else {
			log.Printf("eventloop: %s failed: %v", res.req.action, res.err)
		}
		_ = res.req.target.OnFailure(res.err)
		return
	}
	if err := res.req.target.OnSuccess(res.res); err != nil {
		log.Printf("eventloop: delivery error: %v", err)
		_ = res.req.target.OnFailure(err)
		return
	}
	if res.after != nil {
		res.after(res.res)
	}
	l.opts.Notifications.Push(res.kind)
}

// recognize captures r to a temporary PNG and runs OCR on it.
func (l *Loop) recognize(ctx context.Context, r screenshot.Region) (session.Result, error) {
	img, err := l.opts.Grab(r)
	if err != nil {
		return session.Result{}, fmt.Errorf("capture region: %w", err)
	}
	data, err := screenshot.Encode(img, screenshot.Format{Kind: screenshot.FormatPNG})
	if err != nil {
		return session.Result{}, err
	}
	f, err := os.CreateTemp("", "screen-capture-ocr-*.png")
	if err != nil {
		return session.Result{}, err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return session.Result{}, err
	}
	if err := f.Close(); err != nil {
		return session.Result{}, err
	}

	blocks, err := l.opts.Backend.RecognizeText(ctx, f.Name(), l.opts.Config.OCRLanguages)
	if err != nil {
		return session.Result{}, err
	}
	text := ocr.Text(blocks)
	if text == "" {
		return session.Result{}, errors.New("no text detected")
	}
	return session.Result{Text: text}, nil
}

func (l *Loop) toggleRecording(req request, target *backend.Target) {
	switch l.rec.State() {
	case recording.Recording:
		l.immediate(req, l.rec.Stop())
		return
	case recording.Idle:
	default:
		l.fail(req, recording.ErrSessionActive)
		return
	}
	if l.busy {
		l.fail(req, ErrBusy)
		return
	}
	cfg := l.opts.Config
	rc := backend.DefaultRecordingConfig()
	rc.FPS = cfg.RecordingFPS
	rc.Quality = backend.ParseQuality(cfg.RecordingQuality)
	rc.IncludeCursor = cfg.IncludeCursor
	rc.IncludeMicrophone = cfg.RecordMicrophone
	rc.IncludeSystemAudio = cfg.RecordSystemAudio
	rc.ShowMouseClicks = cfg.ShowClicks
	l.immediate(req, l.rec.Request(recording.Request{Target: target, Config: rc}))
}

func (l *Loop) recordingState(s recording.State) {
	l.publish(messages.RecordingStateChanged{State: s.String()})
	if l.opts.Indicator != nil {
		l.opts.Indicator.SetRecording(s, recording.FormatElapsed(l.rec.Elapsed()))
	}
	label := window.Label(window.RoleRecordingControl, "")
	switch s {
	case recording.Recording:
		if l.opts.Views != nil {
			l.opts.Views.BindRecordingControl(label, l.rec, l.control)
		}
		pos := l.control.Position()
		_, err := l.opts.Registry.Open(window.RoleRecordingControl, "", window.Config{
			Title: "Recording", X: pos.X, Y: pos.Y, Width: 220, Height: 44, Borderless: true, AlwaysOnTop: true,
			// Hidden controls need no elapsed samples; the clock itself keeps running.
			OnClosed: func() { l.rec.SetSampling(false) },
		})
		if err != nil {
			log.Printf("eventloop: recording control: %v", err)
		}
	case recording.Idle:
		_ = l.opts.Registry.Close(label)
		if l.opts.Views != nil {
			l.opts.Views.Unbind(label)
		}
		l.rec.SetSampling(true)
	}
}

func (l *Loop) recordingTick(elapsed time.Duration) {
	display := recording.FormatElapsed(elapsed)
	l.publish(messages.RecordingDuration{ElapsedSeconds: elapsed.Seconds(), Display: display})
	if l.opts.Views != nil {
		l.opts.Views.UpdateRecordingControl(window.Label(window.RoleRecordingControl, ""), display)
	}
	if l.opts.Indicator != nil {
		l.opts.Indicator.SetRecording(l.rec.State(), display)
	}
}

func (l *Loop) openSurface(req request, role window.Role, subject string, cfg window.Config) {
	_, err := l.opts.Registry.Open(role, subject, cfg)
	l.immediate(req, err)
}

func (l *Loop) openFolder(req request) {
	info, err := l.opts.Backend.StorageInfo()
	if err != nil {
		l.fail(req, err)
		return
	}
	if err := os.MkdirAll(info.Path, 0o755); err != nil {
		l.fail(req, err)
		return
	}
	if l.opts.OpenPath != nil {
		if err := l.opts.OpenPath(info.Path); err != nil {
			l.fail(req, err)
			return
		}
	}
	if err := req.target.OnSuccess(session.Result{}); err != nil {
		log.Printf("eventloop: delivery error: %v", err)
	}
	req.finish()
	l.opts.Notifications.Push(notification.KindOpen)
}

// openPin floats the captured item above other windows at origin.
func (l *Loop) openPin(res session.Result, origin screenshot.Point) {
	if res.Item == nil {
		return
	}
	f, err := os.Open(res.Item.Path)
	if err != nil {
		log.Printf("eventloop: pin: %v", err)
		return
	}
	img, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		log.Printf("eventloop: pin: decode %s: %v", res.Item.Path, err)
		return
	}

	id := res.Item.ID
	label := window.Label(window.RolePin, id)
	c, err := pin.New(img, origin, pin.Options{
		Copier:   l.opts.Copier,
		Notifier: l.opts.Notifications,
		// OnClose may run on the window system goroutine.
		OnClose: func() {
			go l.postWait(func() { l.closePin(id) })
		},
		OnChange: func(vp pin.Viewport) {
			if l.opts.Views != nil {
				l.opts.Views.UpdatePin(label, vp)
			}
		},
	})
	if err != nil {
		log.Printf("eventloop: pin: %v", err)
		return
	}
	if l.opts.Views != nil {
		l.opts.Views.BindPin(label, img, c)
	}
	b := img.Bounds()
	_, err = l.opts.Registry.Open(window.RolePin, id, window.Config{
		Title:       "Pin",
		X:           origin.X,
		Y:           origin.Y,
		Width:       b.Dx(),
		Height:      b.Dy(),
		Borderless:  true,
		AlwaysOnTop: true,
		Resizable:   true,
		OnClosed:    c.Close,
	})
	if err != nil {
		log.Printf("eventloop: pin: open surface: %v", err)
		if l.opts.Views != nil {
			l.opts.Views.Unbind(label)
		}
		return
	}
	l.pins[id] = c
}

// closePin forgets a pin closed by the user or its own shortcuts.
func (l *Loop) closePin(id string) {
	label := window.Label(window.RolePin, id)
	delete(l.pins, id)
	_ = l.opts.Registry.Close(label)
	if l.opts.Views != nil {
		l.opts.Views.Unbind(label)
	}
	log.Printf("eventloop: pin %s closed", id)
}

// Pins reports the number of open pins. It must be called from the loop
// goroutine, e.g. through Do.
func (l *Loop) Pins() int { return len(l.pins) }

// Do runs f on the loop goroutine.
func (l *Loop) Do(f func()) { l.post(f) }

// ApplySettings merges changed preferences into the running configuration.
// A changed shortcut mode rebinds the global shortcuts.
func (l *Loop) ApplySettings(s config.Settings) {
	l.post(func() {
		prev := l.opts.Config.ShortcutMode
		l.opts.Config.Apply(s)
		if l.opts.Config.ShortcutMode == prev {
			return
		}
		if err := l.setShortcutMode(l.opts.Config.ShortcutMode); err != nil {
			log.Printf("eventloop: shortcut mode %q: %v", l.opts.Config.ShortcutMode, err)
			l.opts.Config.ShortcutMode = prev
		}
	})
}

func (l *Loop) setShortcutMode(value string) error {
	mode, err := hotkey.ParseMode(value)
	if err == nil && l.opts.Hotkeys != nil {
		err = l.opts.Hotkeys.SetMode(mode)
	}
	if err != nil {
		l.opts.Notifications.Push(notification.KindShortcutModeFailed)
		return err
	}
	log.Printf("eventloop: shortcut mode is now %s", mode)
	l.opts.Notifications.Push(notification.KindShortcutModeChanged)
	return nil
}
