// Package tray shows the system tray menu and the recording indicator.
package tray

import (
	"fmt"
	"log"
	"sync"

	"github.com/getlantern/systray"

	"screen-capture/src/hotkey"
	"screen-capture/src/recording"
)

// Tray-only actions. Capture entries reuse the shortcut action names.
const (
	ActionOpenFolder      = "open-folder"
	ActionPreferences     = "preferences"
	ActionStopRecording   = "stop-recording"
	ActionCancelRecording = "cancel-recording"
	ActionQuit            = "quit"
)

// MenuItem is one clickable tray entry. Zero Action marks a separator.
type MenuItem struct {
	Action  string
	Title   string
	Tooltip string
}

// Menu returns the tray layout. Capture titles carry the active shortcut.
func Menu(mode hotkey.Mode) []MenuItem {
	combos := make(map[hotkey.Action]string)
	for _, b := range hotkey.Bindings(mode) {
		combos[b.Action] = b.Combo
	}
	entry := func(a hotkey.Action, title string) MenuItem {
		return MenuItem{
			Action:  string(a),
			Title:   fmt.Sprintf("%s\t%s", title, combos[a]),
			Tooltip: title,
		}
	}
	return []MenuItem{
		entry(hotkey.ActionCaptureFullscreen, "Capture Fullscreen"),
		entry(hotkey.ActionCaptureArea, "Capture Area"),
		entry(hotkey.ActionCaptureWindow, "Capture Window"),
		{},
		{Action: ActionOpenFolder, Title: "Open Screenshots Folder", Tooltip: "Open the folder captures are saved to"},
		{Action: ActionPreferences, Title: "Preferences…", Tooltip: "Open preferences"},
		{},
		{Action: ActionQuit, Title: "Quit ScreenCapture", Tooltip: "Quit the application"},
	}
}

// Indicator returns the tray title and tooltip for a recording state.
func Indicator(base string, state recording.State, elapsed string) (title, tooltip string) {
	switch state {
	case recording.Selecting:
		return "", base + " - select an area to record"
	case recording.Starting:
		return "●", base + " - starting recording"
	case recording.Recording:
		return "● " + elapsed, base + " - recording " + elapsed
	case recording.Stopping:
		return "● " + elapsed, base + " - saving recording"
	default:
		return "", base
	}
}

// RecordingItems reports which of the stop and cancel entries a state shows.
// Stop only applies to a running recording; cancel discards anything short
// of saving.
func RecordingItems(state recording.State) (stop, cancel bool) {
	switch state {
	case recording.Recording:
		return true, true
	case recording.Selecting, recording.Starting:
		return false, true
	}
	return false, false
}

type Config struct {
	Title    string
	Tooltip  string
	Mode     hotkey.Mode
	OnAction func(action string)
	OnExit   func()
}

// Tray owns the systray icon.
type Tray struct {
	cfg Config

	mu    sync.Mutex
	ready  bool
	stop   *systray.MenuItem
	cancel *systray.MenuItem
	busy  bool
	state recording.State
	clock string
}

func New(cfg Config) *Tray {
	if cfg.Title == "" {
		cfg.Title = "ScreenCapture"
	}
	if cfg.Tooltip == "" {
		cfg.Tooltip = cfg.Title
	}
	return &Tray{cfg: cfg}
}

// Run blocks running the systray event loop on the calling goroutine.
func (t *Tray) Run() { systray.Run(t.onReady, t.onExit) }

// Register attaches the tray to an event loop run elsewhere.
func (t *Tray) Register() { systray.Register(t.onReady, t.onExit) }

// Quit removes the icon.
func (t *Tray) Quit() { systray.Quit() }

func (t *Tray) onReady() {
	systray.SetIcon(Icon(false))
	systray.SetTitle("")
	systray.SetTooltip(t.cfg.Tooltip)

	for _, item := range Menu(t.cfg.Mode) {
		if item.Action == "" {
			systray.AddSeparator()
			continue
		}
		mi := systray.AddMenuItem(item.Title, item.Tooltip)
		go t.forward(mi, item.Action)
	}
	systray.AddSeparator()
	stop := systray.AddMenuItem("Stop Recording", "Stop and save the recording")
	stop.Hide()
	go t.forward(stop, ActionStopRecording)
	cancel := systray.AddMenuItem("Cancel Recording", "Discard the recording")
	cancel.Hide()
	go t.forward(cancel, ActionCancelRecording)

	t.mu.Lock()
	t.ready = true
	t.stop = stop
	t.cancel = cancel
	t.mu.Unlock()
	t.refresh()
	log.Printf("tray: ready")
}

func (t *Tray) onExit() {
	log.Printf("tray: exit")
	if t.cfg.OnExit != nil {
		t.cfg.OnExit()
	}
}

func (t *Tray) forward(mi *systray.MenuItem, action string) {
	for range mi.ClickedCh {
		log.Printf("tray: %s clicked", action)
		if t.cfg.OnAction != nil {
			t.cfg.OnAction(action)
		}
	}
}

// SetBusy marks a capture job in progress.
func (t *Tray) SetBusy(busy bool) {
	t.mu.Lock()
	t.busy = busy
	t.mu.Unlock()
	t.refresh()
}

// SetRecording updates the recording indicator.
func (t *Tray) SetRecording(state recording.State, elapsed string) {
	t.mu.Lock()
	t.state = state
	t.clock = elapsed
	t.mu.Unlock()
	t.refresh()
}

func (t *Tray) refresh() {
	t.mu.Lock()
	if !t.ready {
		t.mu.Unlock()
		return
	}
	state, elapsed, busy := t.state, t.clock, t.busy
	stop, cancel := t.stop, t.cancel
	t.mu.Unlock()

	title, tooltip := Indicator(t.cfg.Tooltip, state, elapsed)
	if busy && state == recording.Idle {
		tooltip = t.cfg.Tooltip + " - processing..."
	}
	systray.SetTitle(title)
	systray.SetTooltip(tooltip)
	systray.SetIcon(Icon(state != recording.Idle))
	showStop, showCancel := RecordingItems(state)
	toggle(stop, showStop)
	toggle(cancel, showCancel)
}

func toggle(mi *systray.MenuItem, show bool) {
	if show {
		mi.Show()
	} else {
		mi.Hide()
	}
}
