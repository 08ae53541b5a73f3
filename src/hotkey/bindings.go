package hotkey

import (
	"fmt"
	"strings"
)

// Action names a shortcut-triggered command. The string form is what travels
// on the shortcut:triggered event.
type Action string

const (
	ActionCaptureFullscreen Action = "capture-fullscreen"
	ActionCaptureArea       Action = "capture-area"
	ActionCaptureWindow     Action = "capture-window"
	ActionRecordArea        Action = "record-area"
	ActionRecordWindow      Action = "record-window"
	ActionRecordFullscreen  Action = "record-fullscreen"
	ActionAllInOne          Action = "all-in-one"
	ActionOCR               Action = "ocr"
	ActionPin               Action = "pin"
	ActionOpenScreenshots   Action = "open-screenshots"
	ActionShowShortcuts     Action = "show-shortcuts"
)

// Mode selects the modifier prefix of the global shortcuts.
type Mode string

const (
	// ModeSafe uses Ctrl+Shift, which does not collide with OS screenshot keys.
	ModeSafe Mode = "safe"
	// ModeNative uses Cmd+Shift like the platform screenshot tool.
	ModeNative Mode = "native"
)

// ParseMode validates a configured shortcut mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSafe:
		return ModeSafe, nil
	case ModeNative:
		return ModeNative, nil
	default:
		return "", fmt.Errorf("unknown shortcut mode %q", s)
	}
}

// Binding ties an action to a key combination such as "Ctrl+Shift+4".
type Binding struct {
	Action Action
	Combo  string
}

// Bindings returns the shortcut table for mode. Record window and show
// shortcuts use fixed combos in both modes.
func Bindings(mode Mode) []Binding {
	prefix := "Ctrl+Shift+"
	if mode == ModeNative {
		prefix = "Cmd+Shift+"
	}
	return []Binding{
		{ActionCaptureFullscreen, prefix + "3"},
		{ActionCaptureArea, prefix + "4"},
		{ActionCaptureWindow, prefix + "5"},
		{ActionRecordArea, prefix + "7"},
		{ActionRecordWindow, "Alt+Shift+8"},
		{ActionRecordFullscreen, prefix + "9"},
		{ActionAllInOne, prefix + "Alt+A"},
		{ActionOCR, prefix + "O"},
		{ActionPin, prefix + "P"},
		{ActionOpenScreenshots, prefix + "S"},
		{ActionShowShortcuts, "Cmd+/"},
	}
}
