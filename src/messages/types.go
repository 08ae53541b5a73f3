// Package messages defines the events exchanged between the capture backend
// and the resident components (tray, notification renderer, coordinator).
package messages

import (
	"screen-capture/src/screenshot"
	"screen-capture/src/storage"
)

// Message is implemented by every event.
type Message interface {
	Type() string
}

// Event names. They double as wire names for delegated actions.
const (
	TypeRecordingStateChanged = "recording:state-changed"
	TypeRecordingDuration     = "recording:duration"
	TypeCaptureCompleted      = "capture:completed"
	TypeRecordingCompleted    = "recording:completed"
	TypeRecordingFailed       = "recording:failed"
	TypePermissionChanged     = "permission:changed"
	TypeTrayAction            = "tray:action"
	TypeShortcutTriggered     = "shortcut:triggered"
	TypeRegionSelected        = "region:selected"
	TypeRegionCancelled       = "region:cancelled"
	TypeShutdown              = "app:shutdown"
)

// RecordingStateChanged is emitted on every recording state transition.
type RecordingStateChanged struct {
	State string
}

func (m RecordingStateChanged) Type() string { return TypeRecordingStateChanged }

// RecordingDuration is the ~10 Hz elapsed tick while recording.
type RecordingDuration struct {
	ElapsedSeconds float64
	Display        string // MM:SS.d
}

func (m RecordingDuration) Type() string { return TypeRecordingDuration }

// CaptureCompleted carries a saved screenshot.
type CaptureCompleted struct {
	Item storage.Item
}

func (m CaptureCompleted) Type() string { return TypeCaptureCompleted }

// RecordingCompleted carries a finished recording artifact.
type RecordingCompleted struct {
	Item storage.Item
}

func (m RecordingCompleted) Type() string { return TypeRecordingCompleted }

// RecordingFailed reports a backend failure during the recording lifecycle.
type RecordingFailed struct {
	Message string
}

func (m RecordingFailed) Type() string { return TypeRecordingFailed }

// PermissionChanged reports a change of a capture permission.
type PermissionChanged struct {
	Permission string // "screen" or "microphone"
	Status     string
}

func (m PermissionChanged) Type() string { return TypePermissionChanged }

// TrayAction is sent when a tray menu item is clicked.
type TrayAction struct {
	Action string
}

func (m TrayAction) Type() string { return TypeTrayAction }

// ShortcutTriggered is sent when a global shortcut fires.
type ShortcutTriggered struct {
	Action string
	Combo  string
}

func (m ShortcutTriggered) Type() string { return TypeShortcutTriggered }

// RegionSelected is sent when an interactive selection confirms.
type RegionSelected struct {
	Region screenshot.Region
}

func (m RegionSelected) Type() string { return TypeRegionSelected }

// RegionCancelled is sent when an interactive selection is cancelled.
type RegionCancelled struct{}

func (m RegionCancelled) Type() string { return TypeRegionCancelled }

// Shutdown asks every subscriber to stop.
type Shutdown struct{}

func (m Shutdown) Type() string { return TypeShutdown }

// MessageEnvelope wraps messages with routing metadata.
type MessageEnvelope struct {
	From    string // source component
	To      string // destination component, "*" for broadcast
	Message Message
}

// Component names used as router endpoints.
const (
	ComponentMain    = "main"
	ComponentBackend = "backend"
	ComponentTray    = "tray"
	ComponentHotkey  = "hotkey"
	ComponentNotify  = "notify"
	ComponentOverlay = "overlay"
)
