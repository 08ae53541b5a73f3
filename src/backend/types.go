package backend

import (
	"fmt"
	"strings"

	"screen-capture/src/ocr"
	"screen-capture/src/screenshot"
	"screen-capture/src/storage"
)

// Item is a saved capture as recorded in the history.
type Item = storage.Item

// TextBlock is one recognized line of text.
type TextBlock = ocr.TextBlock

// ImageFormat selects the screenshot encoding.
type ImageFormat = screenshot.Format

// AllDisplays selects the union of all displays for a fullscreen target.
const AllDisplays = -1

// TargetKind is the kind of region a capture or recording covers.
type TargetKind string

const (
	TargetFullscreen TargetKind = "fullscreen"
	TargetArea       TargetKind = "area"
	TargetWindow     TargetKind = "window"
)

// Target is what a recording (or screenshot) covers.
type Target struct {
	Kind      TargetKind        `json:"type"`
	DisplayID int               `json:"display_id"`
	Area      screenshot.Region `json:"area,omitempty"`
	WindowID  int               `json:"window_id,omitempty"`
}

// Fullscreen targets one display, or all of them with AllDisplays.
func Fullscreen(displayID int) Target {
	return Target{Kind: TargetFullscreen, DisplayID: displayID}
}

// Area targets a rectangle relative to display displayID.
func Area(r screenshot.Region, displayID int) Target {
	return Target{Kind: TargetArea, Area: r, DisplayID: displayID}
}

// Window targets a top-level window.
func Window(windowID int) Target {
	return Target{Kind: TargetWindow, WindowID: windowID, DisplayID: AllDisplays}
}

// Validate rejects targets that cannot be captured.
func (t Target) Validate() error {
	switch t.Kind {
	case TargetFullscreen:
		return nil
	case TargetArea:
		if t.Area.Width <= 0 || t.Area.Height <= 0 {
			return errorf(ErrInvalidConfig, "empty area %s", t.Area)
		}
		return nil
	case TargetWindow:
		if t.WindowID <= 0 {
			return errorf(ErrInvalidConfig, "invalid window id %d", t.WindowID)
		}
		return nil
	default:
		return errorf(ErrInvalidConfig, "unknown target kind %q", t.Kind)
	}
}

func (t Target) String() string {
	switch t.Kind {
	case TargetArea:
		return fmt.Sprintf("area %s on display %d", t.Area, t.DisplayID)
	case TargetWindow:
		return fmt.Sprintf("window %d", t.WindowID)
	case TargetFullscreen:
		if t.DisplayID == AllDisplays {
			return "fullscreen (all displays)"
		}
		return fmt.Sprintf("fullscreen display %d", t.DisplayID)
	}
	return string(t.Kind)
}

// Quality is a recording quality preset.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// ParseQuality maps a config value to a preset, defaulting to high.
func ParseQuality(value string) Quality {
	switch Quality(strings.ToLower(strings.TrimSpace(value))) {
	case QualityLow:
		return QualityLow
	case QualityMedium:
		return QualityMedium
	default:
		return QualityHigh
	}
}

// MaxHeight is the output height cap in pixels; 0 keeps the native height.
func (q Quality) MaxHeight() int {
	switch q {
	case QualityLow:
		return 720
	case QualityMedium:
		return 1080
	default:
		return 0
	}
}

// Bitrate in bits per second for video encoders.
func (q Quality) Bitrate() int {
	switch q {
	case QualityLow:
		return 5_000_000
	case QualityMedium:
		return 8_000_000
	default:
		return 12_000_000
	}
}

// RecordingConfig controls a recording session.
type RecordingConfig struct {
	Quality            Quality `json:"quality"`
	FPS                int     `json:"fps"`
	IncludeCursor      bool    `json:"include_cursor"`
	ShowMouseClicks    bool    `json:"show_mouse_clicks"`
	IncludeMicrophone  bool    `json:"include_microphone"`
	IncludeSystemAudio bool    `json:"include_system_audio"`
	ExcludeAppAudio    bool    `json:"exclude_app_audio"`
}

// DefaultRecordingConfig returns high quality at 60 fps with cursor, clicks
// and system audio.
func DefaultRecordingConfig() RecordingConfig {
	return RecordingConfig{
		Quality:            QualityHigh,
		FPS:                60,
		IncludeCursor:      true,
		ShowMouseClicks:    true,
		IncludeMicrophone:  false,
		IncludeSystemAudio: true,
		ExcludeAppAudio:    true,
	}
}

// Validate rejects unusable configurations.
func (c RecordingConfig) Validate() error {
	if c.FPS < 1 || c.FPS > 120 {
		return errorf(ErrInvalidConfig, "fps %d out of range [1,120]", c.FPS)
	}
	switch c.Quality {
	case QualityLow, QualityMedium, QualityHigh:
		return nil
	}
	return errorf(ErrInvalidConfig, "unknown quality %q", c.Quality)
}

// DisplayInfo describes an active display.
type DisplayInfo struct {
	ID        int               `json:"id"`
	Bounds    screenshot.Region `json:"bounds"`
	IsPrimary bool              `json:"is_primary"`
}

// WindowInfo describes a capturable top-level window.
type WindowInfo struct {
	ID      int               `json:"id"`
	Title   string            `json:"title"`
	AppName string            `json:"app_name"`
	Bounds  screenshot.Region `json:"bounds"`
}
