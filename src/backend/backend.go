// Package backend is the capture backend the interactive layer drives:
// screenshots, recordings, text recognition and the capture library.
package backend

import (
	"context"

	"screen-capture/src/screenshot"
	"screen-capture/src/storage"
)

// Capturer takes screenshots and saves them to the library.
type Capturer interface {
	CaptureFullscreen(ctx context.Context, displayID int, includeCursor bool, format ImageFormat) (*Item, error)
	CaptureArea(ctx context.Context, rect screenshot.Region, displayID int, includeCursor bool, format ImageFormat) (*Item, error)
	CaptureWindow(ctx context.Context, windowID int, includeCursor bool, format ImageFormat) (*Item, error)
}

// Recorder runs at most one recording at a time.
type Recorder interface {
	StartRecording(ctx context.Context, target Target, cfg RecordingConfig) error
	StopRecording(ctx context.Context) (*Item, error)
	// CancelRecording discards the recording. Callers treat it as best-effort.
	CancelRecording(ctx context.Context) error
}

// StatusReporter is implemented by recorders that can report whether a
// recording is really running.
type StatusReporter interface {
	IsRecording() bool
}

// Recognizer extracts text from a saved image.
type Recognizer interface {
	RecognizeText(ctx context.Context, imagePath string, languages []string) ([]TextBlock, error)
}

// Library exposes the capture history.
type Library interface {
	History() ([]Item, error)
	DeleteCapture(id string) error
	ToggleFavorite(id string) (bool, error)
	StorageInfo() (storage.Info, error)
}

// Backend is everything the interactive layer needs.
type Backend interface {
	Capturer
	Recorder
	Recognizer
	Library
}
