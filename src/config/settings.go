package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// Settings are the user preferences edited from the preferences window and
// persisted as TOML. Unset fields leave the environment value in place.
type Settings struct {
	ShortcutMode     string `toml:"shortcut_mode,omitempty"`
	StorageLocation  string `toml:"storage_location,omitempty"`
	StorageDir       string `toml:"storage_dir,omitempty"`
	ImageFormat      string `toml:"image_format,omitempty"`
	IncludeCursor    *bool  `toml:"include_cursor,omitempty"`
	RecordingQuality string `toml:"recording_quality,omitempty"`
	RecordingFPS     int    `toml:"recording_fps,omitempty"`
	ShowClicks       *bool  `toml:"show_clicks,omitempty"`
	UILanguage       string `toml:"ui_language,omitempty"`
}

// SettingsPath returns <user config dir>/ScreenCapture/settings.toml.
func SettingsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ScreenCapture", "settings.toml"), nil
}

// LoadSettings reads path. A missing file yields empty settings.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes s to path atomically.
func SaveSettings(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	if err := toml.NewEncoder(tmp).Encode(s); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Apply overlays the fields set in s. Invalid values are ignored.
func (c *Config) Apply(s Settings) {
	if s.ShortcutMode != "" {
		c.ShortcutMode = resolveShortcutMode(s.ShortcutMode)
	}
	if s.StorageLocation != "" {
		c.StorageLocation = resolveStorageLocation(s.StorageLocation)
	}
	if s.StorageDir != "" {
		c.StorageDir = s.StorageDir
	}
	if s.ImageFormat != "" {
		c.ImageFormat = resolveImageFormat(s.ImageFormat)
	}
	if s.IncludeCursor != nil {
		c.IncludeCursor = *s.IncludeCursor
	}
	if s.RecordingQuality != "" {
		c.RecordingQuality = resolveRecordingQuality(s.RecordingQuality)
	}
	if s.RecordingFPS >= 1 && s.RecordingFPS <= 120 {
		c.RecordingFPS = s.RecordingFPS
	}
	if s.ShowClicks != nil {
		c.ShowClicks = *s.ShowClicks
	}
	if s.UILanguage != "" {
		c.UILanguage = s.UILanguage
	}
}

// Watch calls onChange with freshly decoded settings whenever path is
// written. It blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(Settings)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	// Watch the directory: editors and SaveSettings replace the file.
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			s, err := LoadSettings(path)
			if err != nil {
				log.Printf("config: reload %s: %v", path, err)
				continue
			}
			log.Printf("config: settings reloaded from %s", path)
			onChange(s)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("config: watcher error: %v", err)
		}
	}
}
