package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSettings(t *testing.T) LoadOptions {
	return LoadOptions{SettingsPath: filepath.Join(t.TempDir(), "settings.toml")}
}

func TestLoad(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test_api_key")
	t.Setenv(APIKeyPathEnvVar, filepath.Join(t.TempDir(), "missing"))
	t.Setenv("MODEL", "test_model")
	t.Setenv("ENABLE_FILE_LOGGING", "true")
	t.Setenv("PROVIDERS", "a, b,,c")
	t.Setenv("SHORTCUT_MODE", "Native")
	t.Setenv("IMAGE_FORMAT", "jpg")
	t.Setenv("JPEG_QUALITY", "80")
	t.Setenv("RECORDING_FPS", "30")
	t.Setenv("SHOW_CLICKS", "false")

	cfg, err := LoadWithOptions(noSettings(t))
	require.NoError(t, err)

	assert.Equal(t, "test_api_key", cfg.APIKey)
	assert.Equal(t, "test_model", cfg.Model)
	assert.True(t, cfg.EnableFileLogging)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Providers)
	assert.Equal(t, ShortcutModeNative, cfg.ShortcutMode)
	assert.Equal(t, "jpeg", cfg.ImageFormat)
	assert.InDelta(t, 0.8, cfg.JPEGQuality, 0.0001)
	assert.Equal(t, 30, cfg.RecordingFPS)
	assert.False(t, cfg.ShowClicks)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SHORTCUT_MODE", "turbo")
	t.Setenv("STORAGE_LOCATION", "moon")
	t.Setenv("RECORDING_FPS", "500")
	t.Setenv("RECORDING_QUALITY", "ultra")
	t.Setenv("OCR_DEADLINE_SEC", "-3")
	t.Setenv("INCLUDE_CURSOR", "maybe")
	t.Setenv("NOTIFICATION_HOLD_MS", "x")

	cfg, err := LoadWithOptions(noSettings(t))
	require.NoError(t, err)
	assert.Equal(t, ShortcutModeSafe, cfg.ShortcutMode)
	assert.Equal(t, "default", cfg.StorageLocation)
	assert.Equal(t, 60, cfg.RecordingFPS)
	assert.Equal(t, "high", cfg.RecordingQuality)
	assert.Equal(t, 20, cfg.OCRDeadlineSec)
	assert.False(t, cfg.IncludeCursor)
	assert.Equal(t, 1800, cfg.NotificationHoldMs)
	assert.Equal(t, OCREngineVision, cfg.OCREngine)
}

func TestSettingsOverrideEnvAndCLIOverridesSettings(t *testing.T) {
	t.Setenv("SHORTCUT_MODE", "safe")
	t.Setenv("IMAGE_FORMAT", "png")
	path := filepath.Join(t.TempDir(), "prefs", "settings.toml")
	on := true
	require.NoError(t, SaveSettings(path, Settings{
		ShortcutMode:  "native",
		ImageFormat:   "tiff",
		IncludeCursor: &on,
		RecordingFPS:  999,
	}))

	cfg, err := LoadWithOptions(LoadOptions{SettingsPath: path})
	require.NoError(t, err)
	assert.Equal(t, ShortcutModeNative, cfg.ShortcutMode)
	assert.Equal(t, "tiff", cfg.ImageFormat)
	assert.True(t, cfg.IncludeCursor)
	assert.Equal(t, 60, cfg.RecordingFPS)

	cfg, err = LoadWithOptions(LoadOptions{SettingsPath: path, ShortcutModeOverride: "safe"})
	require.NoError(t, err)
	assert.Equal(t, ShortcutModeSafe, cfg.ShortcutMode)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, Settings{}, s)
}

func TestWatchReloadsSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Settings, 8)
	errs := make(chan error, 1)
	go func() { errs <- Watch(ctx, path, func(s Settings) { got <- s }) }()

	require.Eventually(t, func() bool {
		if err := SaveSettings(path, Settings{ShortcutMode: "native"}); err != nil {
			return false
		}
		select {
		case s := <-got:
			return s.ShortcutMode == "native"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errs)
}
