package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/openrouter"
	APIKeyPathEnvVar  = "OPENROUTER_API_KEY_FILE"
	EnvFileEnvVar     = "SCREEN_CAPTURE_ENV"

	ShortcutModeSafe   = "safe"
	ShortcutModeNative = "native"

	OCREngineVision    = "vision"
	OCREngineTesseract = "tesseract"
)

type LoadOptions struct {
	APIKeyPathOverride   string
	ShortcutModeOverride string
	// SettingsPath overrides the persisted settings file; empty uses
	// SettingsPath().
	SettingsPath string
}

type Config struct {
	APIKey            string
	APIKeyPath        string
	Model             string
	Providers         []string
	OCRDeadlineSec    int
	OCRLanguages      []string
	OCREngine         string
	EnableFileLogging bool
	UILanguage        string

	ShortcutMode string

	StorageLocation string
	StorageDir      string
	DatabasePath    string

	ImageFormat   string
	JPEGQuality   float32
	IncludeCursor bool

	RecordingQuality  string
	RecordingFPS      int
	RecordMicrophone  bool
	RecordSystemAudio bool
	ShowClicks        bool

	NotificationHoldMs int

	// SettingsPath is where user preferences are persisted.
	SettingsPath string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

// LoadWithOptions resolves configuration in priority order: defaults, then
// .env and process environment, then persisted settings, then CLI overrides.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	cfg := &Config{
		APIKey:             resolveAPIKey(apiKeyPath),
		APIKeyPath:         apiKeyPath,
		Model:              os.Getenv("MODEL"),
		Providers:          splitList(os.Getenv("PROVIDERS")),
		OCRDeadlineSec:     envInt("OCR_DEADLINE_SEC", 20, 1, 600),
		OCRLanguages:       splitList(os.Getenv("OCR_LANGUAGES")),
		OCREngine:          resolveOCREngine(os.Getenv("OCR_ENGINE")),
		EnableFileLogging:  strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		UILanguage:         strings.TrimSpace(os.Getenv("UI_LANGUAGE")),
		ShortcutMode:       resolveShortcutMode(os.Getenv("SHORTCUT_MODE")),
		StorageLocation:    resolveStorageLocation(os.Getenv("STORAGE_LOCATION")),
		StorageDir:         strings.TrimSpace(os.Getenv("STORAGE_DIR")),
		DatabasePath:       strings.TrimSpace(os.Getenv("DATABASE_PATH")),
		ImageFormat:        resolveImageFormat(os.Getenv("IMAGE_FORMAT")),
		JPEGQuality:        envQuality("JPEG_QUALITY", 0.9),
		IncludeCursor:      envBool("INCLUDE_CURSOR", false),
		RecordingQuality:   resolveRecordingQuality(os.Getenv("RECORDING_QUALITY")),
		RecordingFPS:       envInt("RECORDING_FPS", 60, 1, 120),
		RecordMicrophone:   envBool("RECORD_MICROPHONE", false),
		RecordSystemAudio:  envBool("RECORD_SYSTEM_AUDIO", true),
		ShowClicks:         envBool("SHOW_CLICKS", true),
		NotificationHoldMs: envInt("NOTIFICATION_HOLD_MS", 1800, 100, 60000),
	}

	cfg.SettingsPath = opts.SettingsPath
	if cfg.SettingsPath == "" {
		if p, err := SettingsPath(); err == nil {
			cfg.SettingsPath = p
		}
	}
	if cfg.SettingsPath != "" {
		s, err := LoadSettings(cfg.SettingsPath)
		if err != nil {
			log.Printf("config: ignoring settings %s: %v", cfg.SettingsPath, err)
		} else {
			cfg.Apply(s)
		}
	}

	if override := strings.TrimSpace(opts.ShortcutModeOverride); override != "" {
		cfg.ShortcutMode = resolveShortcutMode(override)
	}

	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	return os.Getenv("OPENROUTER_API_KEY")
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envInt(key string, def, lo, hi int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// envQuality accepts either a fraction (0.8) or a percentage (80).
func envQuality(key string, def float32) float32 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil || f <= 0 {
		return def
	}
	if f > 1 {
		f /= 100
	}
	if f > 1 {
		return def
	}
	return float32(f)
}

func oneOf(value, def string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}

func resolveShortcutMode(value string) string {
	return oneOf(value, ShortcutModeSafe, ShortcutModeSafe, ShortcutModeNative)
}

func resolveOCREngine(value string) string {
	return oneOf(value, OCREngineVision, OCREngineVision, OCREngineTesseract)
}

func resolveStorageLocation(value string) string {
	return oneOf(value, "default", "default", "desktop", "custom")
}

func resolveImageFormat(value string) string {
	v := oneOf(value, "png", "png", "jpeg", "jpg", "tiff", "tif")
	switch v {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return v
}

func resolveRecordingQuality(value string) string {
	return oneOf(value, "high", "low", "medium", "high")
}
