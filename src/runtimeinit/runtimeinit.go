package runtimeinit

import (
	"context"
	"fmt"
	"log"
	"time"

	"screen-capture/src/backend"
	"screen-capture/src/clipboard"
	"screen-capture/src/config"
	"screen-capture/src/llm"
	"screen-capture/src/logutil"
	"screen-capture/src/messages"
	"screen-capture/src/ocr"
	"screen-capture/src/router"
	"screen-capture/src/storage"
)

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(bool)
	// RequireOCR fails the bootstrap when no OCR engine can be built.
	RequireOCR bool
	// PingLLM verifies the vision endpoint before returning.
	PingLLM bool
}

// Runtime is the wired application core shared by the resident and the CLI.
type Runtime struct {
	Config  *config.Config
	Store   *storage.Store
	Router  *router.Router
	OCR     ocr.Engine
	Backend *backend.Local
}

// Close releases the store and stops event fan-out.
func (r *Runtime) Close() error {
	r.Router.Shutdown()
	return r.Store.Close()
}

func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	engine, err := NewEngine(ctx, cfg, opts.PingLLM)
	if err != nil {
		if opts.RequireOCR {
			return nil, err
		}
		log.Printf("OCR disabled: %v", err)
	}

	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
	}

	store, err := storage.Open(storage.Options{
		DatabasePath: cfg.DatabasePath,
		Location:     storage.ParseLocation(cfg.StorageLocation),
		CustomDir:    cfg.StorageDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open capture history: %w", err)
	}

	rt := router.New()
	b, err := backend.NewLocal(backend.Options{
		Store:   store,
		OCR:     engine,
		Publish: rt.Publisher(messages.ComponentBackend),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Runtime{Config: cfg, Store: store, Router: rt, OCR: engine, Backend: b}, nil
}

// NewEngine builds the configured OCR engine. ping verifies a vision endpoint first.
func NewEngine(ctx context.Context, cfg *config.Config, ping bool) (ocr.Engine, error) {
	if cfg.OCREngine == config.OCREngineTesseract {
		log.Printf("Using Tesseract OCR engine")
		return ocr.TesseractEngine{}, nil
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required. Checked key file %s and OPENROUTER_API_KEY env var", cfg.APIKeyPath)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("MODEL is required. Please set it in your .env file")
	}
	client, err := llm.New(llm.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		Providers: cfg.Providers,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Using vision model %s (key %s)", cfg.Model, logutil.RedactKey(cfg.APIKey))

	if ping {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("startup check failed: %w", err)
		}
		log.Printf("LLM ping succeeded")
	}
	return ocr.VisionEngine{Client: client}, nil
}
