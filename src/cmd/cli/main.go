package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"screen-capture/src/backend"
	"screen-capture/src/config"
	"screen-capture/src/logutil"
	"screen-capture/src/ocr"
	"screen-capture/src/runtimeinit"
	"screen-capture/src/screenshot"
	"screen-capture/src/storage"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

type cliOptions struct {
	filePath   string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
	languages  []string
	limit      int
	display    int
	format     string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), os.Stdout)
}

func runWithArgs(args []string, out io.Writer) error {
	if len(args) == 0 {
		args = []string{"screen-capture-cli"}
	}
	cmd := newRootCmd(&cliOptions{}, out)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screen-capture-cli",
		Short:         "Headless access to OCR and the capture library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(opts.verbose)
		},
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.PersistentFlags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")

	cmd.AddCommand(
		newOCRCmd(opts), newShotCmd(opts), newHistoryCmd(opts), newInfoCmd(opts),
		newDeleteCmd(opts), newFavoriteCmd(opts), newDisplaysCmd(opts), newWindowsCmd(opts), newPermissionCmd(opts),
	)
	return cmd
}

func newOCRCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ocr",
		Short: "Recognize text in a PNG, JPEG or TIFF image",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOCR(cmd.Context(), *opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to image file (use '-' for stdin)")
	cmd.Flags().StringSliceVar(&opts.languages, "lang", nil, "Recognition languages, e.g. en,de")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newShotCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shot",
		Short: "Capture a display into the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShot(cmd.Context(), *opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&opts.display, "display", backend.AllDisplays, "Display index, -1 for all displays")
	cmd.Flags().StringVar(&opts.format, "format", "", "Image format: png, jpeg or tiff (default from config)")
	return cmd
}

func newHistoryCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved captures, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(*opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "Maximum number of items, 0 for all")
	return cmd
}

func newInfoCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the capture library location and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(*opts, cmd.OutOrStdout())
		},
	}
}

func newDeleteCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a capture and its file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(*opts, func(b *backend.Local) error {
				return deleteCapture(b, args[0], cmd.OutOrStdout(), opts.jsonOutput)
			})
		},
	}
}

func newFavoriteCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id>",
		Short: "Toggle the favorite flag of a capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(*opts, func(b *backend.Local) error {
				return toggleFavorite(b, args[0], cmd.OutOrStdout(), opts.jsonOutput)
			})
		},
	}
}

func newDisplaysCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "displays",
		Short: "List active displays",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(*opts, func(b *backend.Local) error {
				displays, err := b.Displays()
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(displays)
				}
				renderDisplays(cmd.OutOrStdout(), displays)
				return nil
			})
		},
	}
}

func newWindowsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "windows",
		Short: "List capturable windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(*opts, func(b *backend.Local) error {
				windows, err := b.Windows()
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(windows)
				}
				renderWindows(cmd.OutOrStdout(), windows)
				return nil
			})
		},
	}
}

func newPermissionCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "permission",
		Short: "Check screen capture permission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(*opts, func(b *backend.Local) error {
				return printPermission(cmd.OutOrStdout(), b.CheckPermission(), opts.jsonOutput)
			})
		},
	}
}

// configureLogging keeps stdout for results only.
func configureLogging(verbose bool) {
	if verbose {
		log.SetOutput(os.Stderr)
		return
	}
	log.SetOutput(io.Discard)
}

func loadConfig(opts cliOptions) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Printf("Config loaded: engine=%s model=%s key=%s", cfg.OCREngine, cfg.Model, logutil.RedactKey(cfg.APIKey))
	return cfg, nil
}

func openStore(cfg *config.Config) (*storage.Store, error) {
	return storage.Open(storage.Options{
		DatabasePath: cfg.DatabasePath,
		Location:     storage.ParseLocation(cfg.StorageLocation),
		CustomDir:    cfg.StorageDir,
	})
}

// withLibrary runs f against a local backend over the configured store.
func withLibrary(opts cliOptions, f func(b *backend.Local) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	b, err := backend.NewLocal(backend.Options{Store: store})
	if err != nil {
		return err
	}
	return f(b)
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	normalized := make([]string, len(args))
	copy(normalized, args)

	legacy := false
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "verbose", "api-key-path"} {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
		if normalized[i] == "--file" || strings.HasPrefix(normalized[i], "--file=") {
			legacy = true
		}
	}
	// The original tool had no subcommands: "-file x.png" means "ocr --file x.png".
	if legacy && (len(normalized) < 2 || strings.HasPrefix(normalized[1], "-")) {
		normalized = append([]string{normalized[0], "ocr"}, normalized[1:]...)
	}
	return normalized
}

var imageMagic = [][]byte{
	{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a},
	{0xff, 0xd8, 0xff},
	{'I', 'I', 0x2a, 0x00},
	{'M', 'M', 0x00, 0x2a},
}

func validateImage(data []byte) error {
	for _, m := range imageMagic {
		if bytes.HasPrefix(data, m) {
			return nil
		}
	}
	return fmt.Errorf("input is not a PNG, JPEG or TIFF image (invalid magic number)")
}

func readInput(filePath string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if filePath == "-" {
		data, err = io.ReadAll(io.LimitReader(os.Stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	return data, validateImage(data)
}

func runOCR(ctx context.Context, opts cliOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := readInput(opts.filePath)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	engine, err := runtimeinit.NewEngine(ctx, cfg, false)
	if err != nil {
		return err
	}

	path := opts.filePath
	if path == "-" {
		tmp, err := os.CreateTemp("", "screen-capture-cli-*")
		if err != nil {
			return err
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		path = tmp.Name()
	}

	langs := opts.languages
	if len(langs) == 0 {
		langs = cfg.OCRLanguages
	}
	deadline := time.Duration(cfg.OCRDeadlineSec) * time.Second
	ocrCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	blocks, err := engine.Recognize(ocrCtx, path, langs)
	elapsed := time.Since(start)
	if err != nil {
		log.Printf("OCR failed after %v: %v", elapsed, err)
		return fmt.Errorf("OCR failed: %w", err)
	}
	log.Printf("OCR completed in %v, %d blocks", elapsed, len(blocks))
	return outputResult(out, blocks, opts.filePath, elapsed, opts.jsonOutput)
}

type OCRResult struct {
	Text      string          `json:"text"`
	Blocks    []ocr.TextBlock `json:"blocks"`
	Source    string          `json:"source"`
	Timestamp string          `json:"timestamp"`
	Duration  float64         `json:"duration_seconds"`
	CharCount int             `json:"character_count"`
}

func outputResult(out io.Writer, blocks []ocr.TextBlock, sourcePath string, elapsed time.Duration, jsonOutput bool) error {
	text := ocr.Text(blocks)
	if !jsonOutput {
		_, err := fmt.Fprint(out, text)
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(OCRResult{
		Text:      text,
		Blocks:    blocks,
		Source:    sourcePath,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
		CharCount: len(text),
	}); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

func runShot(ctx context.Context, opts cliOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	b, err := backend.NewLocal(backend.Options{Store: store})
	if err != nil {
		return err
	}

	format := cfg.ImageFormat
	if opts.format != "" {
		format = opts.format
	}
	item, err := b.CaptureFullscreen(ctx, opts.display, cfg.IncludeCursor, screenshot.ParseFormat(format, cfg.JPEGQuality))
	if err != nil {
		return err
	}
	if opts.jsonOutput {
		return json.NewEncoder(out).Encode(item)
	}
	_, err = fmt.Fprintln(out, item.Path)
	return err
}

func runHistory(opts cliOptions, out io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	items, err := store.History()
	if err != nil {
		return err
	}
	if opts.limit > 0 && len(items) > opts.limit {
		items = items[:opts.limit]
	}
	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	renderHistory(out, items, time.Now())
	return nil
}

func renderHistory(out io.Writer, items []storage.Item, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Type", "File", "Size", "Created", "Fav"})
	for _, it := range items {
		fav := ""
		if it.IsFavorite {
			fav = "*"
		}
		t.AppendRow(table.Row{
			shortID(it.ID),
			it.Type,
			filepath.Base(it.Path),
			humanize.Bytes(uint64(max(it.Size, 0))),
			humanize.RelTime(it.CreatedAt, now, "ago", "from now"),
			fav,
		})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d items", len(items))})
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runInfo(opts cliOptions, out io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	info, err := store.Info()
	if err != nil {
		return err
	}
	if opts.jsonOutput {
		return json.NewEncoder(out).Encode(info)
	}
	_, err = fmt.Fprintf(out, "%s (%s)\n%s in %s\n", info.Path, info.Location,
		humanize.Bytes(uint64(max(info.TotalSizeBytes, 0))), humanize.Comma(int64(info.TotalItems))+" items")
	return err
}

// library is the part of the backend the item commands use.
type library interface {
	History() ([]storage.Item, error)
	DeleteCapture(id string) error
	ToggleFavorite(id string) (bool, error)
}

// resolveID expands the short IDs printed by history to a full item ID.
func resolveID(lib library, ref string) (string, error) {
	items, err := lib.History()
	if err != nil {
		return "", err
	}
	match := ""
	for _, it := range items {
		if it.ID == ref {
			return it.ID, nil
		}
		if strings.HasPrefix(it.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("id %q is ambiguous", ref)
			}
			match = it.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("capture %q: %w", ref, storage.ErrNotFound)
	}
	return match, nil
}

func deleteCapture(lib library, ref string, out io.Writer, jsonOutput bool) error {
	id, err := resolveID(lib, ref)
	if err != nil {
		return err
	}
	if err := lib.DeleteCapture(id); err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(out).Encode(map[string]any{"id": id, "deleted": true})
	}
	_, err = fmt.Fprintf(out, "deleted %s\n", shortID(id))
	return err
}

func toggleFavorite(lib library, ref string, out io.Writer, jsonOutput bool) error {
	id, err := resolveID(lib, ref)
	if err != nil {
		return err
	}
	fav, err := lib.ToggleFavorite(id)
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(out).Encode(map[string]any{"id": id, "is_favorite": fav})
	}
	state := "unfavorited"
	if fav {
		state = "favorited"
	}
	_, err = fmt.Fprintf(out, "%s %s\n", state, shortID(id))
	return err
}

func renderDisplays(out io.Writer, displays []backend.DisplayInfo) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Origin", "Size", "Primary"})
	for _, d := range displays {
		primary := ""
		if d.IsPrimary {
			primary = "*"
		}
		t.AppendRow(table.Row{
			d.ID,
			fmt.Sprintf("%d,%d", d.Bounds.X, d.Bounds.Y),
			fmt.Sprintf("%dx%d", d.Bounds.Width, d.Bounds.Height),
			primary,
		})
	}
	t.Render()
}

func renderWindows(out io.Writer, windows []backend.WindowInfo) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "App", "Title", "Size"})
	for _, w := range windows {
		t.AppendRow(table.Row{
			w.ID,
			w.AppName,
			w.Title,
			fmt.Sprintf("%dx%d", w.Bounds.Width, w.Bounds.Height),
		})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d windows", len(windows))})
	t.Render()
}

func printPermission(out io.Writer, status string, jsonOutput bool) error {
	if jsonOutput {
		return json.NewEncoder(out).Encode(map[string]string{"permission": status})
	}
	if _, err := fmt.Fprintln(out, status); err != nil {
		return err
	}
	if status == backend.PermissionDenied {
		return fmt.Errorf("screen capture: %w", backend.ErrPermissionDenied)
	}
	return nil
}
