package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"screen-capture/src/clipboard"
	"screen-capture/src/config"
	"screen-capture/src/eventloop"
	"screen-capture/src/gui"
	"screen-capture/src/hotkey"
	"screen-capture/src/logutil"
	"screen-capture/src/messages"
	"screen-capture/src/notification"
	"screen-capture/src/overlay"
	"screen-capture/src/runtimeinit"
	"screen-capture/src/session"
	"screen-capture/src/singleinstance"
	"screen-capture/src/tray"
	"screen-capture/src/window"
)

type mainOptions struct {
	runOnce      bool
	action       string
	stdout       bool
	apiKeyPath   string
	shortcutMode string
	status       bool
}

func (o mainOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{APIKeyPathOverride: o.apiKeyPath, ShortcutModeOverride: o.shortcutMode}
}

// request returns the one-shot action, or "" for the resident.
func (o mainOptions) request() string {
	if o.action != "" {
		return o.action
	}
	if o.runOnce || o.stdout {
		return singleinstance.DefaultAction
	}
	return ""
}

func main() {
	enableDPIAwareness()
	// fyne and the tray both need the main thread.
	runtime.LockOSThread()

	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(normalizeLegacyArgs(os.Args)[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screen-capture",
		Short:         "Resident screen capture, recording and OCR tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.status {
				return reportStatus(cmd.Context(), cmd.OutOrStdout(), singleinstance.FindResident)
			}
			if action := opts.request(); action != "" {
				return handleRunOnceWithDelegation(singleinstance.Request{Action: action, OutputToStdout: opts.stdout}, singleinstance.NewClient(), os.Stdout, func() error {
					return runApp(*opts, action)
				})
			}
			return runResident(*opts)
		},
	}

	cmd.Flags().BoolVar(&opts.runOnce, "run-once", false, "Run OCR once through the resident (or standalone) and exit")
	cmd.Flags().StringVar(&opts.action, "action", "", "Run one shortcut action, e.g. capture-area, and exit")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "Print the result to stdout instead of the clipboard")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().StringVar(&opts.shortcutMode, "shortcut-mode", "", "Shortcut set: safe or native")
	cmd.Flags().BoolVar(&opts.status, "status", false, "Report whether a resident is running and exit")
	return cmd
}

// normalizeLegacyArgs maps single-dash long flags to GNU style.
func normalizeLegacyArgs(args []string) []string {
	normalized := make([]string, len(args))
	copy(normalized, args)
	legacy := []string{"run-once", "run-once-std", "action", "stdout", "api-key-path", "shortcut-mode", "status"}
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range legacy {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
		// --run-once-std predates --stdout.
		switch {
		case normalized[i] == "--run-once-std":
			normalized[i] = "--stdout"
		case strings.HasPrefix(normalized[i], "--run-once-std="):
			normalized[i] = "--stdout=" + strings.TrimPrefix(normalized[i], "--run-once-std=")
		}
	}
	return normalized
}

var errNoResident = errors.New("no resident running")

// reportStatus prints where the resident listens, or fails when none answers.
func reportStatus(ctx context.Context, out io.Writer, find func(context.Context) (singleinstance.Resident, bool)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	r, ok := find(ctx)
	if !ok {
		return errNoResident
	}
	_, err := fmt.Fprintf(out, "resident running on %s\n", r.Addr())
	return err
}

// handleRunOnceWithDelegation hands req to a resident when one answers and
// falls back to a standalone run otherwise. A resident's error is final.
func handleRunOnceWithDelegation(req singleinstance.Request, client singleinstance.Client, out io.Writer, fallback func() error) error {
	_, _ = config.Load()
	delegated, text, err := client.TryDelegate(context.Background(), req)
	if delegated {
		if err != nil {
			return fmt.Errorf("resident: %w", err)
		}
		log.Printf("Delegated %s to resident", req.Action)
		if req.OutputToStdout && out != nil {
			fmt.Fprint(out, text)
		}
		return nil
	}
	if err != nil {
		log.Printf("Delegation error: %v; falling back to standalone", err)
	} else {
		log.Printf("No resident detected, running standalone")
	}
	return fallback()
}

func runResident(opts mainOptions) error {
	lockPath, err := singleinstance.DefaultLockPath()
	if err != nil {
		return err
	}
	lock, err := singleinstance.AcquireLock(lockPath)
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		fmt.Println("ScreenCapture is already running")
		return err
	}
	if err != nil {
		return err
	}
	defer lock.Release()
	return runApp(opts, "")
}

// oneShotTarget quits the app after the single delegated delivery.
type oneShotTarget struct {
	inner session.ResultTarget
	quit  func()
	once  sync.Once
	err   error
}

func (t *oneShotTarget) OnSuccess(res session.Result) error {
	err := t.inner.OnSuccess(res)
	if err == nil {
		t.once.Do(t.quit)
	}
	return err
}

func (t *oneShotTarget) OnFailure(err error) error {
	t.once.Do(func() {
		t.err = err
		t.quit()
	})
	return t.inner.OnFailure(err)
}

// runApp runs the GUI. An empty action runs the resident with tray, shortcuts
// and the delegation server; otherwise action runs once and the app exits.
func runApp(opts mainOptions, action string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resident := action == ""
	if !resident && strings.HasPrefix(action, "record-") {
		return fmt.Errorf("%s needs a running resident", action)
	}

	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions:  opts.loadOptions(),
		SetupLogging: logutil.Setup,
		RequireOCR:   action == string(hotkey.ActionOCR),
		PingLLM:      true,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config
	logMonitorConfiguration()

	mode, err := hotkey.ParseMode(cfg.ShortcutMode)
	if err != nil {
		log.Printf("%v; using safe shortcuts", err)
		mode = hotkey.ModeSafe
	}

	app := gui.NewApp()
	views := gui.NewViews()
	registry := window.NewRegistry(gui.NewFactory(app, views.Content))
	keys := hotkey.New(mode)
	toasts := gui.NewToasts(app, notification.NewLocalizer(cfg.UILanguage, "en"))
	notes := notification.New(notification.Options{
		Hold:     time.Duration(cfg.NotificationHoldMs) * time.Millisecond,
		Observer: toasts.Observe,
	})

	loopOpts := eventloop.Options{
		Config:        cfg,
		Backend:       rt.Backend,
		Selector:      overlay.New(overlay.Options{Registry: registry, Input: keys}),
		Registry:      registry,
		Notifications: notes,
		Router:        rt.Router,
		Copier:        clipboard.System{},
		Views:         views,
		WriteText:     clipboard.Write,
		OpenPath:      app.OpenPath,
		OnQuit:        app.Quit,
	}

	var (
		icon   *tray.Tray
		target *oneShotTarget
	)
	if resident {
		server := singleinstance.NewServer()
		defer server.Close()
		icon = tray.New(tray.Config{
			Mode: mode,
			OnAction: func(a string) {
				rt.Router.Publish(messages.ComponentTray, messages.TrayAction{Action: a})
			},
			OnExit: stop,
		})
		loopOpts.Hotkeys = keys
		loopOpts.Server = server
		loopOpts.Indicator = icon
	} else {
		var inner session.ResultTarget = session.ClipboardTarget{Write: clipboard.Write}
		if opts.stdout {
			inner = session.StdoutTarget{Writer: os.Stdout}
		}
		target = &oneShotTarget{inner: inner, quit: app.Quit}
	}

	loop, err := eventloop.New(loopOpts)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := loop.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		app.Quit()
		return nil
	})
	if resident && cfg.SettingsPath != "" {
		g.Go(func() error {
			if err := config.Watch(gctx, cfg.SettingsPath, loop.ApplySettings); err != nil {
				log.Printf("settings watch stopped: %v", err)
			}
			return nil
		})
	}
	keys.Start(gctx)
	defer keys.Stop()

	app.OnStarted(func() {
		if icon != nil {
			icon.Register()
			// The loop is subscribed by now and logs permission:changed.
			go rt.Backend.CheckPermission()
			log.Printf("ScreenCapture running with %s shortcuts", mode)
			return
		}
		loop.Dispatch(action, target)
	})
	app.Run()

	stop()
	if err := g.Wait(); err != nil {
		return err
	}
	if target != nil && target.err != nil {
		return target.err
	}
	return nil
}
