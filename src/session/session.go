// Package session runs one-shot flows: select a region, process it (capture,
// OCR, pin) and deliver the outcome to a result target.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"screen-capture/src/clipboard"
	"screen-capture/src/notification"
	"screen-capture/src/screenshot"
	"screen-capture/src/selector"
	"screen-capture/src/singleinstance"
	"screen-capture/src/storage"
)

// ErrSelectionCancelled is reported to targets when the user abandons the selection.
var ErrSelectionCancelled = selector.ErrCancelled

// DefaultDeadline bounds the processing step.
const DefaultDeadline = 20 * time.Second

type RegionSelectorFunc func(ctx context.Context) (screenshot.Region, error)

type ProcessFunc func(ctx context.Context, region screenshot.Region) (Result, error)

// Result is what a processed region produced: recognized text, a saved
// capture, or both.
type Result struct {
	Text string
	Item *storage.Item
}

// Output returns the text a stdout-style consumer should see.
func (r Result) Output() string {
	if r.Text != "" {
		return r.Text
	}
	if r.Item != nil {
		return r.Item.Path
	}
	return ""
}

type ResultTarget interface {
	OnSuccess(res Result) error
	OnFailure(err error) error
}

// Notifier shows a transient status message.
type Notifier interface {
	Push(kind notification.Kind) string
}

type Options struct {
	Deadline     time.Duration
	SelectRegion RegionSelectorFunc
	Process      ProcessFunc
	Target       ResultTarget
	Notifier     Notifier
	// SuccessKind is pushed after a successful delivery.
	SuccessKind notification.Kind
}

func Execute(ctx context.Context, opts Options) (Result, error) {
	if opts.SelectRegion == nil {
		return Result{}, errors.New("SelectRegion is required")
	}
	if opts.Process == nil {
		return Result{}, errors.New("Process is required")
	}
	if opts.Target == nil {
		return Result{}, errors.New("Target is required")
	}

	region, err := opts.SelectRegion(ctx)
	if err != nil {
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	jobCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	res, err := opts.Process(jobCtx, region)
	if err != nil {
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}

	if err := opts.Target.OnSuccess(res); err != nil {
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}

	if opts.Notifier != nil {
		opts.Notifier.Push(opts.SuccessKind)
	}
	return res, nil
}

// TextWriter puts text somewhere the user can paste it from.
type TextWriter func(text string) error

// ClipboardTarget copies recognized text. Saved captures need no delivery.
type ClipboardTarget struct {
	Write TextWriter
}

func (t ClipboardTarget) OnSuccess(res Result) error {
	if res.Text == "" {
		return nil
	}
	write := t.Write
	if write == nil {
		write = clipboard.Write
	}
	return write(res.Text)
}

func (ClipboardTarget) OnFailure(err error) error {
	return nil
}

type StdoutTarget struct {
	Writer io.Writer
}

func (t StdoutTarget) OnSuccess(res Result) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprint(w, res.Output())
	return err
}

func (t StdoutTarget) OnFailure(err error) error {
	return nil
}

// DelegatedTarget answers a second invocation over its singleinstance connection.
type DelegatedTarget struct {
	Conn           singleinstance.Conn
	OutputToStdout bool
	Write          TextWriter
}

func (t DelegatedTarget) OnSuccess(res Result) error {
	if t.Conn == nil {
		return errors.New("delegated target missing connection")
	}
	if t.OutputToStdout {
		return t.Conn.RespondSuccess(res.Output())
	}
	if err := (ClipboardTarget{Write: t.Write}).OnSuccess(res); err != nil {
		return fmt.Errorf("clipboard error: %w", err)
	}
	return t.Conn.RespondSuccess("")
}

func (t DelegatedTarget) OnFailure(err error) error {
	if t.Conn == nil {
		return nil
	}
	if err == nil {
		return t.Conn.RespondError("unknown session error")
	}
	return t.Conn.RespondError(err.Error())
}
