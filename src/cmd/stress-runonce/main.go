package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"screen-capture/src/singleinstance"
)

type stressOptions struct {
	n           int
	mode        string
	action      string
	deadline    time.Duration
	concurrency int
}

type tally struct {
	ok, busy, noResident, failed atomic.Int32
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-runonce",
		Short:         "Stress test delegation to the resident",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(cmd.Context(), *opts, singleinstance.NewClient(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.mode, "mode", "std", "std|clip: result on stdout or in the clipboard")
	cmd.Flags().StringVar(&opts.action, "action", singleinstance.DefaultAction, "action each client requests")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "maximum clients in flight, 0 for all at once")

	return cmd
}

func runWithOptions(ctx context.Context, opts stressOptions, client singleinstance.Client, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req := singleinstance.Request{Action: opts.action, OutputToStdout: opts.mode == "std"}

	var t tally
	g, gctx := errgroup.WithContext(ctx)
	if opts.concurrency > 0 {
		g.SetLimit(opts.concurrency)
	}
	start := time.Now()
	for i := 0; i < opts.n; i++ {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, opts.deadline)
			defer cancel()
			t.record(client.TryDelegate(cctx, req))
			return nil
		})
	}
	_ = g.Wait()
	fmt.Fprintf(out, "launched=%d ok=%d busy=%d no-resident=%d err=%d elapsed=%s\n",
		opts.n, t.ok.Load(), t.busy.Load(), t.noResident.Load(), t.failed.Load(), time.Since(start))
	return nil
}

func (t *tally) record(delegated bool, _ string, err error) {
	switch {
	case err != nil && strings.Contains(strings.ToLower(err.Error()), "busy"):
		t.busy.Add(1)
	case err != nil:
		t.failed.Add(1)
	case delegated:
		t.ok.Add(1)
	default:
		t.noResident.Add(1)
	}
}
