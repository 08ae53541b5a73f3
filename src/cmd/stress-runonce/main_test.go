package main

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-capture/src/singleinstance"
)

func TestNewRootCmdDefaults(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{}))
	assert.Equal(t, 50, opts.n)
	assert.Equal(t, "std", opts.mode)
	assert.Equal(t, singleinstance.DefaultAction, opts.action)
	assert.Equal(t, 5*time.Second, opts.deadline)
}

func TestNewRootCmdCustomFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--n", "3", "--mode", "clip", "--deadline", "7s", "--action", "capture-area", "--concurrency", "2"}))
	assert.Equal(t, 3, opts.n)
	assert.Equal(t, "clip", opts.mode)
	assert.Equal(t, "capture-area", opts.action)
	assert.Equal(t, 7*time.Second, opts.deadline)
	assert.Equal(t, 2, opts.concurrency)
}

// scriptedClient answers the first call, then reports busy.
type scriptedClient struct {
	calls atomic.Int32
}

func (c *scriptedClient) TryDelegate(ctx context.Context, req singleinstance.Request) (bool, string, error) {
	if c.calls.Add(1) == 1 {
		return true, "text", nil
	}
	return true, "", errors.New("Busy, please retry")
}

func TestRunWithOptionsTallies(t *testing.T) {
	var out bytes.Buffer
	client := &scriptedClient{}
	err := runWithOptions(context.Background(), stressOptions{n: 4, mode: "std", action: "ocr", deadline: time.Second}, client, &out)
	require.NoError(t, err)
	assert.Equal(t, int32(4), client.calls.Load())
	assert.Contains(t, out.String(), "launched=4 ok=1 busy=3 no-resident=0 err=0")
}

func TestTallyRecord(t *testing.T) {
	var tl tally
	tl.record(false, "", nil)
	tl.record(true, "", errors.New("boom"))
	assert.Equal(t, int32(1), tl.noResident.Load())
	assert.Equal(t, int32(1), tl.failed.Load())
}
