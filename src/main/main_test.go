package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-capture/src/session"
	"screen-capture/src/singleinstance"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{"screen-capture", "-run-once", "-api-key-path", "/tmp/key"},
			out:  []string{"screen-capture", "--run-once", "--api-key-path", "/tmp/key"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"screen-capture", "-action=capture-area", "-shortcut-mode=native"},
			out:  []string{"screen-capture", "--action=capture-area", "--shortcut-mode=native"},
		},
		{
			name: "Maps run-once-std to stdout",
			in:   []string{"screen-capture", "-run-once-std"},
			out:  []string{"screen-capture", "--stdout"},
		},
		{
			name: "Leaves other flags unchanged",
			in:   []string{"screen-capture", "--run-once", "--other", "-x"},
			out:  []string{"screen-capture", "--run-once", "--other", "-x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.out, normalizeLegacyArgs(tt.in))
		})
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--action", "pin", "--stdout", "--api-key-path", "/tmp/key", "--shortcut-mode", "native"}))

	assert.Equal(t, "pin", opts.request())
	assert.True(t, opts.stdout)
	lo := opts.loadOptions()
	assert.Equal(t, "/tmp/key", lo.APIKeyPathOverride)
	assert.Equal(t, "native", lo.ShortcutModeOverride)
}

func TestRequestDefaults(t *testing.T) {
	assert.Empty(t, mainOptions{}.request())
	assert.Equal(t, singleinstance.DefaultAction, mainOptions{runOnce: true}.request())
	assert.Equal(t, singleinstance.DefaultAction, mainOptions{stdout: true}.request())
}

type fakeClient struct {
	delegated bool
	text      string
	err       error
	got       singleinstance.Request
}

func (f *fakeClient) TryDelegate(ctx context.Context, req singleinstance.Request) (bool, string, error) {
	f.got = req
	return f.delegated, f.text, f.err
}

func TestHandleRunOnceWithDelegation(t *testing.T) {
	req := singleinstance.Request{Action: "ocr", OutputToStdout: true}

	t.Run("delegated prints result", func(t *testing.T) {
		client := &fakeClient{delegated: true, text: "hello"}
		var out bytes.Buffer
		fellBack := false
		err := handleRunOnceWithDelegation(req, client, &out, func() error { fellBack = true; return nil })
		require.NoError(t, err)
		assert.False(t, fellBack)
		assert.Equal(t, req, client.got)
		assert.Equal(t, "hello", out.String())
	})

	t.Run("resident error is final", func(t *testing.T) {
		client := &fakeClient{delegated: true, err: errors.New("Busy, please retry")}
		fellBack := false
		err := handleRunOnceWithDelegation(req, client, nil, func() error { fellBack = true; return nil })
		assert.ErrorContains(t, err, "Busy")
		assert.False(t, fellBack)
	})

	t.Run("no resident falls back", func(t *testing.T) {
		client := &fakeClient{}
		fallbackErr := errors.New("standalone")
		err := handleRunOnceWithDelegation(req, client, nil, func() error { return fallbackErr })
		assert.ErrorIs(t, err, fallbackErr)
	})

	t.Run("delegation error falls back", func(t *testing.T) {
		client := &fakeClient{err: errors.New("dial")}
		fellBack := false
		err := handleRunOnceWithDelegation(req, client, nil, func() error { fellBack = true; return nil })
		require.NoError(t, err)
		assert.True(t, fellBack)
	})
}

type recordingTarget struct {
	successes int
	failures  []error
}

func (r *recordingTarget) OnSuccess(session.Result) error { r.successes++; return nil }
func (r *recordingTarget) OnFailure(err error) error {
	r.failures = append(r.failures, err)
	return nil
}

func TestOneShotTargetQuitsOnce(t *testing.T) {
	inner := &recordingTarget{}
	quits := 0
	tg := &oneShotTarget{inner: inner, quit: func() { quits++ }}

	require.NoError(t, tg.OnSuccess(session.Result{Text: "x"}))
	cause := errors.New("late")
	require.NoError(t, tg.OnFailure(cause))

	assert.Equal(t, 1, quits)
	assert.Equal(t, 1, inner.successes)
	assert.Equal(t, []error{cause}, inner.failures)
	assert.NoError(t, tg.err, "failure after success is not the run result")

	failed := &oneShotTarget{inner: &recordingTarget{}, quit: func() { quits++ }}
	require.NoError(t, failed.OnFailure(cause))
	assert.Equal(t, 2, quits)
	assert.ErrorIs(t, failed.err, cause)
}

func TestReportStatus(t *testing.T) {
	var out bytes.Buffer
	found := func(context.Context) (singleinstance.Resident, bool) {
		return singleinstance.Resident{Port: 49500}, true
	}
	require.NoError(t, reportStatus(context.Background(), &out, found))
	assert.Equal(t, "resident running on 127.0.0.1:49500\n", out.String())

	out.Reset()
	missing := func(ctx context.Context) (singleinstance.Resident, bool) {
		_, ok := ctx.Deadline()
		assert.True(t, ok, "the scan is bounded")
		return singleinstance.Resident{}, false
	}
	assert.ErrorIs(t, reportStatus(context.Background(), &out, missing), errNoResident)
	assert.Empty(t, out.String())
}
