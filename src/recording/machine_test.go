package recording

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-capture/src/backend"
	"screen-capture/src/clock"
	"screen-capture/src/screenshot"
	"screen-capture/src/selector"
)

// gatedBackend blocks each call until the test releases it.
type gatedBackend struct {
	startGate  chan error
	stopGate   chan error
	recording  bool
	mu         sync.Mutex
	cancels    int
	startCalls int
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{startGate: make(chan error), stopGate: make(chan error)}
}

func (b *gatedBackend) StartRecording(ctx context.Context, t backend.Target, cfg backend.RecordingConfig) error {
	b.mu.Lock()
	b.startCalls++
	b.mu.Unlock()
	err := <-b.startGate
	if err == nil {
		b.mu.Lock()
		b.recording = true
		b.mu.Unlock()
	}
	return err
}

func (b *gatedBackend) StopRecording(ctx context.Context) (*backend.Item, error) {
	if err := <-b.stopGate; err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.recording = false
	b.mu.Unlock()
	return &backend.Item{ID: "rec-1", Filename: "GIF.gif"}, nil
}

func (b *gatedBackend) CancelRecording(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancels++
	b.recording = false
	return errors.New("not active")
}

func (b *gatedBackend) cancelCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancels
}

// reportingBackend also implements backend.StatusReporter.
type reportingBackend struct{ *gatedBackend }

func (b reportingBackend) IsRecording() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recording
}

type recorder struct {
	mu        sync.Mutex
	states    []State
	ticks     []time.Duration
	completed []*backend.Item
	failures  []error
}

func (r *recorder) options(b backend.Recorder, fc *clock.Fake) Options {
	return Options{
		Backend: b,
		Clock:   fc,
		OnState: func(s State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
		OnTick: func(d time.Duration) {
			r.mu.Lock()
			r.ticks = append(r.ticks, d)
			r.mu.Unlock()
		},
		OnCompleted: func(item *backend.Item) {
			r.mu.Lock()
			r.completed = append(r.completed, item)
			r.mu.Unlock()
		},
		OnFailed: func(err error) {
			r.mu.Lock()
			r.failures = append(r.failures, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() ([]State, []*backend.Item, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...), append([]*backend.Item(nil), r.completed...), append([]error(nil), r.failures...)
}

func fullscreen() *backend.Target {
	t := backend.Fullscreen(0)
	return &t
}

func waitState(t *testing.T, m *Machine, s State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == s }, time.Second, time.Millisecond)
}

func TestFullLifecycle(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	b := newGatedBackend()
	rec := &recorder{}
	m := New(rec.options(b, fc))
	defer m.Close()

	require.NoError(t, m.Request(Request{Target: fullscreen(), Config: backend.DefaultRecordingConfig()}))
	assert.Equal(t, Starting, m.State())

	b.startGate <- nil
	waitState(t, m, Recording)
	assert.Equal(t, time.Duration(0), m.Elapsed())

	fc.Advance(2500 * time.Millisecond)
	assert.Equal(t, 2500*time.Millisecond, m.Elapsed())
	assert.Equal(t, "00:02.5", FormatElapsed(m.Elapsed()))

	m.HandleEscape()
	assert.Equal(t, Stopping, m.State())
	b.stopGate <- nil
	waitState(t, m, Idle)
	m.Wait()

	states, completed, failures := rec.snapshot()
	assert.Equal(t, []State{Selecting, Starting, Recording, Stopping, Idle}, states)
	require.Len(t, completed, 1)
	assert.Equal(t, "rec-1", completed[0].ID)
	assert.Empty(t, failures)
	assert.Equal(t, time.Duration(0), m.Elapsed())
	assert.Zero(t, fc.Pending(), "ticker cleared on exit")
}

func TestTicksAreSampledNotAccumulated(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	b := newGatedBackend()
	rec := &recorder{}
	m := New(rec.options(b, fc))
	defer m.Close()

	require.NoError(t, m.Request(Request{Target: fullscreen()}))
	b.startGate <- nil
	waitState(t, m, Recording)

	fc.Advance(300 * time.Millisecond)
	m.SetSampling(false)
	fc.Advance(5 * time.Second)
	assert.Zero(t, fc.Pending())
	m.SetSampling(true)

	rec.mu.Lock()
	ticks := append([]time.Duration(nil), rec.ticks...)
	rec.mu.Unlock()
	assert.Equal(t, []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 5300 * time.Millisecond}, ticks)

	m.Cancel()
	m.Wait()
}

func TestSecondRequestRejected(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	b := newGatedBackend()
	m := New((&recorder{}).options(b, fc))
	defer m.Close()

	require.NoError(t, m.Request(Request{Target: fullscreen()}))
	assert.ErrorIs(t, m.Request(Request{Target: fullscreen()}), ErrSessionActive)
	assert.ErrorIs(t, m.Stop(), ErrInvalidTransition)

	m.Cancel()
	b.startGate <- errors.New("cancelled")
	m.Wait()
}

func TestCancelWhileStartingIgnoresLateAck(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	b := newGatedBackend()
	rec := &recorder{}
	m := New(rec.options(b, fc))
	defer m.Close()

	require.NoError(t, m.Request(Request{Target: fullscreen()}))
	require.True(t, m.Cancel())
	assert.Equal(t, Idle, m.State())

	b.startGate <- nil
	m.Wait()

	assert.Equal(t, Idle, m.State())
	states, completed, _ := rec.snapshot()
	assert.Equal(t, []State{Selecting, Starting, Idle}, states)
	assert.Empty(t, completed)
	assert.Equal(t, 2, b.cancelCount(), "late successful ack is cancelled again")
}

func TestRequestWaitsForSupersededStart(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	b := newGatedBackend()
	rec := &recorder{}
	m := New(rec.options(reportingBackend{b}, fc))
	defer m.Close()

	require.NoError(t, m.Request(Request{Target: fullscreen()}))
	require.True(t, m.Cancel())
	assert.ErrorIs(t, m.Request(Request{Target: fullscreen()}), ErrSessionActive,
		"a new session cannot start while the cancelled start is unanswered")

	b.startGate <- nil
	m.Wait()
	assert.Equal(t, Idle, m.State())
	assert.False(t, reportingBackend{b}.IsRecording(), "late successful start is cancelled")
	assert.Equal(t, 2, b.cancelCount())

	require.NoError(t, m.Request(Request{Target: fullscreen()}))
	b.startGate <- nil
	waitState(t, m, Recording)
	assert.True(t, reportingBackend{b}.IsRecording())
	assert.Equal(t, 2, b.cancelCount())
}

func TestCancelWhileStoppingWins(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	b := newGatedBackend()
	rec := &recorder{}
	m := New(rec.options(b, fc))
	defer m.Close()

	require.NoError(t, m.Request(Request{Target: fullscreen()}))
	b.startGate <- nil
	waitState(t, m, Recording)
	fc.Advance(time.Second)

	require.NoError(t, m.Stop())
	m.Cancel()
	b.stopGate <- nil
	m.Wait()

	assert.Equal(t, Idle, m.State())
	assert.Equal(t, time.Duration(0), m.Elapsed())
	_, completed, _ := rec.snapshot()
	assert.Empty(t, completed, "stale stop completion must not emit an artifact")
}

func TestStopFailureRollsBack(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	b := newGatedBackend()
	rec := &recorder{}
	m := New(rec.options(b, fc))
	defer m.Close()

	require.NoError(t, m.Request(Request{Target: fullscreen()}))
	b.startGate <- nil
	waitState(t, m, Recording)
	fc.Advance(time.Second)

	require.NoError(t, m.Stop())
	b.stopGate <- errors.New("encoder busy")
	waitState(t, m, Recording)

	fc.Advance(time.Second)
	assert.Equal(t, 2*time.Second, m.Elapsed(), "clock keeps running from the original start")
	_, _, failures := rec.snapshot()
	require.Len(t, failures, 1)

	m.Cancel()
	m.Wait()
}

func TestStopFailureWithDeadBackendResets(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	gb := newGatedBackend()
	rec := &recorder{}
	m := New(rec.options(reportingBackend{gb}, fc))
	defer m.Close()

	require.NoError(t, m.Request(Request{Target: fullscreen()}))
	gb.startGate <- nil
	waitState(t, m, Recording)

	require.NoError(t, m.Stop())
	gb.mu.Lock()
	gb.recording = false
	gb.mu.Unlock()
	gb.stopGate <- errors.New("pipeline crashed")
	waitState(t, m, Idle)
	m.Wait()

	_, _, failures := rec.snapshot()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Error(), "no longer recording")
	assert.Zero(t, fc.Pending())
}

func TestStartFailureReturnsToIdle(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	b := newGatedBackend()
	rec := &recorder{}
	m := New(rec.options(b, fc))
	defer m.Close()

	require.NoError(t, m.Request(Request{Target: fullscreen()}))
	b.startGate <- errors.New("permission denied")
	waitState(t, m, Idle)
	m.Wait()

	_, _, failures := rec.snapshot()
	require.Len(t, failures, 1)
	require.NoError(t, m.Request(Request{Target: fullscreen()}), "a new session may start after failure")
	m.Cancel()
	b.startGate <- errors.New("cancelled")
	m.Wait()
}

type chanSelector struct {
	result chan screenshot.Region
}

func (s chanSelector) Select(ctx context.Context) (screenshot.Region, error) {
	select {
	case r := <-s.result:
		return r, nil
	case <-ctx.Done():
		return screenshot.Region{}, selector.ErrCancelled
	}
}

func TestInteractiveSelection(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	b := newGatedBackend()
	rec := &recorder{}
	opts := rec.options(b, fc)
	sel := chanSelector{result: make(chan screenshot.Region, 1)}
	opts.Selector = sel
	m := New(opts)
	defer m.Close()

	require.NoError(t, m.Request(Request{}))
	assert.Equal(t, Selecting, m.State())

	sel.result <- screenshot.Region{X: 100, Y: 100, Width: 150, Height: 200}
	waitState(t, m, Starting)
	snap := m.Snapshot()
	assert.Equal(t, backend.TargetArea, snap.Target.Kind)
	assert.Equal(t, 150, snap.Target.Area.Width)

	b.startGate <- nil
	waitState(t, m, Recording)
	m.Cancel()
	m.Wait()
}

func TestEscapeDuringSelectionCancels(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	b := newGatedBackend()
	rec := &recorder{}
	opts := rec.options(b, fc)
	opts.Selector = chanSelector{result: make(chan screenshot.Region)}
	m := New(opts)
	defer m.Close()

	require.NoError(t, m.Request(Request{}))
	m.HandleEscape()
	m.Wait()

	assert.Equal(t, Idle, m.State())
	states, _, failures := rec.snapshot()
	assert.Equal(t, []State{Selecting, Idle}, states)
	assert.Empty(t, failures, "cancelled selection is not a failure")
	b.mu.Lock()
	assert.Zero(t, b.startCalls)
	b.mu.Unlock()
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "00:00.0", FormatElapsed(0))
	assert.Equal(t, "00:00.0", FormatElapsed(-time.Second))
	assert.Equal(t, "00:09.9", FormatElapsed(9999*time.Millisecond))
	assert.Equal(t, "01:05.3", FormatElapsed(65*time.Second+350*time.Millisecond))
	assert.Equal(t, "120:00.0", FormatElapsed(2*time.Hour))
}

func TestControlSurfaceDrag(t *testing.T) {
	c := NewControlSurface(screenshot.Point{X: 500, Y: 20})
	_, ok := c.DragMove(screenshot.Point{X: 1, Y: 1})
	assert.False(t, ok)

	c.DragStart(screenshot.Point{X: 510, Y: 30})
	p, ok := c.DragMove(screenshot.Point{X: 610, Y: 80})
	require.True(t, ok)
	assert.Equal(t, screenshot.Point{X: 600, Y: 70}, p)
	c.DragEnd()
	assert.Equal(t, screenshot.Point{X: 600, Y: 70}, c.Position())
}
