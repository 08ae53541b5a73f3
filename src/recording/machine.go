// Package recording drives the lifecycle of the single process-wide recording
// session: target selection, backend start, the elapsed clock, stop and
// cancel.
//
// Every backend request is tagged with the session generation that issued
// it. Cancel bumps the generation, so a start acknowledgement or stop result
// that arrives afterwards is recognized as stale and dropped.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"screen-capture/src/backend"
	"screen-capture/src/clock"
	"screen-capture/src/screenshot"
	"screen-capture/src/selector"
)

// State is the recording session state.
type State int

const (
	Idle State = iota
	Selecting
	Starting
	Recording
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Starting:
		return "starting"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrSessionActive rejects a request while another session is in progress.
	ErrSessionActive = errors.New("recording: a session is already active, stop it first")
	// ErrInvalidTransition rejects an event the current state does not accept.
	ErrInvalidTransition = errors.New("recording: invalid transition")
)

// DefaultTickInterval is the elapsed clock sampling cadence.
const DefaultTickInterval = 100 * time.Millisecond

// AreaSelector obtains a capture region interactively. It returns
// selector.ErrCancelled when the user cancels.
type AreaSelector interface {
	Select(ctx context.Context) (screenshot.Region, error)
}

// Options wires a Machine.
type Options struct {
	Backend  backend.Recorder
	Selector AreaSelector
	Clock    clock.Clock
	// TickInterval defaults to DefaultTickInterval.
	TickInterval time.Duration

	OnState     func(State)
	OnTick      func(elapsed time.Duration)
	OnCompleted func(item *backend.Item)
	OnFailed    func(err error)
}

// Request starts a session.
type Request struct {
	// Target skips interactive selection when set.
	Target *backend.Target
	Config backend.RecordingConfig
}

// Snapshot is a consistent view of the session.
type Snapshot struct {
	State   State
	Target  backend.Target
	Config  backend.RecordingConfig
	Elapsed time.Duration
}

// Machine is the recording session state machine. All methods are safe for
// concurrent use; transitions are applied one at a time under a mutex and
// callbacks run after the lock is released.
type Machine struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	gen          uint64
	target       backend.Target
	cfg          backend.RecordingConfig
	startAt      time.Time
	ticker       clock.Timer
	sampling     bool
	cancelSelect context.CancelFunc
	// pendingStarts counts backend start calls that have not answered yet,
	// including ones superseded by Cancel.
	pendingStarts int

	inflight sync.WaitGroup
}

// New creates an idle machine.
func New(opts Options) *Machine {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{opts: opts, ctx: ctx, cancel: cancel, sampling: true}
}

// effects are callbacks collected under the lock and run after it.
type effects []func()

func (e effects) run() {
	for _, f := range e {
		f()
	}
}

func (m *Machine) setStateLocked(s State, fx *effects) {
	if m.state == s {
		return
	}
	log.Printf("recording: %s -> %s", m.state, s)
	m.state = s
	if cb := m.opts.OnState; cb != nil {
		*fx = append(*fx, func() { cb(s) })
	}
}

func (m *Machine) failLocked(err error, fx *effects) {
	log.Printf("recording: %v", err)
	if cb := m.opts.OnFailed; cb != nil {
		*fx = append(*fx, func() { cb(err) })
	}
}

// resetLocked returns to Idle and clears everything the session owned.
func (m *Machine) resetLocked(fx *effects) {
	m.stopTickerLocked()
	if m.cancelSelect != nil {
		m.cancelSelect()
		m.cancelSelect = nil
	}
	m.startAt = time.Time{}
	m.target = backend.Target{}
	m.setStateLocked(Idle, fx)
}

// Request begins a session. Without a target an area is selected
// interactively first.
func (m *Machine) Request(req Request) error {
	var fx effects
	defer func() { fx.run() }()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Idle || m.pendingStarts > 0 {
		return ErrSessionActive
	}
	if req.Target == nil && m.opts.Selector == nil {
		return fmt.Errorf("recording: no target and no selector")
	}
	m.gen++
	m.cfg = req.Config
	m.setStateLocked(Selecting, &fx)

	if req.Target != nil {
		m.confirmLocked(*req.Target, &fx)
		return nil
	}

	gen := m.gen
	selCtx, cancel := context.WithCancel(m.ctx)
	m.cancelSelect = cancel
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		region, err := m.opts.Selector.Select(selCtx)
		if err != nil {
			m.selectionFailed(gen, err)
			return
		}
		m.confirm(gen, backend.Area(region, backend.AllDisplays))
	}()
	return nil
}

// ConfirmTarget finishes selection with t.
func (m *Machine) ConfirmTarget(t backend.Target) error {
	var fx effects
	defer func() { fx.run() }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Selecting {
		return ErrInvalidTransition
	}
	m.confirmLocked(t, &fx)
	return nil
}

func (m *Machine) confirm(gen uint64, t backend.Target) {
	var fx effects
	defer func() { fx.run() }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.state != Selecting {
		log.Printf("recording: ignoring stale selection")
		return
	}
	m.confirmLocked(t, &fx)
}

func (m *Machine) confirmLocked(t backend.Target, fx *effects) {
	if m.cancelSelect != nil {
		m.cancelSelect()
		m.cancelSelect = nil
	}
	m.target = t
	m.setStateLocked(Starting, fx)

	gen, cfg := m.gen, m.cfg
	m.pendingStarts++
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		err := m.opts.Backend.StartRecording(m.ctx, t, cfg)
		m.started(gen, err)
	}()
}

func (m *Machine) selectionFailed(gen uint64, err error) {
	var fx effects
	defer func() { fx.run() }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.state != Selecting {
		return
	}
	m.cancelSelect = nil
	m.resetLocked(&fx)
	if errors.Is(err, selector.ErrCancelled) || errors.Is(err, context.Canceled) {
		log.Printf("recording: selection cancelled")
		return
	}
	m.failLocked(fmt.Errorf("select target: %w", err), &fx)
}

func (m *Machine) started(gen uint64, err error) {
	var fx effects
	defer func() { fx.run() }()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingStarts--
	if gen != m.gen || m.state != Starting {
		log.Printf("recording: ignoring stale start response (err=%v)", err)
		if err == nil {
			m.cancelBackendLocked()
		}
		return
	}
	if err != nil {
		m.resetLocked(&fx)
		m.failLocked(fmt.Errorf("start recording: %w", err), &fx)
		return
	}
	m.startAt = m.opts.Clock.Now()
	m.setStateLocked(Recording, &fx)
	m.resumeTickerLocked(&fx)
}

// Stop asks the backend to finish the recording.
func (m *Machine) Stop() error {
	var fx effects
	defer func() { fx.run() }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Recording {
		return ErrInvalidTransition
	}
	m.setStateLocked(Stopping, &fx)

	gen := m.gen
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		item, err := m.opts.Backend.StopRecording(m.ctx)
		m.stopped(gen, item, err)
	}()
	return nil
}

func (m *Machine) stopped(gen uint64, item *backend.Item, err error) {
	var fx effects
	defer func() { fx.run() }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.state != Stopping {
		log.Printf("recording: ignoring stale stop response (err=%v)", err)
		return
	}
	if err == nil {
		m.resetLocked(&fx)
		if cb := m.opts.OnCompleted; cb != nil && item != nil {
			fx = append(fx, func() { cb(item) })
		}
		return
	}

	// Roll back. The clock was never stopped, so elapsed keeps counting
	// from the original start instant.
	if sr, ok := m.opts.Backend.(backend.StatusReporter); ok && !sr.IsRecording() {
		m.gen++
		m.resetLocked(&fx)
		m.failLocked(fmt.Errorf("stop recording: backend no longer recording: %w", err), &fx)
		return
	}
	m.setStateLocked(Recording, &fx)
	m.failLocked(fmt.Errorf("stop recording: %w", err), &fx)
}

// Cancel abandons the session from any non-idle state. Any in-flight
// backend response is discarded and the backend is asked to cancel on a
// best-effort basis. It reports whether there was a session to cancel.
func (m *Machine) Cancel() bool {
	var fx effects
	defer func() { fx.run() }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Idle {
		return false
	}
	m.gen++
	m.resetLocked(&fx)
	m.cancelBackendLocked()
	return true
}

func (m *Machine) cancelBackendLocked() {
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		if err := m.opts.Backend.CancelRecording(m.ctx); err != nil {
			log.Printf("recording: backend cancel: %v", err)
		}
	}()
}

// HandleEscape stops a running recording gracefully and cancels anything
// before that.
func (m *Machine) HandleEscape() {
	switch m.State() {
	case Recording:
		_ = m.Stop()
	case Selecting, Starting:
		m.Cancel()
	}
}

// SetSampling pauses or resumes the elapsed ticks, e.g. while the control
// surface is hidden. Elapsed time itself is unaffected.
func (m *Machine) SetSampling(on bool) {
	var fx effects
	defer func() { fx.run() }()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sampling = on
	if !on {
		m.stopTickerLocked()
		return
	}
	m.resumeTickerLocked(&fx)
}

func (m *Machine) clockRunningLocked() bool {
	return m.state == Recording || m.state == Stopping
}

// resumeTickerLocked emits the current elapsed value and schedules sampling.
func (m *Machine) resumeTickerLocked(fx *effects) {
	if !m.sampling || !m.clockRunningLocked() || m.ticker != nil {
		return
	}
	m.emitTickLocked(fx)
	m.scheduleTickLocked()
}

func (m *Machine) scheduleTickLocked() {
	gen := m.gen
	m.ticker = m.opts.Clock.AfterFunc(m.opts.TickInterval, func() { m.tick(gen) })
}

func (m *Machine) stopTickerLocked() {
	if m.ticker != nil {
		m.ticker.Stop()
		m.ticker = nil
	}
}

func (m *Machine) emitTickLocked(fx *effects) {
	if cb := m.opts.OnTick; cb != nil {
		elapsed := m.opts.Clock.Now().Sub(m.startAt)
		*fx = append(*fx, func() { cb(elapsed) })
	}
}

func (m *Machine) tick(gen uint64) {
	var fx effects
	defer func() { fx.run() }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || !m.sampling || !m.clockRunningLocked() {
		return
	}
	m.emitTickLocked(&fx)
	m.scheduleTickLocked()
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Elapsed is now minus the start instant while the clock runs, else zero.
func (m *Machine) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsedLocked()
}

func (m *Machine) elapsedLocked() time.Duration {
	if !m.clockRunningLocked() {
		return 0
	}
	return m.opts.Clock.Now().Sub(m.startAt)
}

// Snapshot returns the current session.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, Target: m.target, Config: m.cfg, Elapsed: m.elapsedLocked()}
}

// Wait blocks until all in-flight backend and selection calls returned.
func (m *Machine) Wait() {
	m.inflight.Wait()
}

// Close cancels any session and waits for in-flight calls.
func (m *Machine) Close() {
	m.Cancel()
	m.cancel()
	m.Wait()
}

// FormatElapsed renders d as MM:SS.d.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ds := int64(d / (100 * time.Millisecond))
	return fmt.Sprintf("%02d:%02d.%d", ds/600, (ds/10)%60, ds%10)
}
