// Package dispatch owns the single device session and serializes outbound
// color updates: at most one call in flight, newer commands coalesce into a
// single pending slot, failures are retried with backoff and classified as
// transient or fatal.
package dispatch

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/tapo-light-sync/internal/color"
)

// Session is the device endpoint the dispatcher drives. Hue is in degrees,
// saturation and brightness in percent.
type Session interface {
	SetColor(ctx context.Context, hue uint16, saturation, brightness uint8, transition time.Duration) error
	SetPower(ctx context.Context, on bool) error
	Close() error
}

// State is the session lifecycle as seen by the dispatcher.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateReconnecting
	StateClosed
)

// String returns a human-friendly name for the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrorClass buckets a device call failure for retry policy.
type ErrorClass int

const (
	// ClassTransient errors (timeouts, blips) are retried and then dropped.
	ClassTransient ErrorClass = iota
	// ClassConnect errors close the session once retries are exhausted.
	ClassConnect
	// ClassAuth errors close the session immediately; only a fresh login
	// can recover.
	ClassAuth
)

// Classifier maps a session error to its class.
type Classifier func(error) ErrorClass

// OutcomeKind is the result category of a Submit call.
type OutcomeKind int

const (
	// Accepted means the command was taken for dispatch.
	Accepted OutcomeKind = iota
	// Skipped means a call was already in flight; the command was coalesced
	// into the pending slot and may be superseded by a newer one.
	Skipped
	// Failed means the command was rejected; Reason carries the cause.
	Failed
)

// Outcome reports what happened to a submitted command.
type Outcome struct {
	Kind   OutcomeKind
	Reason error
}

// Stats are cumulative dispatch counters.
type Stats struct {
	Sent      uint64
	Skipped   uint64
	Dropped   uint64
	Coalesced uint64
}

var errInFlight = eris.New("update already in flight")

// Options tunes the dispatcher.
type Options struct {
	// RetryCap is the number of attempts per command (default 3).
	RetryCap int
	// FailureCap is the number of consecutively dropped commands before the
	// session is considered dead (default 5).
	FailureCap int
	// CallTimeout bounds each device call (default 2s).
	CallTimeout time.Duration
	// BackoffBase is the first retry delay; it doubles per attempt
	// (default 100ms).
	BackoffBase time.Duration
	// Transition is forwarded to the device as the fade duration.
	Transition time.Duration
	// Classifier buckets errors; nil treats everything as transient.
	Classifier Classifier
	// Dial re-establishes the session for Reconnect; nil disables it.
	Dial   func(ctx context.Context) (Session, error)
	Logger *slog.Logger
}

// Dispatcher serializes color updates onto one device session.
type Dispatcher struct {
	opts    Options
	session Session
	wg      sync.WaitGroup

	mu               sync.Mutex
	state            State
	inflight         bool
	pending          *color.Command
	consecutiveFails int
	fatal            error
	stats            Stats
}

// New constructs a Dispatcher around an established session.
func New(session Session, opts Options) *Dispatcher {
	if opts.RetryCap <= 0 {
		opts.RetryCap = 3
	}
	if opts.FailureCap <= 0 {
		opts.FailureCap = 5
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 2 * time.Second
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 100 * time.Millisecond
	}
	if opts.Classifier == nil {
		opts.Classifier = func(error) ErrorClass { return ClassTransient }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	state := StateDisconnected
	if session != nil {
		state = StateConnected
	}

	return &Dispatcher{
		opts:    opts,
		session: session,
		state:   state,
	}
}

// Submit hands a command to the dispatcher. It never blocks on the network:
// the call is issued on the dispatch goroutine. A command arriving while a
// call is in flight replaces any previously pending command.
func (d *Dispatcher) Submit(ctx context.Context, cmd color.Command) Outcome {
	d.mu.Lock()
	switch d.state {
	case StateClosed:
		reason := d.fatal
		d.mu.Unlock()
		if reason == nil {
			reason = eris.New("session closed")
		}
		return Outcome{Kind: Failed, Reason: reason}
	case StateDisconnected, StateReconnecting:
		d.mu.Unlock()
		return Outcome{Kind: Failed, Reason: eris.New("session not connected")}
	}

	if d.inflight {
		if d.pending != nil {
			d.stats.Coalesced++
		}
		d.pending = &cmd
		d.stats.Skipped++
		d.mu.Unlock()
		return Outcome{Kind: Skipped, Reason: errInFlight}
	}

	d.inflight = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.send(ctx, cmd)

	return Outcome{Kind: Accepted}
}

func (d *Dispatcher) send(ctx context.Context, cmd color.Command) {
	defer d.wg.Done()

	for {
		err := d.trySend(ctx, cmd)
		next, again := d.finish(err)
		if !again {
			return
		}
		cmd = next
	}
}

// trySend issues one command with bounded retries. Shutdown does not abort
// an in-flight call; the per-call timeout bounds it instead, so no
// half-written state is left on the device.
func (d *Dispatcher) trySend(ctx context.Context, cmd color.Command) error {
	hue := uint16(math.Round(math.Mod(cmd.Hue+360, 360)))
	if hue >= 360 {
		hue -= 360
	}
	sat := uint8(math.Round(cmd.Saturation * 100))
	bright := uint8(math.Round(cmd.Brightness * 100))

	d.mu.Lock()
	session := d.session
	d.mu.Unlock()

	base := context.WithoutCancel(ctx)

	var lastErr error
	for attempt := 0; attempt < d.opts.RetryCap; attempt++ {
		if attempt > 0 {
			backoff := d.opts.BackoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(base, d.opts.CallTimeout)
		err := session.SetColor(callCtx, hue, sat, bright, d.opts.Transition)
		cancel()
		if err == nil {
			return nil
		}

		lastErr = err
		if d.opts.Classifier(err) == ClassAuth {
			return err
		}

		d.opts.Logger.Debug("set color attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)
	}

	return lastErr
}

// finish records the call result and returns the coalesced pending command,
// if any, for immediate dispatch.
func (d *Dispatcher) finish(err error) (color.Command, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err == nil {
		d.consecutiveFails = 0
		d.stats.Sent++
	} else {
		d.consecutiveFails++
		d.stats.Dropped++

		class := d.opts.Classifier(err)
		if class == ClassAuth || class == ClassConnect || d.consecutiveFails >= d.opts.FailureCap {
			d.closeLocked(err)
			d.inflight = false
			d.pending = nil
			return color.Command{}, false
		}

		d.opts.Logger.Warn("dropping color command after retries",
			slog.Int("consecutive_failures", d.consecutiveFails),
			slog.Any("error", err),
		)
	}

	if d.pending != nil && d.state == StateConnected {
		next := *d.pending
		d.pending = nil
		return next, true
	}

	d.inflight = false
	return color.Command{}, false
}

func (d *Dispatcher) closeLocked(err error) {
	if d.state == StateClosed {
		return
	}
	d.state = StateClosed
	d.fatal = err
	if d.session != nil {
		if cerr := d.session.Close(); cerr != nil {
			d.opts.Logger.Debug("closing dead session", slog.Any("error", cerr))
		}
		d.session = nil
	}
	d.opts.Logger.Error("device session closed", slog.Any("error", err))
}

// Reconnect re-establishes the session after a fatal failure, with bounded
// backoff. Failure past the retry cap leaves the dispatcher Closed and
// returns the fatal error.
func (d *Dispatcher) Reconnect(ctx context.Context) error {
	if d.opts.Dial == nil {
		return eris.New("dispatcher has no dialer configured")
	}

	d.mu.Lock()
	if d.state == StateConnected {
		d.mu.Unlock()
		return nil
	}
	old := d.session
	d.session = nil
	d.state = StateReconnecting
	d.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	var lastErr error
	for attempt := 0; attempt < d.opts.RetryCap; attempt++ {
		if attempt > 0 {
			backoff := d.opts.BackoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		session, err := d.opts.Dial(ctx)
		if err == nil {
			d.mu.Lock()
			d.session = session
			d.state = StateConnected
			d.fatal = nil
			d.consecutiveFails = 0
			d.mu.Unlock()
			d.opts.Logger.Info("device session re-established")
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	wrapped := eris.Wrap(lastErr, "reconnect failed")
	d.mu.Lock()
	d.state = StateClosed
	d.fatal = wrapped
	d.mu.Unlock()
	return wrapped
}

// State returns the current session lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Fatal returns the error that closed the session, if any.
func (d *Dispatcher) Fatal() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fatal
}

// Snapshot returns the cumulative dispatch counters.
func (d *Dispatcher) Snapshot() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// SetPower switches the light through the current session. It bypasses the
// command queue; callers use it for session start and teardown, not per-tick
// updates.
func (d *Dispatcher) SetPower(ctx context.Context, on bool) error {
	d.mu.Lock()
	session := d.session
	d.mu.Unlock()

	if session == nil {
		return eris.New("no device session")
	}
	return session.SetPower(ctx, on)
}

// Close waits for any in-flight call to finish and stops accepting commands.
// The session stays open so teardown commands can still reach the device;
// Shutdown or fatal-error handling tears it down.
func (d *Dispatcher) Close() error {
	d.wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateClosed
	return nil
}

// Shutdown drains in-flight calls, turns the light off and closes the
// session. A session already torn down by a fatal error is skipped.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.wg.Wait()

	d.mu.Lock()
	session := d.session
	d.session = nil
	d.state = StateClosed
	d.mu.Unlock()

	if session == nil {
		return nil
	}

	if err := session.SetPower(ctx, false); err != nil {
		d.opts.Logger.Warn("failed to turn off light", slog.Any("error", err))
	} else {
		d.opts.Logger.Info("light turned off")
	}

	return session.Close()
}
