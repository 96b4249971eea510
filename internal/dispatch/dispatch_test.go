package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/tapo-light-sync/internal/color"
)

var (
	errTestConnect = eris.New("connection refused")
	errTestAuth    = eris.New("invalid credentials")
	errTestTimeout = eris.New("command timed out")
)

type fakeSession struct {
	mu     sync.Mutex
	gate   chan struct{}
	fail   func(call int) error
	hues   []uint16
	powers []bool
	calls  int
	closed bool
}

func (f *fakeSession) SetColor(ctx context.Context, hue uint16, saturation, brightness uint8, transition time.Duration) error {
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	call := f.calls
	f.calls++
	f.hues = append(f.hues, hue)
	f.mu.Unlock()

	if f.fail != nil {
		return f.fail(call)
	}
	return nil
}

func (f *fakeSession) SetPower(ctx context.Context, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errTestConnect
	}
	f.powers = append(f.powers, on)
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testOptions() Options {
	return Options{
		BackoffBase: time.Millisecond,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testClassifier(err error) ErrorClass {
	switch {
	case eris.Is(err, errTestAuth):
		return ClassAuth
	case eris.Is(err, errTestConnect):
		return ClassConnect
	default:
		return ClassTransient
	}
}

func TestSubmitSendsCommand(t *testing.T) {
	session := &fakeSession{}
	d := New(session, testOptions())

	out := d.Submit(context.Background(), color.Command{Hue: 120, Saturation: 1, Brightness: 0.5})
	require.Equal(t, Accepted, out.Kind)

	require.NoError(t, d.Close())
	assert.Equal(t, 1, session.callCount())
	assert.Equal(t, []uint16{120}, session.hues)
	assert.Equal(t, uint64(1), d.Snapshot().Sent)
}

func TestSubmitCoalescesWhileInFlight(t *testing.T) {
	session := &fakeSession{gate: make(chan struct{})}
	d := New(session, testOptions())

	first := d.Submit(context.Background(), color.Command{Hue: 10, Saturation: 1, Brightness: 1})
	require.Equal(t, Accepted, first.Kind)

	second := d.Submit(context.Background(), color.Command{Hue: 20, Saturation: 1, Brightness: 1})
	assert.Equal(t, Skipped, second.Kind)

	third := d.Submit(context.Background(), color.Command{Hue: 30, Saturation: 1, Brightness: 1})
	assert.Equal(t, Skipped, third.Kind)

	close(session.gate)
	require.NoError(t, d.Close())

	// The superseded command never reaches the device.
	assert.Equal(t, []uint16{10, 30}, session.hues)

	stats := d.Snapshot()
	assert.Equal(t, uint64(2), stats.Sent)
	assert.Equal(t, uint64(2), stats.Skipped)
	assert.Equal(t, uint64(1), stats.Coalesced)
}

func TestTransientErrorIsRetried(t *testing.T) {
	session := &fakeSession{fail: func(call int) error {
		if call < 2 {
			return errTestTimeout
		}
		return nil
	}}

	opts := testOptions()
	opts.Classifier = testClassifier
	d := New(session, opts)

	out := d.Submit(context.Background(), color.Command{Hue: 60, Saturation: 1, Brightness: 1})
	require.Equal(t, Accepted, out.Kind)

	assert.Eventually(t, func() bool {
		return d.Snapshot().Sent == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, session.callCount())
	assert.Equal(t, StateConnected, d.State())
}

func TestExhaustedTransientRetriesDropCommand(t *testing.T) {
	session := &fakeSession{fail: func(int) error { return errTestTimeout }}

	opts := testOptions()
	opts.Classifier = testClassifier
	d := New(session, opts)

	out := d.Submit(context.Background(), color.Command{Hue: 60, Saturation: 1, Brightness: 1})
	require.Equal(t, Accepted, out.Kind)

	assert.Eventually(t, func() bool {
		return d.Snapshot().Dropped == 1
	}, time.Second, 5*time.Millisecond)

	// A dropped command is not fatal; the session stays usable.
	assert.Equal(t, StateConnected, d.State())
	assert.NoError(t, d.Fatal())
}

func TestConnectErrorClosesSession(t *testing.T) {
	session := &fakeSession{fail: func(int) error { return errTestConnect }}

	opts := testOptions()
	opts.Classifier = testClassifier
	d := New(session, opts)

	out := d.Submit(context.Background(), color.Command{Hue: 60, Saturation: 1, Brightness: 1})
	require.Equal(t, Accepted, out.Kind)

	assert.Eventually(t, func() bool {
		return d.State() == StateClosed
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 3, session.callCount())
	assert.True(t, session.closed)
	assert.ErrorIs(t, d.Fatal(), errTestConnect)

	after := d.Submit(context.Background(), color.Command{Hue: 90, Saturation: 1, Brightness: 1})
	assert.Equal(t, Failed, after.Kind)
	assert.ErrorIs(t, after.Reason, errTestConnect)
}

func TestAuthErrorClosesSessionWithoutRetry(t *testing.T) {
	session := &fakeSession{fail: func(int) error { return errTestAuth }}

	opts := testOptions()
	opts.Classifier = testClassifier
	d := New(session, opts)

	out := d.Submit(context.Background(), color.Command{Hue: 60, Saturation: 1, Brightness: 1})
	require.Equal(t, Accepted, out.Kind)

	assert.Eventually(t, func() bool {
		return d.State() == StateClosed
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, session.callCount())
	assert.ErrorIs(t, d.Fatal(), errTestAuth)
}

func TestConsecutiveDropsHitFailureCap(t *testing.T) {
	session := &fakeSession{fail: func(int) error { return errTestTimeout }}

	opts := testOptions()
	opts.Classifier = testClassifier
	opts.RetryCap = 1
	opts.FailureCap = 2
	d := New(session, opts)

	require.Equal(t, Accepted, d.Submit(context.Background(), color.Command{Hue: 10}).Kind)
	assert.Eventually(t, func() bool {
		return d.Snapshot().Dropped == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, StateConnected, d.State())

	require.Equal(t, Accepted, d.Submit(context.Background(), color.Command{Hue: 20}).Kind)
	assert.Eventually(t, func() bool {
		return d.State() == StateClosed
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, d.Fatal(), errTestTimeout)
}

func TestReconnectRestoresSession(t *testing.T) {
	replacement := &fakeSession{}

	opts := testOptions()
	opts.Dial = func(context.Context) (Session, error) {
		return replacement, nil
	}
	d := New(nil, opts)

	out := d.Submit(context.Background(), color.Command{Hue: 10})
	require.Equal(t, Failed, out.Kind)

	require.NoError(t, d.Reconnect(context.Background()))
	assert.Equal(t, StateConnected, d.State())

	out = d.Submit(context.Background(), color.Command{Hue: 10, Saturation: 1, Brightness: 1})
	assert.Equal(t, Accepted, out.Kind)
	require.NoError(t, d.Close())
	assert.Equal(t, 1, replacement.callCount())
}

func TestReconnectGivesUpAfterRetryCap(t *testing.T) {
	dials := 0
	opts := testOptions()
	opts.RetryCap = 2
	opts.Dial = func(context.Context) (Session, error) {
		dials++
		return nil, errTestConnect
	}
	d := New(nil, opts)

	err := d.Reconnect(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, errTestConnect)
	assert.Equal(t, 2, dials)
	assert.Equal(t, StateClosed, d.State())
}

func TestCloseLeavesSessionOpen(t *testing.T) {
	session := &fakeSession{}
	d := New(session, testOptions())

	require.Equal(t, Accepted, d.Submit(context.Background(), color.Command{Hue: 10}).Kind)
	require.NoError(t, d.Close())

	// Teardown commands must still be able to reach the device.
	assert.False(t, session.closed)
	assert.NoError(t, session.SetPower(context.Background(), false))
}

func TestShutdownPowersOffBeforeClosingSession(t *testing.T) {
	session := &fakeSession{}
	d := New(session, testOptions())

	require.Equal(t, Accepted, d.Submit(context.Background(), color.Command{Hue: 10}).Kind)
	require.NoError(t, d.Shutdown(context.Background()))

	// The fake rejects SetPower once closed, so a recorded power-off proves
	// it arrived before Close.
	assert.Equal(t, []bool{false}, session.powers)
	assert.True(t, session.closed)
	assert.Equal(t, 1, session.callCount())
}

func TestShutdownSkipsSessionLostToFatalError(t *testing.T) {
	session := &fakeSession{fail: func(int) error { return errTestConnect }}

	opts := testOptions()
	opts.Classifier = testClassifier
	d := New(session, opts)

	require.Equal(t, Accepted, d.Submit(context.Background(), color.Command{Hue: 10}).Kind)
	assert.Eventually(t, func() bool {
		return d.State() == StateClosed
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, d.Shutdown(context.Background()))
	assert.Empty(t, session.powers)
}

func TestSetPowerUsesCurrentSession(t *testing.T) {
	session := &fakeSession{}
	d := New(session, testOptions())

	require.NoError(t, d.SetPower(context.Background(), true))
	assert.Equal(t, []bool{true}, session.powers)

	assert.Error(t, New(nil, testOptions()).SetPower(context.Background(), true))
}

func TestSubmitConvertsCommandUnits(t *testing.T) {
	session := &fakeSession{}
	d := New(session, testOptions())

	d.Submit(context.Background(), color.Command{Hue: 365, Saturation: 0.5, Brightness: 1})
	require.NoError(t, d.Close())

	require.Len(t, session.hues, 1)
	assert.Equal(t, uint16(5), session.hues[0])
}
