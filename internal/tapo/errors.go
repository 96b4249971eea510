package tapo

import (
	"context"
	"net"

	"github.com/rotisserie/eris"

	"github.com/cybre/tapo-light-sync/internal/dispatch"
)

// Sentinel errors for session-level failure classification.
var (
	// ErrInvalidCredentials means the device rejected the login digest.
	ErrInvalidCredentials = eris.New("invalid credentials")
	// ErrSessionExpired means the device invalidated the session token.
	ErrSessionExpired = eris.New("device session expired")
	// ErrDeviceUnreachable means the device could not be dialed.
	ErrDeviceUnreachable = eris.New("device unreachable")
	// ErrCommandTimeout means the device did not answer in time.
	ErrCommandTimeout = eris.New("command timed out")
)

// IsAuthError reports whether err is a credential or session-expiry failure
// that only a fresh login can recover from.
func IsAuthError(err error) bool {
	return eris.Is(err, ErrInvalidCredentials) || eris.Is(err, ErrSessionExpired)
}

// IsConnectError reports whether err is a connection-level failure.
func IsConnectError(err error) bool {
	if eris.Is(err, ErrDeviceUnreachable) || eris.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	if eris.As(err, &netErr) {
		return !netErr.Timeout()
	}
	return false
}

// Classify buckets a session error for the dispatcher's retry policy.
// Timeouts and anything unrecognized are transient.
func Classify(err error) dispatch.ErrorClass {
	switch {
	case IsAuthError(err):
		return dispatch.ClassAuth
	case IsConnectError(err):
		return dispatch.ClassConnect
	case eris.Is(err, ErrCommandTimeout), eris.Is(err, context.DeadlineExceeded):
		return dispatch.ClassTransient
	default:
		return dispatch.ClassTransient
	}
}
