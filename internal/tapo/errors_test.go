package tapo

import (
	"context"
	"net"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/cybre/tapo-light-sync/internal/dispatch"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, dispatch.ClassAuth, Classify(ErrInvalidCredentials))
	assert.Equal(t, dispatch.ClassAuth, Classify(eris.Wrap(ErrSessionExpired, "set_color rejected")))
	assert.Equal(t, dispatch.ClassConnect, Classify(eris.Wrap(ErrDeviceUnreachable, "dial 10.0.0.2")))
	assert.Equal(t, dispatch.ClassConnect, Classify(eris.Wrap(net.ErrClosed, "write")))
	assert.Equal(t, dispatch.ClassTransient, Classify(ErrCommandTimeout))
	assert.Equal(t, dispatch.ClassTransient, Classify(context.DeadlineExceeded))
	assert.Equal(t, dispatch.ClassTransient, Classify(eris.New("something else")))
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, IsAuthError(ErrInvalidCredentials))
	assert.True(t, IsAuthError(ErrSessionExpired))
	assert.False(t, IsAuthError(ErrCommandTimeout))
}

func TestIsConnectError(t *testing.T) {
	assert.True(t, IsConnectError(ErrDeviceUnreachable))
	assert.True(t, IsConnectError(net.ErrClosed))
	assert.False(t, IsConnectError(ErrCommandTimeout))
}
