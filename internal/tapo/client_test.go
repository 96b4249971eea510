package tapo

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginDerivesCredentialHandle(t *testing.T) {
	client := NewClient("user@example.com", "hunter2")

	handle, err := client.Login()
	require.NoError(t, err)

	sum := sha1.Sum([]byte("user@example.com"))
	assert.Equal(t, hex.EncodeToString(sum[:]), handle.Username)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hunter2")), handle.Password)
}

func TestLoginRejectsEmptyCredentials(t *testing.T) {
	_, err := NewClient("", "hunter2").Login()
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = NewClient("user@example.com", "").Login()
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
