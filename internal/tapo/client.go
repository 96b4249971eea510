// Package tapo implements the local-network control session for the light:
// newline-delimited JSON requests over TCP, a credential handshake, and a
// token-carrying set_color command.
package tapo

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"net"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const (
	// default TCP control port
	defaultDevicePort = 9999
	// timeout for establishing the TCP connection
	dialTimeout = 3 * time.Second
	// timeout for a single command round-trip
	commandResponseTimeout = 3 * time.Second
)

// Handle carries the derived credential digest presented during the device
// handshake. It holds no secrets in the clear beyond the encoded password.
type Handle struct {
	Username string
	Password string
}

// Client produces session handles from account credentials and opens device
// sessions.
type Client struct {
	email    string
	password string
}

// NewClient constructs a Client for the given account credentials.
func NewClient(email, password string) *Client {
	return &Client{email: email, password: password}
}

// Login derives the credential handle. Empty credentials fail with
// ErrInvalidCredentials before any network traffic happens.
func (c *Client) Login() (Handle, error) {
	if c.email == "" || c.password == "" {
		return Handle{}, eris.Wrap(ErrInvalidCredentials, "email and password are required")
	}

	sum := sha1.Sum([]byte(c.email))
	return Handle{
		Username: hex.EncodeToString(sum[:]),
		Password: base64.StdEncoding.EncodeToString([]byte(c.password)),
	}, nil
}

// Open dials the device and performs the credential handshake. A dial
// failure classifies as a connect error; a rejected handshake as an auth
// error.
func (c *Client) Open(ctx context.Context, address string, handle Handle) (*Session, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, strconv.Itoa(defaultDevicePort))
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, eris.Wrapf(ErrDeviceUnreachable, "dial %s: %v", address, err)
	}

	session := newSession(conn, address)
	// The reader outlives the run context so teardown commands issued during
	// shutdown still see their replies; Close stops it.
	session.listen(context.WithoutCancel(ctx))

	result, err := session.execute(ctx, "handshake", map[string]any{
		"username": handle.Username,
		"password": handle.Password,
	})
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	token, _ := result["token"].(string)
	if token == "" {
		_ = session.Close()
		return nil, eris.New("handshake response carried no session token")
	}
	session.token = token

	return session, nil
}
