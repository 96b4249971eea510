package tapo

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// Session is one authenticated control connection to the light. It is owned
// exclusively by the dispatcher; calls are expected to be serialized.
type Session struct {
	conn   net.Conn
	addr   string
	token  string
	cancel context.CancelFunc

	mu     sync.Mutex
	lastID int

	results chan response
	respond func(context.Context, request) (response, error)
}

func newSession(conn net.Conn, addr string) *Session {
	results := make(chan response)
	return &Session{
		conn:    conn,
		addr:    addr,
		results: results,
		respond: responseCallback(results, commandResponseTimeout),
	}
}

// listen starts the reader goroutine that decodes device replies into the
// results channel. It exits when the connection closes, the session is
// closed, or ctx is done.
func (s *Session) listen(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.readMessages(ctx)
}

func (s *Session) readMessages(ctx context.Context) {
	scanner := bufio.NewScanner(s.conn)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		var res response
		if err := json.Unmarshal([]byte(line), &res); err != nil {
			slog.Error("failed to unmarshal device response",
				slog.String("addr", s.addr),
				slog.String("json", line),
				slog.Any("error", err),
			)
			continue
		}

		select {
		case s.results <- res:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil && !eris.Is(err, net.ErrClosed) {
		slog.Error("failed to read from device connection",
			slog.String("addr", s.addr),
			slog.Any("error", err),
		)
	}
}

// SetColor sends one set_color command. The transition duration is forwarded
// so the firmware fades instead of stepping.
func (s *Session) SetColor(ctx context.Context, hue uint16, saturation, brightness uint8, transition time.Duration) error {
	_, err := s.execute(ctx, "set_color", map[string]any{
		"token":         s.token,
		"hue":           hue,
		"saturation":    saturation,
		"brightness":    brightness,
		"transition_ms": transition.Milliseconds(),
	})
	return err
}

// SetPower switches the light on or off.
func (s *Session) SetPower(ctx context.Context, on bool) error {
	_, err := s.execute(ctx, "set_power", map[string]any{
		"token": s.token,
		"on":    on,
	})
	return err
}

// Close tears down the control connection and stops the reader.
func (s *Session) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.conn.Close()
}

func (s *Session) execute(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, eris.Wrapf(ctx.Err(), "failed to execute %s", method)
	default:
	}

	req := newRequest(s.nextID(), method, params)
	text, err := req.encode()
	if err != nil {
		return nil, err
	}

	slog.Debug("executing device command",
		slog.String("addr", s.addr),
		slog.Int("id", req.ID),
		slog.String("method", method),
	)

	if _, err := s.conn.Write([]byte(text)); err != nil {
		return nil, eris.Wrap(err, "failed to write request to connection")
	}

	res, err := s.respond(ctx, req)
	if err != nil {
		return nil, err
	}

	return decodeResult(req, res)
}

func (s *Session) nextID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID
}

func decodeResult(req request, res response) (map[string]any, error) {
	switch res.ErrorCode {
	case codeOK:
		return res.Result, nil
	case codeInvalidCredentials:
		return nil, eris.Wrapf(ErrInvalidCredentials, "command %s rejected", req.Method)
	case codeSessionExpired:
		return nil, eris.Wrapf(ErrSessionExpired, "command %s rejected", req.Method)
	default:
		return nil, eris.Errorf("device error %d executing %s", res.ErrorCode, req.Method)
	}
}

// responseCallback returns a waiter that matches replies to requests by ID
// and gives up after wait.
func responseCallback(results <-chan response, wait time.Duration) func(context.Context, request) (response, error) {
	return func(ctx context.Context, req request) (response, error) {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		for {
			select {
			case res := <-results:
				if res.ID == req.ID {
					return res, nil
				}
				// Stale reply from a timed-out predecessor; keep waiting.
			case <-timer.C:
				return response{}, eris.Wrapf(ErrCommandTimeout, "command %s", req.Method)
			case <-ctx.Done():
				return response{}, eris.Wrapf(ctx.Err(), "failed to execute command %s", req.Method)
			}
		}
	}
}
