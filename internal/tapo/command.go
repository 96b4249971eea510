package tapo

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// lineEnding terminates every request and response on the wire (CRLF).
const lineEnding = "\r\n"

type request struct {
	ID     int            `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

func newRequest(id int, method string, params map[string]any) request {
	return request{
		ID:     id,
		Method: method,
		Params: params,
	}
}

func (r *request) encode() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", eris.Wrap(err, "failed to marshal device request")
	}

	return string(b) + lineEnding, nil
}

type response struct {
	ID        int            `json:"id"`
	ErrorCode int            `json:"error_code"`
	Result    map[string]any `json:"result,omitempty"`
}

// Device error codes, mirrored from the vendor firmware.
const (
	codeOK                 = 0
	codeInvalidCredentials = -1501
	codeSessionExpired     = 9999
)
