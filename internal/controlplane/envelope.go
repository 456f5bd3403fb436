// Package controlplane is the local request/response channel: one JSON object
// per line over a Unix socket, one request in flight per connection.
package controlplane

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion must match exactly on both ends.
const ProtocolVersion = 1

// MaxLine bounds a single framed message.
const MaxLine = 8 << 20

// Error kinds produced by the channel itself.
const (
	KindProtocolMismatch = "protocol_mismatch"
	KindBadRequest       = "bad_request"
	KindUnknownRequest   = "unknown_request"
	KindInternal         = "internal"
)

// RequestPing is answered by every server without reaching the handler.
const RequestPing = "ping"

var (
	ErrProtocolMismatch  = errors.New("rpc protocol mismatch")
	ErrMalformedResponse = errors.New("malformed rpc response")
)

// Envelope frames one request.
type Envelope struct {
	V       int     `json:"v"`
	WsID    string  `json:"ws_id,omitempty"`
	Arming  bool    `json:"arming"`
	Role    string  `json:"role,omitempty"`
	TraceID string  `json:"trace_id,omitempty"`
	Request Request `json:"request"`
}

// Request names an operation and carries its arguments.
type Request struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response answers one Envelope. Exactly one of Result and Error is meaningful.
type Response struct {
	V       int             `json:"v"`
	TraceID string          `json:"trace_id,omitempty"`
	OK      bool            `json:"ok"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody is a structured failure with a stable kind.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RemoteError is returned by the client when the peer answered ok=false.
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Kind, e.Message)
}

// OK builds a successful response carrying result encoded as JSON.
func OK(result any) (*Response, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return &Response{V: ProtocolVersion, OK: true, Result: data}, nil
}

// Fail builds an error response.
func Fail(kind, message string) *Response {
	return &Response{V: ProtocolVersion, OK: false, Error: &ErrorBody{Kind: kind, Message: message}}
}
