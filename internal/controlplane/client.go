package controlplane

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout applies when the caller's context has no deadline.
const DefaultTimeout = 5 * time.Second

// Client dials the socket once per call, so a connection never carries more
// than one request.
type Client struct {
	socket  string
	timeout time.Duration
	dialer  net.Dialer
}

func NewClient(socket string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{socket: socket, timeout: timeout}
}

func (c *Client) Socket() string { return c.socket }

// Call sends one request and waits for its response. Any failure to reach the
// peer or to understand its answer is returned as an error; an ok=false answer
// is returned as *RemoteError.
func (c *Client) Call(ctx context.Context, wsID, reqType string, payload any) (json.RawMessage, error) {
	env := Envelope{
		V:       ProtocolVersion,
		WsID:    wsID,
		TraceID: uuid.NewString(),
		Request: Request{Type: reqType},
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", reqType, err)
		}
		env.Request.Payload = data
	}
	line, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	conn, err := c.dialer.DialContext(ctx, "unix", c.socket)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", c.socket, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("setting deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("writing %s request: %w", reqType, err)
	}

	reader := bufio.NewReaderSize(conn, 64*1024)
	raw, err := readLine(reader)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", reqType, err)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if resp.V != ProtocolVersion {
		return nil, fmt.Errorf("%w: server speaks v%d, client v%d", ErrProtocolMismatch, resp.V, ProtocolVersion)
	}
	if !resp.OK {
		if resp.Error == nil {
			return nil, fmt.Errorf("%w: ok=false without error", ErrMalformedResponse)
		}
		if resp.Error.Kind == KindProtocolMismatch {
			return nil, fmt.Errorf("%w: %s", ErrProtocolMismatch, resp.Error.Message)
		}
		return nil, &RemoteError{Kind: resp.Error.Kind, Message: resp.Error.Message}
	}
	if len(resp.Result) == 0 || bytes.Equal(bytes.TrimSpace(resp.Result), []byte("null")) {
		return nil, fmt.Errorf("%w: ok=true without result", ErrMalformedResponse)
	}
	return resp.Result, nil
}

// Ping checks that a server is answering on the socket.
func (c *Client) Ping(ctx context.Context) error {
	raw, err := c.Call(ctx, "", RequestPing, nil)
	if err != nil {
		return err
	}
	var pong string
	if err := json.Unmarshal(raw, &pong); err != nil || pong != "pong" {
		return fmt.Errorf("%w: unexpected ping answer %s", ErrMalformedResponse, raw)
	}
	return nil
}

// readLine returns one newline-terminated frame without the newline.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > MaxLine {
			return nil, fmt.Errorf("frame exceeds %d bytes", MaxLine)
		}
		if !isPrefix {
			return line, nil
		}
	}
}
