package controlplane

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler answers one decoded, version-checked request.
type Handler interface {
	Handle(ctx context.Context, env *Envelope) *Response
}

type HandlerFunc func(ctx context.Context, env *Envelope) *Response

func (f HandlerFunc) Handle(ctx context.Context, env *Envelope) *Response { return f(ctx, env) }

// Server accepts connections on a Unix socket and serves each on its own
// goroutine, strictly alternating request and response.
type Server struct {
	handler Handler
	logger  *zap.Logger

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	shutdown bool
	wg       sync.WaitGroup
}

func NewServer(h Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		handler: h,
		logger:  logger.Named("controlplane"),
		conns:   make(map[net.Conn]struct{}),
	}
}

// ListenAndServe binds socket (replacing a stale one) and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, socket string) error {
	if err := os.MkdirAll(filepath.Dir(socket), 0o755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	if err := removeStaleSocket(socket); err != nil {
		return err
	}
	ln, err := net.Listen("unix", socket)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", socket, err)
	}
	if err := os.Chmod(socket, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("restricting socket permissions: %w", err)
	}
	defer os.Remove(socket)
	s.logger.Info("control plane listening", zap.String("socket", socket))
	return s.Serve(ctx, ln)
}

func removeStaleSocket(socket string) error {
	if _, err := os.Stat(socket); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	conn, err := net.DialTimeout("unix", socket, 200*time.Millisecond)
	if err == nil {
		conn.Close()
		return fmt.Errorf("socket %s is already being served", socket)
	}
	if err := os.Remove(socket); err != nil {
		return fmt.Errorf("removing stale socket: %w", err)
	}
	return nil
}

// Serve accepts on ln until ctx is canceled, then closes open connections and
// waits for their goroutines.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.closeConns()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			s.closeConns()
			s.wg.Wait()
			return fmt.Errorf("accepting connection: %w", err)
		}
		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReaderSize(conn, 64*1024)
	for {
		line, err := readLine(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.logger.Debug("connection read failed", zap.Error(err))
			}
			return
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		resp := s.dispatch(ctx, line)
		out, err := json.Marshal(resp)
		if err != nil {
			out, _ = json.Marshal(Fail(KindInternal, err.Error()))
		}
		if _, err := conn.Write(append(out, '\n')); err != nil {
			s.logger.Debug("connection write failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, line []byte) *Response {
	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return Fail(KindBadRequest, fmt.Sprintf("decoding envelope: %v", err))
	}
	if env.V != ProtocolVersion {
		resp := Fail(KindProtocolMismatch, fmt.Sprintf("%v: got v%d, want v%d", ErrProtocolMismatch, env.V, ProtocolVersion))
		resp.TraceID = env.TraceID
		return resp
	}

	start := time.Now()
	var resp *Response
	if env.Request.Type == RequestPing {
		resp, _ = OK("pong")
	} else {
		resp = s.handler.Handle(ctx, &env)
		if resp == nil {
			resp = Fail(KindInternal, "handler returned no response")
		}
	}
	resp.V = ProtocolVersion
	resp.TraceID = env.TraceID
	s.logger.Debug("request served",
		zap.String("type", env.Request.Type),
		zap.String("ws_id", env.WsID),
		zap.String("trace_id", env.TraceID),
		zap.Bool("ok", resp.OK),
		zap.Duration("took", time.Since(start)))
	return resp
}

func (s *Server) track(c net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		c.Close()
		return
	}
	s.conns[c] = struct{}{}
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	for c := range s.conns {
		c.Close()
	}
}
