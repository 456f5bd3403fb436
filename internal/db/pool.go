package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/francescomaiomascio/yai/internal/export"
	"github.com/francescomaiomascio/yai/internal/graph"
)

// FileName is the per-scope database file.
const FileName = "semantic.sqlite"

var errPoolClosed = errors.New("store pool closed")

// Pool opens one Backend per scope under a root directory and keeps it open.
// Workspace stores live at <root>/run/<ws>/semantic.sqlite, the global store at
// <root>/global/semantic.sqlite.
type Pool struct {
	root   string
	s3     export.S3Options
	logger *zap.Logger

	mu       sync.RWMutex
	backends map[graph.Scope]*Backend
	closed   bool
}

var _ graph.BackendProvider = (*Pool)(nil)

type PoolOption func(*Pool)

func WithS3(opts export.S3Options) PoolOption {
	return func(p *Pool) { p.s3 = opts }
}

func WithLogger(l *zap.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPool(root string, opts ...PoolOption) *Pool {
	p := &Pool{
		root:     root,
		logger:   zap.NewNop(),
		backends: make(map[graph.Scope]*Backend),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("store")
	return p
}

// Path returns the database file for scope.
func (p *Pool) Path(scope graph.Scope) (string, error) {
	if scope.IsGlobal() {
		return filepath.Join(p.root, "global", FileName), nil
	}
	ws := scope.Workspace
	if ws == "" || ws == "." || ws == ".." || strings.ContainsAny(ws, "/\\\x00") {
		return "", fmt.Errorf("invalid workspace id %q", ws)
	}
	return filepath.Join(p.root, "run", ws, FileName), nil
}

// Backend returns the open backend for scope, opening it on first use.
func (p *Pool) Backend(_ context.Context, scope graph.Scope) (graph.Backend, error) {
	p.mu.RLock()
	b, ok := p.backends[scope]
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("%w: %w", graph.ErrBackendUnavailable, errPoolClosed)
	}
	if ok {
		return b, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("%w: %w", graph.ErrBackendUnavailable, errPoolClosed)
	}
	if b, ok := p.backends[scope]; ok {
		return b, nil
	}

	path, err := p.Path(scope)
	if err != nil {
		return nil, unavailable(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, unavailable(fmt.Errorf("creating scope directory: %w", err))
	}
	d, err := OpenDB(path)
	if err != nil {
		return nil, unavailable(err)
	}
	b = NewBackend(d, scope, p.s3)
	p.backends[scope] = b
	p.logger.Info("opened scope store", zap.Stringer("scope", scope), zap.String("path", path))
	return b, nil
}

// Close closes every open backend. Later Backend calls fail.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var errs []error
	for scope, b := range p.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", scope, err))
		}
	}
	p.backends = map[graph.Scope]*Backend{}
	return errors.Join(errs...)
}
