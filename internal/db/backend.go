package db

import (
	"bytes"
	"context"
	"fmt"

	"github.com/francescomaiomascio/yai/internal/export"
	"github.com/francescomaiomascio/yai/internal/graph"
)

// Backend serves one scope from its SQLite file.
type Backend struct {
	db    *DB
	scope graph.Scope
	s3    export.S3Options
}

var (
	_ graph.Backend = (*Backend)(nil)
	_ graph.Dumper  = (*Backend)(nil)
)

// NewBackend binds d to scope. s3 is used when an export destination is an s3:// url.
func NewBackend(d *DB, scope graph.Scope, s3 export.S3Options) *Backend {
	return &Backend{db: d, scope: scope, s3: s3}
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", graph.ErrBackendUnavailable, err)
}

func (b *Backend) Label() string { return "sqlite:" + b.db.Path }

func (b *Backend) PutNode(ctx context.Context, node graph.Node) error {
	return unavailable(b.db.UpsertNode(ctx, node))
}

func (b *Backend) PutEdge(ctx context.Context, edge graph.Edge) error {
	return unavailable(b.db.UpsertEdge(ctx, edge))
}

func (b *Backend) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	n, err := b.db.GetNode(ctx, id)
	return n, unavailable(err)
}

func (b *Backend) RawNeighbors(ctx context.Context, id string, depth int, filters graph.NeighborFilters) (*graph.SubGraph, error) {
	depth = min(max(depth, 0), graph.MaxTraversalDepth)
	sub, err := b.db.Neighborhood(ctx, id, depth, filters)
	if err != nil {
		return nil, unavailable(err)
	}
	return sub, nil
}

func (b *Backend) RawStats(ctx context.Context) (*graph.Stats, error) {
	nodes, edges, kinds, err := b.db.Counts(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return &graph.Stats{
		Scope:   b.scope.String(),
		Backend: b.Label(),
		Nodes:   nodes,
		Edges:   edges,
		Kinds:   kinds,
	}, nil
}

func (b *Backend) RawDump(ctx context.Context) (*graph.SubGraph, error) {
	nodes, edges, err := b.db.Dump(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	sub := graph.NewSubGraph()
	sub.Nodes = append(sub.Nodes, nodes...)
	sub.Edges = append(sub.Edges, edges...)
	return sub, nil
}

// RawExport renders the scope in memory and hands it to the destination in one write.
func (b *Backend) RawExport(ctx context.Context, format graph.ExportFormat, dest string) (int64, error) {
	nodes, edges, err := b.db.Dump(ctx)
	if err != nil {
		return 0, unavailable(err)
	}
	var buf bytes.Buffer
	n, err := export.Write(&buf, format, b.scope.String(), nodes, edges)
	if err != nil {
		return 0, err
	}
	target, err := export.Open(ctx, dest, b.s3)
	if err != nil {
		return 0, unavailable(err)
	}
	if err := target.Write(ctx, buf.Bytes()); err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// Close releases the underlying database.
func (b *Backend) Close() error { return b.db.Close() }
