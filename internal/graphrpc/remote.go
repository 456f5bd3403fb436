package graphrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/francescomaiomascio/yai/internal/controlplane"
	"github.com/francescomaiomascio/yai/internal/graph"
)

// Provider hands out RemoteBackends that share one control plane client.
type Provider struct {
	client *controlplane.Client
}

var _ graph.BackendProvider = (*Provider)(nil)

func NewProvider(client *controlplane.Client) *Provider {
	return &Provider{client: client}
}

// Backend never dials; reachability surfaces on the first call.
func (p *Provider) Backend(_ context.Context, scope graph.Scope) (graph.Backend, error) {
	return &RemoteBackend{client: p.client, scope: scope}, nil
}

// RemoteBackend forwards every operation for one scope to the serving peer.
type RemoteBackend struct {
	client *controlplane.Client
	scope  graph.Scope
}

var (
	_ graph.Backend = (*RemoteBackend)(nil)
	_ graph.Dumper  = (*RemoteBackend)(nil)
)

func (r *RemoteBackend) PutNode(ctx context.Context, node graph.Node) error {
	var ack Ack
	return r.call(ctx, OpPutNode, PutNodeArgs{Scope: r.scope, Node: node}, &ack, "id")
}

func (r *RemoteBackend) PutEdge(ctx context.Context, edge graph.Edge) error {
	var ack Ack
	return r.call(ctx, OpPutEdge, PutEdgeArgs{Scope: r.scope, Edge: edge}, &ack, "id")
}

func (r *RemoteBackend) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	var res GetNodeResult
	if err := r.call(ctx, OpGetNode, GetNodeArgs{Scope: r.scope, ID: id}, &res, "node?"); err != nil {
		return nil, err
	}
	return res.Node, nil
}

func (r *RemoteBackend) RawNeighbors(ctx context.Context, id string, depth int, filters graph.NeighborFilters) (*graph.SubGraph, error) {
	sub := graph.NewSubGraph()
	args := NeighborsArgs{Scope: r.scope, ID: id, Depth: depth, Filters: filters}
	if err := r.call(ctx, OpRawNeighbors, args, sub, "nodes", "edges"); err != nil {
		return nil, err
	}
	return sub, nil
}

// RawStats reports the peer's counts under an rpc: backend label.
func (r *RemoteBackend) RawStats(ctx context.Context) (*graph.Stats, error) {
	var stats graph.Stats
	if err := r.call(ctx, OpRawStats, ScopeArgs{Scope: r.scope}, &stats, "scope", "backend", "nodes", "edges"); err != nil {
		return nil, err
	}
	if stats.Scope == "" || stats.Backend == "" {
		return nil, malformed(errors.New("stats without scope or backend"))
	}
	stats.Backend = "rpc:" + stats.Backend
	if stats.Kinds == nil {
		stats.Kinds = map[string]int{}
	}
	return &stats, nil
}

func (r *RemoteBackend) RawExport(ctx context.Context, format graph.ExportFormat, dest string) (int64, error) {
	var res ExportResult
	if err := r.call(ctx, OpRawExport, ExportArgs{Scope: r.scope, Format: format, Dest: dest}, &res, "bytes"); err != nil {
		return 0, err
	}
	return res.Bytes, nil
}

func (r *RemoteBackend) RawDump(ctx context.Context) (*graph.SubGraph, error) {
	sub := graph.NewSubGraph()
	if err := r.call(ctx, OpRawDump, ScopeArgs{Scope: r.scope}, sub, "nodes", "edges"); err != nil {
		return nil, err
	}
	return sub, nil
}

// call decodes the peer's result into out. Every key in required must be
// present and non-null; a trailing "?" allows null.
func (r *RemoteBackend) call(ctx context.Context, op string, args, out any, required ...string) error {
	raw, err := r.client.Call(ctx, r.scope.Workspace, op, args)
	if err != nil {
		return remoteError(err)
	}
	if err := checkResult(raw, required); err != nil {
		return malformed(fmt.Errorf("%s: %w", op, err))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return malformed(err)
	}
	return nil
}

func checkResult(raw json.RawMessage, required []string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("result is not an object")
	}
	for _, key := range required {
		name, nullable := strings.CutSuffix(key, "?")
		v, ok := fields[name]
		if !ok {
			return fmt.Errorf("missing %q", name)
		}
		if !nullable && bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return fmt.Errorf("null %q", name)
		}
	}
	return nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w: %w", graph.ErrBackendUnavailable, controlplane.ErrMalformedResponse, err)
}

// remoteError keeps the peer's sentinel when it sent a known kind. Everything
// else, transport failures included, means the backend is unavailable.
func remoteError(err error) error {
	var re *controlplane.RemoteError
	if errors.As(err, &re) {
		if sentinel, ok := graph.SentinelForKind(re.Kind); ok {
			return fmt.Errorf("%w (remote: %s)", sentinel, re.Message)
		}
	}
	return fmt.Errorf("%w: %w", graph.ErrBackendUnavailable, err)
}
