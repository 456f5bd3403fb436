package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/francescomaiomascio/yai/internal/events"
)

// Dumper is implemented by backends that can hand back a whole scope in memory.
// Analysis needs it; the core operations do not.
type Dumper interface {
	RawDump(ctx context.Context) (*SubGraph, error)
}

// Facade is the entry point for graph memory operations. It picks the backend
// for each call's scope and runs traversal and activation over fetched data.
type Facade struct {
	provider  BackendProvider
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Facade)

func WithLogger(l *zap.Logger) Option {
	return func(f *Facade) {
		if l != nil {
			f.logger = l
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(f *Facade) {
		if p != nil {
			f.publisher = p
		}
	}
}

// WithClock overrides the time source used for last_seen.
func WithClock(now func() time.Time) Option {
	return func(f *Facade) {
		if now != nil {
			f.now = now
		}
	}
}

func NewFacade(provider BackendProvider, opts ...Option) *Facade {
	f := &Facade{
		provider:  provider,
		publisher: &events.NoopPublisher{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.Named("graph")
	return f
}

func (f *Facade) backend(ctx context.Context, op string, scope Scope, id string) (Backend, error) {
	if !scope.Valid() {
		return nil, opError(op, scope, id, ErrConflictingScope)
	}
	b, err := f.provider.Backend(ctx, scope)
	if err != nil {
		if !errors.Is(err, ErrBackendUnavailable) {
			err = fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
		}
		return nil, opError(op, scope, id, err)
	}
	return b, nil
}

// PutNode upserts node, stamping LastSeen with the current time.
func (f *Facade) PutNode(ctx context.Context, scope Scope, node Node) (Node, error) {
	meta, err := NormalizeMeta(node.Meta)
	if err != nil {
		return Node{}, opError("put_node", scope, node.ID, err)
	}
	node.Meta = meta
	node.LastSeen = f.now().Unix()

	b, err := f.backend(ctx, "put_node", scope, node.ID)
	if err != nil {
		return Node{}, err
	}
	if err := b.PutNode(ctx, node); err != nil {
		return Node{}, opError("put_node", scope, node.ID, err)
	}
	f.logger.Debug("node upserted",
		zap.Stringer("scope", scope), zap.String("id", node.ID), zap.String("kind", node.Kind))
	f.publish(ctx, events.TopicNodeUpserted, events.NodeUpserted{
		Scope: scope.String(), NodeID: node.ID, Kind: node.Kind, LastSeen: node.LastSeen,
	})
	return node, nil
}

// PutEdge upserts edge under its deterministic id.
func (f *Facade) PutEdge(ctx context.Context, scope Scope, edge Edge) (Edge, error) {
	edge.ID = EdgeID(edge.Rel, edge.Src, edge.Dst)
	meta, err := NormalizeMeta(edge.Meta)
	if err != nil {
		return Edge{}, opError("put_edge", scope, edge.ID, err)
	}
	edge.Meta = meta

	b, err := f.backend(ctx, "put_edge", scope, edge.ID)
	if err != nil {
		return Edge{}, err
	}
	if err := b.PutEdge(ctx, edge); err != nil {
		return Edge{}, opError("put_edge", scope, edge.ID, err)
	}
	f.logger.Debug("edge upserted", zap.Stringer("scope", scope), zap.String("id", edge.ID))
	f.publish(ctx, events.TopicEdgeUpserted, events.EdgeUpserted{
		Scope: scope.String(), EdgeID: edge.ID, Src: edge.Src, Dst: edge.Dst, Rel: edge.Rel, Weight: edge.Weight,
	})
	return edge, nil
}

// GetNode returns nil, nil when id is not stored in scope.
func (f *Facade) GetNode(ctx context.Context, scope Scope, id string) (*Node, error) {
	b, err := f.backend(ctx, "get_node", scope, id)
	if err != nil {
		return nil, err
	}
	n, err := b.GetNode(ctx, id)
	if err != nil {
		return nil, opError("get_node", scope, id, err)
	}
	return n, nil
}

// Neighbors returns the tree walked from id within depth hops.
func (f *Facade) Neighbors(ctx context.Context, scope Scope, id string, depth int, filters NeighborFilters) (*SubGraph, error) {
	depth = clampDepth(depth)
	b, err := f.backend(ctx, "neighbors", scope, id)
	if err != nil {
		return nil, err
	}
	raw, err := b.RawNeighbors(ctx, id, depth, filters)
	if err != nil {
		return nil, opError("neighbors", scope, id, err)
	}
	return Traverse(raw, id, depth, filters), nil
}

// Activate ranks the neighborhood of seeds by spreading activation.
func (f *Facade) Activate(ctx context.Context, scope Scope, seeds []Seed, policy ActivationPolicy) (*SubGraph, error) {
	policy = policy.normalized()
	b, err := f.backend(ctx, "activate", scope, seedIDs(seeds))
	if err != nil {
		return nil, err
	}
	if policy.TopN == 0 || len(seeds) == 0 {
		return Activate(nil, nil, policy), nil
	}

	// Fetch one hop past MaxHops: nothing that far is scored, but edges between
	// two last-hop survivors only appear once those nodes are expanded.
	fetched := NewSubGraph()
	filters := NeighborFilters{Directed: policy.Directed}
	done := make(map[string]bool, len(seeds))
	for _, sd := range seeds {
		if sd.ID == "" || done[sd.ID] {
			continue
		}
		done[sd.ID] = true
		raw, err := b.RawNeighbors(ctx, sd.ID, policy.MaxHops+1, filters)
		if err != nil {
			return nil, opError("activate", scope, sd.ID, err)
		}
		fetched.Merge(raw)
	}
	result := Activate(fetched, seeds, policy)
	f.logger.Debug("activation finished",
		zap.Stringer("scope", scope), zap.Int("seeds", len(seeds)),
		zap.Int("fetched_nodes", len(fetched.Nodes)), zap.Int("result_nodes", len(result.Nodes)))
	return result, nil
}

// Stats reports what the backend counts for scope.
func (f *Facade) Stats(ctx context.Context, scope Scope) (*Stats, error) {
	b, err := f.backend(ctx, "stats", scope, "")
	if err != nil {
		return nil, err
	}
	st, err := b.RawStats(ctx)
	if err != nil {
		return nil, opError("stats", scope, "", err)
	}
	return st, nil
}

// Export writes the whole scope to dest and returns the artifact size.
// The format is checked before any backend is touched.
func (f *Facade) Export(ctx context.Context, scope Scope, format string, dest string) (int64, error) {
	fmtv, err := ParseExportFormat(format)
	if err != nil {
		return 0, opError("export", scope, dest, err)
	}
	b, err := f.backend(ctx, "export", scope, dest)
	if err != nil {
		return 0, err
	}
	n, err := b.RawExport(ctx, fmtv, dest)
	if err != nil {
		return 0, opError("export", scope, dest, err)
	}
	f.logger.Info("scope exported",
		zap.Stringer("scope", scope), zap.String("format", string(fmtv)),
		zap.String("dest", dest), zap.Int64("bytes", n))
	return n, nil
}

// QueryResult is the outcome of a text-driven activation.
type QueryResult struct {
	Seeds  []Seed    `json:"seeds"`
	Result *SubGraph `json:"result"`
	// Backend is set when no seed matched, so callers can still say where they looked.
	Backend string `json:"backend,omitempty"`
}

// Query turns text into seeds and activates them with TopN = 2k.
//
// An exact node id is the only seed. Otherwise the nodes one hop from text are
// taken, in traversal order, up to k. Finding nothing is a successful empty result.
func (f *Facade) Query(ctx context.Context, scope Scope, text string, k int) (*QueryResult, error) {
	if k < 0 {
		k = 0
	}
	// Seed discovery always yields at least one seed when anything matches.
	// With k == 0 the activation keeps no nodes.
	seeds, err := f.DiscoverSeeds(ctx, scope, text, max(k, 1))
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		st, err := f.Stats(ctx, scope)
		if err != nil {
			return nil, err
		}
		return &QueryResult{Seeds: []Seed{}, Result: NewSubGraph(), Backend: st.Backend}, nil
	}

	policy := DefaultActivationPolicy()
	policy.TopN = k * 2
	result, err := f.Activate(ctx, scope, seeds, policy)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Seeds: seeds, Result: result}, nil
}

// DiscoverSeeds applies the exact-id then one-hop seed policy.
func (f *Facade) DiscoverSeeds(ctx context.Context, scope Scope, text string, k int) ([]Seed, error) {
	exact, err := f.Neighbors(ctx, scope, text, 0, NeighborFilters{})
	if err != nil {
		return nil, err
	}
	if len(exact.Nodes) > 0 {
		return []Seed{{ID: text, Weight: 1.0}}, nil
	}

	around, err := f.Neighbors(ctx, scope, text, 1, NeighborFilters{})
	if err != nil {
		return nil, err
	}
	var seeds []Seed
	for _, n := range around.Nodes {
		if len(seeds) >= k {
			break
		}
		seeds = append(seeds, Seed{ID: n.ID, Weight: 1.0})
	}
	return seeds, nil
}

// NodeDetail is a node with its incident edges split by direction.
type NodeDetail struct {
	Node     Node   `json:"node"`
	Incoming []Edge `json:"incoming"`
	Outgoing []Edge `json:"outgoing"`
}

// NodeDetail returns nil, nil when id is not stored. Edge lists are sorted by id
// and cut to limit when limit > 0.
func (f *Facade) NodeDetail(ctx context.Context, scope Scope, id string, limit int) (*NodeDetail, error) {
	node, err := f.GetNode(ctx, scope, id)
	if err != nil || node == nil {
		return nil, err
	}
	b, err := f.backend(ctx, "node_detail", scope, id)
	if err != nil {
		return nil, err
	}
	raw, err := b.RawNeighbors(ctx, id, 1, NeighborFilters{})
	if err != nil {
		return nil, opError("node_detail", scope, id, err)
	}

	detail := &NodeDetail{Node: *node, Incoming: []Edge{}, Outgoing: []Edge{}}
	for _, e := range SnapshotOf(raw).Incident[id] {
		if e.Src == id {
			detail.Outgoing = append(detail.Outgoing, e)
		}
		if e.Dst == id {
			detail.Incoming = append(detail.Incoming, e)
		}
	}
	detail.Incoming = limitEdges(detail.Incoming, limit)
	detail.Outgoing = limitEdges(detail.Outgoing, limit)
	return detail, nil
}

// ImportResult counts what Import wrote.
type ImportResult struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Import upserts a previously exported sub-graph into scope. Nodes keep their
// LastSeen unless it is zero; edge ids are recomputed from (rel, src, dst).
// Nothing is written if any record is invalid.
func (f *Facade) Import(ctx context.Context, scope Scope, sub *SubGraph) (ImportResult, error) {
	var res ImportResult
	if sub == nil {
		return res, nil
	}
	nodes := make([]Node, len(sub.Nodes))
	for i, n := range sub.Nodes {
		meta, err := NormalizeMeta(n.Meta)
		if err != nil {
			return res, opError("import", scope, n.ID, err)
		}
		n.Meta = meta
		if n.LastSeen == 0 {
			n.LastSeen = f.now().Unix()
		}
		nodes[i] = n
	}
	edges := make([]Edge, len(sub.Edges))
	for i, e := range sub.Edges {
		e.ID = EdgeID(e.Rel, e.Src, e.Dst)
		meta, err := NormalizeMeta(e.Meta)
		if err != nil {
			return res, opError("import", scope, e.ID, err)
		}
		e.Meta = meta
		edges[i] = e
	}

	b, err := f.backend(ctx, "import", scope, "")
	if err != nil {
		return res, err
	}
	for _, n := range nodes {
		if err := b.PutNode(ctx, n); err != nil {
			return res, opError("import", scope, n.ID, err)
		}
		res.Nodes++
	}
	for _, e := range edges {
		if err := b.PutEdge(ctx, e); err != nil {
			return res, opError("import", scope, e.ID, err)
		}
		res.Edges++
	}
	f.logger.Info("scope imported",
		zap.Stringer("scope", scope), zap.Int("nodes", res.Nodes), zap.Int("edges", res.Edges))
	return res, nil
}

// Analyze loads the whole scope and reports its structural health.
func (f *Facade) Analyze(ctx context.Context, scope Scope, cfg AnalyzeConfig) (*HealthReport, error) {
	b, err := f.backend(ctx, "analyze", scope, "")
	if err != nil {
		return nil, err
	}
	d, ok := b.(Dumper)
	if !ok {
		return nil, opError("analyze", scope, "", fmt.Errorf("%w: backend cannot dump scope", ErrBackendUnavailable))
	}
	sub, err := d.RawDump(ctx)
	if err != nil {
		return nil, opError("analyze", scope, "", err)
	}
	if cfg.Now == 0 {
		cfg.Now = f.now().Unix()
	}
	snap := SnapshotOf(sub)
	if cfg.Region != "" {
		snap = snap.FilterToRegion(cfg.Region)
	}
	report := AnalyzeSnapshot(snap, cfg)
	report.Scope = scope.String()
	report.Region = cfg.Region
	return report, nil
}

func (f *Facade) publish(ctx context.Context, topic string, event any) {
	if err := f.publisher.Publish(ctx, topic, event); err != nil {
		f.logger.Warn("publishing graph event", zap.String("topic", topic), zap.Error(err))
	}
}

func limitEdges(edges []Edge, limit int) []Edge {
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	if limit > 0 && len(edges) > limit {
		return edges[:limit]
	}
	return edges
}

func seedIDs(seeds []Seed) string {
	ids := make([]string, 0, len(seeds))
	for _, s := range seeds {
		ids = append(ids, s.ID)
	}
	return strings.Join(ids, ",")
}
