package graph

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend keeps one scope in maps and returns the whole scope as its raw
// neighborhood, which is a valid superset for Traverse.
type memBackend struct {
	mu       sync.Mutex
	label    string
	nodes    map[string]Node
	edges    map[string]Edge
	exports  int
	failWith error
}

func newMemBackend(label string) *memBackend {
	return &memBackend{label: label, nodes: map[string]Node{}, edges: map[string]Edge{}}
}

func (m *memBackend) PutNode(_ context.Context, n Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.nodes[n.ID] = n
	return nil
}

func (m *memBackend) PutEdge(_ context.Context, e Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.edges[e.ID] = e
	return nil
}

func (m *memBackend) GetNode(_ context.Context, id string) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (m *memBackend) RawNeighbors(ctx context.Context, _ string, _ int, _ NeighborFilters) (*SubGraph, error) {
	return m.RawDump(ctx)
}

func (m *memBackend) RawDump(context.Context) (*SubGraph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	sub := NewSubGraph()
	for _, n := range m.nodes {
		sub.Nodes = append(sub.Nodes, n)
	}
	for _, e := range m.edges {
		sub.Edges = append(sub.Edges, e)
	}
	sort.Slice(sub.Nodes, func(i, j int) bool { return sub.Nodes[i].ID < sub.Nodes[j].ID })
	return sub, nil
}

func (m *memBackend) RawStats(context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &Stats{Backend: m.label, Nodes: len(m.nodes), Edges: len(m.edges), Kinds: map[string]int{}}
	for _, n := range m.nodes {
		st.Kinds[n.Kind]++
	}
	return st, nil
}

func (m *memBackend) RawExport(context.Context, ExportFormat, string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exports++
	return 42, nil
}

type memProvider struct {
	mu       sync.Mutex
	backends map[Scope]*memBackend
	calls    int
	err      error
}

func (p *memProvider) Backend(_ context.Context, scope Scope) (Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if p.backends == nil {
		p.backends = map[Scope]*memBackend{}
	}
	b, ok := p.backends[scope]
	if !ok {
		b = newMemBackend("mem:" + scope.String())
		p.backends[scope] = b
	}
	return b, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

var fixedNow = time.Unix(testNow, 0)

func newTestFacade(t *testing.T) (*Facade, *memProvider) {
	t.Helper()
	p := &memProvider{}
	return NewFacade(p, WithClock(func() time.Time { return fixedNow })), p
}

func seedScenario(t *testing.T, f *Facade, scope Scope) {
	t.Helper()
	ctx := context.Background()
	for _, id := range []string{"n1", "n2"} {
		_, err := f.PutNode(ctx, scope, Node{ID: id, Kind: "fact", Meta: []byte(`{}`)})
		require.NoError(t, err)
	}
	_, err := f.PutEdge(ctx, scope, Edge{Src: "n1", Dst: "n2", Rel: "supports", Weight: 0.8})
	require.NoError(t, err)
}

func TestFacade_PutNodeUpsert(t *testing.T) {
	f, p := newTestFacade(t)
	ctx := context.Background()
	scope := WorkspaceScope("a")

	_, err := f.PutNode(ctx, scope, Node{ID: "n1", Kind: "fact", Meta: []byte(`{"v":1}`)})
	require.NoError(t, err)
	_, err = f.PutNode(ctx, scope, Node{ID: "n1", Kind: "opinion", Meta: []byte(`{"v":2}`)})
	require.NoError(t, err)

	got, err := f.GetNode(ctx, scope, "n1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "opinion", got.Kind)
	assert.JSONEq(t, `{"v":2}`, string(got.Meta))
	assert.Equal(t, testNow, got.LastSeen)
	assert.Len(t, p.backends[scope].nodes, 1)
}

func TestFacade_InvalidMetaNeverReachesBackend(t *testing.T) {
	f, p := newTestFacade(t)
	_, err := f.PutNode(context.Background(), WorkspaceScope("a"), Node{ID: "n1", Meta: []byte(`{nope`)})
	require.ErrorIs(t, err, ErrInvalidMeta)
	var oe *OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "n1", oe.ID)
	assert.Equal(t, "ws:a", oe.Scope)
	assert.Equal(t, 0, p.calls)
}

func TestFacade_EdgeIdentity(t *testing.T) {
	f, p := newTestFacade(t)
	ctx := context.Background()
	scope := GlobalScope()
	for i := 0; i < 2; i++ {
		e, err := f.PutEdge(ctx, scope, Edge{ID: "ignored", Src: "n1", Dst: "n2", Rel: "supports", Weight: float64(i)})
		require.NoError(t, err)
		assert.Equal(t, "edge:supports:n1:n2", e.ID)
	}
	assert.Len(t, p.backends[scope].edges, 1)
	assert.Equal(t, 1.0, p.backends[scope].edges["edge:supports:n1:n2"].Weight)
}

func TestFacade_GetNodeMissing(t *testing.T) {
	f, _ := newTestFacade(t)
	got, err := f.GetNode(context.Background(), WorkspaceScope("a"), "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestFacade_ScopeIsolation(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	seedScenario(t, f, WorkspaceScope("a"))

	for _, other := range []Scope{WorkspaceScope("b"), GlobalScope()} {
		got, err := f.GetNode(ctx, other, "n1")
		require.NoError(t, err)
		assert.Nil(t, got, "scope %s", other)
		st, err := f.Stats(ctx, other)
		require.NoError(t, err)
		assert.Zero(t, st.Nodes)
	}
}

func TestFacade_NeighborsScenarioB(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	scope := WorkspaceScope("a")
	seedScenario(t, f, scope)

	got, err := f.Neighbors(ctx, scope, "n1", 1, NeighborFilters{Rels: []string{"supports"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, nodeIDs(got.Nodes))
	assert.Len(t, got.Edges, 1)

	got, err = f.Neighbors(ctx, scope, "n1", 1, NeighborFilters{Rels: []string{"contradicts"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, nodeIDs(got.Nodes))
	assert.Empty(t, got.Edges)
}

func TestFacade_ActivateScenarioA(t *testing.T) {
	f, _ := newTestFacade(t)
	scope := WorkspaceScope("a")
	seedScenario(t, f, scope)

	got, err := f.Activate(context.Background(), scope, []Seed{{ID: "n1", Weight: 1}}, policy(10))
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, nodeIDs(got.Nodes))
	assert.InDelta(t, 1.0, got.Scores["n1"], 1e-9)
	assert.InDelta(t, 0.8, got.Scores["n2"], 1e-9)
	assert.Len(t, got.Edges, 1)
}

func TestFacade_ExportRejectsFormatBeforeBackend(t *testing.T) {
	f, p := newTestFacade(t)
	_, err := f.Export(context.Background(), WorkspaceScope("a"), "graphml", "/tmp/out")
	require.ErrorIs(t, err, ErrUnsupportedExportFormat)
	assert.Equal(t, 0, p.calls)

	n, err := f.Export(context.Background(), WorkspaceScope("a"), "dot", "/tmp/out")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestFacade_ProviderFailureIsBackendUnavailable(t *testing.T) {
	f, p := newTestFacade(t)
	p.err = errors.New("socket refused")
	_, err := f.Stats(context.Background(), WorkspaceScope("a"))
	require.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "socket refused")
	assert.Contains(t, err.Error(), "stats [ws:a]")
}

func TestFacade_BackendErrorCarriesContext(t *testing.T) {
	f, p := newTestFacade(t)
	scope := WorkspaceScope("a")
	b, _ := p.Backend(context.Background(), scope)
	b.(*memBackend).failWith = ErrBackendUnavailable

	_, err := f.PutNode(context.Background(), scope, Node{ID: "n9"})
	require.ErrorIs(t, err, ErrBackendUnavailable)
	var oe *OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "put_node", oe.Op)
	assert.Equal(t, "n9", oe.ID)
}

func TestFacade_InvalidScope(t *testing.T) {
	f, p := newTestFacade(t)
	_, err := f.Stats(context.Background(), Scope{Kind: ScopeGlobal, Workspace: "a"})
	require.ErrorIs(t, err, ErrConflictingScope)
	assert.Equal(t, 0, p.calls)
}

func TestFacade_QueryExactSeed(t *testing.T) {
	f, _ := newTestFacade(t)
	scope := WorkspaceScope("a")
	seedScenario(t, f, scope)

	res, err := f.Query(context.Background(), scope, "n1", 3)
	require.NoError(t, err)
	assert.Equal(t, []Seed{{ID: "n1", Weight: 1}}, res.Seeds)
	assert.Equal(t, []string{"n1", "n2"}, nodeIDs(res.Result.Nodes))
	assert.Empty(t, res.Backend)
}

func TestFacade_QueryFallbackSeedsInTraversalOrder(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	scope := WorkspaceScope("a")
	for _, id := range []string{"c", "a", "b"} {
		_, err := f.PutNode(ctx, scope, Node{ID: id, Kind: "fact"})
		require.NoError(t, err)
		_, err = f.PutEdge(ctx, scope, Edge{Src: "topic", Dst: id, Rel: "mentions", Weight: 1})
		require.NoError(t, err)
	}

	seeds, err := f.DiscoverSeeds(ctx, scope, "topic", 2)
	require.NoError(t, err)
	assert.Equal(t, []Seed{{ID: "a", Weight: 1}, {ID: "b", Weight: 1}}, seeds)

	res, err := f.Query(ctx, scope, "topic", 2)
	require.NoError(t, err)
	assert.Len(t, res.Seeds, 2)
	assert.NotEmpty(t, res.Result.Nodes)
}

func TestFacade_QueryZeroKActivatesNothing(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	scope := WorkspaceScope("a")
	seedScenario(t, f, scope)
	_, err := f.PutEdge(ctx, scope, Edge{Src: "topic", Dst: "n2", Rel: "mentions", Weight: 1})
	require.NoError(t, err)

	for _, k := range []int{0, -3} {
		res, err := f.Query(ctx, scope, "n1", k)
		require.NoError(t, err)
		assert.Equal(t, []Seed{{ID: "n1", Weight: 1}}, res.Seeds, "k=%d", k)
		assert.Empty(t, res.Result.Nodes, "k=%d", k)
		assert.Empty(t, res.Result.Edges, "k=%d", k)

		res, err = f.Query(ctx, scope, "topic", k)
		require.NoError(t, err)
		assert.Equal(t, []Seed{{ID: "n2", Weight: 1}}, res.Seeds, "k=%d", k)
		assert.Empty(t, res.Result.Nodes, "k=%d", k)
	}
}

func TestFacade_QueryNoMatchIsEmptySuccess(t *testing.T) {
	f, _ := newTestFacade(t)
	res, err := f.Query(context.Background(), WorkspaceScope("a"), "nothing here", 5)
	require.NoError(t, err)
	assert.Empty(t, res.Seeds)
	assert.Empty(t, res.Result.Nodes)
	assert.Empty(t, res.Result.Edges)
	assert.Equal(t, "mem:ws:a", res.Backend)
}

func TestFacade_PublishesMutations(t *testing.T) {
	pub := &recordingPublisher{}
	f := NewFacade(&memProvider{}, WithPublisher(pub))
	seedScenario(t, f, WorkspaceScope("a"))
	assert.Equal(t, []string{
		"yai.graph.node.upserted", "yai.graph.node.upserted", "yai.graph.edge.upserted",
	}, pub.topics)
}

func TestFacade_NodeDetail(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	scope := WorkspaceScope("a")
	seedScenario(t, f, scope)
	for _, src := range []string{"x", "y", "z"} {
		_, err := f.PutEdge(ctx, scope, Edge{Src: src, Dst: "n2", Rel: "cites", Weight: 1})
		require.NoError(t, err)
	}

	d, err := f.NodeDetail(ctx, scope, "n2", 2)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "n2", d.Node.ID)
	require.Len(t, d.Incoming, 2)
	assert.Equal(t, "edge:cites:x:n2", d.Incoming[0].ID)
	assert.Empty(t, d.Outgoing)

	missing, err := f.NodeDetail(ctx, scope, "nope", 10)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFacade_Analyze(t *testing.T) {
	f, _ := newTestFacade(t)
	scope := WorkspaceScope("a")
	seedScenario(t, f, scope)

	r, err := f.Analyze(context.Background(), scope, DefaultAnalyzeConfig())
	require.NoError(t, err)
	assert.Equal(t, "ws:a", r.Scope)
	assert.Equal(t, 2, r.Topology.TotalNodes)
	assert.Equal(t, 1, r.Topology.NumComponents)
}

func TestFacade_AnalyzeRegion(t *testing.T) {
	f, _ := newTestFacade(t)
	scope := WorkspaceScope("a")
	seedScenario(t, f, scope)
	ctx := context.Background()
	_, err := f.PutNode(ctx, scope, Node{ID: "e1", Kind: "episode"})
	require.NoError(t, err)

	cfg := DefaultAnalyzeConfig()
	cfg.Region = "episode"
	r, err := f.Analyze(ctx, scope, cfg)
	require.NoError(t, err)
	assert.Equal(t, "episode", r.Region)
	assert.Equal(t, 1, r.Topology.TotalNodes)
	assert.Equal(t, 0, r.Topology.TotalEdges)
}

func TestFacade_ImportKeepsLastSeen(t *testing.T) {
	f, p := newTestFacade(t)
	ctx := context.Background()
	scope := GlobalScope()

	sub := &SubGraph{
		Nodes: []Node{{ID: "a", Kind: "fact", LastSeen: 100}, {ID: "b", Kind: "fact"}},
		Edges: []Edge{{ID: "stale-id", Src: "a", Dst: "b", Rel: "supports", Weight: 0.5}},
	}
	res, err := f.Import(ctx, scope, sub)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Nodes: 2, Edges: 1}, res)

	b := p.backends[scope]
	assert.Equal(t, int64(100), b.nodes["a"].LastSeen)
	assert.Equal(t, fixedNow.Unix(), b.nodes["b"].LastSeen)
	assert.JSONEq(t, "null", string(b.nodes["b"].Meta))
	_, ok := b.edges["edge:supports:a:b"]
	assert.True(t, ok, "edge id is recomputed")
}

func TestFacade_ImportRejectsBadMetaBeforeWriting(t *testing.T) {
	f, p := newTestFacade(t)
	scope := GlobalScope()
	sub := &SubGraph{Nodes: []Node{{ID: "a"}, {ID: "b", Meta: []byte("{oops")}}}

	_, err := f.Import(context.Background(), scope, sub)
	assert.ErrorIs(t, err, ErrInvalidMeta)
	assert.Zero(t, p.calls, "backend never resolved")
}
