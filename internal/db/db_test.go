package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/francescomaiomascio/yai/internal/export"
	"github.com/francescomaiomascio/yai/internal/graph"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := OpenDB(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func insertNode(t *testing.T, d *DB, id, kind string) {
	t.Helper()
	if err := d.UpsertNode(context.Background(), graph.Node{ID: id, Kind: kind, Meta: []byte(`{}`), LastSeen: 1}); err != nil {
		t.Fatal(err)
	}
}

func insertEdge(t *testing.T, d *DB, src, dst, rel string, weight float64) {
	t.Helper()
	e := graph.Edge{ID: graph.EdgeID(rel, src, dst), Src: src, Dst: dst, Rel: rel, Weight: weight}
	if err := d.UpsertEdge(context.Background(), e); err != nil {
		t.Fatal(err)
	}
}

func ids(nodes []graph.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	sort.Strings(out)
	return out
}

func TestOpenDB_MigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	d, err := OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	insertNode(t, d, "n1", "fact")
	d.Close()

	d, err = OpenDB(path)
	if err != nil {
		t.Fatalf("reopening migrated database: %v", err)
	}
	defer d.Close()
	n, err := d.GetNode(context.Background(), "n1")
	if err != nil || n == nil {
		t.Fatalf("expected n1 to survive reopen, got %v, %v", n, err)
	}
}

func TestUpsertNode_Idempotent(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	if err := d.UpsertNode(ctx, graph.Node{ID: "n1", Kind: "fact", Meta: []byte(`{"v":1}`), LastSeen: 10}); err != nil {
		t.Fatal(err)
	}
	if err := d.UpsertNode(ctx, graph.Node{ID: "n1", Kind: "opinion", Meta: []byte(`{"v":2}`), LastSeen: 20}); err != nil {
		t.Fatal(err)
	}

	nodes, _, err := d.Dump(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	got := nodes[0]
	if got.Kind != "opinion" || string(got.Meta) != `{"v":2}` || got.LastSeen != 20 {
		t.Errorf("expected latest values, got %+v (meta %s)", got, got.Meta)
	}
}

func TestUpsertEdge_Idempotent(t *testing.T) {
	d := setupTestDB(t)
	insertEdge(t, d, "n1", "n2", "supports", 0.5)
	insertEdge(t, d, "n1", "n2", "supports", 0.9)

	_, edges, err := d.Dump(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if edges[0].ID != "edge:supports:n1:n2" || edges[0].Weight != 0.9 {
		t.Errorf("unexpected edge %+v", edges[0])
	}
	if string(edges[0].Meta) != "null" {
		t.Errorf("expected empty meta stored as null, got %s", edges[0].Meta)
	}
}

func TestGetNode_Missing(t *testing.T) {
	d := setupTestDB(t)
	n, err := d.GetNode(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != nil {
		t.Errorf("expected nil node, got %+v", n)
	}
}

func TestNeighborhood_PushesFiltersDown(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	insertNode(t, d, "n1", "fact")
	insertNode(t, d, "n2", "fact")
	insertNode(t, d, "n3", "fact")
	insertEdge(t, d, "n1", "n2", "supports", 0.8)
	insertEdge(t, d, "n3", "n1", "contradicts", -1)

	sub, err := d.Neighborhood(ctx, "n1", 1, graph.NeighborFilters{Rels: []string{"supports"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(sub.Nodes); fmt.Sprint(got) != "[n1 n2]" {
		t.Errorf("expected [n1 n2], got %v", got)
	}
	if len(sub.Edges) != 1 {
		t.Errorf("expected only the supports edge, got %d", len(sub.Edges))
	}

	sub, err = d.Neighborhood(ctx, "n1", 1, graph.NeighborFilters{Directed: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(sub.Nodes); fmt.Sprint(got) != "[n1 n2]" {
		t.Errorf("directed: expected [n1 n2], got %v", got)
	}

	sub, err = d.Neighborhood(ctx, "n1", 0, graph.NeighborFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.Nodes) != 1 || len(sub.Edges) != 0 {
		t.Errorf("depth 0: expected root only, got %d nodes %d edges", len(sub.Nodes), len(sub.Edges))
	}
}

func TestNeighborhood_DanglingAndCycles(t *testing.T) {
	d := setupTestDB(t)
	insertNode(t, d, "a", "x")
	insertNode(t, d, "b", "x")
	insertEdge(t, d, "a", "b", "r", 1)
	insertEdge(t, d, "b", "a", "r", 1)
	insertEdge(t, d, "b", "ghost", "r", 1)

	sub, err := d.Neighborhood(context.Background(), "a", 5, graph.NeighborFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(sub.Nodes); fmt.Sprint(got) != "[a b]" {
		t.Errorf("expected stored nodes only, got %v", got)
	}
	if len(sub.Edges) != 3 {
		t.Errorf("expected all 3 edges once, got %d", len(sub.Edges))
	}
}

func TestCounts(t *testing.T) {
	d := setupTestDB(t)
	insertNode(t, d, "n1", "fact")
	insertNode(t, d, "n2", "fact")
	insertNode(t, d, "g1", "goal")
	insertEdge(t, d, "n1", "n2", "supports", 1)

	nodes, edges, kinds, err := d.Counts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if nodes != 3 || edges != 1 {
		t.Errorf("expected 3 nodes 1 edge, got %d/%d", nodes, edges)
	}
	if kinds["fact"] != 2 || kinds["goal"] != 1 {
		t.Errorf("unexpected kinds %v", kinds)
	}
}

func TestBackend_ExportJSONLMatchesStats(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	insertNode(t, d, "n1", "fact")
	insertNode(t, d, "n2", "fact")
	insertEdge(t, d, "n1", "n2", "supports", 0.8)
	insertEdge(t, d, "n2", "elsewhere", "mentions", 1)

	b := NewBackend(d, graph.WorkspaceScope("a"), export.S3Options{})
	out := filepath.Join(t.TempDir(), "scope.jsonl")
	size, err := b.RawExport(ctx, graph.ExportJSONL, out)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != size {
		t.Errorf("reported %d bytes, file has %d", size, info.Size())
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	nodes, edges, err := export.CountRecords(f)
	if err != nil {
		t.Fatal(err)
	}
	st, err := b.RawStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if nodes+edges != st.Nodes+st.Edges {
		t.Errorf("expected %d records, got %d", st.Nodes+st.Edges, nodes+edges)
	}
	if st.Scope != "ws:a" || st.Backend != "sqlite:"+d.Path {
		t.Errorf("unexpected labels %q / %q", st.Scope, st.Backend)
	}
}

func TestBackend_ConcurrentWritersAndReaders(t *testing.T) {
	d := setupTestDB(t)
	b := NewBackend(d, graph.GlobalScope(), export.S3Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				if err := b.PutNode(ctx, graph.Node{ID: id, Kind: "k", LastSeen: int64(i)}); err != nil {
					errs <- err
					return
				}
				e := graph.Edge{ID: graph.EdgeID("next", "hub", id), Src: "hub", Dst: id, Rel: "next", Weight: 1}
				if err := b.PutEdge(ctx, e); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if _, err := b.RawNeighbors(ctx, "hub", 1, graph.NeighborFilters{}); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent op failed: %v", err)
	}

	st, err := b.RawStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Nodes != 100 || st.Edges != 100 {
		t.Errorf("expected 100 nodes and 100 edges, got %d/%d", st.Nodes, st.Edges)
	}
}

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		conn.Close()
	})
	return conn, mock
}

func TestBackend_StorageErrorsAreUnavailable(t *testing.T) {
	conn, mock := newMockDB(t)
	b := NewBackend(newDB(conn, "mock.sqlite"), graph.WorkspaceScope("a"), export.S3Options{})
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, kind, meta, last_seen FROM nodes WHERE id = \?`).
		WithArgs("n1").
		WillReturnError(errors.New("disk I/O error"))
	if _, err := b.GetNode(ctx, "n1"); !errors.Is(err, graph.ErrBackendUnavailable) {
		t.Errorf("GetNode: expected ErrBackendUnavailable, got %v", err)
	}

	mock.ExpectExec(`INSERT INTO nodes`).
		WithArgs("n1", "fact", "null", int64(5)).
		WillReturnError(errors.New("database is locked"))
	if err := b.PutNode(ctx, graph.Node{ID: "n1", Kind: "fact", LastSeen: 5}); !errors.Is(err, graph.ErrBackendUnavailable) {
		t.Errorf("PutNode: expected ErrBackendUnavailable, got %v", err)
	}

	mock.ExpectBegin().WillReturnError(errors.New("no such file"))
	if _, err := b.RawStats(ctx); !errors.Is(err, graph.ErrBackendUnavailable) {
		t.Errorf("RawStats: expected ErrBackendUnavailable, got %v", err)
	}
}

func TestBackend_GetNodeNoRowsIsAbsent(t *testing.T) {
	conn, mock := newMockDB(t)
	b := NewBackend(newDB(conn, "mock.sqlite"), graph.WorkspaceScope("a"), export.S3Options{})

	mock.ExpectQuery(`SELECT id, kind, meta, last_seen FROM nodes WHERE id = \?`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "meta", "last_seen"}))
	n, err := b.GetNode(context.Background(), "missing")
	if err != nil || n != nil {
		t.Errorf("expected nil, nil; got %v, %v", n, err)
	}
}

func TestPool_ScopeIsolationAndLayout(t *testing.T) {
	root := t.TempDir()
	p := NewPool(root)
	defer p.Close()
	ctx := context.Background()

	a, err := p.Backend(ctx, graph.WorkspaceScope("a"))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.PutNode(ctx, graph.Node{ID: "n1", Kind: "fact"}); err != nil {
		t.Fatal(err)
	}

	for _, scope := range []graph.Scope{graph.WorkspaceScope("b"), graph.GlobalScope()} {
		other, err := p.Backend(ctx, scope)
		if err != nil {
			t.Fatal(err)
		}
		n, err := other.GetNode(ctx, "n1")
		if err != nil {
			t.Fatal(err)
		}
		if n != nil {
			t.Errorf("node leaked into %s", scope)
		}
	}

	for _, rel := range []string{"run/a/" + FileName, "run/b/" + FileName, "global/" + FileName} {
		if _, err := os.Stat(filepath.Join(root, rel)); err != nil {
			t.Errorf("expected %s to exist: %v", rel, err)
		}
	}

	again, err := p.Backend(ctx, graph.WorkspaceScope("a"))
	if err != nil {
		t.Fatal(err)
	}
	if again != a {
		t.Error("expected the pool to reuse the open backend")
	}
}

func TestPool_RejectsPathLikeWorkspace(t *testing.T) {
	p := NewPool(t.TempDir())
	defer p.Close()
	for _, ws := range []string{"..", "a/b", `a\b`} {
		if _, err := p.Backend(context.Background(), graph.WorkspaceScope(ws)); !errors.Is(err, graph.ErrBackendUnavailable) {
			t.Errorf("workspace %q: expected ErrBackendUnavailable, got %v", ws, err)
		}
	}
}

func TestPool_ClosedPool(t *testing.T) {
	p := NewPool(t.TempDir())
	if _, err := p.Backend(context.Background(), graph.GlobalScope()); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Backend(context.Background(), graph.GlobalScope()); !errors.Is(err, graph.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable after close, got %v", err)
	}
}

func TestFacade_ActivateKeepsEdgesBetweenLastHopNodes(t *testing.T) {
	p := NewPool(t.TempDir())
	defer p.Close()
	f := graph.NewFacade(p)
	ctx := context.Background()
	scope := graph.WorkspaceScope("tri")

	for _, id := range []string{"s", "a", "b"} {
		if _, err := f.PutNode(ctx, scope, graph.Node{ID: id, Kind: "fact"}); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range [][2]string{{"s", "a"}, {"s", "b"}, {"a", "b"}} {
		if _, err := f.PutEdge(ctx, scope, graph.Edge{Src: e[0], Dst: e[1], Rel: "r", Weight: 0.5}); err != nil {
			t.Fatal(err)
		}
	}

	for _, directed := range []bool{false, true} {
		policy := graph.ActivationPolicy{TopN: 10, MaxHops: 1, Decay: 1, Directed: directed}
		got, err := f.Activate(ctx, scope, []graph.Seed{{ID: "s", Weight: 1}}, policy)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Nodes) != 3 {
			t.Fatalf("directed=%v: expected 3 nodes, got %v", directed, ids(got.Nodes))
		}
		var edgeIDs []string
		for _, e := range got.Edges {
			edgeIDs = append(edgeIDs, e.ID)
		}
		sort.Strings(edgeIDs)
		want := []string{"edge:r:a:b", "edge:r:s:a", "edge:r:s:b"}
		if fmt.Sprint(edgeIDs) != fmt.Sprint(want) {
			t.Errorf("directed=%v: expected edges %v, got %v", directed, want, edgeIDs)
		}
		if _, ok := got.Scores["b"]; !ok {
			t.Errorf("directed=%v: missing score for b", directed)
		}
	}
}
