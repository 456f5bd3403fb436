package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/francescomaiomascio/yai/internal/graph"
)

const edgeColumns = `id, src, dst, rel, weight, meta`

// maxVars keeps IN lists well under SQLite's bound-parameter limit.
const maxVars = 500

// scanEdge scans a row into an Edge. The row must have edgeColumns in order.
func scanEdge(scanner interface{ Scan(dest ...any) error }) (graph.Edge, error) {
	var e graph.Edge
	var meta string
	err := scanner.Scan(&e.ID, &e.Src, &e.Dst, &e.Rel, &e.Weight, &meta)
	e.Meta = []byte(meta)
	return e, err
}

// UpsertEdge inserts edge or replaces weight and meta of an existing id.
func (d *DB) UpsertEdge(ctx context.Context, e graph.Edge) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO edges (id, src, dst, rel, weight, meta) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			src = excluded.src, dst = excluded.dst, rel = excluded.rel,
			weight = excluded.weight, meta = excluded.meta
	`, e.ID, e.Src, e.Dst, e.Rel, e.Weight, string(metaText(e.Meta)))
	return err
}

func allEdges(ctx context.Context, q queryer) ([]graph.Edge, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+edgeColumns+` FROM edges ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEdges(rows)
}

// edgesFrom returns edges leaving any of ids (and entering them unless directed),
// restricted to rels when given.
func edgesFrom(ctx context.Context, q queryer, ids []string, rels []string, directed bool) ([]graph.Edge, error) {
	var relClause string
	var relArgs []any
	if len(rels) > 0 {
		relClause = ` AND rel IN (` + placeholders(len(rels)) + `)`
		relArgs = anySlice(rels)
	}

	var edges []graph.Edge
	for _, chunk := range chunks(ids) {
		in := placeholders(len(chunk))
		var query string
		args := anySlice(chunk)
		if directed {
			query = `SELECT ` + edgeColumns + ` FROM edges WHERE src IN (` + in + `)` + relClause
		} else {
			query = `SELECT ` + edgeColumns + ` FROM edges WHERE (src IN (` + in + `) OR dst IN (` + in + `))` + relClause
			args = append(args, anySlice(chunk)...)
		}
		args = append(args, relArgs...)

		rows, err := q.QueryContext(ctx, query+` ORDER BY id`, args...)
		if err != nil {
			return nil, err
		}
		batch, err := collectEdges(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		edges = append(edges, batch...)
	}
	return edges, nil
}

func collectEdges(rows *sql.Rows) ([]graph.Edge, error) {
	var edges []graph.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func chunks(ids []string) [][]string {
	var out [][]string
	for len(ids) > maxVars {
		out = append(out, ids[:maxVars])
		ids = ids[maxVars:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
