package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/francescomaiomascio/yai/internal/graph"
)

const nodeColumns = `id, kind, meta, last_seen`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanNode scans a row into a Node. The row must have nodeColumns in order.
func scanNode(scanner interface{ Scan(dest ...any) error }) (graph.Node, error) {
	var n graph.Node
	var meta string
	err := scanner.Scan(&n.ID, &n.Kind, &meta, &n.LastSeen)
	n.Meta = []byte(meta)
	return n, err
}

// UpsertNode inserts node or replaces kind, meta and last_seen of an existing id.
func (d *DB) UpsertNode(ctx context.Context, n graph.Node) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO nodes (id, kind, meta, last_seen) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind, meta = excluded.meta, last_seen = excluded.last_seen
	`, n.ID, n.Kind, string(metaText(n.Meta)), n.LastSeen)
	return err
}

// GetNode returns a single node by ID, or nil if not found
func (d *DB) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func allNodes(ctx context.Context, q queryer) ([]graph.Node, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

// nodesByID loads the stored nodes among ids, ordered by id.
func nodesByID(ctx context.Context, q queryer, ids []string) ([]graph.Node, error) {
	var nodes []graph.Node
	for _, chunk := range chunks(ids) {
		rows, err := q.QueryContext(ctx,
			`SELECT `+nodeColumns+` FROM nodes WHERE id IN (`+placeholders(len(chunk))+`) ORDER BY id`,
			anySlice(chunk)...)
		if err != nil {
			return nil, err
		}
		batch, err := collectNodes(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, batch...)
	}
	return nodes, nil
}

func collectNodes(rows *sql.Rows) ([]graph.Node, error) {
	var nodes []graph.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func metaText(m []byte) []byte {
	if len(m) == 0 {
		return []byte("null")
	}
	return m
}
