package db

import (
	"context"
	"sort"

	"github.com/francescomaiomascio/yai/internal/graph"
)

// Neighborhood expands from root up to depth hops, pushing the rel and direction
// filters into SQL. It returns every id reached that is stored plus every edge
// touching an expanded id. Kind filtering is left to the caller's traversal.
func (d *DB) Neighborhood(ctx context.Context, root string, depth int, f graph.NeighborFilters) (*graph.SubGraph, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	reached := map[string]bool{root: true}
	edgeSeen := map[string]bool{}
	sub := graph.NewSubGraph()
	frontier := []string{root}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		edges, err := edgesFrom(ctx, tx, frontier, f.Rels, f.Directed)
		if err != nil {
			return nil, err
		}
		inFrontier := make(map[string]bool, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = true
		}

		var next []string
		visit := func(id string) {
			if !reached[id] {
				reached[id] = true
				next = append(next, id)
			}
		}
		for _, e := range edges {
			if !edgeSeen[e.ID] {
				edgeSeen[e.ID] = true
				sub.Edges = append(sub.Edges, e)
			}
			if inFrontier[e.Src] {
				visit(e.Dst)
			}
			if !f.Directed && inFrontier[e.Dst] {
				visit(e.Src)
			}
		}
		sort.Strings(next)
		frontier = next
	}

	ids := make([]string, 0, len(reached))
	for id := range reached {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	nodes, err := nodesByID(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	if nodes != nil {
		sub.Nodes = nodes
	}
	return sub, tx.Commit()
}

// Counts returns node and edge totals plus nodes per kind, from one snapshot.
func (d *DB) Counts(ctx context.Context) (nodes, edges int, kinds map[string]int, err error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&nodes); err != nil {
		return 0, 0, nil, err
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&edges); err != nil {
		return 0, 0, nil, err
	}
	rows, err := tx.QueryContext(ctx, `SELECT kind, COUNT(*) FROM nodes GROUP BY kind ORDER BY kind`)
	if err != nil {
		return 0, 0, nil, err
	}
	defer rows.Close()
	kinds = map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return 0, 0, nil, err
		}
		kinds[kind] = n
	}
	if err := rows.Err(); err != nil {
		return 0, 0, nil, err
	}
	return nodes, edges, kinds, tx.Commit()
}

// Dump reads every node and edge, ordered by id, from one snapshot.
func (d *DB) Dump(ctx context.Context) ([]graph.Node, []graph.Edge, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	nodes, err := allNodes(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	edges, err := allEdges(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	return nodes, edges, tx.Commit()
}
