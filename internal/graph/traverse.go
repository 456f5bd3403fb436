package graph

// MaxTraversalDepth caps neighbor expansion. Deeper requests are truncated silently.
const MaxTraversalDepth = 16

func clampDepth(depth int) int {
	if depth < 0 {
		return 0
	}
	if depth > MaxTraversalDepth {
		return MaxTraversalDepth
	}
	return depth
}

// Traverse walks sub breadth-first from root. See (*Snapshot).Traverse.
func Traverse(sub *SubGraph, root string, depth int, filters NeighborFilters) *SubGraph {
	return SnapshotOf(sub).Traverse(root, depth, filters)
}

// Traverse returns the tree walked from root within depth hops.
//
// The root comes first when it is stored, then nodes in discovery order. Each
// node's edges are tried in ascending id order. An edge is followed only if its
// rel passes the filter, direction allows it, and the far node is stored, unvisited
// and of an allowed kind. Only the edges actually followed are reported. A root
// that is not stored is still expanded but not reported.
func (s *Snapshot) Traverse(root string, depth int, filters NeighborFilters) *SubGraph {
	depth = clampDepth(depth)
	out := NewSubGraph()
	if n, ok := s.Nodes[root]; ok {
		out.Nodes = append(out.Nodes, *n)
	}
	if depth == 0 {
		return out
	}

	rels := filters.relSet()
	kinds := filters.kindSet()
	visited := map[string]bool{root: true}
	frontier := []string{root}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, e := range s.Incident[id] {
				if rels != nil && !rels[e.Rel] {
					continue
				}
				nb, ok := far(e, id, filters.Directed)
				if !ok || visited[nb] {
					continue
				}
				node, stored := s.Nodes[nb]
				if !stored {
					continue
				}
				if kinds != nil && !kinds[node.Kind] {
					continue
				}
				visited[nb] = true
				out.Nodes = append(out.Nodes, *node)
				out.Edges = append(out.Edges, e)
				next = append(next, nb)
			}
		}
		frontier = next
	}
	return out
}
