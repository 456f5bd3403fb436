package graph

import "sort"

// Snapshot indexes a fetched sub-graph for the pure algorithms. It never does I/O.
type Snapshot struct {
	Nodes map[string]*Node
	// Edges holds every edge once, ascending by id, dangling ones included.
	Edges []Edge
	// Incident maps a node id (stored or not) to its edges, ascending by id.
	Incident map[string][]Edge
	Adj      map[string][]string // undirected, stored endpoints only
	OutAdj   map[string][]string // src -> dst
	InAdj    map[string][]string // dst -> src
	Regions  map[string]string   // node id -> kind
}

// NewSnapshot builds a Snapshot. Duplicate node or edge ids keep the first occurrence.
func NewSnapshot(nodes []Node, edges []Edge) *Snapshot {
	nodeMap := make(map[string]*Node, len(nodes))
	adj := make(map[string][]string, len(nodes))
	outAdj := make(map[string][]string, len(nodes))
	inAdj := make(map[string][]string, len(nodes))
	regions := make(map[string]string, len(nodes))

	for i := range nodes {
		n := &nodes[i]
		if _, dup := nodeMap[n.ID]; dup {
			continue
		}
		nodeMap[n.ID] = n
		adj[n.ID] = nil
		outAdj[n.ID] = nil
		inAdj[n.ID] = nil
		regions[n.ID] = regionOf(n)
	}

	seen := make(map[string]bool, len(edges))
	unique := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		unique = append(unique, e)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].ID < unique[j].ID })

	incident := make(map[string][]Edge)
	for _, e := range unique {
		incident[e.Src] = append(incident[e.Src], e)
		if e.Dst != e.Src {
			incident[e.Dst] = append(incident[e.Dst], e)
		}

		if _, ok := nodeMap[e.Src]; !ok {
			continue
		}
		if _, ok := nodeMap[e.Dst]; !ok {
			continue
		}
		adj[e.Src] = append(adj[e.Src], e.Dst)
		adj[e.Dst] = append(adj[e.Dst], e.Src)
		outAdj[e.Src] = append(outAdj[e.Src], e.Dst)
		inAdj[e.Dst] = append(inAdj[e.Dst], e.Src)
	}

	return &Snapshot{
		Nodes:    nodeMap,
		Edges:    unique,
		Incident: incident,
		Adj:      adj,
		OutAdj:   outAdj,
		InAdj:    inAdj,
		Regions:  regions,
	}
}

// SnapshotOf indexes a SubGraph; a nil input yields an empty snapshot.
func SnapshotOf(sub *SubGraph) *Snapshot {
	if sub == nil {
		return NewSnapshot(nil, nil)
	}
	return NewSnapshot(sub.Nodes, sub.Edges)
}

// Has reports whether id is a stored node in the snapshot.
func (s *Snapshot) Has(id string) bool {
	_, ok := s.Nodes[id]
	return ok
}

// LiveEdges returns edges whose endpoints are both stored.
func (s *Snapshot) LiveEdges() []Edge {
	live := make([]Edge, 0, len(s.Edges))
	for _, e := range s.Edges {
		if s.Has(e.Src) && s.Has(e.Dst) {
			live = append(live, e)
		}
	}
	return live
}

// NodeIDs returns a sorted list of all node IDs (for deterministic output)
func (s *Snapshot) NodeIDs() []string {
	ids := make([]string, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FilterToRegion returns a new snapshot with only the nodes of one kind.
func (s *Snapshot) FilterToRegion(kind string) *Snapshot {
	var nodes []Node
	keep := make(map[string]bool)
	for _, id := range s.NodeIDs() {
		if s.Regions[id] == kind {
			nodes = append(nodes, *s.Nodes[id])
			keep[id] = true
		}
	}
	var edges []Edge
	for _, e := range s.Edges {
		if keep[e.Src] && keep[e.Dst] {
			edges = append(edges, e)
		}
	}
	return NewSnapshot(nodes, edges)
}

func regionOf(n *Node) string {
	if n.Kind == "" {
		return "unassigned"
	}
	return n.Kind
}

// far returns the endpoint of e opposite from, honoring direction.
func far(e Edge, from string, directed bool) (string, bool) {
	switch {
	case e.Src == from:
		return e.Dst, true
	case directed:
		return "", false
	case e.Dst == from:
		return e.Src, true
	}
	return "", false
}
