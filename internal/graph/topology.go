package graph

import "sort"

// HubNode is a node with high connectivity
type HubNode struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Degree    int    `json:"degree"`
	InDegree  int    `json:"in_degree"`
	OutDegree int    `json:"out_degree"`
}

// DegreeBucket is one bucket in the degree histogram
type DegreeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TopologyReport describes components, orphans and hubs of a scope.
type TopologyReport struct {
	TotalNodes        int            `json:"total_nodes"`
	TotalEdges        int            `json:"total_edges"`
	DanglingEdges     int            `json:"dangling_edges"`
	NumComponents     int            `json:"num_components"`
	LargestComponent  int            `json:"largest_component"`
	SmallestComponent int            `json:"smallest_component"`
	OrphanCount       int            `json:"orphan_count"`
	OrphanIDs         []string       `json:"orphan_ids"`
	Kinds             map[string]int `json:"kinds"`
	DegreeHistogram   []DegreeBucket `json:"degree_histogram"`
	Hubs              []HubNode      `json:"hubs"`
}

var degreeLabels = []string{"0", "1", "2-3", "4-7", "8-15", "16-31", "32+"}

// ComputeTopology reports components, orphans, degree distribution and hubs.
// Dangling edges are counted but never connect anything.
func ComputeTopology(snap *Snapshot, hubThreshold, topN int) *TopologyReport {
	report := &TopologyReport{
		TotalNodes:      len(snap.Nodes),
		TotalEdges:      len(snap.Edges),
		Kinds:           map[string]int{},
		DegreeHistogram: make([]DegreeBucket, len(degreeLabels)),
	}
	for i, label := range degreeLabels {
		report.DegreeHistogram[i].Label = label
	}
	for _, e := range snap.Edges {
		if !snap.Has(e.Src) || !snap.Has(e.Dst) {
			report.DanglingEdges++
		}
	}
	if report.TotalNodes == 0 {
		return report
	}

	ids := snap.NodeIDs()
	uf := NewUnionFind(ids)
	for _, e := range snap.LiveEdges() {
		uf.Union(e.Src, e.Dst)
	}
	components := uf.Components()
	report.NumComponents = len(components)
	report.LargestComponent = len(components[0])
	report.SmallestComponent = len(components[len(components)-1])

	for _, id := range ids {
		degree := len(snap.Adj[id])
		report.Kinds[snap.Nodes[id].Kind]++
		report.DegreeHistogram[degreeBucket(degree)].Count++
		if degree == 0 {
			report.OrphanIDs = append(report.OrphanIDs, id)
		}
		if degree > hubThreshold {
			report.Hubs = append(report.Hubs, HubNode{
				ID:        id,
				Kind:      snap.Nodes[id].Kind,
				Degree:    degree,
				InDegree:  len(snap.InAdj[id]),
				OutDegree: len(snap.OutAdj[id]),
			})
		}
	}
	report.OrphanCount = len(report.OrphanIDs)
	if len(report.OrphanIDs) > topN {
		report.OrphanIDs = report.OrphanIDs[:topN]
	}
	sort.SliceStable(report.Hubs, func(i, j int) bool { return report.Hubs[i].Degree > report.Hubs[j].Degree })
	if len(report.Hubs) > topN {
		report.Hubs = report.Hubs[:topN]
	}
	return report
}

func degreeBucket(degree int) int {
	switch {
	case degree == 0:
		return 0
	case degree == 1:
		return 1
	case degree <= 3:
		return 2
	case degree <= 7:
		return 3
	case degree <= 15:
		return 4
	case degree <= 31:
		return 5
	default:
		return 6
	}
}
