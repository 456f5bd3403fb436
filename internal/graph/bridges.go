package graph

import "sort"

// CutNode is a node whose removal splits its component.
type CutNode struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Degree int    `json:"degree"`
}

// BridgeEdge is a link whose removal splits its component.
type BridgeEdge struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

// FragileLink is a pair of kinds joined by very few edges.
type FragileLink struct {
	KindA      string `json:"kind_a"`
	KindB      string `json:"kind_b"`
	CrossEdges int    `json:"cross_edges"`
}

// BridgeReport lists the single points of failure in a scope.
type BridgeReport struct {
	CutNodes     []CutNode     `json:"cut_nodes"`
	Bridges      []BridgeEdge  `json:"bridges"`
	FragileLinks []FragileLink `json:"fragile_links"`
	CutCount     int           `json:"cut_count"`
	BridgeCount  int           `json:"bridge_count"`
}

// fragileMax is the largest cross-kind edge count still reported as fragile.
const fragileMax = 2

// ComputeBridges finds cut nodes and bridges with an iterative Tarjan walk,
// treating the graph as undirected and parallel edges as one link.
func ComputeBridges(snap *Snapshot) *BridgeReport {
	report := &BridgeReport{}
	if len(snap.Nodes) == 0 {
		return report
	}

	ids := snap.NodeIDs()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	n := len(ids)

	links := make([][]int, n)
	type pair struct{ u, v int }
	seen := make(map[pair]bool)
	for _, e := range snap.LiveEdges() {
		u, v := index[e.Src], index[e.Dst]
		if u == v {
			continue
		}
		key := pair{min(u, v), max(u, v)}
		if seen[key] {
			continue
		}
		seen[key] = true
		links[u] = append(links[u], v)
		links[v] = append(links[v], u)
	}

	disc := make([]int, n) // 0 = unvisited
	low := make([]int, n)
	cut := make([]bool, n)
	var bridges []pair
	clock := 0

	type frame struct{ node, parent, next int }

	for root := 0; root < n; root++ {
		if disc[root] != 0 {
			continue
		}
		clock++
		disc[root], low[root] = clock, clock
		stack := []frame{{root, -1, 0}}
		rootChildren := 0

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(links[top.node]) {
				child := links[top.node][top.next]
				top.next++
				switch {
				case child == top.parent:
				case disc[child] != 0:
					low[top.node] = min(low[top.node], disc[child])
				default:
					clock++
					disc[child], low[child] = clock, clock
					if top.node == root {
						rootChildren++
					}
					stack = append(stack, frame{child, top.node, 0})
				}
				continue
			}

			done := top.node
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				continue
			}
			up := stack[len(stack)-1].node
			low[up] = min(low[up], low[done])
			if low[done] > disc[up] {
				bridges = append(bridges, pair{up, done})
			}
			if up != root && low[done] >= disc[up] {
				cut[up] = true
			}
		}
		if rootChildren >= 2 {
			cut[root] = true
		}
	}

	for i, isCut := range cut {
		if isCut {
			report.CutNodes = append(report.CutNodes, CutNode{
				ID: ids[i], Kind: snap.Nodes[ids[i]].Kind, Degree: len(links[i]),
			})
		}
	}
	for _, b := range bridges {
		report.Bridges = append(report.Bridges, BridgeEdge{Src: ids[b.u], Dst: ids[b.v]})
	}
	sort.Slice(report.Bridges, func(i, j int) bool {
		if report.Bridges[i].Src != report.Bridges[j].Src {
			return report.Bridges[i].Src < report.Bridges[j].Src
		}
		return report.Bridges[i].Dst < report.Bridges[j].Dst
	})
	report.FragileLinks = fragileLinks(snap)
	report.CutCount = len(report.CutNodes)
	report.BridgeCount = len(report.Bridges)
	return report
}

func fragileLinks(snap *Snapshot) []FragileLink {
	type kindPair struct{ a, b string }
	counts := make(map[kindPair]int)
	for _, e := range snap.LiveEdges() {
		ka, kb := snap.Regions[e.Src], snap.Regions[e.Dst]
		if ka == kb {
			continue
		}
		if ka > kb {
			ka, kb = kb, ka
		}
		counts[kindPair{ka, kb}]++
	}

	var out []FragileLink
	for p, c := range counts {
		if c <= fragileMax {
			out = append(out, FragileLink{KindA: p.a, KindB: p.b, CrossEdges: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CrossEdges != out[j].CrossEdges {
			return out[i].CrossEdges < out[j].CrossEdges
		}
		if out[i].KindA != out[j].KindA {
			return out[i].KindA < out[j].KindA
		}
		return out[i].KindB < out[j].KindB
	})
	return out
}
