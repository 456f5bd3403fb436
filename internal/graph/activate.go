package graph

import (
	"math"
	"sort"
)

// Activate runs spreading activation over sub. See (*Snapshot).Activate.
func Activate(sub *SubGraph, seeds []Seed, policy ActivationPolicy) *SubGraph {
	return SnapshotOf(sub).Activate(seeds, policy)
}

// Activate propagates seed weights outward and returns the top ranked nodes.
//
// Propagation is hop-synchronous: every node in the frontier sends
// score * edge weight * decay^hop to each neighbor that was not expanded in an
// earlier hop, using the scores as they stood when the hop began. Seeds start
// with their weight (duplicates add up). Ids that are not stored keep their
// score but send nothing and are never returned.
//
// Ranking is score descending, then id ascending. Stored seeds are placed
// first, the rest compete for the remaining slots. Edges are those induced on
// the surviving nodes.
func (s *Snapshot) Activate(seeds []Seed, policy ActivationPolicy) *SubGraph {
	policy = policy.normalized()
	out := NewSubGraph()
	out.Scores = map[string]float64{}
	if policy.TopN == 0 {
		return out
	}

	scores := make(map[string]float64)
	isSeed := make(map[string]bool)
	for _, sd := range seeds {
		if sd.ID == "" || math.IsNaN(sd.Weight) {
			continue
		}
		scores[sd.ID] += sd.Weight
		isSeed[sd.ID] = true
	}
	if len(isSeed) == 0 {
		return out
	}

	frontier := sortedKeys(isSeed)
	expanded := make(map[string]bool)
	hopDecay := 1.0

	for hop := 0; hop < policy.MaxHops && len(frontier) > 0; hop++ {
		inFrontier := make(map[string]bool, len(frontier))
		current := make(map[string]float64, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = true
			current[id] = scores[id]
		}

		discovered := make(map[string]bool)
		for _, id := range frontier {
			if !s.Has(id) {
				continue
			}
			score := current[id]
			if math.Abs(score) < policy.MinActivation {
				continue
			}
			for _, e := range s.Incident[id] {
				nb, ok := far(e, id, policy.Directed)
				if !ok || nb == id || expanded[nb] {
					continue
				}
				scores[nb] += score * e.Weight * hopDecay
				if !inFrontier[nb] {
					discovered[nb] = true
				}
			}
		}

		for _, id := range frontier {
			expanded[id] = true
		}
		frontier = sortedKeys(discovered)
		hopDecay *= policy.Decay
	}

	ranked := make([]string, 0, len(scores))
	for id := range scores {
		if s.Has(id) {
			ranked = append(ranked, id)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := scores[ranked[i]], scores[ranked[j]]
		if a != b {
			return a > b
		}
		return ranked[i] < ranked[j]
	})

	keep := make(map[string]bool, policy.TopN)
	for _, id := range ranked {
		if len(keep) == policy.TopN {
			break
		}
		if isSeed[id] {
			keep[id] = true
		}
	}
	for _, id := range ranked {
		if len(keep) == policy.TopN {
			break
		}
		keep[id] = true
	}

	for _, id := range ranked {
		if !keep[id] {
			continue
		}
		out.Nodes = append(out.Nodes, *s.Nodes[id])
		out.Scores[id] = scores[id]
	}
	for _, e := range s.Edges {
		if keep[e.Src] && keep[e.Dst] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
