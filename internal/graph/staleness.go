package graph

import "sort"

const secondsPerDay = 86_400

// StaleNode has not been seen for a while but fresh nodes still point at it.
type StaleNode struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	DaysUnseen    int64  `json:"days_unseen"`
	FreshRefCount int    `json:"fresh_reference_count"`
}

// DriftedEdge is a derived-from link whose target was refreshed after its source.
type DriftedEdge struct {
	EdgeID    string `json:"edge_id"`
	Src       string `json:"src"`
	Dst       string `json:"dst"`
	Rel       string `json:"rel"`
	DriftDays int64  `json:"drift_days"`
}

// StalenessReport contains staleness analysis results
type StalenessReport struct {
	StaleNodes   []StaleNode   `json:"stale_nodes"`
	Drifted      []DriftedEdge `json:"drifted"`
	StaleCount   int           `json:"stale_count"`
	DriftedCount int           `json:"drifted_count"`
}

// ComputeStaleness compares last_seen stamps against now (epoch seconds).
func ComputeStaleness(snap *Snapshot, cfg AnalyzeConfig) *StalenessReport {
	staleAfter := cfg.StaleDays * secondsPerDay
	freshWithin := cfg.RecentDays * secondsPerDay
	report := &StalenessReport{}

	for _, id := range snap.NodeIDs() {
		node := snap.Nodes[id]
		age := cfg.Now - node.LastSeen
		if age <= staleAfter {
			continue
		}
		fresh := 0
		for _, src := range snap.InAdj[id] {
			if src == id {
				continue
			}
			if cfg.Now-snap.Nodes[src].LastSeen < freshWithin {
				fresh++
			}
		}
		if fresh > 0 {
			report.StaleNodes = append(report.StaleNodes, StaleNode{
				ID:            id,
				Kind:          node.Kind,
				DaysUnseen:    age / secondsPerDay,
				FreshRefCount: fresh,
			})
		}
	}
	sort.SliceStable(report.StaleNodes, func(i, j int) bool {
		return report.StaleNodes[i].FreshRefCount > report.StaleNodes[j].FreshRefCount
	})

	derived := toSet(cfg.DerivedRels)
	for _, e := range snap.LiveEdges() {
		if !derived[e.Rel] {
			continue
		}
		src, dst := snap.Nodes[e.Src], snap.Nodes[e.Dst]
		if dst.LastSeen > src.LastSeen {
			report.Drifted = append(report.Drifted, DriftedEdge{
				EdgeID:    e.ID,
				Src:       e.Src,
				Dst:       e.Dst,
				Rel:       e.Rel,
				DriftDays: (dst.LastSeen - src.LastSeen) / secondsPerDay,
			})
		}
	}
	sort.SliceStable(report.Drifted, func(i, j int) bool {
		return report.Drifted[i].DriftDays > report.Drifted[j].DriftDays
	})

	report.StaleCount = len(report.StaleNodes)
	report.DriftedCount = len(report.Drifted)
	return report
}
