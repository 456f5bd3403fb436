package graph

import "math"

// HealthBreakdown shows the sub-scores of the health formula
type HealthBreakdown struct {
	Connectivity float64 `json:"connectivity"`
	Components   float64 `json:"components"`
	Freshness    float64 `json:"freshness"`
	Robustness   float64 `json:"robustness"`
	Integrity    float64 `json:"integrity"`
}

// HealthReport is the full analysis of one scope.
type HealthReport struct {
	Scope           string           `json:"scope"`
	Region          string           `json:"region,omitempty"`
	HealthScore     float64          `json:"health_score"`
	HealthBreakdown HealthBreakdown  `json:"health_breakdown"`
	Topology        *TopologyReport  `json:"topology"`
	Staleness       *StalenessReport `json:"staleness"`
	Bridges         *BridgeReport    `json:"bridges"`
}

// AnalyzeConfig holds analysis parameters. Now is epoch seconds; zero means "now".
type AnalyzeConfig struct {
	HubThreshold int
	TopN         int
	StaleDays    int64
	RecentDays   int64
	DerivedRels  []string
	// Region restricts analysis to nodes of one kind.
	Region string
	Now    int64
}

// DefaultAnalyzeConfig returns the thresholds the analyze command uses by default.
func DefaultAnalyzeConfig() AnalyzeConfig {
	return AnalyzeConfig{
		HubThreshold: 10,
		TopN:         50,
		StaleDays:    30,
		RecentDays:   7,
		DerivedRels:  []string{"summarizes", "derived_from"},
	}
}

// AnalyzeSnapshot runs every analysis and folds them into one score in [0, 1].
func AnalyzeSnapshot(snap *Snapshot, cfg AnalyzeConfig) *HealthReport {
	topology := ComputeTopology(snap, cfg.HubThreshold, cfg.TopN)
	staleness := ComputeStaleness(snap, cfg)
	bridges := ComputeBridges(snap)

	var b HealthBreakdown
	if total := float64(topology.TotalNodes); total > 0 {
		b.Connectivity = clamp(1.0-math.Min(float64(topology.OrphanCount)/total, 0.2)*5.0, 0, 1)
		b.Freshness = clamp(1.0-math.Min(float64(staleness.StaleCount)/total, 0.1)*10.0, 0, 1)
		b.Robustness = clamp(1.0-math.Min(float64(bridges.CutCount)/total, 0.05)*20.0, 0, 1)
	}
	if topology.NumComponents > 0 {
		b.Components = clamp(1.0/float64(topology.NumComponents), 0, 1)
	}
	b.Integrity = 1
	if topology.TotalEdges > 0 {
		b.Integrity = clamp(1.0-float64(topology.DanglingEdges)/float64(topology.TotalEdges), 0, 1)
	}

	score := 0.25*b.Connectivity + 0.20*b.Components + 0.20*b.Freshness + 0.20*b.Robustness + 0.15*b.Integrity
	if topology.TotalNodes == 0 {
		score = 0
	}
	return &HealthReport{
		HealthScore:     score,
		HealthBreakdown: b,
		Topology:        topology,
		Staleness:       staleness,
		Bridges:         bridges,
	}
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}
