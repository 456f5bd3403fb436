package cmd

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/francescomaiomascio/yai/internal/graph"
	"github.com/francescomaiomascio/yai/internal/ui"
)

var (
	analyzeRegion       string
	analyzeTopN         int
	analyzeStaleDays    int64
	analyzeHubThreshold int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze scope structure: topology, staleness, bridges, health score",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := ResolveScope()
		if err != nil {
			return err
		}
		facade, done := OpenFacade()
		defer done()

		config := graph.AnalyzeConfig{
			HubThreshold: cfg.Analyze.HubThreshold,
			TopN:         cfg.Analyze.TopN,
			StaleDays:    cfg.Analyze.StaleDays,
			RecentDays:   cfg.Analyze.RecentDays,
			DerivedRels:  cfg.Analyze.DerivedRels,
			Region:       analyzeRegion,
		}
		if cmd.Flags().Changed("top-n") {
			config.TopN = analyzeTopN
		}
		if cmd.Flags().Changed("stale-days") {
			config.StaleDays = analyzeStaleDays
		}
		if cmd.Flags().Changed("hub-threshold") {
			config.HubThreshold = analyzeHubThreshold
		}

		report, err := facade.Analyze(cmd.Context(), scope, config)
		if err != nil {
			return fmt.Errorf("analyzing %s: %w", scope, err)
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), report)
		}
		printHealthReport(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeRegion, "region", "", "Restrict analysis to nodes of this kind")
	analyzeCmd.Flags().IntVar(&analyzeTopN, "top-n", 10, "Number of top items to show per section")
	analyzeCmd.Flags().Int64Var(&analyzeStaleDays, "stale-days", 30, "Days unseen before a node counts as stale")
	analyzeCmd.Flags().IntVar(&analyzeHubThreshold, "hub-threshold", 10, "Minimum degree to consider a node a hub")
	rootCmd.AddCommand(analyzeCmd)
}

const rule = "  ────────────────────────────────────────"

func printHealthReport(w io.Writer, report *graph.HealthReport) {
	st := ui.NewStyle()
	label := report.Scope
	if report.Region != "" {
		label += " / " + report.Region
	}
	fmt.Fprintf(w, "\n  Graph Health (%s): %s  [%s]\n", label, st.Score(report.HealthScore), ui.Bar(report.HealthScore, 20))
	b := report.HealthBreakdown
	fmt.Fprintf(w, "  breakdown: connectivity=%.2f components=%.2f freshness=%.2f robustness=%.2f integrity=%.2f\n\n",
		b.Connectivity, b.Components, b.Freshness, b.Robustness, b.Integrity)

	t := report.Topology
	fmt.Fprintln(w, st.Bold("  TOPOLOGY"))
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  Nodes: %d  Edges: %d  Dangling: %d  Components: %d\n",
		t.TotalNodes, t.TotalEdges, t.DanglingEdges, t.NumComponents)
	fmt.Fprintf(w, "  Largest component: %d  Smallest: %d\n", t.LargestComponent, t.SmallestComponent)
	if t.OrphanCount > 0 {
		fmt.Fprintf(w, "  Orphans: %d disconnected nodes\n", t.OrphanCount)
		for _, id := range head(t.OrphanIDs, 5) {
			fmt.Fprintf(w, "    - %s\n", st.ID(ui.Truncate(id, 40)))
		}
		if t.OrphanCount > 5 {
			fmt.Fprintf(w, "    ... and %d more\n", t.OrphanCount-5)
		}
	}

	fmt.Fprintln(w, "\n  Degree distribution:")
	for _, bucket := range t.DegreeHistogram {
		if bucket.Count > 0 {
			width := int(math.Log2(float64(bucket.Count))) + 2
			fmt.Fprintf(w, "    %5s: %4d  %s\n", bucket.Label, bucket.Count, strings.Repeat("=", width))
		}
	}
	if len(t.Hubs) > 0 {
		fmt.Fprintln(w, "\n  Top hubs (degree >= threshold):")
		for _, hub := range t.Hubs {
			fmt.Fprintf(w, "    %s degree=%d (in=%d, out=%d)  kind=%s\n",
				st.ID(ui.Truncate(hub.ID, 30)), hub.Degree, hub.InDegree, hub.OutDegree, hub.Kind)
		}
	}

	s := report.Staleness
	if s.StaleCount > 0 || s.DriftedCount > 0 {
		fmt.Fprintln(w, st.Bold("\n  STALENESS"))
		fmt.Fprintln(w, rule)
		if s.StaleCount > 0 {
			fmt.Fprintf(w, "  %d stale nodes (unseen but referenced by fresh nodes):\n", s.StaleCount)
			for _, n := range head(s.StaleNodes, 10) {
				fmt.Fprintf(w, "    %s %dd unseen, %d fresh refs  kind=%s\n",
					st.ID(ui.Truncate(n.ID, 30)), n.DaysUnseen, n.FreshRefCount, n.Kind)
			}
		}
		if s.DriftedCount > 0 {
			fmt.Fprintf(w, "  %d drifted derivations (target refreshed after source):\n", s.DriftedCount)
			for _, d := range head(s.Drifted, 10) {
				fmt.Fprintf(w, "    %s -[%s]-> %s (%dd drift)\n",
					ui.Truncate(d.Src, 25), d.Rel, ui.Truncate(d.Dst, 25), d.DriftDays)
			}
		}
	}

	br := report.Bridges
	if br.CutCount > 0 || br.BridgeCount > 0 || len(br.FragileLinks) > 0 {
		fmt.Fprintln(w, st.Bold("\n  STRUCTURAL FRAGILITY"))
		fmt.Fprintln(w, rule)
		if br.CutCount > 0 {
			fmt.Fprintf(w, "  %d cut nodes (removal disconnects graph):\n", br.CutCount)
			for _, c := range head(br.CutNodes, 10) {
				fmt.Fprintf(w, "    %s degree=%d  kind=%s\n", st.ID(ui.Truncate(c.ID, 30)), c.Degree, c.Kind)
			}
		}
		if br.BridgeCount > 0 {
			fmt.Fprintf(w, "  %d bridge edges (removal disconnects graph):\n", br.BridgeCount)
			for _, e := range head(br.Bridges, 10) {
				fmt.Fprintf(w, "    %s -- %s\n", ui.Truncate(e.Src, 30), ui.Truncate(e.Dst, 30))
			}
		}
		if len(br.FragileLinks) > 0 {
			fmt.Fprintf(w, "  %d fragile kind pairs (<=2 edges):\n", len(br.FragileLinks))
			for _, fl := range head(br.FragileLinks, 10) {
				plural := "s"
				if fl.CrossEdges == 1 {
					plural = ""
				}
				fmt.Fprintf(w, "    %s <-> %s  %d edge%s\n", fl.KindA, fl.KindB, fl.CrossEdges, plural)
			}
		}
	}
	fmt.Fprintln(w)
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
