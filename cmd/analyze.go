package cmd

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"memorypal/keeper/internal/graph"
)

var (
	analyzeJSON         bool
	analyzeRel          []string
	analyzeTopN         int
	analyzeHubThreshold int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the knowledge graph: topology, bridges, coverage, health score",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := graph.SnapshotFromDB(ctx, a.store)
		if err != nil {
			return fmt.Errorf("loading graph: %w", err)
		}
		snap = snap.FilterRelTypes(analyzeRel...)

		report := graph.Analyze(snap, &graph.AnalyzerConfig{
			HubThreshold: analyzeHubThreshold,
			TopN:         analyzeTopN,
		})

		if analyzeJSON {
			return printJSON(report)
		}
		printHumanReadable(report, snap)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Output as JSON")
	analyzeCmd.Flags().StringSliceVar(&analyzeRel, "rel", nil, "Only count these relation types (MENTIONS, CO_MENTION, PAGE_SIMILAR, RELATED_TO)")
	analyzeCmd.Flags().IntVar(&analyzeTopN, "top-n", 10, "Number of top items to show per section")
	analyzeCmd.Flags().IntVar(&analyzeHubThreshold, "hub-threshold", 10, "Minimum degree to consider a node a hub")
	rootCmd.AddCommand(analyzeCmd)
}

func printHumanReadable(report *graph.AnalysisReport, snap *graph.Snapshot) {
	barLen := int(report.HealthScore * 20)
	if barLen > 20 {
		barLen = 20
	}
	bar := strings.Repeat("█", barLen) + strings.Repeat("░", 20-barLen)
	fmt.Printf("\n  Graph Health: %.0f%%  [%s]\n", report.HealthScore*100, bar)
	hb := report.HealthBreakdown
	fmt.Printf("  breakdown: connectivity=%.2f components=%.2f embeddings=%.2f entities=%.2f fragility=%.2f\n\n",
		hb.Connectivity, hb.Components, hb.EmbeddingCoverage, hb.EntityCoverage, hb.Fragility)

	fmt.Println("  CONTENTS")
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Pages: %d (%d embedded)  Entities: %d\n", report.Pages, report.EmbeddedPages, report.Entities)
	for _, rel := range sortedKeys(report.Relations) {
		fmt.Printf("    %-13s %d\n", rel, report.Relations[rel])
	}

	t := report.Topology
	fmt.Println("\n  TOPOLOGY")
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Nodes: %d  Edges: %d  Components: %d\n", t.TotalNodes, t.TotalEdges, t.NumComponents)
	fmt.Printf("  Largest component: %d  Smallest: %d\n", t.LargestComponent, t.SmallestComponent)

	if t.OrphanCount > 0 {
		fmt.Printf("  Orphans: %d disconnected nodes (%d pages)\n", t.OrphanCount, t.OrphanPages)
		limit := min(5, len(t.OrphanKeys))
		for _, key := range t.OrphanKeys[:limit] {
			title := "?"
			if node := snap.Nodes[key]; node != nil {
				title = truncTitle(node.Title, 50)
			}
			fmt.Printf("    - %s (%s)\n", key, title)
		}
		if t.OrphanCount > 5 {
			fmt.Printf("    ... and %d more\n", t.OrphanCount-5)
		}
	}

	fmt.Println("\n  Degree distribution:")
	for _, b := range t.DegreeHistogram {
		if b.Count > 0 {
			barWidth := int(math.Log2(float64(b.Count))) + 2
			fmt.Printf("    %5s: %4d  %s\n", b.Label, b.Count, strings.Repeat("=", barWidth))
		}
	}

	if len(t.Hubs) > 0 {
		fmt.Println("\n  Top hubs (degree > threshold):")
		for _, hub := range t.Hubs {
			fmt.Printf("    %-6s degree=%d (in=%d, out=%d)  %s\n",
				hub.Kind, hub.Degree, hub.InDegree, hub.OutDegree, truncTitle(hub.Title, 40))
		}
	}

	br := report.Bridges
	if br.APCount > 0 || br.BridgeCount > 0 {
		fmt.Println("\n  STRUCTURAL FRAGILITY")
		fmt.Println("  ────────────────────────────────────────")
		if br.APCount > 0 {
			fmt.Printf("  %d articulation points (removal disconnects graph):\n", br.APCount)
			limit := min(10, len(br.ArticulationPoints))
			for _, ap := range br.ArticulationPoints[:limit] {
				fmt.Printf("    %-6s degree=%d  %s\n", ap.Kind, ap.Degree, truncTitle(ap.Title, 40))
			}
		}
		if br.BridgeCount > 0 {
			fmt.Printf("  %d bridge edges (removal disconnects graph):\n", br.BridgeCount)
			limit := min(10, len(br.BridgeEdges))
			for _, be := range br.BridgeEdges[:limit] {
				fmt.Printf("    %s -> %s\n", truncTitle(be.SourceTitle, 30), truncTitle(be.TargetTitle, 30))
			}
		}
	}

	fmt.Println()
}
