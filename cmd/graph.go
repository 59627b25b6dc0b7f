package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"memorypal/keeper/internal/graph"
)

var graphJSON bool

var graphCmd = &cobra.Command{
	Use:   "graph <page>",
	Short: "Show the local knowledge graph around a page",
	Long:  "Lists the page's entities, pages sharing those entities, co-mentioned entities and similar pages.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		page, err := ResolvePage(ctx, a.store, args[0])
		if err != nil {
			return fmt.Errorf("cannot find page: %w", err)
		}
		g, err := graph.Neighborhood(ctx, a.store, page)
		if err != nil {
			return err
		}
		if graphJSON {
			return printJSON(g)
		}

		labels := make(map[string]string, len(g.Nodes))
		fmt.Printf("%s: %d nodes, %d edges\n", pageLabel(*page), len(g.Nodes), len(g.Edges))
		for _, n := range g.Nodes {
			labels[n.Key] = n.Label
			kind := n.Type
			if n.EntityType != "" {
				kind += "/" + n.EntityType
			}
			fmt.Printf("  %-22s %s\n", kind, truncTitle(n.Label, 60))
		}
		if len(g.Edges) > 0 {
			fmt.Println()
		}
		for _, e := range g.Edges {
			fmt.Printf("  %.2f %-14s %s -> %s\n", e.Strength, e.RelType,
				truncTitle(labels[e.Source], 30), truncTitle(labels[e.Target], 30))
		}
		return nil
	},
}

func init() {
	graphCmd.Flags().BoolVar(&graphJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(graphCmd)
}
