package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"memorypal/keeper/internal/db"
	"memorypal/keeper/internal/graph"
	"memorypal/keeper/internal/textutil"
)

var (
	relatedLimit     int
	relatedThreshold float64
	relatedJSON      bool
)

var relatedCmd = &cobra.Command{
	Use:   "related <page>",
	Short: "List stored pages related to a page",
	Long: "Ranks every stored page against the given one by embedding similarity, or by keyword overlap " +
		"when the page has no embedding. The cut-off comes from the threshold setting unless --threshold is set.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		active, err := ResolvePage(ctx, a.store, args[0])
		if err != nil {
			return fmt.Errorf("cannot find page: %w", err)
		}

		threshold := relatedThreshold
		if !cmd.Flags().Changed("threshold") {
			threshold = db.DefaultSettings[db.SettingThreshold].(float64)
			if _, err := a.store.GetSetting(ctx, db.SettingThreshold, &threshold); err != nil {
				return err
			}
		}

		pages, err := a.store.AllPages(ctx)
		if err != nil {
			return fmt.Errorf("loading pages: %w", err)
		}
		res := graph.RelatedPages(active, pages, threshold, relatedLimit)

		if relatedJSON {
			return printJSON(res)
		}
		fmt.Printf("Related to %s (%s, threshold %.2f, %d scored)\n", pageLabel(*active), res.Method, threshold, res.Scored)
		if len(res.Pages) == 0 {
			fmt.Println("  nothing above threshold")
			return nil
		}
		for _, r := range res.Pages {
			title := r.Title
			if title == "" {
				title = r.URL
			}
			fmt.Printf("  %.3f  %s  %s\n", r.Similarity, truncID(r.ID), truncTitle(title, 60))
			if r.Summary != "" {
				fmt.Printf("         %s\n", textutil.TruncateMiddle(r.Summary, 100))
			}
		}
		return nil
	},
}

func init() {
	relatedCmd.Flags().IntVar(&relatedLimit, "limit", 10, "Maximum pages to list (0 for all)")
	relatedCmd.Flags().Float64Var(&relatedThreshold, "threshold", 0.7, "Minimum similarity (defaults to the threshold setting)")
	relatedCmd.Flags().BoolVar(&relatedJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(relatedCmd)
}
