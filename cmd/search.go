package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"memorypal/keeper/internal/db"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over stored pages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		query := args[0]
		for _, arg := range args[1:] {
			query += " " + arg
		}
		pages, err := a.store.SearchPages(ctx, query, searchLimit)
		if err != nil {
			return fmt.Errorf("searching: %w", err)
		}
		if searchJSON {
			if pages == nil {
				pages = []db.Page{}
			}
			return printJSON(pages)
		}
		if len(pages) == 0 {
			fmt.Println("no matches")
			return nil
		}
		for _, p := range pages {
			fmt.Printf("  %s  %s\n", truncID(p.ID), truncTitle(pageLabel(p), 60))
			if p.URL != "" && p.URL != p.Title {
				fmt.Printf("            %s\n", p.URL)
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(searchCmd)
}
