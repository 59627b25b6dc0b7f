package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"memorypal/keeper/internal/orchestrate"
)

var reprocessJSON bool

var reprocessCmd = &cobra.Command{
	Use:   "reprocess <page>",
	Short: "Run the analysis pipeline again for a stored page",
	Long:  "Resolves the page by id, id prefix, url or title search, rebuilds its task from the stored content and processes it right away.",
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
		task, err := orchestrate.TaskFromPage(page)
		if err != nil {
			return err
		}

		p, err := newPipeline(ctx, a)
		if err != nil {
			return err
		}
		defer p.Close()

		if !reprocessJSON {
			fmt.Printf("[reprocess] %s (%s)\n", truncID(page.ID), pageLabel(*page))
		}
		result := p.orch.Process(ctx, task)
		if reprocessJSON {
			if err := printJSON(result); err != nil {
				return err
			}
		} else {
			printResult(result)
		}
		if result.Status == orchestrate.StatusFailed {
			return fmt.Errorf("reprocess failed at %s: %s", result.Stage, result.Error)
		}
		return nil
	},
}

func init() {
	reprocessCmd.Flags().BoolVar(&reprocessJSON, "json", false, "Output result as JSON")
	rootCmd.AddCommand(reprocessCmd)
}
