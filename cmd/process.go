package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"memorypal/keeper/internal/orchestrate"
)

var (
	processJSON  bool
	processQuiet bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Drain the task queue once and exit",
	Long:  "Processes every queued task sequentially: summarize, embed, extract entities, persist and link similar pages.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		p, err := newPipeline(ctx, a)
		if err != nil {
			return err
		}
		defer p.Close()

		consumer := orchestrate.NewConsumer(p.orch, p.queue, p.bus, a.log)
		if !processJSON && !processQuiet {
			consumer.OnResult = printResult
		}
		results, err := consumer.DrainOnce(ctx)
		if err != nil {
			return err
		}
		if processJSON {
			return printJSON(results)
		}
		if !processQuiet {
			failed := 0
			for _, r := range results {
				if r.Status == orchestrate.StatusFailed {
					failed++
				}
			}
			fmt.Printf("processed %d tasks, %d failed\n", len(results), failed)
		}
		return nil
	},
}

func init() {
	processCmd.Flags().BoolVar(&processJSON, "json", false, "Output results as JSON")
	processCmd.Flags().BoolVarP(&processQuiet, "quiet", "q", false, "No output")
	rootCmd.AddCommand(processCmd)
}
