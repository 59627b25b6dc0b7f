package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"memorypal/keeper/internal/db"
	"memorypal/keeper/internal/queue"
	"memorypal/keeper/internal/textutil"
)

var (
	statusJSON  bool
	statusQueue bool
	queueJSON   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store counts and pending tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		counts, err := a.store.Counts(ctx)
		if err != nil {
			return fmt.Errorf("counting: %w", err)
		}
		var pending []queue.Task
		if statusQueue {
			pending, err = queue.New(a.store, a.log).Pending(ctx)
			if err != nil {
				return err
			}
		}

		if statusJSON {
			return printJSON(struct {
				Counts  *db.Counts   `json:"counts"`
				Pending []queue.Task `json:"pending,omitempty"`
			}{counts, pending})
		}

		fmt.Printf("database: %s\n", a.store.Path)
		fmt.Printf("pages:    %d (%d embedded)\n", counts.Pages, counts.EmbeddedPages)
		fmt.Printf("entities: %d\n", counts.Entities)
		for _, rel := range sortedKeys(counts.Relations) {
			fmt.Printf("  %-13s %d\n", rel, counts.Relations[rel])
		}
		fmt.Printf("queued:   %d\n", counts.QueuedTasks)
		printPending(pending)
		return nil
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List tasks waiting for the consumer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		pending, err := queue.New(a.store, a.log).Pending(ctx)
		if err != nil {
			return err
		}
		if queueJSON {
			if pending == nil {
				pending = []queue.Task{}
			}
			return printJSON(pending)
		}
		if len(pending) == 0 {
			fmt.Println("queue is empty")
			return nil
		}
		printPending(pending)
		return nil
	},
}

func printPending(tasks []queue.Task) {
	now := time.Now().UnixMilli()
	for _, t := range tasks {
		fmt.Printf("  %s  %s ago  %s\n", truncID(t.TaskID),
			textutil.FormatDurationShort(now-t.Timestamp), truncTitle(t.URL, 60))
	}
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	statusCmd.Flags().BoolVar(&statusQueue, "queue", false, "List pending tasks")
	rootCmd.AddCommand(statusCmd)

	queueCmd.Flags().BoolVar(&queueJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(queueCmd)
}
