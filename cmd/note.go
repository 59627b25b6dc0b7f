package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Add or list page notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <page> <text...>",
	Short: "Attach a note to a page",
	Args:  cobra.MinimumNArgs(2),
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
		note, err := a.store.AddNote(ctx, page.ID, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("added note %s to %s\n", truncID(note.ID), pageLabel(*page))
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list <page>",
	Short: "Show a page's notes",
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
		if len(page.Notes) == 0 {
			fmt.Printf("%s has no notes\n", pageLabel(*page))
			return nil
		}
		fmt.Println(pageLabel(*page))
		for _, n := range page.Notes {
			ts := time.UnixMilli(n.Timestamp).Format("2006-01-02 15:04")
			fmt.Printf("  [%s] %s\n", ts, n.Text)
		}
		return nil
	},
}

func init() {
	noteCmd.AddCommand(noteAddCmd)
	noteCmd.AddCommand(noteListCmd)
	rootCmd.AddCommand(noteCmd)
}
