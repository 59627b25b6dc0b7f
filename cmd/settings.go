package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change stored settings",
	RunE:  listSettings,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every setting",
	Args:  cobra.NoArgs,
	RunE:  listSettings,
}

func listSettings(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	all, err := a.store.AllSettings(ctx)
	if err != nil {
		return err
	}
	for _, key := range sortedKeys(all) {
		raw, _ := json.Marshal(all[key])
		fmt.Printf("%s = %s\n", key, raw)
	}
	return nil
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var v any
		found, err := a.store.GetSetting(ctx, args[0], &v)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("setting %q is not set", args[0])
		}
		return printJSON(v)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting",
	Long:  "The value is parsed as JSON (true, 0.8, \"text\"); anything that is not valid JSON is stored as a string.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		value := parseSettingValue(args[1])
		if err := a.store.SetSetting(ctx, args[0], value); err != nil {
			return err
		}
		raw, _ := json.Marshal(value)
		fmt.Printf("%s = %s\n", args[0], raw)
		return nil
	},
}

func parseSettingValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
