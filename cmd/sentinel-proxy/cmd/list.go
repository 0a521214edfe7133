package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Dump the rules table",
	Long:  `List every persisted rewrite rule with its 1-based index.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := openRulesStore()
	if err != nil {
		return err
	}

	rules := store.Rules()
	if len(rules) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no rules configured")
		return nil
	}

	for i, r := range rules {
		state := "enabled"
		if !r.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d: host=%s path=%s param=%s value=%s [%s]\n",
			i+1, r.Host, r.Path, r.Param, r.Value, state)
	}
	return nil
}
