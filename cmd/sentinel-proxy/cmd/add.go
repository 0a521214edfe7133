package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	addHost  string
	addPath  string
	addParam string
	addValue string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a rewrite rule",
	Long: `Add a rule to the Config Store: every request whose host matches
(as a DNS suffix) and whose path starts with the given prefix has its
param_name query/form value replaced with param_value.

Examples:
  sentinel-proxy add --host example.com --path /search --param q --value hacked`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addHost, "host", "", "host pattern (DNS suffix match)")
	addCmd.Flags().StringVar(&addPath, "path", "", "path prefix (empty matches any path)")
	addCmd.Flags().StringVar(&addParam, "param", "", "parameter name to rewrite")
	addCmd.Flags().StringVar(&addValue, "value", "", "replacement value")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	store, err := openRulesStore()
	if err != nil {
		return err
	}

	ok, msg := store.AddRule(addHost, addPath, addParam, addValue)
	if !ok {
		return fmt.Errorf("%s", msg)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}
