package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle <index>",
	Short: "Toggle a rule's enabled flag by its 1-based index",
	Args:  cobra.ExactArgs(1),
	RunE:  runToggle,
}

func init() {
	rootCmd.AddCommand(toggleCmd)
}

func runToggle(cmd *cobra.Command, args []string) error {
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("index must be an integer: %w", err)
	}

	store, err := openRulesStore()
	if err != nil {
		return err
	}

	ok, msg := store.ToggleRule(idx - 1)
	if !ok {
		return fmt.Errorf("%s", msg)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}
