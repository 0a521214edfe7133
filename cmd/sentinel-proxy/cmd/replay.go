package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sentinel-intercept/proxy/internal/domain/cookiejar"
	"github.com/sentinel-intercept/proxy/internal/domain/history"
	"github.com/sentinel-intercept/proxy/internal/domain/replay"
)

var (
	replayFile  string
	replayParam string
	replayValue string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Resend a single raw request, applying rules and the Cookie Jar",
	Long: `Replay reads a raw HTTP request from --file, reapplies the rule engine
and Cookie Jar overlay exactly as the live proxy would, sends it, and prints
the result — the single-shot Repeater path from the command line (spec.md
§4.9), distinct from "send"'s bulk Intruder attack.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayFile, "file", "", "path to a raw HTTP request")
	replayCmd.Flags().StringVar(&replayParam, "param", "", "query or form parameter to substitute")
	replayCmd.Flags().StringVar(&replayValue, "value", "", "replacement value for --param")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	if replayFile == "" {
		return fmt.Errorf("--file is required")
	}
	raw, err := os.ReadFile(replayFile)
	if err != nil {
		return fmt.Errorf("read raw request: %w", err)
	}

	store, err := openRulesStore()
	if err != nil {
		return err
	}

	executor := replay.New(cookiejar.New(), 10*time.Second)
	executor.History = history.New(1)

	resp, err := executor.SendFromRaw(context.Background(), raw, store.Rules(), replayParam, replayValue)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "status=%d length=%d duration=%s\n", resp.StatusCode, len(resp.Body), resp.Duration)
	fmt.Fprintln(cmd.OutOrStdout(), string(resp.Body))
	return nil
}
