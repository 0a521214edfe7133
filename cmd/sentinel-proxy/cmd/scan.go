package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sentinel-intercept/proxy/internal/domain/activescan"
	"github.com/sentinel-intercept/proxy/internal/domain/flow"
	"github.com/sentinel-intercept/proxy/internal/domain/rawhttp"
)

var scanFile string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the Active Scanner's probe families against a captured request",
	Long: `Scan reads a raw HTTP request from --file, enumerates its query and form
insertion points, and runs every active probe family (SQLi, command injection,
reflected XSS) against the live upstream (spec.md §4.14). It is the CLI trigger
for the Active Scanner; the intercept UI can drive the same Scanner directly.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFile, "file", "", "path to a raw HTTP request")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFile == "" {
		return fmt.Errorf("--file is required")
	}
	raw, err := os.ReadFile(scanFile)
	if err != nil {
		return fmt.Errorf("read raw request: %w", err)
	}
	parsed, err := rawhttp.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse raw request: %w", err)
	}

	req := flow.Request{
		Method:  parsed.Method,
		URL:     parsed.URL(),
		Headers: parsed.Headers,
		Body:    parsed.Body,
	}
	rec := flow.NewRecord(0, req)

	scanner := activescan.New()
	scanner.Scan(context.Background(), rec, &req)

	findings := rec.Vulnerabilities()
	if len(findings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no findings")
		return nil
	}
	for _, v := range findings {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s %s: %s (evidence: %s)\n", v.Severity, v.Type, v.URL, v.Description, v.Evidence)
	}
	return nil
}
