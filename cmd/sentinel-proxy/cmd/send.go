package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sentinel-intercept/proxy/internal/domain/cookiejar"
	"github.com/sentinel-intercept/proxy/internal/domain/intruder"
	"github.com/sentinel-intercept/proxy/internal/domain/replay"
)

var (
	sendURL     string
	sendFile    string
	sendParam   string
	sendThreads int
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Bulk GET replay against a URL parameter",
	Long: `Send reads a list of payloads, one per line, and replays --url once
per payload with --param substituted in the query string — a single-position
Sniper attack (spec.md §4.10-4.12) run from the command line instead of the
intercept UI.

Examples:
  sentinel-proxy send --url http://example.com/search?q=x --file payloads.txt --param q --threads 20`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendURL, "url", "", "target URL")
	sendCmd.Flags().StringVar(&sendFile, "file", "", "path to a newline-delimited payload list")
	sendCmd.Flags().StringVar(&sendParam, "param", "", "query parameter to substitute")
	sendCmd.Flags().IntVar(&sendThreads, "threads", 10, "number of concurrent workers")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	if sendURL == "" || sendFile == "" || sendParam == "" {
		return fmt.Errorf("--url, --file, and --param are required")
	}

	payloads, err := readPayloadFile(sendFile)
	if err != nil {
		return fmt.Errorf("read payload file: %w", err)
	}

	raw, err := buildMarkedRequest(sendURL, sendParam)
	if err != nil {
		return err
	}

	positions, err := intruder.ParsePositions(raw)
	if err != nil {
		return fmt.Errorf("mark payload position: %w", err)
	}

	plan, err := intruder.GeneratePlan(intruder.StrategySniper, len(positions), [][]string{payloads})
	if err != nil {
		return fmt.Errorf("build attack plan: %w", err)
	}

	executor := replay.New(cookiejar.New(), 10*time.Second)
	runner := intruder.NewRunner(executor, nil, sendThreads)

	job := intruder.Job{Raw: raw, Positions: positions, Plan: plan}
	results := runner.Run(context.Background(), job)

	for _, r := range results {
		if r.Err != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%v -> error: %s\n", r.Payloads, r.Err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%v -> status=%d length=%d\n", r.Payloads, r.Status, r.Length)
	}
	return nil
}

// readPayloadFile reads one payload per line, skipping blank lines.
func readPayloadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var payloads []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		payloads = append(payloads, line)
	}
	return payloads, scanner.Err()
}

// buildMarkedRequest builds a raw GET request for target with param's
// query value wrapped in § delimiters, appending the param if absent.
func buildMarkedRequest(target, param string) ([]byte, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url must be absolute (missing host)")
	}

	query := u.Query()
	value := ""
	if vs := query[param]; len(vs) > 0 {
		value = vs[0]
	}

	var qs strings.Builder
	wrote := false
	for key, values := range query {
		for _, v := range values {
			if qs.Len() > 0 {
				qs.WriteByte('&')
			}
			if key == param && !wrote {
				fmt.Fprintf(&qs, "%s=§%s§", key, v)
				wrote = true
				continue
			}
			fmt.Fprintf(&qs, "%s=%s", key, v)
		}
	}
	if !wrote {
		if qs.Len() > 0 {
			qs.WriteByte('&')
		}
		fmt.Fprintf(&qs, "%s=§%s§", param, value)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	// Absolute-form target so rawhttp.Request.URL() replays against the
	// scheme the caller asked for instead of guessing from the host.
	requestTarget := u.Scheme + "://" + u.Host + path + "?" + qs.String()

	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", requestTarget)
	fmt.Fprintf(&b, "Host: %s\r\n", u.Host)
	b.WriteString("\r\n")
	return []byte(b.String()), nil
}
