// Package cmd provides the CLI commands for the Sentinel Intercept Proxy.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sentinel-intercept/proxy/internal/config"
)

var cfgFile string
var stateFilePath string

var rootCmd = &cobra.Command{
	Use:   "sentinel-proxy",
	Short: "Sentinel Intercept Proxy - interactive HTTP/HTTPS MITM security proxy",
	Long: `Sentinel Intercept Proxy is an interactive, TLS-terminating HTTP/HTTPS
proxy for manual security testing: intercept and edit requests in flight,
rewrite parameters via persisted rules, replay and fuzz requests with the
Intruder, and scan passing traffic with the passive and active scanners.

Quick start:
  1. Create a config file: sentinel-proxy.yaml
  2. Run: sentinel-proxy run
  3. Point your client at 127.0.0.1:9507 and install the CA from
     http://mitm.it once connected through the proxy.

Configuration:
  Config is loaded from sentinel-proxy.yaml in the current directory,
  $HOME/.sentinel-proxy/, or /etc/sentinel-proxy/.

  Environment variables can override config values with the
  SENTINEL_PROXY_ prefix. Example: SENTINEL_PROXY_SERVER_LISTEN_ADDR=:9090

Commands:
  run         Run the proxy headless on the configured port
  stop        Stop the running server
  list        Dump the rules table
  add         Add a rewrite rule
  remove      Remove a rule by index
  toggle      Toggle a rule's enabled flag
  send        Bulk GET replay against a URL parameter
  trust-ca    Add/remove the CA certificate to the OS trust store
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sentinel-proxy.yaml)")
	rootCmd.PersistentFlags().StringVar(&stateFilePath, "state", "", "path to the rules JSON file (default: from config)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
