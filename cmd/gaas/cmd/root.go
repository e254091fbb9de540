// Package cmd provides the CLI commands for the GaaS server.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Suyash-Gaurav/gaas-system/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gaas",
	Short: "GaaS - Governance-as-a-Service for autonomous agents",
	Long: `GaaS is a governance server for autonomous AI agents.

Agents register, submit action logs, and request enforcement decisions.
Policies uploaded as JSON documents are matched against agent actions and
violations escalate to warn, block, or suspend decisions based on severity
and the agent's recent history.

Quick start:
  1. Optionally create a config file: gaas.yaml
  2. Run: gaas start

Configuration:
  Config is loaded from gaas.yaml in the current directory, $HOME/.gaas/,
  or /etc/gaas/.

  Environment variables can override config values with the GAAS_ prefix.
  Example: GAAS_SERVER_HTTP_ADDR=:9000

Commands:
  start       Start the governance server
  hash-key    Generate an Argon2id hash for the policy upload API key
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./gaas.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
