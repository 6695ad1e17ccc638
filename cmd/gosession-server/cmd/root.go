// Package cmd provides the CLI commands for gosession-server.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gosession-server",
	Short: "Demo server for goSession cookie sessions",
	Long: `gosession-server serves a small application protected by JWT session
cookies with CSRF double-submit checks.

Configuration:
  Config is loaded from gosession.yaml in the current directory,
  $HOME/.gosession/, or /etc/gosession/.

  Environment variables override config values with the GOSESSION_ prefix.
  Example: GOSESSION_SERVER_HTTP_ADDR=:9090

Commands:
  start       Start the HTTP server
  bench       Measure validate and refresh throughput
  hash        Print a bcrypt hash for a user password
  version     Print version information`,
	SilenceUsage: true,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./gosession.yaml)")
}

func initConfig() {
	InitViper(cfgFile)
}
