package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "limitgate",
	Short: "Rate-limiting HTTP gateway with standard limit headers",
	Long: `Limitgate is a self-hosted rate-limiting gateway.

Deploy it in front of any HTTP API to get per-client fixed-window rate
limiting with the standard X-RateLimit-* header contract, request
logging, and Prometheus metrics.

Quick start:
  limitgate serve      # Start the gateway
  limitgate validate   # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "limitgate.yaml", "config file path")
}
