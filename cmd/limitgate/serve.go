package main

import (
	"fmt"
	"os"

	"github.com/limitgate/limitgate/bootstrap"
	"github.com/limitgate/limitgate/config"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the limitgate gateway server.

The server will:
  - Load configuration from limitgate.yaml (or --config)
  - Or load configuration from LIMITGATE_* environment variables
  - Start proxying requests to the upstream API
  - Charge every request against its client's rate limit window
  - Annotate every response with X-RateLimit-* headers

Environment variables (for Docker deployments):
  LIMITGATE_UPSTREAM_URL      - Upstream API URL (required)
  LIMITGATE_SERVER_PORT       - Server port (default: 8080)
  LIMITGATE_RATELIMIT_LIMIT   - Requests per window (default: 15)
  LIMITGATE_RATELIMIT_WINDOW  - Window length in seconds (default: 10)
  LIMITGATE_RATELIMIT_ENFORCE - Reject over-limit requests with 429
  LIMITGATE_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  limitgate serve
  limitgate serve --config /etc/limitgate/config.yaml
  limitgate serve --hot-reload=false

  # Docker (env vars only):
  LIMITGATE_UPSTREAM_URL=https://api.example.com limitgate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	if !hasConfigFile && !config.HasEnvConfig() {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s with at least upstream.url set\n", cfgFile)
		fmt.Println("Option 2: Set LIMITGATE_UPSTREAM_URL environment variable")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  LIMITGATE_UPSTREAM_URL=https://api.example.com limitgate serve")
		return nil
	}

	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with a config file
		app, err = bootstrap.NewWithHotReload(cfgFile)
	} else {
		var cfg *config.Config
		cfg, err = config.LoadWithFallback(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		app, err = bootstrap.New(cfg)
	}
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	return app.Run()
}
