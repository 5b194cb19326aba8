package main

import (
	"fmt"
	"strings"

	"github.com/limitgate/limitgate/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithFallback(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		fmt.Println("Configuration valid")
		fmt.Printf("  Upstream:   %s\n", cfg.Upstream.URL)
		fmt.Printf("  Rate limit: %d requests per %s", cfg.RateLimit.Limit, cfg.RateLimit.Window())
		if cfg.RateLimit.Enforce {
			fmt.Print(" (enforced)")
		}
		fmt.Println()
		fmt.Printf("  Usage store: %s\n", cfg.Usage.Store)
		fmt.Printf("  Reloadable without restart: %s\n", strings.Join(config.ReloadableFields(), ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
