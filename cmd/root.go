package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/warranty-intake/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "warranty-intake",
	Short: "Inbound voice-call intake for the warranty platform",
	Long:  "Routes known callers past the AI screener, extracts structured data from end-of-call reports, matches spoken addresses to homeowners, and opens deduplicated warranty claims.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
