package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "compliance-cli",
	Short: "Compliance rule evaluation for fund marketing documents",
	Long:  "Evaluates extracted fund marketing documents against per-module compliance rule sets, using a Claude-backed semantic analyzer for context-dependent judgments.",
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
