package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "consolidator",
	Short: "Product record consolidation pipeline",
	Long:  "Merges scraped product records from many sources into one golden record per real-world product: normalize, score pairs, cluster and apply survivorship.",
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
