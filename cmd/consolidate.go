package main

import (
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/pipeline"
)

var consolidateLimit int

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Consolidate one batch of pending product records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit := consolidateLimit
		if !cmd.Flags().Changed("limit") {
			limit = cfg.Batch.Limit
		}
		runID := uuid.New().String()
		log := zap.L().With(zap.String("run_id", runID))

		log.Info("starting consolidation", zap.Int("limit", limit))
		res, err := env.Pipeline.Run(ctx, pipeline.RunOptions{Limit: limit, JobID: runID})
		if err != nil {
			log.Error("consolidation failed", zap.Error(err))
			return err
		}

		log.Info("consolidation complete",
			zap.Int("fetched", res.Fetched),
			zap.Int("records", res.Records),
			zap.Int("edges", res.Edges),
			zap.Int("clusters", res.Clusters),
			zap.Int("duplicate_clusters", res.DuplicateClusters),
			zap.Int("golden", len(res.Golden)),
			zap.Int64("persisted", res.Persisted),
			zap.Duration("duration", res.Duration),
		)
		return nil
	},
}

func init() {
	consolidateCmd.Flags().IntVar(&consolidateLimit, "limit", pipeline.DefaultLimit, "max pending products to fetch (default from config batch.limit)")
	rootCmd.AddCommand(consolidateCmd)
}
