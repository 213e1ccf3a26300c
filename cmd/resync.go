package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/covisearch/aggregator/internal/resync"
)

var resyncOnce bool

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Refresh the stored listings of recently queried filters",
	Long:  "Re-aggregates every filter queried within resync.idle_threshold_days. Runs on resync.schedule until interrupted, or a single pass with --once.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAggregator(ctx, "resync")
		if err != nil {
			return err
		}
		defer env.Close()

		job := newResyncJob(env)
		if resyncOnce {
			sum, err := job.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "considered %d, skipped %d, invalid %d, succeeded %d, failed %d\n",
				sum.Considered, sum.Skipped, sum.Invalid, sum.Succeeded, sum.Failed)
			return nil
		}

		sched := resync.NewScheduler(job, cfg.Resync.Schedule)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		zap.L().Info("waiting for running resync pass")
		<-sched.Stop().Done()
		return nil
	},
}

func newResyncJob(env *aggregatorEnv) *resync.Job {
	return resync.NewJob(env.Store, env.Aggregator,
		resync.Policy{IdleThresholdDays: cfg.Resync.IdleThresholdDays},
		cfg.Resync.Concurrency,
	)
}

func init() {
	resyncCmd.Flags().BoolVar(&resyncOnce, "once", false, "run a single pass and exit")
	rootCmd.AddCommand(resyncCmd)
}
