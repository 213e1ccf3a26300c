package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/covisearch/aggregator/internal/model"
)

var (
	aggCity         string
	aggResourceType string
	aggBloodGroup   string
	aggPrint        bool
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate and store the listings for one city and resource type",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		filter, err := parseFilterFlags(aggCity, aggResourceType, aggBloodGroup)
		if err != nil {
			return err
		}

		env, err := initAggregator(ctx, "aggregate")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Aggregator.Run(ctx, filter)
		if err != nil {
			return err
		}

		zap.L().Info("aggregation stored",
			zap.String("filter", res.SearchFilter),
			zap.Int("records", len(res.Data)),
		)
		if aggPrint {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records\n", res.SearchFilter, len(res.Data))
		return nil
	},
}

// parseFilterFlags builds a search filter from command flags.
func parseFilterFlags(city, resourceType, bloodGroup string) (model.SearchFilter, error) {
	rt, err := model.ParseResourceType(resourceType)
	if err != nil {
		return model.SearchFilter{}, err
	}
	var bg model.BloodGroup
	if bloodGroup != "" {
		if bg, err = model.ParseBloodGroup(bloodGroup); err != nil {
			return model.SearchFilter{}, err
		}
	}
	return model.NewSearchFilter(city, rt, bg)
}

func init() {
	aggregateCmd.Flags().StringVar(&aggCity, "city", "", "city to aggregate (required)")
	aggregateCmd.Flags().StringVar(&aggResourceType, "resource-type", "", "resource type, e.g. oxygen or hospital_bed_icu (required)")
	aggregateCmd.Flags().StringVar(&aggBloodGroup, "blood-group", "", "blood group for plasma and blood, e.g. o+")
	aggregateCmd.Flags().BoolVar(&aggPrint, "print", false, "print the stored documents as JSON")
	_ = aggregateCmd.MarkFlagRequired("city")
	_ = aggregateCmd.MarkFlagRequired("resource-type")
	rootCmd.AddCommand(aggregateCmd)
}
