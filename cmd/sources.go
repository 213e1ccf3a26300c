package main

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/covisearch/aggregator/internal/websource"
)

var (
	srcCity         string
	srcResourceType string
	srcBloodGroup   string
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured web sources",
	Long:  "Lists every source in the catalog. With --city and --resource-type, lists the requests that an aggregation of that filter would make.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("sources"); err != nil {
			return err
		}
		lookup, catalog, err := loadCatalog()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush() //nolint:errcheck

		if srcCity == "" && srcResourceType == "" {
			fmt.Fprintln(w, "NAME\tSCOPE\tRESOURCE TYPES")
			for _, d := range catalog.Descriptors() {
				types := make([]string, 0, len(d.ResourceTypeLabels))
				for rt := range d.ResourceTypeLabels {
					types = append(types, rt)
				}
				slices.Sort(types)
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.LocationScope, strings.Join(types, ","))
			}
			return nil
		}

		filter, err := parseFilterFlags(srcCity, srcResourceType, srcBloodGroup)
		if err != nil {
			return err
		}
		insts := websource.ResolveAll(catalog.ForFilter(filter), filter, lookup)
		fmt.Fprintln(w, "NAME\tMETHOD\tURL\tSMART MATCH")
		for _, inst := range insts {
			method := "GET"
			if inst.Descriptor.RequestContentType != websource.ContentNone {
				method = "POST"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", inst.Name(), method, inst.URL, inst.NeedsSmartMatch)
		}
		return nil
	},
}

func init() {
	sourcesCmd.Flags().StringVar(&srcCity, "city", "", "resolve sources for this city")
	sourcesCmd.Flags().StringVar(&srcResourceType, "resource-type", "", "resolve sources for this resource type")
	sourcesCmd.Flags().StringVar(&srcBloodGroup, "blood-group", "", "blood group for plasma and blood")
	rootCmd.AddCommand(sourcesCmd)
}
