package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/rxstock/internal/app"
	"github.com/JonMunkholm/rxstock/internal/core"
)

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List catalog categories and their barcode prefixes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.Build(cmd.Context(), cfg, nil, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			cats, err := a.Service.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			printCategories(cmd, cats)
			return nil
		},
	}
}

func printCategories(cmd *cobra.Command, cats []core.Category) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPREFIX\tID")
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.Prefix, c.ID)
	}
	tw.Flush()
}
