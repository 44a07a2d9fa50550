// Package lures provides the lure catalog command
package lures

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/trolltrack/trolltrack/internal/app"
	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/viewmodel"
)

const storeTimeout = time.Minute

// Command creates and returns the lures command
func Command(loader *app.Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lures",
		Short: "Manage the lure catalog",
	}
	cmd.AddCommand(listCommand(loader), importCommand(loader), addCommand(loader))
	return cmd
}

func listCommand(loader *app.Loader) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List lures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.Get()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), storeTimeout)
			defer cancel()

			// Refresh, not Initialize: listing never imports the catalog
			page := viewmodel.NewLures(a.Store(), a.Settings.Lures.Catalog, a.Log)
			if !page.Refresh(ctx) {
				return page.Failure()
			}
			list := page.State().Lures
			w := cmd.OutOrStdout()
			if asJSON {
				if list == nil {
					list = []datastore.Lure{}
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(w, "No lures, run 'lures import' to load the catalog")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MANUFACTURER\tCOLOR\tLENGTH\tBUOYANCY\tIMAGES\tID")
			for i := range list {
				l := &list[i]
				fmt.Fprintf(tw, "%s\t%s\t%.2f in\t%s\t%d\t%s\n",
					l.Manufacturer, l.Color, l.Length, l.Buoyancy, len(l.Images), l.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func importCommand(loader *app.Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "import [CATALOG.json]",
		Short: "Merge a lure catalog into the database",
		Long: `Merge a JSON lure catalog into the database. Without an argument the
configured catalog is used, or the bundled one when none is configured.
Lures are matched by manufacturer, color and length; matches are updated.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.Get()
			if err != nil {
				return err
			}
			path := a.Settings.Lures.Catalog
			if len(args) == 1 {
				path = args[0]
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), storeTimeout)
			defer cancel()
			page := viewmodel.NewLures(a.Store(), path, a.Log)
			if !page.ImportCatalog(ctx) {
				return page.Failure()
			}
			fmt.Fprintln(cmd.OutOrStdout(), page.State().RefreshStatus)
			return nil
		},
	}
}

func addCommand(loader *app.Loader) *cobra.Command {
	var (
		l      datastore.Lure
		images []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a single lure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.Get()
			if err != nil {
				return err
			}
			for _, img := range images {
				l.Images = append(l.Images, datastore.LureImage{Path: img})
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), storeTimeout)
			defer cancel()
			if err := a.Store().SaveLure(ctx, &l); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s)\n", l.Manufacturer, l.Color, l.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&l.Manufacturer, "manufacturer", "", "Manufacturer (required)")
	cmd.Flags().StringVar(&l.Color, "color", "", "Color name")
	cmd.Flags().Float64Var(&l.Length, "length", 0, "Length in inches")
	cmd.Flags().StringVar(&l.Buoyancy, "buoyancy", "", "Floating, suspending or sinking")
	cmd.Flags().Float64Var(&l.Weight, "weight", 0, "Weight in ounces")
	cmd.Flags().StringSliceVar(&images, "image", nil, "Image path, repeatable")
	_ = cmd.MarkFlagRequired("manufacturer")
	return cmd
}
