// Package catch provides the catch log command
package catch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/trolltrack/trolltrack/internal/app"
	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/viewmodel"
)

const storeTimeout = 30 * time.Second

// Command creates and returns the catch command
func Command(loader *app.Loader) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "catch",
		Short: "Log, list and remove catches",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print JSON")

	cmd.AddCommand(
		logCommand(loader, &asJSON),
		listCommand(loader, &asJSON),
		todayCommand(loader, &asJSON),
		rangeCommand(loader, &asJSON),
		showCommand(loader, &asJSON),
		deleteCommand(loader),
		statsCommand(loader, &asJSON),
		clearCommand(loader),
	)
	return cmd
}

// withStore runs fn against the datastore with a bounded context
func withStore(cmd *cobra.Command, loader *app.Loader, fn func(ctx context.Context, a *app.App) error) error {
	a, err := loader.Get()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), storeTimeout)
	defer cancel()
	return fn(ctx, a)
}

func logCommand(loader *app.Loader, asJSON *bool) *cobra.Command {
	var in viewmodel.CatchInput
	cmd := &cobra.Command{
		Use:   "log SPECIES",
		Short: "Log a catch at the current location",
		Long: `Log a catch at the current location. The active program, if any, is
attached to the catch. Location permission is asked for on first use.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Species = strings.Join(args, " ")
			return withStore(cmd, loader, func(ctx context.Context, a *app.App) error {
				page := viewmodel.NewCatches(a.Location(), a.Store(), a.Log)
				record := page.LogCatch(ctx, in)
				if record == nil {
					return page.Failure()
				}
				if *asJSON {
					return writeJSON(cmd.OutOrStdout(), record)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged %s at %s (%s)\n",
					record.SpeciesName(), record.Timestamp.Local().Format(time.Kitchen), record.ID)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&in.Weight, "weight", 0, "Weight in pounds")
	cmd.Flags().Float64Var(&in.Length, "length", 0, "Length in inches")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "Free text notes")
	cmd.Flags().StringVar(&in.LureID, "lure", "", "Lure id, see 'lures list'")
	return cmd
}

func listCommand(loader *app.Loader, asJSON *bool) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, loader, func(ctx context.Context, a *app.App) error {
				var (
					catches []datastore.CatchRecord
					err     error
				)
				if limit > 0 {
					catches, err = a.Store().GetRecentCatches(ctx, limit)
				} else {
					catches, err = a.Store().GetAllCatches(ctx)
				}
				if err != nil {
					return err
				}
				return printCatches(cmd.OutOrStdout(), catches, *asJSON)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the most recent N catches")
	return cmd
}

func todayCommand(loader *app.Loader, asJSON *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "List today's catches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, loader, func(ctx context.Context, a *app.App) error {
				catches, err := a.Store().GetTodaysCatches(ctx)
				if err != nil {
					return err
				}
				return printCatches(cmd.OutOrStdout(), catches, *asJSON)
			})
		},
	}
}

func rangeCommand(loader *app.Loader, asJSON *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "range FROM [TO]",
		Short: "List catches in [FROM, TO), dates as YYYY-MM-DD or RFC3339",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := ParseTime(args[0])
			if err != nil {
				return err
			}
			to := time.Now()
			if len(args) == 2 {
				if to, err = ParseTime(args[1]); err != nil {
					return err
				}
			}
			return withStore(cmd, loader, func(ctx context.Context, a *app.App) error {
				catches, err := a.Store().GetCatchesInRange(ctx, from, to)
				if err != nil {
					return err
				}
				return printCatches(cmd.OutOrStdout(), catches, *asJSON)
			})
		},
	}
}

func showCommand(loader *app.Loader, asJSON *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one catch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, loader, func(ctx context.Context, a *app.App) error {
				c, err := a.Store().GetCatch(ctx, args[0])
				if err != nil {
					return err
				}
				if *asJSON {
					return writeJSON(cmd.OutOrStdout(), c)
				}
				printCatch(cmd.OutOrStdout(), c)
				return nil
			})
		},
	}
}

func deleteCommand(loader *app.Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a catch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, loader, func(ctx context.Context, a *app.App) error {
				if err := a.Store().DeleteCatch(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func statsCommand(loader *app.Loader, asJSON *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Catch counts for today, the last 7 and 30 days, and by species",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, loader, func(ctx context.Context, a *app.App) error {
				page := viewmodel.NewAnalytics(a.Store(), a.Log)
				if !page.Refresh(ctx) {
					return page.Failure()
				}
				state := page.State()
				if *asJSON {
					return writeJSON(cmd.OutOrStdout(), state)
				}
				printStats(cmd.OutOrStdout(), &state)
				return nil
			})
		},
	}
}

func clearCommand(loader *app.Loader) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every catch, program and lure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !Confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "Delete all data? This cannot be undone.") {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}
			return withStore(cmd, loader, func(ctx context.Context, a *app.App) error {
				if err := a.Store().ClearAll(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All data deleted")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// ParseTime accepts RFC3339 or a local YYYY-MM-DD date.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, errors.Newf("invalid time %q, want YYYY-MM-DD or RFC3339", s).
			Component("cli").
			Category(errors.CategoryValidation).
			Build()
	}
	return t, nil
}

// Confirm asks a yes/no question; anything but y or yes is no.
func Confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func printCatches(w io.Writer, catches []datastore.CatchRecord, asJSON bool) error {
	if asJSON {
		if catches == nil {
			catches = []datastore.CatchRecord{}
		}
		return writeJSON(w, catches)
	}
	if len(catches) == 0 {
		fmt.Fprintln(w, "No catches")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tSPECIES\tWEIGHT\tLENGTH\tPROGRAM\tID")
	for i := range catches {
		c := &catches[i]
		program := "-"
		if c.Program != nil {
			program = c.Program.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Timestamp.Local().Format("2006-01-02 15:04"),
			c.SpeciesName(),
			measure(c.Weight, "lbs"),
			measure(c.Length, "in"),
			program,
			c.ID)
	}
	return tw.Flush()
}

func printCatch(w io.Writer, c *datastore.CatchRecord) {
	fmt.Fprintf(w, "%s  %s\n", c.ID, c.SpeciesName())
	fmt.Fprintf(w, "When:     %s (%s)\n", c.Timestamp.Local().Format(time.DateTime), humanize.Time(c.Timestamp))
	fmt.Fprintf(w, "Weight:   %s\n", measure(c.Weight, "lbs"))
	fmt.Fprintf(w, "Length:   %s\n", measure(c.Length, "in"))
	if c.Location != nil {
		fmt.Fprintf(w, "Location: %.5f, %.5f\n", c.Location.Latitude, c.Location.Longitude)
	}
	if c.Program != nil {
		fmt.Fprintf(w, "Program:  %s\n", c.Program.Name)
	}
	if c.Lure != nil {
		fmt.Fprintf(w, "Lure:     %s %s %.1fin\n", c.Lure.Manufacturer, c.Lure.Color, c.Lure.Length)
	}
	if c.Notes != "" {
		fmt.Fprintf(w, "Notes:    %s\n", c.Notes)
	}
}

func printStats(w io.Writer, state *viewmodel.AnalyticsState) {
	s := state.Statistics
	if s == nil {
		s = &datastore.CatchStatistics{}
	}
	fmt.Fprintf(w, "Total:        %d\n", s.Total)
	fmt.Fprintf(w, "Today:        %d\n", s.Today)
	fmt.Fprintf(w, "Last 7 days:  %d\n", s.Last7Days)
	fmt.Fprintf(w, "Last 30 days: %d\n", s.Last30Days)
	if s.LastCatch != nil {
		fmt.Fprintf(w, "Last catch:   %s\n", humanize.Time(*s.LastCatch))
	}
	if len(state.BySpecies) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SPECIES\tCOUNT\tHEAVIEST")
	for _, sc := range state.BySpecies {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", sc.Species, sc.Count, measure(sc.Heaviest, "lbs"))
	}
	tw.Flush()
}

func measure(v float64, unit string) string {
	if v <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f %s", v, unit)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
