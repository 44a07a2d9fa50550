// Package weather provides the weather command
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/trolltrack/trolltrack/internal/app"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/weather"
)

const requestTimeout = 30 * time.Second

type flags struct {
	lat, lon float64
	asJSON   bool
}

// Command creates and returns the weather command
func Command(loader *app.Loader) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Show current weather, forecast and astronomy for fishing",
		Long: `Query weatherapi.com for the current location, a given point or a city.

Without --lat and --lon the location source is asked for a fix; when none
is available the configured default location is used.`,
	}
	cmd.PersistentFlags().Float64Var(&f.lat, "lat", 0, "Latitude")
	cmd.PersistentFlags().Float64Var(&f.lon, "lon", 0, "Longitude")
	cmd.PersistentFlags().BoolVar(&f.asJSON, "json", false, "Print JSON")

	cmd.AddCommand(currentCommand(loader, &f), forecastCommand(loader, &f), cityCommand(loader, &f), astronomyCommand(loader, &f))
	return cmd
}

func currentCommand(loader *app.Loader, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Current conditions and fishing outlook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.Get()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			lat, lon := resolve(ctx, cmd, a, f)
			snap, err := a.Weather().Current(ctx, lat, lon)
			if err != nil {
				return err
			}
			if f.asJSON {
				return writeJSON(cmd.OutOrStdout(), withDerived(snap, a.Settings.Main.Units))
			}
			printSnapshot(cmd.OutOrStdout(), snap, a.Settings.Main.Units)
			return nil
		},
	}
}

func forecastCommand(loader *app.Loader, f *flags) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Daily forecast, 1 to 3 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.Get()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			lat, lon := resolve(ctx, cmd, a, f)
			snaps, err := a.Weather().Forecast(ctx, lat, lon, days)
			if err != nil {
				return err
			}
			if f.asJSON {
				out := make([]snapshotOutput, 0, len(snaps))
				for i := range snaps {
					out = append(out, withDerived(&snaps[i], a.Settings.Main.Units))
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			for i := range snaps {
				s := &snaps[i]
				d := s.Derived()
				fmt.Fprintf(w, "%s  %s\n", s.Date, s.Summary(a.Settings.Main.Units))
				fmt.Fprintf(w, "            %s (%s)\n", d.FishingForecast, d.ColorIndicator)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", weather.MaxForecastDays, "Number of days, clamped to 1..3")
	return cmd
}

func cityCommand(loader *app.Loader, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "city NAME",
		Short: "Current conditions for a city",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.Get()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			snap, err := a.Weather().ByCity(ctx, args[0])
			if err != nil {
				return err
			}
			if f.asJSON {
				return writeJSON(cmd.OutOrStdout(), withDerived(snap, a.Settings.Main.Units))
			}
			printSnapshot(cmd.OutOrStdout(), snap, a.Settings.Main.Units)
			return nil
		},
	}
}

func astronomyCommand(loader *app.Loader, f *flags) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "astronomy",
		Short: "Sun and moon times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.Get()
			if err != nil {
				return err
			}
			day := time.Now()
			if date != "" {
				if day, err = time.ParseInLocation(time.DateOnly, date, time.Local); err != nil {
					return errors.New(err).
						Component("cli").
						Category(errors.CategoryValidation).
						Context("date", date).
						Build()
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			lat, lon := resolve(ctx, cmd, a, f)
			astro, err := a.Weather().Astronomy(ctx, lat, lon, day)
			if err != nil {
				return err
			}
			if f.asJSON {
				return writeJSON(cmd.OutOrStdout(), astro)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s %s\n", astro.Date, astro.LocationName)
			fmt.Fprintf(w, "Sunrise  %s   Sunset  %s\n", clock(astro.Sunrise), clock(astro.Sunset))
			fmt.Fprintf(w, "Moonrise %s   Moonset %s\n", clock(astro.Moonrise), clock(astro.Moonset))
			fmt.Fprintf(w, "Moon     %s, %.0f%% illuminated\n", astro.MoonPhase, astro.MoonIllumination)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day as YYYY-MM-DD, default today")
	return cmd
}

// resolve picks the coordinates: flags, then a location fix, then the
// configured default location.
func resolve(ctx context.Context, cmd *cobra.Command, a *app.App, f *flags) (lat, lon float64) {
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
		return f.lat, f.lon
	}
	fix, err := a.Location().CurrentLocation(ctx)
	if err == nil {
		return fix.Latitude, fix.Longitude
	}
	def := a.Settings.Location.Default
	a.Log.Info("using default location",
		logger.String("name", def.Name),
		logger.Error(err))
	return def.Latitude, def.Longitude
}

type snapshotOutput struct {
	*weather.Snapshot
	Derived weather.Derived `json:"derived"`
	Summary string          `json:"summary"`
}

func withDerived(s *weather.Snapshot, units string) snapshotOutput {
	return snapshotOutput{Snapshot: s, Derived: s.Derived(), Summary: s.Summary(units)}
}

func printSnapshot(w io.Writer, s *weather.Snapshot, units string) {
	d := s.Derived()
	verdict := "poor"
	if d.IsFishingWeatherGood {
		verdict = "good"
	}
	fmt.Fprintf(w, "%s (%.4f, %.4f)\n", s.LocationName, s.Latitude, s.Longitude)
	fmt.Fprintln(w, s.Summary(units))
	fmt.Fprintf(w, "Fishing weather: %s (%s)\n", verdict, d.ColorIndicator)
	fmt.Fprintf(w, "Outlook:  %s\n", d.FishingForecast)
	fmt.Fprintf(w, "Wind:     %s, %s\n", d.WindDirectionCardinal, d.BeaufortScale)
	fmt.Fprintf(w, "Pressure: %.0f mb (%+.1f)\n", s.Pressure, s.PressureTrend)
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "--:--"
	}
	return t.Local().Format("15:04")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
