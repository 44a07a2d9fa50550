// Package serve provides the serve command running the HTTP API
package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/trolltrack/trolltrack/internal/api"
	"github.com/trolltrack/trolltrack/internal/app"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// tableMetricsInterval is how often row counts and database size are sampled
const tableMetricsInterval = 5 * time.Minute

// Command creates and returns the serve command
func Command(loader *app.Loader) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP JSON API with Prometheus metrics",
		Long: `Serve the weather, catch log and dashboard over HTTP under /api/v1.
/health reports liveness and /metrics exposes Prometheus metrics. Catch
events are forwarded to MQTT and notification services when enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.Get()
			if err != nil {
				return err
			}
			if listen != "" {
				a.Settings.API.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, a)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address, overrides api.listen")
	return cmd
}

func run(ctx context.Context, a *app.App) error {
	if err := a.Store().Open(ctx); err != nil {
		return err
	}
	if err := a.StartConsumers(ctx); err != nil {
		return err
	}

	server, err := api.New(a.Settings, api.Dependencies{
		Weather:  a.Weather(),
		Location: a.Location(),
		Store:    a.Store(),
	}, a.Log, api.WithMetrics(a.Metrics), api.WithVersion(a.Build.GetVersion()))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	g.Go(func() error {
		sampleTableMetrics(ctx, a)
		return nil
	})
	return g.Wait()
}

func sampleTableMetrics(ctx context.Context, a *app.App) {
	ticker := time.NewTicker(tableMetricsInterval)
	defer ticker.Stop()
	for {
		if err := a.Store().UpdateTableMetrics(ctx); err != nil && ctx.Err() == nil {
			a.Log.Warn("updating table metrics", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
