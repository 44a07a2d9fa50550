// Package dashboard provides the terminal dashboard command
package dashboard

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/trolltrack/trolltrack/internal/app"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/tui"
	"github.com/trolltrack/trolltrack/internal/viewmodel"
)

// Command creates and returns the dashboard command
func Command(loader *app.Loader) *cobra.Command {
	var refresh time.Duration

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show location, weather and today's catches in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.Get()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, a, refresh)
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", 10*time.Minute, "Auto refresh interval, 0 disables")
	return cmd
}

func run(ctx context.Context, a *app.App, refresh time.Duration) error {
	// The permission prompt reads stdin, so it has to happen before the
	// terminal switches to the alternate screen.
	if _, err := a.Location().RequestPermission(ctx); err != nil {
		a.Log.Warn("location permission not resolved", logger.Error(err))
	}

	nav := viewmodel.NewStackNavigator(viewmodel.RouteDashboard, nil)
	page := viewmodel.NewDashboard(a.Settings, a.Location(), a.Weather(), a.Store(), nav, a.Log)

	updates, unsubscribe := a.Location().Subscribe(0)
	defer unsubscribe()
	go page.FollowLocation(ctx, updates)

	p := tea.NewProgram(tui.NewModel(ctx, page, tui.WithAutoRefresh(refresh)),
		tea.WithAltScreen(),
		tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
