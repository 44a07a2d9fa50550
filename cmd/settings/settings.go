// Package settings provides the preferences command
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trolltrack/trolltrack/internal/app"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/viewmodel"
)

// Command creates and returns the settings command
func Command(loader *app.Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change preferences",
		Long: `Show and change the preferences kept in the config file: the weather
API key, the display name and the unit system.`,
	}
	cmd.AddCommand(
		showCommand(loader),
		setKeyCommand(loader),
		nameCommand(loader),
		unitsCommand(loader),
	)
	return cmd
}

// withSettings runs fn against the settings page
func withSettings(cmd *cobra.Command, loader *app.Loader, fn func(ctx context.Context, p *viewmodel.Settings) error) error {
	a, err := loader.Get()
	if err != nil {
		return err
	}
	p := viewmodel.NewSettings(a.Settings, a.Log)
	p.Initialize(cmd.Context())
	return fn(cmd.Context(), p)
}

func showCommand(loader *app.Loader) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, loader, func(_ context.Context, p *viewmodel.Settings) error {
				s := p.State()
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(s)
				}
				printSettings(cmd.OutOrStdout(), &s)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func setKeyCommand(loader *app.Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "set-key KEY",
		Short: "Store the weatherapi.com API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, loader, func(ctx context.Context, p *viewmodel.Settings) error {
				ok := p.SaveAPIKey(ctx, args[0])
				s := p.State()
				if !ok {
					if err := p.Failure(); err != nil {
						return err
					}
					return errors.New(errors.NewStd(s.APIKeyMessage)).
						Component("cli").
						Category(errors.CategoryValidation).
						Context("field", "api_key").
						Build()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", s.APIKeyMessage, s.MaskedAPIKey)
				return nil
			})
		},
	}
}

func nameCommand(loader *app.Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "name NAME",
		Short: "Set the display name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, loader, func(ctx context.Context, p *viewmodel.Settings) error {
				if !p.SaveDisplayName(ctx, strings.Join(args, " ")) {
					return p.Failure()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Display name: %s\n", p.State().DisplayName)
				return nil
			})
		},
	}
}

func unitsCommand(loader *app.Loader) *cobra.Command {
	return &cobra.Command{
		Use:       "units [imperial|metric]",
		Short:     "Set the unit system, or toggle it without an argument",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"imperial", "metric"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, loader, func(ctx context.Context, p *viewmodel.Settings) error {
				var ok bool
				if len(args) == 0 {
					ok = p.ToggleUnits(ctx)
				} else {
					ok = p.SaveUnits(ctx, args[0])
				}
				if !ok {
					return p.Failure()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Units: %s\n", p.State().Units)
				return nil
			})
		},
	}
}

func printSettings(w io.Writer, s *viewmodel.SettingsState) {
	name := s.DisplayName
	if name == "" {
		name = "-"
	}
	key := "not configured"
	if s.APIKeyConfigured {
		key = s.MaskedAPIKey
	}
	fmt.Fprintf(w, "Name:     %s\n", name)
	fmt.Fprintf(w, "Units:    %s\n", s.Units)
	fmt.Fprintf(w, "API key:  %s\n", key)
}
