// Package program provides the trolling program command
package program

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/trolltrack/trolltrack/internal/app"
	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/viewmodel"
)

const storeTimeout = 30 * time.Second

// Command creates and returns the program command
func Command(loader *app.Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "program",
		Aliases: []string{"programs"},
		Short:   "Manage trolling programs",
		Long: `Manage trolling programs. The active program is attached to every
catch logged while it is active.`,
	}
	cmd.AddCommand(
		listCommand(loader),
		addCommand(loader),
		updateCommand(loader),
		activateCommand(loader),
		deactivateCommand(loader),
		deleteCommand(loader),
	)
	return cmd
}

// withPrograms loads the programs page and runs fn against it
func withPrograms(cmd *cobra.Command, loader *app.Loader, fn func(ctx context.Context, p *viewmodel.Programs) error) error {
	a, err := loader.Get()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), storeTimeout)
	defer cancel()

	p := viewmodel.NewPrograms(a.Store(), a.Log)
	if !p.Refresh(ctx) {
		return p.Failure()
	}
	return fn(ctx, p)
}

func listCommand(loader *app.Loader) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List programs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrograms(cmd, loader, func(_ context.Context, p *viewmodel.Programs) error {
				programs := p.State().Programs
				if asJSON {
					if programs == nil {
						programs = []datastore.Program{}
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(programs)
				}
				return printPrograms(cmd.OutOrStdout(), programs)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func addCommand(loader *app.Loader) *cobra.Command {
	var (
		description string
		activate    bool
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a program",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			return withPrograms(cmd, loader, func(ctx context.Context, p *viewmodel.Programs) error {
				id := uuid.NewString()
				if !p.Save(ctx, id, name, description) {
					return p.Failure()
				}
				if activate && !p.Activate(ctx, id) {
					return p.Failure()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added program %s (%s)\n", strings.TrimSpace(name), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Setup notes: depth, lead, speed")
	cmd.Flags().BoolVar(&activate, "activate", false, "Make the new program active")
	return cmd
}

func updateCommand(loader *app.Loader) *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "update ID|NAME",
		Short: "Rename a program or change its description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrograms(cmd, loader, func(ctx context.Context, p *viewmodel.Programs) error {
				current, err := Resolve(p.State().Programs, args[0])
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("name") {
					name = current.Name
				}
				if !cmd.Flags().Changed("description") {
					description = current.Description
				}
				if !p.Save(ctx, current.ID, name, description) {
					return p.Failure()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated program %s\n", strings.TrimSpace(name))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	return cmd
}

func activateCommand(loader *app.Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "activate ID|NAME",
		Short: "Make a program the one attached to new catches",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrograms(cmd, loader, func(ctx context.Context, p *viewmodel.Programs) error {
				target, err := Resolve(p.State().Programs, strings.Join(args, " "))
				if err != nil {
					return err
				}
				if !p.Activate(ctx, target.ID) {
					return p.Failure()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Active program: %s\n", target.Name)
				return nil
			})
		},
	}
}

func deactivateCommand(loader *app.Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate",
		Short: "Log new catches without a program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrograms(cmd, loader, func(ctx context.Context, p *viewmodel.Programs) error {
				if !p.Activate(ctx, "") {
					return p.Failure()
				}
				fmt.Fprintln(cmd.OutOrStdout(), "No program is active")
				return nil
			})
		},
	}
}

func deleteCommand(loader *app.Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID|NAME",
		Short: "Delete a program no catch refers to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrograms(cmd, loader, func(ctx context.Context, p *viewmodel.Programs) error {
				target, err := Resolve(p.State().Programs, strings.Join(args, " "))
				if err != nil {
					return err
				}
				if !p.Delete(ctx, target.ID) {
					return p.Failure()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted program %s\n", target.Name)
				return nil
			})
		},
	}
}

// Resolve finds a program by id, or by name ignoring case.
func Resolve(programs []datastore.Program, ref string) (*datastore.Program, error) {
	ref = strings.TrimSpace(ref)
	for i := range programs {
		if programs[i].ID == ref {
			return &programs[i], nil
		}
	}
	var match *datastore.Program
	for i := range programs {
		if !strings.EqualFold(programs[i].Name, ref) {
			continue
		}
		if match != nil {
			return nil, errors.Newf("more than one program is named %q, use the id", ref).
				Component("cli").
				Category(errors.CategoryValidation).
				Build()
		}
		match = &programs[i]
	}
	if match == nil {
		return nil, errors.Newf("program %q not found", ref).
			Component("cli").
			Category(errors.CategoryNotFound).
			Context("ref", ref).
			Build()
	}
	return match, nil
}

func printPrograms(w io.Writer, programs []datastore.Program) error {
	if len(programs) == 0 {
		fmt.Fprintln(w, "No programs, add one with 'program add NAME'")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTIVE\tNAME\tDESCRIPTION\tID")
	for i := range programs {
		pr := &programs[i]
		active := ""
		if pr.IsActive {
			active = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", active, pr.Name, pr.Description, pr.ID)
	}
	return tw.Flush()
}
