// Package backup provides the backup command
package backup

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/trolltrack/trolltrack/internal/app"
	"github.com/trolltrack/trolltrack/internal/backup"
)

// backupTimeout bounds a backup including uploads to remote targets
const backupTimeout = 10 * time.Minute

// Command creates and returns the backup command
func Command(loader *app.Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the catch database",
	}
	cmd.AddCommand(runCommand(loader), listCommand(loader))
	return cmd
}

func runCommand(loader *app.Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Perform an immediate backup",
		Long: `Write a consistent copy of the database to the backup directory and
upload it to every enabled target.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.Get()
			if err != nil {
				return err
			}
			manager, err := a.BackupManager()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), backupTimeout)
			defer cancel()

			res, err := manager.Run(ctx)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Backup written to %s (%s)\n", res.Path, humanize.IBytes(uint64(max(res.Metadata.Size, 0))))
			for _, t := range res.Targets {
				if t.Error != "" {
					fmt.Fprintf(w, "  %-10s FAILED: %s\n", t.Target, t.Error)
					continue
				}
				fmt.Fprintf(w, "  %-10s ok\n", t.Target)
			}
			if res.Failed() {
				return fmt.Errorf("one or more backup targets failed")
			}
			return nil
		},
	}
}

func listCommand(loader *app.Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.Get()
			if err != nil {
				return err
			}
			manager, err := a.BackupManager()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), backupTimeout)
			defer cancel()

			infos, err := manager.List(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(w, "No backups")
				return nil
			}
			backup.SortNewestFirst(infos)
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TARGET\tFILE\tSIZE\tAGE\tVERSION")
			for i := range infos {
				info := &infos[i]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					info.Target,
					info.FileName,
					humanize.IBytes(uint64(max(info.Size, 0))),
					humanize.Time(info.Timestamp),
					info.AppVersion)
			}
			return tw.Flush()
		},
	}
}
