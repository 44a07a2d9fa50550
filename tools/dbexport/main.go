// Package main provides a CLI tool that copies a TrollTrack catch log from
// SQLite into MySQL, so several devices can share one log.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trolltrack/trolltrack/internal/buildinfo"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var cfg Config

	cmd := &cobra.Command{
		Use:   "dbexport",
		Short: "Export the TrollTrack catch log from SQLite to MySQL",
		Long: `Copy fish species, programs, location fixes, lures and catches from a
TrollTrack SQLite database into MySQL.

Original ids are preserved and rows already present in the target are
skipped, so the export can be repeated. Foreign key checks are disabled on
the target while tables are loaded.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "dbexport %s\n", buildinfo.Current().GetVersion())
				return nil
			}
			return runExport(cmd, &cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.SQLitePath, "sqlite-path", "", "Path to source SQLite database file")

	f.StringVar(&cfg.MySQLDSN, "mysql-dsn", "", "MySQL connection string (e.g., user:pass@tcp(host:3306)/dbname)")
	f.StringVar(&cfg.MySQLHost, "mysql-host", "", "MySQL host (alternative to DSN)")
	f.IntVar(&cfg.MySQLPort, "mysql-port", 3306, "MySQL port")
	f.StringVar(&cfg.MySQLUser, "mysql-user", "trolltrack", "MySQL username")
	f.StringVar(&cfg.MySQLPass, "mysql-pass", "", "MySQL password")
	f.StringVar(&cfg.MySQLDatabase, "mysql-database", "trolltrack", "MySQL database name")

	f.IntVar(&cfg.BatchSize, "batch-size", 1000, "Number of records per batch")
	f.BoolVar(&cfg.DropTables, "drop-tables", false, "Drop all tables before migration (fresh start)")
	f.BoolVar(&cfg.Clean, "clean", false, "Empty target tables before migration (keeps table structure)")
	f.BoolVar(&cfg.AutoMigrate, "auto-migrate", true, "Create tables in target database before migration")
	f.BoolVar(&cfg.SkipVerify, "skip-verify", false, "Skip post-migration verification")
	f.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose output")

	f.StringVar(&cfg.ConfigPath, "config", "", "Path to TrollTrack config.yaml (for connection fallback)")
	f.BoolP("version", "v", false, "Print version information")
	return cmd
}

func runExport(cmd *cobra.Command, cfg *Config) error {
	out := cmd.OutOrStdout()
	if err := cfg.Load(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.Verbose {
		fmt.Fprintf(out, "Source: %s\n", cfg.SQLitePath)
		fmt.Fprintf(out, "Target: %s\n", cfg.GetSanitizedMySQLDSN())
		fmt.Fprintf(out, "Batch size: %d\n", cfg.BatchSize)
		fmt.Fprintf(out, "Clean mode: %v\n", cfg.Clean)
	}

	migrator, err := NewMigrator(cfg, out)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	defer migrator.Close()

	return export(cmd, migrator)
}

// export runs the migration and the verification
func export(cmd *cobra.Command, migrator *Migrator) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	stats, err := migrator.Run(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	stats.Print(out)

	if migrator.cfg.SkipVerify {
		return nil
	}
	fmt.Fprintln(out, "\n--- Verification ---")
	if err := NewVerifier(migrator.sourceDB, migrator.targetDB, out).Verify(ctx); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	fmt.Fprintln(out, "Verification passed!")
	return nil
}
