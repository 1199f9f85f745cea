package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long: `Apply or roll back schema migrations from MIGRATIONS_PATH.

Example usage:
  encyclopedai migrate up          # Apply all pending migrations
  encyclopedai migrate down        # Roll back the last migration
  encyclopedai migrate to 1        # Migrate to version 1
  encyclopedai migrate version     # Print the current version`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()
		return db.RunMigrations(cfg.Database.MigrationsPath)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()
		return db.MigrateDown(cfg.Database.MigrationsPath)
	},
}

var migrateToCmd = &cobra.Command{
	Use:   "to VERSION",
	Short: "Migrate up or down to a specific version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()
		return db.MigrateToVersion(cfg.Database.MigrationsPath, uint(version))
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		version, dirty, err := db.MigrationVersion(cfg.Database.MigrationsPath)
		if err != nil {
			return err
		}
		if dirty {
			cmd.Printf("%d (dirty)\n", version)
			return nil
		}
		cmd.Println(version)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateToCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}
