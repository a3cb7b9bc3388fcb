package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deliverypulse/eventstream/internal/store"
)

var (
	migrateDatabaseURL string
	migratePath        string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database schema commands",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, path := migrateTarget()
		if err := store.Migrate(path, url); err != nil {
			return err
		}
		fmt.Println("Migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	Long:  "Drops every managed table. Intended for local development resets only.",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, path := migrateTarget()
		if err := store.MigrateDown(path, url); err != nil {
			return err
		}
		fmt.Println("Migrations rolled back")
		return nil
	},
}

func migrateTarget() (url, path string) {
	url = migrateDatabaseURL
	if url == "" {
		url = cfg.Database.URL
	}
	path = migratePath
	if path == "" {
		path = cfg.Database.MigrationsPath
	}
	return url, path
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrateDatabaseURL, "database-url", "", "Postgres connection string (default from config)")
	migrateCmd.PersistentFlags().StringVar(&migratePath, "path", "", "migrations directory (default from config)")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}
