package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		if err := db.Migrate(gdb); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}

		log.Info("database migrations completed", "driver", cfg.DBDriver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
