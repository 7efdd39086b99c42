package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pickup/internal/config"
	"pickup/internal/infra"
	"pickup/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New("migrate")

	direction := "up"
	if len(args) == 1 {
		direction = args[0]
	}
	switch direction {
	case "up":
		err = infra.MigrateUp(cfg.DB.DSN)
	case "down":
		err = infra.MigrateDown(cfg.DB.DSN)
	}
	if err != nil {
		return err
	}
	log.Info().Str("direction", direction).Msg("migrations done")
	return nil
}
