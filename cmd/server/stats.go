package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/config"
	"github.com/iliyamo/directorio-lugares/internal/database"
	"github.com/iliyamo/directorio-lugares/internal/logger"
	"github.com/iliyamo/directorio-lugares/internal/repository"
	"github.com/iliyamo/directorio-lugares/internal/service"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Visit statistics maintenance",
}

var purgeDays int

var statsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete raw visits older than --days",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadDatabase()
		log, err := logger.New(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		db, err := database.Open(cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		svc := service.NewStatsService(repository.NewVisitRepo(db), repository.NewPlaceRepo(db), repository.NewUserRepo(db))
		n, err := svc.Purge(cmd.Context(), purgeDays)
		if err != nil {
			return err
		}
		log.Info("visits purged", zap.Int64("deleted", n), zap.Int("days", purgeDays))
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d visit(s)\n", n)
		return nil
	},
}

func init() {
	statsPurgeCmd.Flags().IntVar(&purgeDays, "days", 90, "keep visits newer than this many days")
	statsCmd.AddCommand(statsPurgeCmd)
	rootCmd.AddCommand(statsCmd)
}
