package main

import (
	"github.com/spf13/cobra"
	"github.com/tendant/simple-genealogy/pkg/repository"
	"go.uber.org/zap"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the genealogy tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := repository.NewDB(cfg.Database())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			logger.Info("schema applied", zap.String("database", cfg.DBName))
			return nil
		},
	}
}
