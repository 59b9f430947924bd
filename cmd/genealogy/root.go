package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-genealogy/internal/config"
	"github.com/tendant/simple-genealogy/internal/logging"
	"go.uber.org/zap"
)

const serviceName = "simple-genealogy"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "genealogy",
		Short:         "Family tree service",
		Long:          `Family tree service: persons, relationships, shared trees and invite links for relatives.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore error if not found)
			_ = godotenv.Load()
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newDevTokenCmd())
	return root
}

// setup loads configuration and builds the logger every command shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
