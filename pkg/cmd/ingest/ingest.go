package ingest

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/r0mai/iracing-stats/log"
	"github.com/r0mai/iracing-stats/pkg/cache"
	"github.com/r0mai/iracing-stats/pkg/config"
	"github.com/r0mai/iracing-stats/pkg/db/postgres"
	"github.com/r0mai/iracing-stats/pkg/ingest"
)

func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "loads cached race documents into the database",
	}
	cmd.PersistentFlags().StringVar(&config.SiteTeamsFile,
		"site-teams",
		"",
		"path to the site-teams definition file")
	cmd.AddCommand(newRebuildCmd())
	cmd.AddCommand(newUpdateCmd())
	return cmd
}

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "drops all rows and reloads everything from the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newIngestService()
			if err != nil {
				return err
			}
			defer cleanup()
			return svc.Rebuild(context.Background(), config.SiteTeamsFile)
		},
	}
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "ingests cached documents not yet in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newIngestService()
			if err != nil {
				return err
			}
			defer cleanup()
			n, err := svc.Update(context.Background())
			if err != nil {
				return err
			}
			log.Info("update finished", log.Int("ingested", n))
			return nil
		},
	}
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

func newIngestService() (*ingest.Service, func(), error) {
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	log.ResetDefault(logger)

	poolOpts := []postgres.PoolConfigOption{}
	if parseLogLevel(config.SQLLogLevel, log.InfoLevel) == log.DebugLevel {
		poolOpts = append(poolOpts, postgres.WithTracer(logger.Named("sql")))
	}
	pool := postgres.InitWithURL(config.DB, poolOpts...)

	store, err := cache.NewStore(config.BaseDir)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return ingest.NewService(pool, store), pool.Close, nil
}
