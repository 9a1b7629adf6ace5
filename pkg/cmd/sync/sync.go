package sync

import (
	"context"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/r0mai/iracing-stats/log"
	"github.com/r0mai/iracing-stats/pkg/cache"
	"github.com/r0mai/iracing-stats/pkg/config"
	"github.com/r0mai/iracing-stats/pkg/db/postgres"
	"github.com/r0mai/iracing-stats/pkg/ingest"
	"github.com/r0mai/iracing-stats/pkg/iracing"
	"github.com/r0mai/iracing-stats/pkg/repository/refdata"
)

var (
	seasonYear    int
	seasonQuarter int
	seasonWeek    int
	skipIngest    bool
)

func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "fetches race results from the upstream API into the local cache",
	}
	cmd.PersistentFlags().BoolVar(&skipIngest,
		"skip-ingest",
		false,
		"only cache documents, do not ingest them into the database")
	cmd.AddCommand(newDriverCmd())
	cmd.AddCommand(newCustomerCmd())
	cmd.AddCommand(newSeasonCmd())
	cmd.AddCommand(newRefdataCmd())
	return cmd
}

func newDriverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "driver name [name...]",
		Short: "syncs every race the named drivers took part in",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(func(
				ctx context.Context, svc *iracing.SyncService,
			) ([]int64, error) {
				return svc.SyncDrivers(ctx, args)
			})
		},
	}
}

func newCustomerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "customer [id...]",
		Short: "syncs every race the given customer ids took part in " +
			"(without ids: all site-team members)",
		RunE: func(cmd *cobra.Command, args []string) error {
			custIDs := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return err
				}
				custIDs = append(custIDs, id)
			}
			return runSync(func(
				ctx context.Context, svc *iracing.SyncService,
			) ([]int64, error) {
				if len(custIDs) == 0 {
					ids, err := siteTeamCustIDs(ctx)
					if err != nil {
						return nil, err
					}
					custIDs = ids
				}
				return svc.SyncCustomers(ctx, custIDs)
			})
		},
	}
}

// siteTeamCustIDs pulls the members of all site teams from the database.
func siteTeamCustIDs(ctx context.Context) ([]int64, error) {
	pool := postgres.InitWithURL(config.DB)
	defer pool.Close()
	return refdata.SiteTeamCustIDs(ctx, pool)
}

func newSeasonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "season",
		Short: "syncs every race of one season",
		RunE: func(cmd *cobra.Command, args []string) error {
			var week *int
			if cmd.Flags().Changed("week") {
				week = &seasonWeek
			}
			return runSync(func(
				ctx context.Context, svc *iracing.SyncService,
			) ([]int64, error) {
				return svc.SyncSeason(ctx, seasonYear, seasonQuarter, week)
			})
		},
	}
	cmd.Flags().IntVar(&seasonYear, "year", 0, "season year")
	cmd.Flags().IntVar(&seasonQuarter, "quarter", 0, "season quarter (1-4)")
	cmd.Flags().IntVar(&seasonWeek, "week", 0, "race week (optional)")
	//nolint:errcheck // flags exist
	cmd.MarkFlagRequired("year")
	//nolint:errcheck // flags exist
	cmd.MarkFlagRequired("quarter")
	return cmd
}

func newRefdataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refdata",
		Short: "refreshes the cached track, car, car class and season data",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger()
			ctx := context.Background()
			svc, err := newSyncService(ctx)
			if err != nil {
				return err
			}
			return svc.SyncReferenceData(ctx)
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

func setupLogger() {
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
}

func newSyncService(ctx context.Context) (*iracing.SyncService, error) {
	store, err := cache.NewStore(config.BaseDir)
	if err != nil {
		return nil, err
	}
	client, err := iracing.NewClient(
		iracing.Credentials{
			Email:    config.Username,
			Password: config.Token,
		},
		iracing.WithBaseURL(config.BaseURL))
	if err != nil {
		return nil, err
	}
	if err := client.Authenticate(ctx); err != nil {
		return nil, err
	}
	return iracing.NewSyncService(client, store), nil
}

// runSync caches the discovered documents and, unless disabled, ingests the
// newly cached ones right away.
func runSync(
	discover func(context.Context, *iracing.SyncService) ([]int64, error),
) error {
	setupLogger()
	ctx := context.Background()

	svc, err := newSyncService(ctx)
	if err != nil {
		return err
	}
	added, err := discover(ctx, svc)
	if err != nil {
		return err
	}
	log.Info("sync finished", log.Int("newDocuments", len(added)))

	if skipIngest || len(added) == 0 {
		return nil
	}

	pool := postgres.InitWithURL(config.DB)
	defer pool.Close()
	store, err := cache.NewStore(config.BaseDir)
	if err != nil {
		return err
	}
	n, err := ingest.NewService(pool, store).AddCached(ctx, added)
	if err != nil {
		return err
	}
	log.Info("ingest finished", log.Int("ingested", n))
	return nil
}
