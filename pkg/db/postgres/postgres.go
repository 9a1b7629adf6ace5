package postgres

import (
	"context"
	stdlog "log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/r0mai/iracing-stats/log"
)

type PoolConfigOption func(cfg *pgxpool.Config)

func WithTracer(logger *log.Logger) PoolConfigOption {
	return func(cfg *pgxpool.Config) {
		cfg.ConnConfig.Tracer = &myQueryTracer{log: logger}
	}
}

func InitWithURL(url string, opts ...PoolConfigOption) *pgxpool.Pool {
	dbConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		stdlog.Fatalf("Unable to parse database config %v\n", err)
	}
	for _, opt := range opts {
		opt(dbConfig)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), dbConfig)
	if err != nil {
		stdlog.Fatalf("Unable to create the database pool %v\n", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		stdlog.Fatalf("Unable to get a valid database connection %v\n", err)
	}
	return pool
}

type myQueryTracer struct {
	log *log.Logger
}

func (tracer *myQueryTracer) TraceQueryStart(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceQueryStartData,
) context.Context {
	tracer.log.Debug("Executing",
		log.String("sql", data.SQL),
		log.Any("args", data.Args))

	return ctx
}

//nolint:whitespace // can't make the linters happy
func (tracer *myQueryTracer) TraceQueryEnd(
	ctx context.Context,
	conn *pgx.Conn,
	data pgx.TraceQueryEndData,
) {
}
