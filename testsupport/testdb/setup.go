package testdb

import (
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	tcpg "github.com/r0mai/iracing-stats/testsupport/tcpostgres"
)

func InitTestDb() *pgxpool.Pool {
	var pool *pgxpool.Pool

	if os.Getenv("TESTDB_URL") != "" {
		pool = tcpg.SetupExternalTestDb()
	} else {
		pool = tcpg.SetupTestDb()
	}
	tcpg.ClearAllTables(pool)
	return pool
}
