//nolint:errcheck // testsetup
package tcpostgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/r0mai/iracing-stats/pkg/db/migrate"
	database "github.com/r0mai/iracing-stats/pkg/db/postgres"
)

// SetupTestDb creates a pg connection pool against a throwaway container
// with the schema migrated.
func SetupTestDb() *pgxpool.Pool {
	ctx := context.Background()
	port, err := nat.NewPort("tcp", "5432")
	if err != nil {
		log.Fatal(err)
	}
	container, err := SetupPostgres(ctx,
		WithPort(port.Port()),
		WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		log.Fatal(err)
	}
	containerPort, _ := container.MappedPort(ctx, port)
	host, _ := container.Host(ctx)
	dbURL := fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
		testUser, testPassword, host, containerPort.Port(), testDatabase)

	return initPool(dbURL)
}

// SetupExternalTestDb connects to the database named by TESTDB_URL instead
// of starting a container.
func SetupExternalTestDb() *pgxpool.Pool {
	return initPool(os.Getenv("TESTDB_URL"))
}

func initPool(dbURL string) *pgxpool.Pool {
	if err := migrate.MigrateDb(dbURL); err != nil {
		log.Fatal(err)
	}
	return database.InitWithURL(dbURL)
}

func ClearResultTables(pool *pgxpool.Pool) {
	for _, table := range []string{
		"driver_result", "car_class_result", "simsession",
		"subsession", "session", "driver", "reason_out",
	} {
		pool.Exec(context.Background(), "delete from "+table)
	}
}

func ClearRefdataTables(pool *pgxpool.Pool) {
	for _, table := range []string{
		"track_config", "car", "car_class", "car_class_member",
		"season", "site_team", "site_team_member",
	} {
		pool.Exec(context.Background(), "delete from "+table)
	}
}

func ClearAllTables(pool *pgxpool.Pool) {
	ClearResultTables(pool)
	ClearRefdataTables(pool)
}
