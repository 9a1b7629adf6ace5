// Package tcpostgres boots the shared postgres container the repository and
// ingest tests run against.
package tcpostgres

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testImage     = "postgres:15"
	containerName = "iracing-stats-test"
	testUser      = "postgres"
	testPassword  = "password"
	testDatabase  = "postgres"
)

// PostgresContainer is the throwaway database used by the tests.
type PostgresContainer struct {
	testcontainers.Container
}

type PostgresContainerOption func(req *testcontainers.ContainerRequest)

func WithWaitStrategy(strategies ...wait.Strategy) PostgresContainerOption {
	return func(req *testcontainers.ContainerRequest) {
		req.WaitingFor = wait.ForAll(strategies...).WithDeadline(1 * time.Minute)
	}
}

func WithPort(port string) PostgresContainerOption {
	return func(req *testcontainers.ContainerRequest) {
		req.ExposedPorts = append(req.ExposedPorts, port)
	}
}

// SetupPostgres starts (or reuses, across packages and runs) the shared test
// container. fsync is off, the data is disposable anyway.
func SetupPostgres(ctx context.Context, opts ...PostgresContainerOption) (
	*PostgresContainer, error,
) {
	req := testcontainers.ContainerRequest{
		Image: testImage,
		Name:  containerName,
		Env: map[string]string{
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
			"POSTGRES_DB":       testDatabase,
		},
		ExposedPorts: []string{},
		Cmd:          []string{"postgres", "-c", "fsync=off"},
	}

	for _, opt := range opts {
		opt(&req)
	}

	container, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
			Reuse:            true,
		})
	if err != nil {
		return nil, err
	}

	return &PostgresContainer{Container: container}, nil
}
