package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r0mai/iracing-stats/pkg/model"
	"github.com/r0mai/iracing-stats/pkg/repository"
	tcpg "github.com/r0mai/iracing-stats/testsupport/tcpostgres"
	"github.com/r0mai/iracing-stats/testsupport/testdb"
)

func TestEnsureAndLoad(t *testing.T) {
	pool := testdb.InitTestDb()
	t.Cleanup(func() {
		tcpg.ClearAllTables(pool)
		pool.Close()
	})
	ctx := context.Background()

	require.NoError(t, Ensure(ctx, pool, &model.DbDriver{
		CustID: 42, DisplayName: "First Name",
	}))
	// the first observed name sticks
	require.NoError(t, Ensure(ctx, pool, &model.DbDriver{
		CustID: 42, DisplayName: "Changed Name",
	}))

	got, err := LoadByID(ctx, pool, 42)
	require.NoError(t, err)
	assert.Equal(t, "First Name", got.DisplayName)

	_, err = LoadByID(ctx, pool, 99)
	assert.ErrorIs(t, err, repository.ErrNoData)
}
