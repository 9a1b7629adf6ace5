package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r0mai/iracing-stats/pkg/cache"
	"github.com/r0mai/iracing-stats/pkg/repository/result"
	tcpg "github.com/r0mai/iracing-stats/testsupport/tcpostgres"
	"github.com/r0mai/iracing-stats/testsupport/testdb"
)

func newTestService(t *testing.T) (*Service, *pgxpool.Pool, *cache.Store) {
	t.Helper()
	pool := testdb.InitTestDb()
	t.Cleanup(func() {
		tcpg.ClearAllTables(pool)
		pool.Close()
	})
	store, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)
	return NewService(pool, store), pool, store
}

func driverResultJSON(custID, oldiRating int64) string {
	return fmt.Sprintf(`{
		"cust_id": %d,
		"display_name": "Driver %d",
		"oldi_rating": %d,
		"newi_rating": %d,
		"old_cpi": 30.0,
		"new_cpi": 31.0,
		"incidents": 1,
		"laps_complete": 10,
		"average_lap": 900000,
		"car_id": 67,
		"car_class_id": 74,
		"finish_position": 0,
		"finish_position_in_class": 0,
		"reason_out_id": 0,
		"reason_out": "Running"
	}`, custID, custID, oldiRating, oldiRating)
}

func soloDocJSON(subsessionID int64, results ...string) string {
	joined := ""
	for i, r := range results {
		if i > 0 {
			joined += ","
		}
		joined += r
	}
	return fmt.Sprintf(`{
		"subsession_id": %d,
		"session_id": %d,
		"start_time": "2021-09-12T13:00:00Z",
		"license_category_id": 2,
		"event_type": 5,
		"official_session": true,
		"series_name": "Test Series",
		"session_name": null,
		"track": {"track_id": 212},
		"session_results": [
			{"simsession_number": 0, "simsession_type": 6, "results": [%s]}
		]
	}`, subsessionID, subsessionID, joined)
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		"select count(*) from "+table).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestAddCachedSoloDocument(t *testing.T) {
	svc, pool, store := newTestService(t)
	require.NoError(t, store.Write(100, []byte(soloDocJSON(100,
		driverResultJSON(1, 1600),
		driverResultJSON(2, 1600)))))

	n, err := svc.AddCached(context.Background(), []int64{100})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, 1, countRows(t, pool, "subsession"))
	assert.Equal(t, 1, countRows(t, pool, "session"))
	assert.Equal(t, 2, countRows(t, pool, "driver"))
	assert.Equal(t, 2, countRows(t, pool, "driver_result"))
	assert.Equal(t, 1, countRows(t, pool, "car_class_result"))

	var entries, sofValue, teamID int64
	var teamName string
	err = pool.QueryRow(context.Background(),
		"select entries, sof from simsession where subsession_id=100").
		Scan(&entries, &sofValue)
	require.NoError(t, err)
	assert.Equal(t, int64(2), entries)
	assert.Equal(t, int64(1600), sofValue)

	err = pool.QueryRow(context.Background(),
		"select team_id, team_name from driver_result where cust_id=1").
		Scan(&teamID, &teamName)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), teamID)
	assert.Empty(t, teamName)
}

func TestAddCachedTeamDocument(t *testing.T) {
	svc, pool, store := newTestService(t)
	doc := fmt.Sprintf(`{
		"subsession_id": 200,
		"session_id": 200,
		"start_time": "2022-02-05T00:00:00Z",
		"license_category_id": 2,
		"event_type": 5,
		"official_session": true,
		"series_name": "Endurance",
		"session_name": "Daytona 24",
		"track": {"track_id": 192},
		"session_results": [
			{
				"simsession_number": 0,
				"simsession_type": 6,
				"results": [
					{
						"team_id": 9000,
						"display_name": "Team Alpha",
						"car_class_id": 74,
						"driver_results": [%s, %s]
					},
					{
						"car_class_id": 74,
						"driver_results": [%s]
					}
				]
			}
		]
	}`, driverResultJSON(1, 1000), driverResultJSON(2, 2000),
		driverResultJSON(3, 1500))
	require.NoError(t, store.Write(200, []byte(doc)))

	n, err := svc.AddCached(context.Background(), []int64{200})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// two teams, three drivers
	var entries, sofValue int64
	err = pool.QueryRow(context.Background(),
		"select entries, sof from simsession where subsession_id=200").
		Scan(&entries, &sofValue)
	require.NoError(t, err)
	assert.Equal(t, int64(2), entries)
	assert.Equal(t, int64(1500), sofValue)
	assert.Equal(t, 3, countRows(t, pool, "driver_result"))

	// named team members carry the team identity
	var teamID int64
	var teamName string
	err = pool.QueryRow(context.Background(),
		"select team_id, team_name from driver_result where cust_id=1").
		Scan(&teamID, &teamName)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), teamID)
	assert.Equal(t, "Team Alpha", teamName)

	// a team without an id gets the placeholder identity
	err = pool.QueryRow(context.Background(),
		"select team_id, team_name from driver_result where cust_id=3").
		Scan(&teamID, &teamName)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), teamID)
	assert.Empty(t, teamName)
}

func TestAddCachedIsIdempotent(t *testing.T) {
	svc, pool, store := newTestService(t)
	require.NoError(t, store.Write(100,
		[]byte(soloDocJSON(100, driverResultJSON(1, 1600)))))

	_, err := svc.AddCached(context.Background(), []int64{100})
	require.NoError(t, err)
	n, err := svc.AddCached(context.Background(), []int64{100})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, countRows(t, pool, "driver_result"))
}

func TestAddCachedSkipsMalformed(t *testing.T) {
	svc, pool, store := newTestService(t)
	// missing oldi_rating
	bad := soloDocJSON(300, `{
		"cust_id": 1, "newi_rating": 1000, "car_class_id": 74
	}`)
	require.NoError(t, store.Write(300, []byte(bad)))
	require.NoError(t, store.Write(301,
		[]byte(soloDocJSON(301, driverResultJSON(2, 1700)))))

	n, err := svc.AddCached(context.Background(), []int64{300, 301})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	existing, err := result.ExistingSubsessionIDs(context.Background(), pool,
		[]int64{300, 301})
	require.NoError(t, err)
	assert.Equal(t, []int64{301}, existing)
}

func TestAddCachedSkipsUnreadable(t *testing.T) {
	svc, pool, store := newTestService(t)
	require.NoError(t, store.Write(600,
		[]byte(soloDocJSON(600, driverResultJSON(1, 1600)))))
	// a damaged archive and an id that was never cached must not take the
	// healthy sibling down with them
	require.NoError(t, os.WriteFile(store.Path(601),
		[]byte("not a zip archive"), 0o644))

	n, err := svc.AddCached(context.Background(), []int64{601, 600, 602})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	existing, err := result.ExistingSubsessionIDs(context.Background(), pool,
		[]int64{600, 601, 602})
	require.NoError(t, err)
	assert.Equal(t, []int64{600}, existing)
}

func TestUpdateIngestsWholeCache(t *testing.T) {
	svc, pool, store := newTestService(t)
	for id := int64(400); id < 403; id++ {
		require.NoError(t, store.Write(id,
			[]byte(soloDocJSON(id, driverResultJSON(id, 1600)))))
	}
	n, err := svc.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, countRows(t, pool, "subsession"))
}

func TestRebuild(t *testing.T) {
	svc, pool, store := newTestService(t)
	require.NoError(t, store.Write(500,
		[]byte(soloDocJSON(500, driverResultJSON(1, 1600)))))
	require.NoError(t, store.WriteReference(cache.RefTracks, []byte(`[
		{
			"track_id": 212, "package_id": 1,
			"track_name": "Okayama", "config_name": "Full",
			"track_config_length": 2.3, "corners_per_lap": 13,
			"category_id": 2, "grid_stalls": 40,
			"pit_road_speed_limit": 28.0, "number_pitstalls": 34
		}
	]`)))
	require.NoError(t, store.WriteReference(cache.RefCars,
		[]byte(`[{"car_id": 67, "car_name": "Global Mazda MX-5 Cup",
			"car_name_abbreviated": "MX-5"}]`)))
	require.NoError(t, store.WriteReference(cache.RefCarClasses,
		[]byte(`[{"car_class_id": 74, "name": "Mazda Cup", "short_name": "MX-5",
			"cars_in_class": [{"car_id": 67}]}]`)))
	require.NoError(t, store.WriteReference(cache.RefSeasons,
		[]byte(`[{"season_id": 1, "series_id": 2, "season_name": "s",
			"series_name": "x", "official": true, "season_year": 2021,
			"season_quarter": 3, "license_group": 1, "fixed_setup": true,
			"driver_changes": false}]`)))

	teamsFile := filepath.Join(t.TempDir(), "site-teams.json")
	require.NoError(t, os.WriteFile(teamsFile, []byte(`[
		{"name": "Local Heroes", "members": [{"cust_id": 1}, {"cust_id": 2}]}
	]`), 0o644))

	require.NoError(t, svc.Rebuild(context.Background(), teamsFile))

	assert.Equal(t, 1, countRows(t, pool, "subsession"))
	assert.Equal(t, 1, countRows(t, pool, "car"))
	assert.Equal(t, 1, countRows(t, pool, "car_class"))
	assert.Equal(t, 1, countRows(t, pool, "car_class_member"))
	assert.Equal(t, 1, countRows(t, pool, "season"))
	assert.Equal(t, 1, countRows(t, pool, "site_team"))
	assert.Equal(t, 2, countRows(t, pool, "site_team_member"))

	// lengths are converted to metric
	var lengthKm float64
	err := pool.QueryRow(context.Background(),
		"select track_config_length_km from track_config where track_id=212").
		Scan(&lengthKm)
	require.NoError(t, err)
	assert.InDelta(t, 2.3*1.60934, lengthKm, 1e-9)

	// a second rebuild replaces instead of duplicating
	require.NoError(t, svc.Rebuild(context.Background(), teamsFile))
	assert.Equal(t, 1, countRows(t, pool, "subsession"))
	assert.Equal(t, 1, countRows(t, pool, "car"))
}
