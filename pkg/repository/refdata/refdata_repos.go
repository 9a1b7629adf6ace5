//nolint:whitespace //can't make both the linter and editor happy :(
package refdata

import (
	"context"

	"github.com/r0mai/iracing-stats/pkg/model"
	"github.com/r0mai/iracing-stats/pkg/repository"
)

func InsertTrackConfig(
	ctx context.Context,
	conn repository.Querier,
	t *model.TrackInfo,
) error {
	_, err := conn.Exec(ctx, `
	insert into track_config (
		track_id, package_id, track_name, config_name,
		track_config_length_km, corners_per_lap, category_id,
		grid_stalls, pit_road_speed_limit, number_of_pit_stalls)
	values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, t.TrackID, t.PackageID, t.TrackName, t.ConfigName,
		t.LengthKm(), t.CornersPerLap, t.CategoryID,
		t.GridStalls, t.PitRoadSpeedLimitKmh(), t.NumberPitstalls)
	return err
}

func InsertCar(
	ctx context.Context,
	conn repository.Querier,
	c *model.CarInfo,
) error {
	_, err := conn.Exec(ctx, `
	insert into car (car_id, car_name, car_name_abbreviated)
	values ($1,$2,$3)
	`, c.CarID, c.CarName, c.CarNameAbbreviated)
	return err
}

// InsertCarClass stores a car class along with its member cars.
func InsertCarClass(
	ctx context.Context,
	conn repository.Querier,
	c *model.CarClassInfo,
) error {
	_, err := conn.Exec(ctx, `
	insert into car_class (
		car_class_id, car_class_name, car_class_short_name, car_class_size)
	values ($1,$2,$3,$4)
	`, c.CarClassID, c.Name, c.ShortName, len(c.CarsInClass))
	if err != nil {
		return err
	}
	for i := range c.CarsInClass {
		_, err := conn.Exec(ctx, `
		insert into car_class_member (car_class_id, car_id)
		values ($1,$2)
		`, c.CarClassID, c.CarsInClass[i].CarID)
		if err != nil {
			return err
		}
	}
	return nil
}

func InsertSeason(
	ctx context.Context,
	conn repository.Querier,
	s *model.SeasonInfo,
) error {
	_, err := conn.Exec(ctx, `
	insert into season (
		season_id, series_id, season_name, series_name, official,
		season_year, season_quarter, license_group_id, fixed_setup,
		driver_changes)
	values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, s.SeasonID, s.SeriesID, s.SeasonName, s.SeriesName, s.Official,
		s.SeasonYear, s.SeasonQuarter, s.LicenseGroup, s.FixedSetup,
		s.DriverChanges)
	return err
}

// InsertSiteTeam stores a locally curated team and its members. The id is
// assigned by the caller (position in the site-teams file).
func InsertSiteTeam(
	ctx context.Context,
	conn repository.Querier,
	id int64,
	t *model.SiteTeam,
) error {
	_, err := conn.Exec(ctx, `
	insert into site_team (site_team_id, site_team_name, discord_hook_url)
	values ($1,$2,$3)
	`, id, t.Name, t.DiscordHookURL)
	if err != nil {
		return err
	}
	for i := range t.Members {
		_, err := conn.Exec(ctx, `
		insert into site_team_member (site_team_id, cust_id)
		values ($1,$2)
		`, id, t.Members[i].CustID)
		if err != nil {
			return err
		}
	}
	return nil
}

// SiteTeamCustIDs returns the customer ids of every site-team member.
func SiteTeamCustIDs(
	ctx context.Context,
	conn repository.Querier,
) ([]int64, error) {
	rows, err := conn.Query(ctx,
		"select distinct cust_id from site_team_member order by cust_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteAll clears every reference-data table. Used by the full rebuild.
func DeleteAll(ctx context.Context, conn repository.Querier) error {
	for _, table := range []string{
		"track_config", "car", "car_class", "car_class_member",
		"season", "site_team", "site_team_member",
	} {
		if _, err := conn.Exec(ctx, "delete from "+table); err != nil {
			return err
		}
	}
	return nil
}
