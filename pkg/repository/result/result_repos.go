//nolint:whitespace //can't make both the linter and editor happy :(
package result

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/r0mai/iracing-stats/pkg/model"
	"github.com/r0mai/iracing-stats/pkg/repository"
)

func InsertSubsession(
	ctx context.Context,
	conn repository.Querier,
	s *model.DbSubsession,
) error {
	_, err := conn.Exec(ctx, `
	insert into subsession (
		subsession_id, session_id, start_time, license_category_id,
		event_type, track_id, official_session)
	values ($1,$2,$3,$4,$5,$6,$7)
	`, s.SubsessionID, s.SessionID, s.StartTime, s.LicenseCategoryID,
		s.EventType, s.TrackID, s.OfficialSession)
	return err
}

// EnsureSession records the shared session a subsession belongs to. Several
// subsessions reference the same session, only the first insert sticks.
func EnsureSession(
	ctx context.Context,
	conn repository.Querier,
	s *model.DbSession,
) error {
	_, err := conn.Exec(ctx, `
	insert into session (session_id, series_name, session_name)
	values ($1,$2,$3)
	on conflict (session_id) do nothing
	`, s.SessionID, s.SeriesName, s.SessionName)
	return err
}

func InsertSimsession(
	ctx context.Context,
	conn repository.Querier,
	s *model.DbSimsession,
) error {
	_, err := conn.Exec(ctx, `
	insert into simsession (
		subsession_id, simsession_number, simsession_type, entries, sof)
	values ($1,$2,$3,$4,$5)
	`, s.SubsessionID, s.SimsessionNumber, s.SimsessionType, s.Entries, s.Sof)
	return err
}

func InsertDriverResult(
	ctx context.Context,
	conn repository.Querier,
	r *model.DbDriverResult,
) error {
	_, err := conn.Exec(ctx, `
	insert into driver_result (
		cust_id, team_id, team_name, subsession_id, simsession_number,
		oldi_rating, newi_rating, old_cpi, new_cpi, incidents,
		laps_complete, average_lap, car_id, car_class_id,
		finish_position, finish_position_in_class, reason_out_id)
	values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, r.CustID, r.TeamID, r.TeamName, r.SubsessionID, r.SimsessionNumber,
		r.OldiRating, r.NewiRating, r.OldCpi, r.NewCpi, r.Incidents,
		r.LapsComplete, r.AverageLap, r.CarID, r.CarClassID,
		r.FinishPosition, r.FinishPositionInClass, r.ReasonOutID)
	return err
}

func InsertCarClassResult(
	ctx context.Context,
	conn repository.Querier,
	r *model.DbCarClassResult,
) error {
	_, err := conn.Exec(ctx, `
	insert into car_class_result (
		car_class_id, subsession_id, simsession_number,
		entries_in_class, class_sof)
	values ($1,$2,$3,$4,$5)
	`, r.CarClassID, r.SubsessionID, r.SimsessionNumber,
		r.EntriesInClass, r.ClassSof)
	return err
}

// ExistingSubsessionIDs returns which of the candidate ids are already
// present in the database.
func ExistingSubsessionIDs(
	ctx context.Context,
	conn repository.Querier,
	candidates []int64,
) ([]int64, error) {
	rows, err := conn.Query(ctx,
		"select subsession_id from subsession where subsession_id = any($1)",
		candidates)
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

// LoadDriverSessions returns the main-event races of one driver in
// chronological order. The category is corrected in SQL: before the
// 2020-11-08 license split the subsession's own value is authoritative,
// afterwards the track category.
func LoadDriverSessions(
	ctx context.Context,
	conn repository.Querier,
	custID int64,
) ([]*model.DriverSession, error) {
	rows, err := conn.Query(ctx, `
	select s.subsession_id, s.start_time,
		case when s.start_time < '2020-11-08T00:00:00Z'::timestamptz
			then s.license_category_id
			else tc.category_id
		end as category_id,
		s.track_id, dr.finish_position, dr.newi_rating
	from driver_result dr
	join subsession s on s.subsession_id = dr.subsession_id
	join track_config tc on tc.track_id = s.track_id
	where dr.cust_id=$1 and dr.simsession_number=0 and s.event_type=$2
	order by s.start_time
	`, custID, model.EventRace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := make([]*model.DriverSession, 0)
	for rows.Next() {
		var item model.DriverSession
		if err := readData(rows, &item); err != nil {
			return nil, err
		}
		ret = append(ret, &item)
	}
	return ret, rows.Err()
}

// DeleteAll clears every result-bearing table. Used by the full rebuild.
func DeleteAll(ctx context.Context, conn repository.Querier) error {
	for _, table := range []string{
		"driver_result", "car_class_result", "simsession",
		"subsession", "session", "driver", "reason_out",
	} {
		if _, err := conn.Exec(ctx, "delete from "+table); err != nil {
			return err
		}
	}
	return nil
}

func readData(row pgx.Row, e *model.DriverSession) error {
	return row.Scan(&e.SubsessionID, &e.StartTime, &e.Category,
		&e.TrackID, &e.FinishPosition, &e.NewiRating)
}
