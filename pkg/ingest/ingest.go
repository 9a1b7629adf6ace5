// Package ingest turns cached race result documents into database rows.
// The cache is the source of truth, the database can always be rebuilt from
// it.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/r0mai/iracing-stats/log"
	"github.com/r0mai/iracing-stats/pkg/cache"
	"github.com/r0mai/iracing-stats/pkg/model"
	"github.com/r0mai/iracing-stats/pkg/repository"
	"github.com/r0mai/iracing-stats/pkg/repository/driver"
	"github.com/r0mai/iracing-stats/pkg/repository/reasonout"
	"github.com/r0mai/iracing-stats/pkg/repository/refdata"
	"github.com/r0mai/iracing-stats/pkg/repository/result"
	"github.com/r0mai/iracing-stats/pkg/sof"
)

// drivers without a team get these placeholder values (example where
// neither team_id nor cust_id is present: subsession 22275743)
const (
	noTeamID   = -1
	noTeamName = ""
)

type Service struct {
	pool   *pgxpool.Pool
	store  *cache.Store
	logger *log.Logger
}

func NewService(pool *pgxpool.Pool, store *cache.Store) *Service {
	return &Service{
		pool:   pool,
		store:  store,
		logger: log.GetLogger("ingest"),
	}
}

// AddCached ingests the given cached subsessions in one transaction,
// skipping those already present in the database. Unreadable or malformed
// documents are logged and skipped without losing the batch; each surviving
// document runs inside its own savepoint. Returns the number of documents
// ingested.
func (s *Service) AddCached(ctx context.Context, ids []int64) (int, error) {
	ingested := 0
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		ingested, err = s.addCachedTx(ctx, tx, ids)
		return err
	})
	return ingested, err
}

func (s *Service) addCachedTx(
	ctx context.Context,
	tx pgx.Tx,
	ids []int64,
) (int, error) {
	existing, err := result.ExistingSubsessionIDs(ctx, tx, ids)
	if err != nil {
		return 0, err
	}
	known := lo.SliceToMap(existing, func(id int64) (int64, struct{}) {
		return id, struct{}{}
	})

	ingested := 0
	for _, id := range ids {
		if _, ok := known[id]; ok {
			continue
		}
		doc, err := s.loadDocument(id)
		if err != nil {
			var malformed *model.MalformedDocumentError
			if errors.As(err, &malformed) {
				s.logger.Warn("skipping malformed document",
					log.Int64("subsessionId", id),
					log.String("missing", malformed.Path))
			} else {
				s.logger.Warn("skipping unreadable document",
					log.Int64("subsessionId", id),
					log.ErrorField(err))
			}
			continue
		}
		err = pgx.BeginFunc(ctx, tx, func(nested pgx.Tx) error {
			return ingestDocument(ctx, nested, doc)
		})
		if err != nil {
			return ingested, err
		}
		ingested++
	}
	s.logger.Info("ingested documents",
		log.Int("requested", len(ids)),
		log.Int("alreadyPresent", len(existing)),
		log.Int("ingested", ingested))
	return ingested, nil
}

// loadDocument reads and parses one cached document. Its errors only ever
// concern that one document and never fail the batch.
func (s *Service) loadDocument(
	subsessionID int64,
) (*model.ResultDocument, error) {
	data, err := s.store.Read(subsessionID)
	if err != nil {
		return nil, err
	}
	return model.ParseResultDocument(data)
}

// Update ingests every cached subsession not yet in the database.
func (s *Service) Update(ctx context.Context) (int, error) {
	ids, err := s.store.IDs()
	if err != nil {
		return 0, err
	}
	return s.AddCached(ctx, ids)
}

// Rebuild drops all rows and reloads everything from the cache: reference
// data, site teams and every cached race result, in a single transaction.
func (s *Service) Rebuild(ctx context.Context, siteTeamsFile string) error {
	ids, err := s.store.IDs()
	if err != nil {
		return err
	}
	s.logger.Info("rebuilding database from cache",
		log.Int("cachedDocuments", len(ids)))

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := result.DeleteAll(ctx, tx); err != nil {
			return err
		}
		if err := refdata.DeleteAll(ctx, tx); err != nil {
			return err
		}
		if err := s.rebuildReferenceData(ctx, tx); err != nil {
			return err
		}
		if siteTeamsFile != "" {
			if err := s.rebuildSiteTeams(ctx, tx, siteTeamsFile); err != nil {
				return err
			}
		}
		_, err := s.addCachedTx(ctx, tx, ids)
		return err
	})
}

//nolint:gocognit,cyclop // four analogous blocks
func (s *Service) rebuildReferenceData(
	ctx context.Context,
	conn repository.Querier,
) error {
	if data, err := s.readReference(cache.RefTracks); err != nil {
		return err
	} else if data != nil {
		var tracks []model.TrackInfo
		if err := json.Unmarshal(data, &tracks); err != nil {
			return fmt.Errorf("decode tracks: %w", err)
		}
		for i := range tracks {
			if err := refdata.InsertTrackConfig(ctx, conn, &tracks[i]); err != nil {
				return err
			}
		}
	}

	if data, err := s.readReference(cache.RefCars); err != nil {
		return err
	} else if data != nil {
		var cars []model.CarInfo
		if err := json.Unmarshal(data, &cars); err != nil {
			return fmt.Errorf("decode cars: %w", err)
		}
		for i := range cars {
			if err := refdata.InsertCar(ctx, conn, &cars[i]); err != nil {
				return err
			}
		}
	}

	if data, err := s.readReference(cache.RefCarClasses); err != nil {
		return err
	} else if data != nil {
		var classes []model.CarClassInfo
		if err := json.Unmarshal(data, &classes); err != nil {
			return fmt.Errorf("decode car classes: %w", err)
		}
		for i := range classes {
			if err := refdata.InsertCarClass(ctx, conn, &classes[i]); err != nil {
				return err
			}
		}
	}

	if data, err := s.readReference(cache.RefSeasons); err != nil {
		return err
	} else if data != nil {
		var seasons []model.SeasonInfo
		if err := json.Unmarshal(data, &seasons); err != nil {
			return fmt.Errorf("decode seasons: %w", err)
		}
		for i := range seasons {
			if err := refdata.InsertSeason(ctx, conn, &seasons[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// readReference returns nil without error when a reference document was
// never synced.
func (s *Service) readReference(kind string) ([]byte, error) {
	data, err := s.store.ReadReference(kind)
	if errors.Is(err, cache.ErrNotFound) {
		s.logger.Warn("reference data not cached, skipping",
			log.String("kind", kind))
		return nil, nil
	}
	return data, err
}

func (s *Service) rebuildSiteTeams(
	ctx context.Context,
	conn repository.Querier,
	filename string,
) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read site teams: %w", err)
	}
	var teams []model.SiteTeam
	if err := json.Unmarshal(data, &teams); err != nil {
		return fmt.Errorf("decode site teams: %w", err)
	}
	for i := range teams {
		if err := refdata.InsertSiteTeam(ctx, conn, int64(i), &teams[i]); err != nil {
			return err
		}
	}
	return nil
}

// ingestDocument writes all rows derived from one result document.
func ingestDocument(
	ctx context.Context,
	conn repository.Querier,
	doc *model.ResultDocument,
) error {
	if err := result.EnsureSession(ctx, conn, &model.DbSession{
		SessionID:   *doc.SessionID,
		SeriesName:  doc.SeriesName,
		SessionName: doc.SessionName,
	}); err != nil {
		return err
	}
	if err := result.InsertSubsession(ctx, conn, &model.DbSubsession{
		SubsessionID:      *doc.SubsessionID,
		SessionID:         *doc.SessionID,
		StartTime:         *doc.StartTime,
		LicenseCategoryID: model.CategoryType(*doc.LicenseCategoryID),
		EventType:         model.EventType(*doc.EventType),
		TrackID:           *doc.Track.TrackID,
		OfficialSession:   *doc.OfficialSession,
	}); err != nil {
		return err
	}
	for i := range doc.SessionResults {
		if err := ingestSimsession(ctx, conn,
			*doc.SubsessionID, &doc.SessionResults[i]); err != nil {
			return err
		}
	}
	return nil
}

//nolint:funlen // one simsession is one unit of work
func ingestSimsession(
	ctx context.Context,
	conn repository.Querier,
	subsessionID int64,
	sim *model.SimsessionResult,
) error {
	number := *sim.SimsessionNumber
	calc := sof.NewByClass()

	for i := range sim.Results {
		p := &sim.Results[i]
		if p.Solo != nil {
			err := insertDriverResult(ctx, conn,
				subsessionID, number, noTeamID, noTeamName, p.Solo)
			if err != nil {
				return err
			}
			calc.AddSolo(*p.Solo.CarClassID, *p.Solo.OldiRating)
			continue
		}

		teamID := int64(noTeamID)
		teamName := noTeamName
		if p.Team.TeamID != nil {
			teamID = *p.Team.TeamID
			teamName = p.Team.DisplayName
		}
		calc.BeginTeam(*p.Team.CarClassID)
		for j := range p.Team.DriverResults {
			d := &p.Team.DriverResults[j]
			err := insertDriverResult(ctx, conn,
				subsessionID, number, teamID, teamName, d)
			if err != nil {
				return err
			}
			calc.AddTeamDriver(*d.OldiRating)
		}
		calc.EndTeam()
	}

	for classID, classCalc := range calc.Classes {
		if err := result.InsertCarClassResult(ctx, conn, &model.DbCarClassResult{
			CarClassID:       classID,
			SubsessionID:     subsessionID,
			SimsessionNumber: number,
			EntriesInClass:   classCalc.Entries(),
			ClassSof:         classCalc.StrengthOfField(),
		}); err != nil {
			return err
		}
	}

	return result.InsertSimsession(ctx, conn, &model.DbSimsession{
		SubsessionID:     subsessionID,
		SimsessionNumber: number,
		SimsessionType:   model.SimsessionType(*sim.SimsessionType),
		Entries:          calc.Total.Entries(),
		Sof:              calc.Total.StrengthOfField(),
	})
}

func insertDriverResult(
	ctx context.Context,
	conn repository.Querier,
	subsessionID, simsessionNumber, teamID int64,
	teamName string,
	d *model.DriverEntry,
) error {
	if err := driver.Ensure(ctx, conn, &model.DbDriver{
		CustID:      *d.CustID,
		DisplayName: d.DisplayName,
	}); err != nil {
		return err
	}
	if err := result.InsertDriverResult(ctx, conn, &model.DbDriverResult{
		CustID:                *d.CustID,
		TeamID:                teamID,
		TeamName:              teamName,
		SubsessionID:          subsessionID,
		SimsessionNumber:      simsessionNumber,
		OldiRating:            *d.OldiRating,
		NewiRating:            *d.NewiRating,
		OldCpi:                d.OldCPI,
		NewCpi:                d.NewCPI,
		Incidents:             d.Incidents,
		LapsComplete:          d.LapsComplete,
		AverageLap:            d.AverageLap,
		CarID:                 d.CarID,
		CarClassID:            *d.CarClassID,
		FinishPosition:        d.FinishPosition,
		FinishPositionInClass: d.FinishPositionInClass,
		ReasonOutID:           d.ReasonOutID,
	}); err != nil {
		return err
	}
	// the textual representation is often missing upstream
	return reasonout.Ensure(ctx, conn, d.ReasonOutID, d.ReasonOut)
}
