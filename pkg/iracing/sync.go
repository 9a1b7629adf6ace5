package iracing

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"

	"github.com/r0mai/iracing-stats/log"
	"github.com/r0mai/iracing-stats/pkg/cache"
)

// SyncService discovers race results upstream and fills the local document
// cache. It never touches the database, ingestion happens separately from
// the cache.
type SyncService struct {
	client *Client
	store  *cache.Store
	logger *log.Logger
}

func NewSyncService(client *Client, store *cache.Store) *SyncService {
	return &SyncService{
		client: client,
		store:  store,
		logger: log.GetLogger("sync"),
	}
}

// SyncDrivers resolves driver names to customer ids and syncs each one.
// Returns the newly cached subsession ids.
func (s *SyncService) SyncDrivers(
	ctx context.Context,
	driverNames []string,
) ([]int64, error) {
	custIDs := make([]int64, 0, len(driverNames))
	for _, name := range driverNames {
		custID, err := s.client.LookupCustomerID(ctx, name)
		if err != nil {
			return nil, err
		}
		s.logger.Info("resolved driver",
			log.String("driver", name),
			log.Int64("custId", custID))
		custIDs = append(custIDs, custID)
	}
	return s.SyncCustomers(ctx, custIDs)
}

// SyncCustomers syncs every subsession each customer appears in. Returns the
// newly cached subsession ids.
func (s *SyncService) SyncCustomers(
	ctx context.Context,
	custIDs []int64,
) ([]int64, error) {
	added := make([]int64, 0)
	for _, custID := range custIDs {
		found, err := s.client.FindSubsessionsForDriver(ctx, custID)
		if err != nil {
			return nil, err
		}
		cached, err := s.syncSubsessions(ctx, found)
		if err != nil {
			return nil, err
		}
		added = append(added, cached...)
	}
	return lo.Uniq(added), nil
}

// SyncSeason syncs every subsession of one season (or one week of it).
// Returns the newly cached subsession ids.
func (s *SyncService) SyncSeason(
	ctx context.Context,
	year, quarter int,
	week *int,
) ([]int64, error) {
	found, err := s.client.FindSubsessionsForSeason(ctx, year, quarter, week)
	if err != nil {
		return nil, err
	}
	return s.syncSubsessions(ctx, found)
}

// syncSubsessions fetches and caches every subsession not yet cached. A
// subsession the account may not read is logged and skipped, everything else
// is fatal. Returns the ids actually written.
func (s *SyncService) syncSubsessions(
	ctx context.Context,
	subsessionIDs []int64,
) ([]int64, error) {
	todo := lo.Filter(subsessionIDs, func(id int64, _ int) bool {
		return !s.store.Has(id)
	})
	s.logger.Info("syncing subsessions",
		log.Int("discovered", len(subsessionIDs)),
		log.Int("toFetch", len(todo)))

	added := make([]int64, 0, len(todo))
	start := time.Now()
	for i, id := range todo {
		data, err := s.client.FetchSubsession(ctx, id)
		if err != nil {
			if errors.Is(err, ErrForbidden) {
				s.logger.Warn("subsession not accessible, skipping",
					log.Int64("subsessionId", id))
				continue
			}
			return nil, err
		}
		if err := s.store.Write(id, data); err != nil {
			return nil, err
		}
		added = append(added, id)

		elapsed := time.Since(start).Seconds()
		rl := s.client.RateLimitState()
		s.logger.Info("cached subsession",
			log.Int64("subsessionId", id),
			log.Int("done", i+1),
			log.Int("total", len(todo)),
			log.Float64("perSecond", float64(i+1)/elapsed),
			log.Int64("rateLimitRemaining", rl.Remaining))
	}
	return added, nil
}

// SyncReferenceData refreshes the cached track, car, car class and season
// documents.
func (s *SyncService) SyncReferenceData(ctx context.Context) error {
	fetches := []struct {
		kind  string
		fetch func(context.Context) ([]byte, error)
	}{
		{cache.RefTracks, s.client.FetchTracks},
		{cache.RefCars, s.client.FetchCars},
		{cache.RefCarClasses, s.client.FetchCarClasses},
		{cache.RefSeasons, s.client.FetchSeasons},
	}
	for _, f := range fetches {
		data, err := f.fetch(ctx)
		if err != nil {
			return err
		}
		if err := s.store.WriteReference(f.kind, data); err != nil {
			return err
		}
		s.logger.Info("cached reference data", log.String("kind", f.kind))
	}
	return nil
}
