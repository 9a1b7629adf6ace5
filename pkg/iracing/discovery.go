package iracing

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/r0mai/iracing-stats/log"
)

// upstream caps range queries at 90 days, stay just below
const hostedSearchWindow = 89 * 24 * time.Hour

// MemberSinceYear returns the year a customer joined the service.
func (c *Client) MemberSinceYear(ctx context.Context, custID int64) (int, error) {
	params := url.Values{}
	params.Set("cust_ids", strconv.FormatInt(custID, 10))
	raw, err := c.getAndRead(ctx, "/data/member/get", params)
	if err != nil {
		return 0, err
	}
	var doc struct {
		Members []struct {
			MemberSince string `json:"member_since"`
		} `json:"members"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, fmt.Errorf("decode member document: %w", err)
	}
	if len(doc.Members) == 0 {
		return 0, fmt.Errorf("customer %d not found", custID)
	}
	since, err := time.Parse("2006-01-02", doc.Members[0].MemberSince)
	if err != nil {
		return 0, fmt.Errorf("parse member_since: %w", err)
	}
	return since.Year(), nil
}

// LookupCustomerID resolves a display name to a customer id. With several
// matches the first one wins, as the upstream orders by relevance.
func (c *Client) LookupCustomerID(
	ctx context.Context,
	driverName string,
) (int64, error) {
	params := url.Values{}
	params.Set("search_term", driverName)
	raw, err := c.getAndRead(ctx, "/data/lookup/drivers", params)
	if err != nil {
		return 0, err
	}
	var hits []struct {
		CustID int64 `json:"cust_id"`
	}
	if err := json.Unmarshal(raw, &hits); err != nil {
		return 0, fmt.Errorf("decode driver lookup: %w", err)
	}
	if len(hits) == 0 {
		return 0, fmt.Errorf("driver %q not found", driverName)
	}
	if len(hits) > 1 {
		c.logger.Warn("multiple matches for driver, using first",
			log.String("driver", driverName),
			log.Int("matches", len(hits)))
	}
	return hits[0].CustID, nil
}

// SearchSeriesParams narrows an official-series search. CustID and Week are
// optional.
type SearchSeriesParams struct {
	CustID  *int64
	Year    int
	Quarter int
	Week    *int
}

type searchHit struct {
	SubsessionID int64 `json:"subsession_id"`
}

func subsessionIDs(items []json.RawMessage) ([]int64, error) {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		var hit searchHit
		if err := json.Unmarshal(item, &hit); err != nil {
			return nil, fmt.Errorf("decode search hit: %w", err)
		}
		ids = append(ids, hit.SubsessionID)
	}
	return ids, nil
}

// SearchSeries returns the subsession ids of all official series results
// matching the query.
func (c *Client) SearchSeries(
	ctx context.Context,
	q SearchSeriesParams,
) ([]int64, error) {
	params := url.Values{}
	params.Set("season_year", strconv.Itoa(q.Year))
	params.Set("season_quarter", strconv.Itoa(q.Quarter))
	if q.CustID != nil {
		params.Set("cust_id", strconv.FormatInt(*q.CustID, 10))
	}
	if q.Week != nil {
		params.Set("race_week_num", strconv.Itoa(*q.Week))
	}
	items, err := c.getAndReadChunked(ctx, "/data/results/search_series", params)
	if err != nil {
		return nil, err
	}
	return subsessionIDs(items)
}

// SearchHosted returns the subsession ids of hosted sessions a customer took
// part in between begin and end. The window must stay below the upstream's
// 90 day cap.
func (c *Client) SearchHosted(
	ctx context.Context,
	custID int64,
	begin, end time.Time,
) ([]int64, error) {
	params := url.Values{}
	params.Set("cust_id", strconv.FormatInt(custID, 10))
	params.Set("start_range_begin", begin.UTC().Format(time.RFC3339))
	params.Set("start_range_end", end.UTC().Format(time.RFC3339))
	items, err := c.getAndReadChunked(ctx, "/data/results/search_hosted", params)
	if err != nil {
		return nil, err
	}
	return subsessionIDs(items)
}

// FindSubsessionsForDriver discovers every subsession a driver appears in:
// all official quarters since they joined plus their hosted sessions in
// consecutive windows over the same period.
func (c *Client) FindSubsessionsForDriver(
	ctx context.Context,
	custID int64,
) ([]int64, error) {
	sinceYear, err := c.MemberSinceYear(ctx, custID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	currentQuarter := int(now.Month()-1)/3 + 1

	ids := make([]int64, 0)
	for year := sinceYear; year <= now.Year(); year++ {
		for quarter := 1; quarter <= 4; quarter++ {
			if year == now.Year() && quarter > currentQuarter {
				break
			}
			c.logger.Debug("searching official results",
				log.Int64("custId", custID),
				log.Int("year", year),
				log.Int("quarter", quarter))
			found, err := c.SearchSeries(ctx, SearchSeriesParams{
				CustID: &custID, Year: year, Quarter: quarter,
			})
			if err != nil {
				return nil, err
			}
			ids = append(ids, found...)
		}
	}

	begin := time.Date(sinceYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	for ; begin.Before(now); begin = begin.Add(hostedSearchWindow) {
		end := begin.Add(hostedSearchWindow)
		if end.After(now) {
			end = now
		}
		c.logger.Debug("searching hosted results",
			log.Int64("custId", custID),
			log.Time("begin", begin),
			log.Time("end", end))
		found, err := c.SearchHosted(ctx, custID, begin, end)
		if err != nil {
			return nil, err
		}
		ids = append(ids, found...)
	}

	return lo.Uniq(ids), nil
}

// FindSubsessionsForSeason discovers all subsessions of one season (or one
// week of it).
func (c *Client) FindSubsessionsForSeason(
	ctx context.Context,
	year, quarter int,
	week *int,
) ([]int64, error) {
	ids, err := c.SearchSeries(ctx, SearchSeriesParams{
		Year: year, Quarter: quarter, Week: week,
	})
	if err != nil {
		return nil, err
	}
	return lo.Uniq(ids), nil
}

// FetchSubsession returns the raw result document of one subsession.
func (c *Client) FetchSubsession(
	ctx context.Context,
	subsessionID int64,
) ([]byte, error) {
	params := url.Values{}
	params.Set("subsession_id", strconv.FormatInt(subsessionID, 10))
	return c.getAndRead(ctx, "/data/results/get", params)
}

// Reference document fetches. Each returns the raw JSON array to be cached
// verbatim.

func (c *Client) FetchTracks(ctx context.Context) ([]byte, error) {
	return c.getAndRead(ctx, "/data/track/get", nil)
}

func (c *Client) FetchCars(ctx context.Context) ([]byte, error) {
	return c.getAndRead(ctx, "/data/car/get", nil)
}

func (c *Client) FetchCarClasses(ctx context.Context) ([]byte, error) {
	return c.getAndRead(ctx, "/data/carclass/get", nil)
}

func (c *Client) FetchSeasons(ctx context.Context) ([]byte, error) {
	return c.getAndRead(ctx, "/data/season/list", nil)
}
