package model

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// MalformedDocumentError reports a required field missing from an upstream
// race result document. Path points at the offending field, e.g.
// "session_results[1].results[0].oldi_rating".
type MalformedDocumentError struct {
	Path string
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed document: missing %s", e.Path)
}

func missing(format string, args ...any) error {
	return &MalformedDocumentError{Path: fmt.Sprintf(format, args...)}
}

// ResultDocument is the full race result document for one subsession as
// returned by /data/results/get. Fields the ingestor cannot proceed without
// are pointers so their absence is detectable after decoding.
type ResultDocument struct {
	SubsessionID      *int64             `json:"subsession_id"`
	SessionID         *int64             `json:"session_id"`
	StartTime         *time.Time         `json:"start_time"`
	LicenseCategoryID *int64             `json:"license_category_id"`
	EventType         *int64             `json:"event_type"`
	OfficialSession   *bool              `json:"official_session"`
	SeriesName        string             `json:"series_name"`
	SessionName       *string            `json:"session_name"`
	Track             *TrackRef          `json:"track"`
	SessionResults    []SimsessionResult `json:"session_results"`
}

type TrackRef struct {
	TrackID *int64 `json:"track_id"`
}

// SimsessionResult is one phase (practice, qualifying, race) of a subsession.
type SimsessionResult struct {
	SimsessionNumber *int64        `json:"simsession_number"`
	SimsessionType   *int64        `json:"simsession_type"`
	Results          []Participant `json:"results"`
}

// Participant is the tagged union of the two shapes appearing in
// session_results[*].results[*]: a solo driver entry carries cust_id
// directly, a team entry nests its drivers under driver_results. The
// discriminator is decided once at decode time.
type Participant struct {
	Solo *DriverEntry
	Team *TeamEntry
}

func (p *Participant) UnmarshalJSON(data []byte) error {
	var probe struct {
		CustID *int64 `json:"cust_id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.CustID != nil {
		var d DriverEntry
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		p.Solo = &d
		return nil
	}
	var t TeamEntry
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	p.Team = &t
	return nil
}

// DriverEntry holds the per-driver facts of one simsession, either as a solo
// participant or nested inside a team entry.
type DriverEntry struct {
	CustID                *int64  `json:"cust_id"`
	DisplayName           string  `json:"display_name"`
	OldiRating            *int64  `json:"oldi_rating"`
	NewiRating            *int64  `json:"newi_rating"`
	OldCPI                float64 `json:"old_cpi"`
	NewCPI                float64 `json:"new_cpi"`
	Incidents             int64   `json:"incidents"`
	LapsComplete          int64   `json:"laps_complete"`
	AverageLap            int64   `json:"average_lap"`
	CarID                 int64   `json:"car_id"`
	CarClassID            *int64  `json:"car_class_id"`
	FinishPosition        int64   `json:"finish_position"`
	FinishPositionInClass int64   `json:"finish_position_in_class"`
	ReasonOutID           int64   `json:"reason_out_id"`
	ReasonOut             string  `json:"reason_out"`
}

// TeamEntry groups the drivers who shared one car. TeamID and DisplayName may
// both be absent in upstream data (seen on subsession 22275743); the ingestor
// substitutes defaults rather than rejecting the document.
type TeamEntry struct {
	TeamID        *int64        `json:"team_id"`
	DisplayName   string        `json:"display_name"`
	CarClassID    *int64        `json:"car_class_id"`
	DriverResults []DriverEntry `json:"driver_results"`
}

// ParseResultDocument decodes and validates one raw cached document.
func ParseResultDocument(data []byte) (*ResultDocument, error) {
	var doc ResultDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode result document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

//nolint:gocognit,cyclop // straight-line field checks
func (d *ResultDocument) Validate() error {
	switch {
	case d.SubsessionID == nil:
		return missing("subsession_id")
	case d.SessionID == nil:
		return missing("session_id")
	case d.StartTime == nil:
		return missing("start_time")
	case d.LicenseCategoryID == nil:
		return missing("license_category_id")
	case d.EventType == nil:
		return missing("event_type")
	case d.OfficialSession == nil:
		return missing("official_session")
	case d.Track == nil:
		return missing("track")
	case d.Track.TrackID == nil:
		return missing("track.track_id")
	case d.SessionResults == nil:
		return missing("session_results")
	}
	for i := range d.SessionResults {
		if err := d.SessionResults[i].validate(i); err != nil {
			return err
		}
	}
	return nil
}

func (s *SimsessionResult) validate(idx int) error {
	switch {
	case s.SimsessionNumber == nil:
		return missing("session_results[%d].simsession_number", idx)
	case s.SimsessionType == nil:
		return missing("session_results[%d].simsession_type", idx)
	case s.Results == nil:
		return missing("session_results[%d].results", idx)
	}
	for i := range s.Results {
		p := &s.Results[i]
		path := fmt.Sprintf("session_results[%d].results[%d]", idx, i)
		if p.Solo != nil {
			if err := p.Solo.validate(path); err != nil {
				return err
			}
			continue
		}
		if p.Team.CarClassID == nil {
			return missing("%s.car_class_id", path)
		}
		if p.Team.DriverResults == nil {
			return missing("%s.driver_results", path)
		}
		for j := range p.Team.DriverResults {
			d := &p.Team.DriverResults[j]
			if err := d.validate(fmt.Sprintf("%s.driver_results[%d]", path, j)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *DriverEntry) validate(path string) error {
	switch {
	case d.CustID == nil:
		return missing("%s.cust_id", path)
	case d.OldiRating == nil:
		return missing("%s.oldi_rating", path)
	case d.NewiRating == nil:
		return missing("%s.newi_rating", path)
	case d.CarClassID == nil:
		return missing("%s.car_class_id", path)
	}
	return nil
}
