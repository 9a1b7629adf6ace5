package model

import "time"

// Database row types. Column order follows the schema migrations.

type DbSession struct {
	SessionID   int64
	SeriesName  string
	SessionName *string
}

type DbSubsession struct {
	SubsessionID      int64
	SessionID         int64
	StartTime         time.Time
	LicenseCategoryID CategoryType
	EventType         EventType
	TrackID           int64
	OfficialSession   bool
}

type DbSimsession struct {
	SubsessionID     int64
	SimsessionNumber int64
	SimsessionType   SimsessionType
	Entries          int64
	Sof              int64
}

type DbDriverResult struct {
	CustID                int64
	TeamID                int64
	TeamName              string
	SubsessionID          int64
	SimsessionNumber      int64
	OldiRating            int64
	NewiRating            int64
	OldCpi                float64
	NewCpi                float64
	Incidents             int64
	LapsComplete          int64
	AverageLap            int64
	CarID                 int64
	CarClassID            int64
	FinishPosition        int64
	FinishPositionInClass int64
	ReasonOutID           int64
}

type DbCarClassResult struct {
	CarClassID       int64
	SubsessionID     int64
	SimsessionNumber int64
	EntriesInClass   int64
	ClassSof         int64
}

type DbDriver struct {
	CustID      int64
	DisplayName string
}

// DriverSession is one race a driver took part in, joined across
// subsession, track and driver_result with the category already corrected.
type DriverSession struct {
	SubsessionID   int64
	StartTime      time.Time
	Category       CategoryType
	TrackID        int64
	FinishPosition int64
	NewiRating     int64
}
