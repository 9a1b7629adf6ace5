package model

import "time"

// CategoryType classifies a session into one of the four racing disciplines.
type CategoryType int64

const (
	CategoryOval     CategoryType = 1
	CategoryRoad     CategoryType = 2
	CategoryDirtOval CategoryType = 3
	CategoryDirtRoad CategoryType = 4
)

func (c CategoryType) String() string {
	switch c {
	case CategoryOval:
		return "Oval"
	case CategoryRoad:
		return "Road"
	case CategoryDirtOval:
		return "Dirt Oval"
	case CategoryDirtRoad:
		return "Dirt Road"
	default:
		return "Unknown"
	}
}

// From this instant on the license_category_id reported on a subsession is
// unreliable, so the track's own category wins. Before it the subsession
// value is authoritative.
// https://forums.iracing.com/discussion/15068/general-availability-of-data-api/p26
var categoryCutover = time.Date(2020, time.November, 8, 0, 0, 0, 0, time.UTC)

// CorrectedCategory picks the effective category for a session that started
// at the given time, given the category the subsession reports and the
// category of the track it ran on.
func CorrectedCategory(
	startTime time.Time,
	licenseCategory CategoryType,
	trackCategory CategoryType,
) CategoryType {
	if startTime.Before(categoryCutover) {
		return licenseCategory
	}
	return trackCategory
}
