package model

const milesToKm = 1.60934

// TrackInfo is one track configuration from /data/track/get. Upstream
// reports lengths in miles; the accessor methods convert to metric, which is
// what gets persisted.
type TrackInfo struct {
	TrackID           int64        `json:"track_id"`
	PackageID         int64        `json:"package_id"`
	TrackName         string       `json:"track_name"`
	ConfigName        string       `json:"config_name"`
	TrackConfigLength float64      `json:"track_config_length"`
	CornersPerLap     int64        `json:"corners_per_lap"`
	CategoryID        CategoryType `json:"category_id"`
	GridStalls        int64        `json:"grid_stalls"`
	PitRoadSpeedLimit float64      `json:"pit_road_speed_limit"`
	NumberPitstalls   int64        `json:"number_pitstalls"`
}

func (t *TrackInfo) LengthKm() float64 {
	return t.TrackConfigLength * milesToKm
}

func (t *TrackInfo) PitRoadSpeedLimitKmh() int64 {
	return int64(t.PitRoadSpeedLimit * milesToKm)
}

// CarInfo is one car from /data/car/get.
type CarInfo struct {
	CarID              int64  `json:"car_id"`
	CarName            string `json:"car_name"`
	CarNameAbbreviated string `json:"car_name_abbreviated"`
}

// CarClassInfo is one car class from /data/carclass/get.
type CarClassInfo struct {
	CarClassID  int64            `json:"car_class_id"`
	Name        string           `json:"name"`
	ShortName   string           `json:"short_name"`
	CarsInClass []CarClassMember `json:"cars_in_class"`
}

type CarClassMember struct {
	CarID int64 `json:"car_id"`
}

// SeasonInfo is one season from /data/season/list.
type SeasonInfo struct {
	SeasonID      int64  `json:"season_id"`
	SeriesID      int64  `json:"series_id"`
	SeasonName    string `json:"season_name"`
	SeriesName    string `json:"series_name"`
	Official      bool   `json:"official"`
	SeasonYear    int64  `json:"season_year"`
	SeasonQuarter int64  `json:"season_quarter"`
	LicenseGroup  int64  `json:"license_group"`
	FixedSetup    bool   `json:"fixed_setup"`
	DriverChanges bool   `json:"driver_changes"`
}

// SiteTeam is one locally curated team from the site-teams file. These are
// not upstream entities; their ids are assigned by file position.
type SiteTeam struct {
	Name           string           `json:"name"`
	DiscordHookURL *string          `json:"discord_hook_url"`
	Members        []SiteTeamMember `json:"members"`
}

type SiteTeamMember struct {
	CustID int64 `json:"cust_id"`
}
