package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                 string // connection string for the database
	BaseDir            string // base directory for cached race documents
	BaseURL            string // base URL of the upstream statistics API
	Username           string // email used for upstream authentication
	Token              string // encoded password used for upstream authentication
	SiteTeamsFile      string // path to the static site-teams definition file
	WaitForServices    string // duration to wait for other services to be ready
	LogLevel           string // sets the log level (zap log level values)
	SQLLogLevel        string // sets the log level for sql subsystem
	LogFormat          string // text vs json
	LogConfig          string // path to log config file
	MigrationSourceURL string // location of migration files
)
