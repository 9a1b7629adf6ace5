package version

import "fmt"

// overridden at build time via -ldflags
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

var FullVersion = fmt.Sprintf("%s (%s) built %s", Version, GitCommit, BuildDate)
