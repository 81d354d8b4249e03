package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	TargetsDir   string
	Port         string
	APIAccessKey string
	CronSchedule string

	// Crawler configuration
	UserAgent    string
	PageDelay    int
	MaxPages     int
	FetchTimeout int

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
