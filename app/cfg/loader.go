package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./crystal.db" description:"SQLite database file path"`

	// Application configuration
	TargetsDir   string `long:"targets-dir" env:"TARGETS_DIR" default:"./targets" description:"Directory containing watch target seed files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	CronSchedule string `long:"cron-schedule" env:"CRON_SCHEDULE" default:"0 2 * * *" description:"Cron expression for the daily ingestion cycle"`

	// Crawler configuration
	UserAgent    string `long:"user-agent" env:"USER_AGENT" description:"User agent string for platform requests"`
	PageDelay    int    `long:"page-delay" env:"PAGE_DELAY" default:"1" description:"Delay between page requests in seconds"`
	MaxPages     int    `long:"max-pages" env:"MAX_PAGES" default:"10" description:"Maximum pages fetched per target"`
	FetchTimeout int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Platform request timeout in seconds"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"Asia/Shanghai" description:"Timezone for collection dates (e.g., Asia/Shanghai, UTC)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:       raw.DBPath,
		TargetsDir:   raw.TargetsDir,
		Port:         raw.Port,
		APIAccessKey: raw.APIAccessKey,
		CronSchedule: raw.CronSchedule,
		UserAgent:    raw.UserAgent,
		PageDelay:    raw.PageDelay,
		MaxPages:     raw.MaxPages,
		FetchTimeout: raw.FetchTimeout,
		Timezone:     raw.Timezone,
		Debug:        raw.Debug,
		Version:      GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
