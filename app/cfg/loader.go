package cfg

import (
	"cmp"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DataDir     string `long:"data-dir" env:"DATA_DIR" description:"Directory holding the collection stores (defaults to the user home directory)"`
	Environment string `long:"environment" env:"ENVIRONMENT" default:"production" choice:"development" choice:"production" description:"Install environment, selects the data directory name"`

	// Application configuration
	Port            string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount     int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of concurrent fetch+persist workers in the ingestion queue"`
	RefreshInterval int    `long:"refresh-interval" env:"REFRESH_INTERVAL" default:"0" description:"Background refresh interval in seconds (0 disables background refresh)"`
	FetchTimeout    int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-feed fetch timeout in seconds"`
	SyncEndpoint    string `long:"sync-endpoint" env:"SYNC_ENDPOINT" default:"https://www.inoreader.com/reader/api/0/subscription/list" description:"Subscription-list endpoint for remote sync"`
	FaviconTemplate string `long:"favicon-template" env:"FAVICON_TEMPLATE" default:"https://www.google.com/s2/favicons?domain=%s" description:"Favicon lookup URL template"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Quillfeed/1.0" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
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
		DataDir:         raw.DataDir,
		Environment:     raw.Environment,
		Port:            raw.Port,
		WorkerCount:     raw.WorkerCount,
		RefreshInterval: raw.RefreshInterval,
		FetchTimeout:    raw.FetchTimeout,
		SyncEndpoint:    raw.SyncEndpoint,
		FaviconTemplate: raw.FaviconTemplate,
		UserAgent:       raw.UserAgent,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.DataDir = home
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

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}
