package main

import (
	"time"

	"github.com/mlueckert/mist-exporter/config"
	"github.com/prometheus/common/version"
	"gopkg.in/alecthomas/kingpin.v2"
)

// flagValues holds the command line. Zero values mean "not given" so the config file
// and defaults show through.
type flagValues struct {
	configFile      string
	apiToken        string
	orgID           string
	siteNameFilter  string
	baseURL         string
	logFullPath     string
	debug           bool
	ignoreSSL       bool
	timeout         time.Duration
	siteConcurrency int
}

// newApp declares the flags. Flag names are underscored to stay compatible with
// existing scrape job invocations.
func newApp() (*kingpin.Application, *flagValues) {
	f := &flagValues{}
	app := kingpin.New("mist_exporter", "Mist API Prometheus exporter. Prints one snapshot of organization metrics and exits.")
	app.Version(version.Print("mist_exporter"))
	app.HelpFlag.Short('h')

	app.Flag("config.file", "Path to an optional YAML configuration file.").StringVar(&f.configFile)
	app.Flag("api_token", "API Token").Envar("MIST_API_TOKEN").StringVar(&f.apiToken)
	app.Flag("org_id", "Organisation ID").StringVar(&f.orgID)
	app.Flag("site_name_filter", "Filter Sites by Name (Regex, matched at the start of the name). Default .*").StringVar(&f.siteNameFilter)
	app.Flag("baseurl", "API URL if not EU. Default "+config.DefaultConfig.BaseURL).StringVar(&f.baseURL)
	app.Flag("log_fullpath", "Location of logfile. Rotated by size, 5 backups kept.").StringVar(&f.logFullPath)
	app.Flag("debug", "Set loglevel to debug. Prints out a lot of json.").BoolVar(&f.debug)
	app.Flag("ignore_ssl", "Disable TLS certificate verification.").BoolVar(&f.ignoreSSL)
	app.Flag("timeout", "Timeout of each API request. Default 30s").DurationVar(&f.timeout)
	app.Flag("site_concurrency", "Sites fetched in parallel. Default 4").IntVar(&f.siteConcurrency)
	return app, f
}

// loadConfig parses args, reads the config file if one is given, lays the flags over it
// and validates the result.
func loadConfig(args []string) (*config.Config, error) {
	app, f := newApp()
	if _, err := app.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.New()
	if f.configFile != "" {
		fileCfg, err := config.NewConfigFromFile(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	f.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// startupLogConfig recovers as much of the log settings as args allow, so a config
// that fails to load or validate is still reported in the log file.
func startupLogConfig(args []string) config.LogConfig {
	app, f := newApp()
	cfg := config.New()
	if _, err := app.Parse(args); err == nil && f.configFile != "" {
		if fileCfg, err := config.NewConfigFromFile(f.configFile); err == nil {
			cfg = fileCfg
		}
	}
	f.apply(cfg)
	return cfg.Log
}

func (f *flagValues) apply(c *config.Config) {
	if f.apiToken != "" {
		c.APIToken = f.apiToken
	}
	if f.orgID != "" {
		c.OrgID = f.orgID
	}
	if f.siteNameFilter != "" {
		c.SiteNameFilter = f.siteNameFilter
	}
	if f.baseURL != "" {
		c.BaseURL = f.baseURL
	}
	if f.logFullPath != "" {
		c.Log.Path = f.logFullPath
	}
	if f.debug {
		c.Log.Level = "debug"
	}
	if f.ignoreSSL {
		c.InsecureSkipVerify = true
	}
	if f.timeout > 0 {
		c.Timeout = f.timeout
	}
	if f.siteConcurrency > 0 {
		c.SiteConcurrency = f.siteConcurrency
	}
}
