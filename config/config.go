package config

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/go-playground/validator/v10"
	"github.com/itchyny/gojq"
	yaml "gopkg.in/yaml.v3"
)

// Entity classes a jq metric set can target.
const (
	EntityDevice = "device"
	EntityEdge   = "edge"
)

var (
	// DefaultLogConfig is a default unless the user provides particular values.
	DefaultLogConfig = LogConfig{
		Path:       "mist_exporter.log",
		Level:      "info",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 5,
	}
	// DefaultConfig is used for every key the config file and flags leave unset.
	DefaultConfig = Config{
		BaseURL:         "https://api.eu.mist.com/api/v1",
		SiteNameFilter:  ".*",
		Timeout:         30 * time.Second,
		SiteConcurrency: 4,
		Log:             DefaultLogConfig,
	}
)

// LogConfig controls the rotating log file.
type LogConfig struct {
	Path       string `yaml:"path" validate:"required"`
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=1"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"min=0"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
func (l *LogConfig) UnmarshalYAML(unmarshal func(any) error) error {
	*l = DefaultLogConfig
	type plain LogConfig

	if err := unmarshal((*plain)(l)); err != nil {
		return err
	}

	return nil
}

// JQMetricConfig adds metrics computed by a jq filter over each record of one entity class.
// The filter must yield arrays of {name, value, labels} objects.
type JQMetricConfig struct {
	Entity string `yaml:"entity" validate:"oneof=device edge"`
	Filter string `yaml:"filter" validate:"required,jq"`
}

// Config represents the mist_exporter config file
type Config struct {
	BaseURL            string           `yaml:"base_url" validate:"required,url"`
	OrgID              string           `yaml:"org_id" validate:"required"`
	APIToken           string           `yaml:"api_token" validate:"required"`
	SiteNameFilter     string           `yaml:"site_name_filter" validate:"regexp2"`
	InsecureSkipVerify bool             `yaml:"insecure_skip_verify"`
	Timeout            time.Duration    `yaml:"timeout" validate:"gt=0"`
	SiteConcurrency    int              `yaml:"site_concurrency" validate:"min=1,max=32"`
	Log                LogConfig        `yaml:"log"`
	JQMetrics          []JQMetricConfig `yaml:"jq_metrics" validate:"dive"`
}

// UnmarshalYAML is a custom YAML unmarshaler filling defaults for absent keys.
// It is heavily inspired by blackbox_exporter.
func (c *Config) UnmarshalYAML(unmarshal func(any) error) error {
	*c = DefaultConfig
	type plain Config
	if err := unmarshal((*plain)(c)); err != nil {
		return err
	}
	return nil
}

// New returns a copy of DefaultConfig.
func New() *Config {
	c := DefaultConfig
	return &c
}

// Read exporter config from an input file path.
func NewConfigFromFile(configFilePath string) (*Config, error) {
	file, err := os.Open(configFilePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readConfigFrom(file)
}

func readConfigFrom(r io.Reader) (*Config, error) {
	config := &Config{}
	if err := yaml.NewDecoder(r).Decode(config); err != nil {
		if errors.Is(err, io.EOF) {
			return New(), nil
		}
		return config, err
	}

	return config, nil
}

// Validate checks the merged configuration. All violations are reported together.
func (c *Config) Validate() error {
	return newValidator().Struct(c)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// registration only fails on empty tags or a nil func
	_ = v.RegisterValidation("jq", validJQ)
	_ = v.RegisterValidation("regexp2", validRegexp2)
	return v
}

func validJQ(fl validator.FieldLevel) bool {
	_, err := gojq.Parse(fl.Field().String())
	return err == nil
}

func validRegexp2(fl validator.FieldLevel) bool {
	_, err := regexp2.Compile(fl.Field().String(), regexp2.None)
	return err == nil
}
