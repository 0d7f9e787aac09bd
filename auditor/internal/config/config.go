package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfig is wrapped by every validation failure so callers can tell a
// configuration problem apart from a runtime one.
var ErrConfig = errors.New("invalid configuration")

// Default values applied when fields are absent from the config file.
const (
	DefaultAPIKeyEnv        = "API_KEY"
	DefaultRegistryURIEnv   = "REGISTRY_URI"
	DefaultRegistryDBEnv    = "REGISTRY_DBNAME"
	DefaultStoresCollection = "stores"
	DefaultScoresCollection = "speedscores"
	DefaultConnectTimeout   = 10 * time.Second

	DefaultPageSpeedEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	DefaultStrategy          = "desktop"
	DefaultCategory          = "performance"
	DefaultPageSpeedTimeout  = 120 * time.Second

	DefaultProbeTimeout = 60 * time.Second
	DefaultUserAgent    = "storefront-speed-auditor/1.0"

	DefaultInterval  = 24 * time.Hour
	DefaultRunLogTTL = 7 * 24 * time.Hour
	DefaultLogLevel  = "info"
)

// Config is the top-level auditor configuration.
type Config struct {
	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	Registry  RegistryConfig  `yaml:"registry"`
	Probe     ProbeConfig     `yaml:"probe"`
	PageSpeed PageSpeedConfig `yaml:"pagespeed"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Status    StatusConfig    `yaml:"status"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// RegistryConfig locates the store registry.
type RegistryConfig struct {
	// URIEnv is the name of the environment variable holding the connection
	// string. The scheme selects the backend: mongodb, postgres or sqlite.
	URIEnv string `yaml:"uri_env"`

	// DBNameEnv is the name of the environment variable holding the database
	// name. Only MongoDB needs it.
	DBNameEnv string `yaml:"dbname_env"`

	// StoresCollection holds the store records (collection or table name).
	StoresCollection string `yaml:"stores_collection"`

	// ScoresCollection receives one record per successful score.
	ScoresCollection string `yaml:"scores_collection"`

	// ConnectTimeout bounds opening and pinging the registry.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// URI returns the registry connection string resolved from the environment.
func (r RegistryConfig) URI() string {
	if r.URIEnv == "" {
		return ""
	}
	return os.Getenv(r.URIEnv)
}

// DBName returns the registry database name resolved from the environment.
func (r RegistryConfig) DBName() string {
	if r.DBNameEnv == "" {
		return ""
	}
	return os.Getenv(r.DBNameEnv)
}

// ProbeConfig tunes the liveness stage.
type ProbeConfig struct {
	// Timeout bounds a single liveness request. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`

	// Concurrency caps in-flight probes. Zero means one goroutine per store.
	Concurrency int `yaml:"concurrency"`

	// UserAgent is sent with every probe.
	UserAgent string `yaml:"user_agent"`

	// InsecureSkipVerify disables TLS certificate verification of storefronts.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// PageSpeedConfig configures the speed-analysis API client.
type PageSpeedConfig struct {
	Endpoint string `yaml:"endpoint"`
	Strategy string `yaml:"strategy"`
	Category string `yaml:"category"`

	// KeyEnv is the name of the environment variable that holds the API key.
	KeyEnv string `yaml:"key_env"`

	// Timeout bounds a single API call. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`

	// Concurrency caps in-flight API calls. Zero means one goroutine per store.
	Concurrency int `yaml:"concurrency"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (p PageSpeedConfig) Key() string {
	if p.KeyEnv == "" {
		return ""
	}
	return os.Getenv(p.KeyEnv)
}

// ScheduleConfig controls the serve loop.
type ScheduleConfig struct {
	// Interval is the time between the start of two audits in serve mode.
	Interval time.Duration `yaml:"interval"`
}

// StatusConfig configures the optional status HTTP server (serve mode only).
type StatusConfig struct {
	// Addr is the listen address, e.g. ":8080". Empty disables the server.
	Addr string `yaml:"addr"`

	// RunLogTTL is how long finished run summaries stay queryable.
	RunLogTTL time.Duration `yaml:"run_log_ttl"`
}

// MetricsConfig configures the Prometheus textfile output.
type MetricsConfig struct {
	// Textfile is written after every run when non-empty.
	Textfile string `yaml:"textfile"`
}

// Load reads and parses the YAML config file at path. An empty path skips the
// file and uses defaults only. Required values are then checked against the
// environment; any failure wraps ErrConfig.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w: %v", ErrConfig, err)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Registry: RegistryConfig{
			URIEnv:           DefaultRegistryURIEnv,
			DBNameEnv:        DefaultRegistryDBEnv,
			StoresCollection: DefaultStoresCollection,
			ScoresCollection: DefaultScoresCollection,
			ConnectTimeout:   DefaultConnectTimeout,
		},
		Probe: ProbeConfig{
			Timeout:   DefaultProbeTimeout,
			UserAgent: DefaultUserAgent,
		},
		PageSpeed: PageSpeedConfig{
			Endpoint: DefaultPageSpeedEndpoint,
			Strategy: DefaultStrategy,
			Category: DefaultCategory,
			KeyEnv:   DefaultAPIKeyEnv,
			Timeout:  DefaultPageSpeedTimeout,
		},
		Schedule: ScheduleConfig{Interval: DefaultInterval},
		Status:   StatusConfig{RunLogTTL: DefaultRunLogTTL},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrConfig, cfg.LogLevel)
	}

	uri := cfg.Registry.URI()
	if uri == "" {
		return fmt.Errorf("%w: registry uri: env %s is empty", ErrConfig, cfg.Registry.URIEnv)
	}
	if isMongoURI(uri) && cfg.Registry.DBName() == "" {
		return fmt.Errorf("%w: registry dbname: env %s is empty", ErrConfig, cfg.Registry.DBNameEnv)
	}
	if cfg.Registry.StoresCollection == "" || cfg.Registry.ScoresCollection == "" {
		return fmt.Errorf("%w: registry collections must be named", ErrConfig)
	}
	if cfg.Registry.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: registry.connect_timeout must be positive", ErrConfig)
	}

	if cfg.PageSpeed.Key() == "" {
		return fmt.Errorf("%w: pagespeed key: env %s is empty", ErrConfig, cfg.PageSpeed.KeyEnv)
	}
	if cfg.PageSpeed.Endpoint == "" {
		return fmt.Errorf("%w: pagespeed.endpoint is required", ErrConfig)
	}
	switch cfg.PageSpeed.Strategy {
	case "desktop", "mobile":
	default:
		return fmt.Errorf("%w: unknown pagespeed.strategy %q", ErrConfig, cfg.PageSpeed.Strategy)
	}

	if cfg.Probe.Timeout < 0 || cfg.PageSpeed.Timeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrConfig)
	}
	if cfg.Probe.Concurrency < 0 || cfg.PageSpeed.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", ErrConfig)
	}
	if cfg.Schedule.Interval <= 0 {
		return fmt.Errorf("%w: schedule.interval must be positive", ErrConfig)
	}
	if cfg.Status.RunLogTTL <= 0 {
		return fmt.Errorf("%w: status.run_log_ttl must be positive", ErrConfig)
	}
	return nil
}

func isMongoURI(uri string) bool {
	return strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://")
}
