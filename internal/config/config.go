package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Provider  ProviderConfig          `mapstructure:"provider"`
	Breaker   BreakerConfig           `mapstructure:"breaker"`
	Analysis  AnalysisConfig          `mapstructure:"analysis"`
	Cache     CacheConfig             `mapstructure:"cache"`
	Replay    ReplayConfig            `mapstructure:"replay"`
	Synthetic SyntheticConfig         `mapstructure:"synthetic"`
	Record    RecordConfig            `mapstructure:"record"`
	Server    ServerConfig            `mapstructure:"server"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Notify    NotifyConfig            `mapstructure:"notify"`
	Symbols   map[string]SymbolConfig `mapstructure:"symbols"`
}

type ProviderConfig struct {
	Mode          string `mapstructure:"mode"`
	BaseURL       string `mapstructure:"base_url"`
	ClientID      string `mapstructure:"client_id"`
	AccessToken   string `mapstructure:"access_token"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryDelayMS  int    `mapstructure:"retry_delay_ms"`
	MinIntervalMS int    `mapstructure:"min_interval_ms"`
	// Fallback serves synthetic chains when the live provider fails.
	Fallback bool `mapstructure:"fallback"`
}

func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

func (p ProviderConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelayMS) * time.Millisecond
}

func (p ProviderConfig) MinInterval() time.Duration {
	return time.Duration(p.MinIntervalMS) * time.Millisecond
}

type BreakerConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	FailureThreshold int  `mapstructure:"failure_threshold"`
	OpenTimeoutSec   int  `mapstructure:"open_timeout_sec"`
	HalfOpenRequests int  `mapstructure:"half_open_requests"`
}

type AnalysisConfig struct {
	RiskFreeRate float64 `mapstructure:"risk_free_rate"`
	StrikesRange int     `mapstructure:"strikes_range"`
	// BudgetMS bounds one end-to-end analysis including the provider fetch.
	BudgetMS int `mapstructure:"budget_ms"`
}

func (a AnalysisConfig) Budget() time.Duration {
	return time.Duration(a.BudgetMS) * time.Millisecond
}

type CacheConfig struct {
	Backend    string `mapstructure:"backend"`
	TTLSec     int    `mapstructure:"ttl_sec"`
	RedisAddr  string `mapstructure:"redis_addr"`
	RedisDB    int    `mapstructure:"redis_db"`
	RedisKeyNS string `mapstructure:"redis_key_prefix"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

type ReplayConfig struct {
	Directory string `mapstructure:"directory"`
	// Date is a YYYY-MM-DD folder under Directory, or "latest".
	Date string `mapstructure:"date"`
	Mode string `mapstructure:"mode"`
}

type SyntheticConfig struct {
	Seed    int64 `mapstructure:"seed"`
	Strikes int   `mapstructure:"strikes"`
}

type RecordConfig struct {
	Directory   string `mapstructure:"directory"`
	Workers     int    `mapstructure:"workers"`
	Compress    bool   `mapstructure:"compress"`
	IntervalSec int    `mapstructure:"interval_sec"`
	// ExpiryIndexes are recorded for every symbol on each pass.
	ExpiryIndexes []int `mapstructure:"expiry_indexes"`
	// Holidays are exchange holidays (YYYY-MM-DD) skipped by the recording loop.
	Holidays []string `mapstructure:"holidays"`
}

func (r RecordConfig) Interval() time.Duration {
	return time.Duration(r.IntervalSec) * time.Second
}

func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownSec) * time.Second
}

func (s ServerConfig) StreamInterval() time.Duration {
	return time.Duration(s.StreamSec) * time.Second
}

type ServerConfig struct {
	Port            string `mapstructure:"port"`
	ShutdownSec     int    `mapstructure:"shutdown_sec"`
	ValidateRequest bool   `mapstructure:"validate_requests"`
	StreamEnabled   bool   `mapstructure:"stream_enabled"`
	StreamSec       int    `mapstructure:"stream_interval_sec"`
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Topic    string `mapstructure:"topic"`
	Priority string `mapstructure:"priority"`
}

// Load reads configuration from an optional YAML file, GEXDEX_* environment
// variables and a .env file. envFile may be empty to use ./.env.
func Load(configPath, envFile string) (*Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetDefault("provider.mode", ModeLive)
	v.SetDefault("provider.base_url", "https://api.dhan.co")
	v.SetDefault("provider.timeout_sec", 15)
	v.SetDefault("provider.retry_count", 2)
	v.SetDefault("provider.retry_delay_ms", 500)
	v.SetDefault("provider.min_interval_ms", 3000)
	v.SetDefault("provider.fallback", true)
	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.failure_threshold", 3)
	v.SetDefault("breaker.open_timeout_sec", 30)
	v.SetDefault("breaker.half_open_requests", 1)
	v.SetDefault("analysis.risk_free_rate", 0.07)
	v.SetDefault("analysis.strikes_range", 12)
	v.SetDefault("analysis.budget_ms", 20000)
	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.ttl_sec", 60)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_key_prefix", "gexdex:")
	v.SetDefault("replay.directory", "data")
	v.SetDefault("replay.date", "latest")
	v.SetDefault("replay.mode", ReplayExhaust)
	v.SetDefault("synthetic.seed", 42)
	v.SetDefault("synthetic.strikes", 60)
	v.SetDefault("record.directory", "data")
	v.SetDefault("record.workers", 2)
	v.SetDefault("record.compress", false)
	v.SetDefault("record.interval_sec", 60)
	v.SetDefault("record.expiry_indexes", []int{0})
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_sec", 10)
	v.SetDefault("server.validate_requests", true)
	v.SetDefault("server.stream_enabled", true)
	v.SetDefault("server.stream_interval_sec", 5)
	v.SetDefault("logging.enabled", false)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("notify.url", "https://ntfy.sh")
	v.SetDefault("notify.priority", "default")

	// Environment variable support
	v.SetEnvPrefix("GEXDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Broker credentials keep their conventional names
	_ = v.BindEnv("provider.client_id", "GEXDEX_PROVIDER_CLIENT_ID", "DHAN_CLIENT_ID")
	_ = v.BindEnv("provider.access_token", "GEXDEX_PROVIDER_ACCESS_TOKEN", "DHAN_ACCESS_TOKEN")
	_ = v.BindEnv("server.port", "GEXDEX_SERVER_PORT", "PORT")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// SymbolTable merges configured symbol overrides onto the built-in table.
func (c *Config) SymbolTable() Symbols {
	table := DefaultSymbols()
	for name, sc := range c.Symbols {
		table[strings.ToUpper(name)] = Symbol{
			Name:           strings.ToUpper(name),
			SecurityID:     sc.SecurityID,
			Segment:        orDefault(sc.Segment, "IDX_I"),
			StrikeStep:     sc.StrikeStep,
			ReferencePrice: sc.ReferencePrice,
		}
	}
	return table
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	switch c.Provider.Mode {
	case ModeLive:
		if c.Provider.ClientID == "" || c.Provider.AccessToken == "" {
			errs.Missing = append(errs.Missing, "provider credentials (set DHAN_CLIENT_ID and DHAN_ACCESS_TOKEN, or use provider.mode=synthetic)")
		}
	case ModeSynthetic, ModeReplay:
	default:
		errs.add("provider.mode", c.Provider.Mode, validModes)
	}

	if c.Provider.RetryCount < 0 {
		errs.OutOfRange = append(errs.OutOfRange, "provider.retry_count must be >= 0")
	}
	if c.Provider.TimeoutSec < 1 {
		errs.OutOfRange = append(errs.OutOfRange, "provider.timeout_sec must be >= 1")
	}
	if c.Analysis.StrikesRange < 1 {
		errs.OutOfRange = append(errs.OutOfRange, "analysis.strikes_range must be >= 1")
	}
	if c.Analysis.BudgetMS < 1 {
		errs.OutOfRange = append(errs.OutOfRange, "analysis.budget_ms must be >= 1")
	}
	if c.Record.Workers < 1 {
		errs.OutOfRange = append(errs.OutOfRange, "record.workers must be >= 1")
	}
	if c.Record.IntervalSec < 3 {
		errs.OutOfRange = append(errs.OutOfRange, "record.interval_sec must be >= 3")
	}
	for _, i := range c.Record.ExpiryIndexes {
		if i < 0 {
			errs.OutOfRange = append(errs.OutOfRange, "record.expiry_indexes must be >= 0")
			break
		}
	}
	for _, h := range c.Record.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			errs.InvalidValues = append(errs.InvalidValues, InvalidValue{Key: "record.holidays", Value: h, Valid: []string{"YYYY-MM-DD"}})
		}
	}
	if c.Server.StreamEnabled && c.Server.StreamSec < 1 {
		errs.OutOfRange = append(errs.OutOfRange, "server.stream_interval_sec must be >= 1")
	}
	if c.Breaker.Enabled && c.Breaker.FailureThreshold < 1 {
		errs.OutOfRange = append(errs.OutOfRange, "breaker.failure_threshold must be >= 1")
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		errs.add("cache.backend", c.Cache.Backend, validCacheBackends)
	}
	switch c.Replay.Mode {
	case ReplayExhaust, ReplayRotation:
	default:
		errs.add("replay.mode", c.Replay.Mode, validReplayModes)
	}

	if c.Notify.Enabled {
		if c.Notify.Topic == "" {
			errs.Missing = append(errs.Missing, "notify.topic (required when notify.enabled is true)")
		}
		switch c.Notify.Priority {
		case "min", "low", "default", "high", "urgent":
		default:
			errs.add("notify.priority", c.Notify.Priority, validPriorities)
		}
	}

	for name, sc := range c.Symbols {
		if sc.StrikeStep <= 0 || sc.ReferencePrice <= 0 {
			errs.InvalidSymbols = append(errs.InvalidSymbols, strings.ToUpper(name))
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
