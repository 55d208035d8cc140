package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. Loaded once at process
// start and passed into constructors; never read ad hoc mid-run.
type Config struct {
	Data    DataConfig    `yaml:"data" mapstructure:"data"`
	Scrape  ScrapeConfig  `yaml:"scrape" mapstructure:"scrape"`
	Timing  TimingConfig  `yaml:"timing" mapstructure:"timing"`
	Adapter AdapterConfig `yaml:"adapter" mapstructure:"adapter"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DataConfig configures the durable output layout.
type DataConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	OutputFormat string `yaml:"output_format" mapstructure:"output_format"`
}

// ScrapeConfig configures the engine's budget and retry behavior.
type ScrapeConfig struct {
	DailyRequestLimit int `yaml:"daily_request_limit" mapstructure:"daily_request_limit"`
	MaxRetries        int `yaml:"max_retries" mapstructure:"max_retries"`
	CallTimeoutSecs   int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
}

// CallTimeout returns the per-adapter-call deadline.
func (c ScrapeConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSecs) * time.Second
}

// TimingConfig configures the human-like delay model.
type TimingConfig struct {
	MinDelaySecs       float64 `yaml:"min_delay_seconds" mapstructure:"min_delay_seconds"`
	MaxDelaySecs       float64 `yaml:"max_delay_seconds" mapstructure:"max_delay_seconds"`
	ReadingPauseChance float64 `yaml:"reading_pause_chance" mapstructure:"reading_pause_chance"`
	ReadingPauseMin    float64 `yaml:"reading_pause_min" mapstructure:"reading_pause_min"`
	ReadingPauseMax    float64 `yaml:"reading_pause_max" mapstructure:"reading_pause_max"`
	BreakEveryMin      int     `yaml:"break_after_requests_min" mapstructure:"break_after_requests_min"`
	BreakEveryMax      int     `yaml:"break_after_requests_max" mapstructure:"break_after_requests_max"`
	BreakDurationMin   float64 `yaml:"break_duration_min" mapstructure:"break_duration_min"`
	BreakDurationMax   float64 `yaml:"break_duration_max" mapstructure:"break_duration_max"`
}

// AdapterConfig holds credentials and endpoints for HTTP-backed adapters.
type AdapterConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	Username       string  `yaml:"username" mapstructure:"username"`
	Password       string  `yaml:"password" mapstructure:"password"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CASELAW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.output_format", "both")
	v.SetDefault("scrape.daily_request_limit", 500)
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.call_timeout_secs", 60)
	v.SetDefault("timing.min_delay_seconds", 5)
	v.SetDefault("timing.max_delay_seconds", 20)
	v.SetDefault("timing.reading_pause_chance", 0.12)
	v.SetDefault("timing.reading_pause_min", 30)
	v.SetDefault("timing.reading_pause_max", 90)
	v.SetDefault("timing.break_after_requests_min", 22)
	v.SetDefault("timing.break_after_requests_max", 38)
	v.SetDefault("timing.break_duration_min", 90)
	v.SetDefault("timing.break_duration_max", 180)
	// Credential keys need explicit defaults so AutomaticEnv can bind them
	// during Unmarshal.
	v.SetDefault("adapter.base_url", "")
	v.SetDefault("adapter.username", "")
	v.SetDefault("adapter.password", "")
	v.SetDefault("adapter.requests_per_sec", 1)
	v.SetDefault("adapter.user_agent", "caselaw-cli/1.0")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the invariants the engine relies on.
func (c *Config) Validate() error {
	if c.Scrape.DailyRequestLimit <= 0 {
		return eris.New("config: scrape.daily_request_limit must be positive")
	}
	if c.Timing.MinDelaySecs < 0 || c.Timing.MaxDelaySecs < c.Timing.MinDelaySecs {
		return eris.New("config: timing delay bounds invalid (need 0 <= min <= max)")
	}
	if c.Scrape.MaxRetries < 1 {
		return eris.New("config: scrape.max_retries must be at least 1")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
