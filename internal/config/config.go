package config

import (
	"errors"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for the journal, analytics and gap scan
// binaries.
type Config struct {
	Logger    Logger    `mapstructure:"logger"`
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
	Import    Import    `mapstructure:"import"`
	Prices    Prices    `mapstructure:"prices"`
	Gaps      Gaps      `mapstructure:"gaps"`
	Cache     Cache     `mapstructure:"cache"`
	Telemetry Telemetry `mapstructure:"telemetry"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Server holds the configuration for the HTTP services.
type Server struct {
	JournalPort     int           `mapstructure:"journal_port"`
	AnalyticsPort   int           `mapstructure:"analytics_port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database holds the configuration for the trade database.
type Database struct {
	Driver   string `mapstructure:"driver"` // sqlite, mysql or postgres
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"`
}

// Import holds limits for file uploads.
type Import struct {
	MaxErrors int   `mapstructure:"max_errors"`
	MaxBytes  int64 `mapstructure:"max_bytes"`
}

// Prices configures the price stores, tried in the order of Sources.
type Prices struct {
	Sources  []string `mapstructure:"sources"`
	Location string   `mapstructure:"location"`
	Parquet  Parquet  `mapstructure:"parquet"`
	Influx   Influx   `mapstructure:"influx"`
	Yahoo    Yahoo    `mapstructure:"yahoo"`
}

// Parquet locates minute-bar partitions in a GCS bucket or a local directory.
type Parquet struct {
	Bucket          string   `mapstructure:"bucket"`
	CredentialsFile string   `mapstructure:"credentials_file"`
	Dir             string   `mapstructure:"dir"`
	Prefix          string   `mapstructure:"prefix"`
	Ranges          []string `mapstructure:"ranges"`
	Concurrency     int      `mapstructure:"concurrency"`
}

// Influx holds the InfluxDB connection used as a price source.
type Influx struct {
	URL         string `mapstructure:"url"`
	Token       string `mapstructure:"token"`
	Org         string `mapstructure:"org"`
	Bucket      string `mapstructure:"bucket"`
	Measurement string `mapstructure:"measurement"`
}

// Yahoo holds the chart API client settings.
type Yahoo struct {
	BaseURL        string  `mapstructure:"base_url"`
	Range          string  `mapstructure:"range"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Gaps holds gap detection settings.
type Gaps struct {
	Threshold      float64  `mapstructure:"threshold"`
	HistoryLimit   int      `mapstructure:"history_limit"`
	WarmupSchedule string   `mapstructure:"warmup_schedule"`
	WarmupTickers  []string `mapstructure:"warmup_tickers"`
	ScanWorkers    int      `mapstructure:"scan_workers"`
}

// Cache holds the derived-result cache settings.
type Cache struct {
	Backend string        `mapstructure:"backend"` // memory or badger
	Path    string        `mapstructure:"path"`
	TTL     time.Duration `mapstructure:"ttl"`
	// SweepInterval is how often the memory backend drops expired entries.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Telemetry toggles tracing.
type Telemetry struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("server.journal_port", 8000)
	v.SetDefault("server.analytics_port", 8001)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "journal.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("import.max_errors", 10)
	v.SetDefault("import.max_bytes", 10<<20)

	v.SetDefault("prices.sources", []string{"parquet", "influx", "yahoo"})
	v.SetDefault("prices.location", "America/New_York")
	v.SetDefault("prices.parquet.bucket", "")
	v.SetDefault("prices.parquet.credentials_file", "")
	v.SetDefault("prices.parquet.dir", "")
	v.SetDefault("prices.parquet.prefix", "ohlcv_intraday_1m")
	v.SetDefault("prices.parquet.ranges", []string{"2019_2025", "2004_2018"})
	v.SetDefault("prices.parquet.concurrency", 8)
	v.SetDefault("prices.influx.url", "")
	v.SetDefault("prices.influx.token", "")
	v.SetDefault("prices.influx.org", "")
	v.SetDefault("prices.influx.bucket", "financial-data")
	v.SetDefault("prices.influx.measurement", "stock_prices")
	v.SetDefault("prices.yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("prices.yahoo.range", "10y")
	v.SetDefault("prices.yahoo.rate_limit", 2)       // requests per second
	v.SetDefault("prices.yahoo.rate_limit_burst", 1) // burst size

	v.SetDefault("gaps.threshold", 10.0)
	v.SetDefault("gaps.history_limit", 20)
	v.SetDefault("gaps.warmup_schedule", "0 30 6 * * 1-5")
	v.SetDefault("gaps.warmup_tickers", []string{})
	v.SetDefault("gaps.scan_workers", 4)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.sweep_interval", 5*time.Minute)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "trade-journal")
	return v
}

// LoadConfig reads configuration from file or environment variables. A
// missing config file is not an error; defaults and the environment apply.
func LoadConfig(path string) (config Config, err error) {
	v := newViper(path)
	if err = read(v); err != nil {
		return
	}
	err = v.Unmarshal(&config)
	return
}

func read(v *viper.Viper) error {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

// Watch re-reads the config file whenever it changes and hands the new
// configuration to onChange. Unparseable updates are passed to onError.
func Watch(path string, onChange func(Config), onError func(error)) error {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var c Config
		if err := v.Unmarshal(&c); err != nil {
			onError(err)
			return
		}
		onChange(c)
	})
	v.WatchConfig()
	return nil
}
