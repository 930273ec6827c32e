package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	News       NewsConfig       `yaml:"news" mapstructure:"news"`
	Indicators IndicatorsConfig `yaml:"indicators" mapstructure:"indicators"`
	Stocks     StocksConfig     `yaml:"stocks" mapstructure:"stocks"`
	Mongo      MongoConfig      `yaml:"mongo" mapstructure:"mongo"`
	Postgres   PostgresConfig   `yaml:"postgres" mapstructure:"postgres"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ScrapeConfig controls the shared fetch/iteration behavior.
type ScrapeConfig struct {
	Pages         int     `yaml:"pages" mapstructure:"pages"`
	DelaySecs     float64 `yaml:"delay_secs" mapstructure:"delay_secs"`
	BatchPages    int     `yaml:"batch_pages" mapstructure:"batch_pages"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
	MaxConcurrent int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	FetchDetails  bool    `yaml:"fetch_details" mapstructure:"fetch_details"`
	CacheTTLHours int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// Delay returns the inter-page delay as a duration.
func (c ScrapeConfig) Delay() time.Duration {
	return time.Duration(c.DelaySecs * float64(time.Second))
}

// Timeout returns the per-request timeout as a duration.
func (c ScrapeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// CacheTTL returns the page-cache lifetime as a duration.
func (c ScrapeConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// NewsConfig configures the news listing source.
type NewsConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// IndicatorsConfig configures the economic-indicators source.
type IndicatorsConfig struct {
	BaseURL string   `yaml:"base_url" mapstructure:"base_url"`
	Country string   `yaml:"country" mapstructure:"country"`
	Tabs    []string `yaml:"tabs" mapstructure:"tabs"`
}

// StocksConfig configures the stock-fundamentals source.
type StocksConfig struct {
	BaseURL string   `yaml:"base_url" mapstructure:"base_url"`
	Symbols []string `yaml:"symbols" mapstructure:"symbols"`
}

// MongoConfig holds MongoDB sink settings.
type MongoConfig struct {
	URI        string `yaml:"uri" mapstructure:"uri"`
	Database   string `yaml:"database" mapstructure:"database"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// PostgresConfig holds Postgres sink settings.
type PostgresConfig struct {
	URL   string `yaml:"url" mapstructure:"url"`
	Table string `yaml:"table" mapstructure:"table"`
}

// StoreConfig configures the local run-history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// IndicatorTabs is the full set of tabs on the indicators page, in display order.
var IndicatorTabs = []string{
	"overview", "gdp", "labour", "prices", "money",
	"trade", "government", "business", "consumer",
	"housing", "health",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("scrape.pages", 3)
	v.SetDefault("scrape.delay_secs", 2.0)
	v.SetDefault("scrape.batch_pages", 10)
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.max_concurrent", 5)
	v.SetDefault("scrape.rate_per_sec", 1.0)
	v.SetDefault("scrape.user_agent", defaultUserAgent)
	v.SetDefault("scrape.fetch_details", true)
	v.SetDefault("scrape.cache_ttl_hours", 24)
	v.SetDefault("news.base_url", "https://www.moneycontrol.com/news/business/markets/")
	v.SetDefault("indicators.base_url", "https://tradingeconomics.com")
	v.SetDefault("indicators.country", "india")
	v.SetDefault("indicators.tabs", IndicatorTabs)
	v.SetDefault("stocks.base_url", "https://www.screener.in/company")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "marketpulse")
	v.SetDefault("mongo.collection", "news_articles")
	v.SetDefault("postgres.table", "scraped_records")
	v.SetDefault("store.path", "scrape-cli.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Default returns the configuration produced by the defaults alone, as used
// by `config init` to write a starter file.
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal defaults")
	}
	return &cfg, nil
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
