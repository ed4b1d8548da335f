package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"BtcTrader/pkg/util"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout"` // 0 keeps SSE streams open
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimit       struct {
			Enabled   bool    `yaml:"enabled" default:"true"`
			PerSecond float64 `yaml:"per_second" default:"20"`
			Burst     int     `yaml:"burst" default:"40"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level         string        `yaml:"level" default:"info"`
		Format        string        `yaml:"format" default:"json"`
		Output        string        `yaml:"output" default:"stdout"`
		Collect       bool          `yaml:"collect"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"30s"`
		Threshold     int           `yaml:"threshold" default:"100"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Engine struct {
		Enabled       bool          `yaml:"enabled"`
		Interval      time.Duration `yaml:"interval" default:"60s"`
		TickTimeout   time.Duration `yaml:"tick_timeout"`
		Timezone      string        `yaml:"timezone" default:"Asia/Seoul"`
		QuoteCurrency string        `yaml:"quote_currency" default:"KRW"`
		CandleUnit    int           `yaml:"candle_unit" default:"1"`
		CandleCount   int           `yaml:"candle_count" default:"120"`
		CandleSource  string        `yaml:"candle_source" default:"exchange"` // exchange | clickhouse
		PriceMaxAge   time.Duration `yaml:"price_max_age" default:"30s"`
		TickLock      bool          `yaml:"tick_lock"`
	} `yaml:"engine"`
	Paper struct {
		InitialCash float64 `yaml:"initial_cash" default:"1000000"`
	} `yaml:"paper"`
	Exchange struct {
		BaseURL           string        `yaml:"base_url" default:"https://api.upbit.com"`
		Timeout           time.Duration `yaml:"timeout" default:"10s"`
		RecommendationTTL time.Duration `yaml:"recommendation_ttl" default:"60s"`
		WS                struct {
			Enabled         bool          `yaml:"enabled" default:"true"`
			URL             string        `yaml:"url" default:"wss://api.upbit.com/websocket/v1"`
			TopN            int           `yaml:"top_n" default:"30"`
			RefreshInterval time.Duration `yaml:"refresh_interval" default:"300s"`
			ReconnectDelay  time.Duration `yaml:"reconnect_delay" default:"5s"`
			PingInterval    time.Duration `yaml:"ping_interval" default:"30s"`
		} `yaml:"ws"`
	} `yaml:"exchange"`
	RateLimit struct {
		Enabled      bool          `yaml:"enabled" default:"true"`
		MinInterval  time.Duration `yaml:"min_interval" default:"120ms"`
		MaxPerSecond int           `yaml:"max_per_second" default:"8"`
		MaxPerMinute int           `yaml:"max_per_minute" default:"240"`
	} `yaml:"rate_limit"`
	Pipeline struct {
		MaxUpdatesPerSecond float64 `yaml:"max_updates_per_second" default:"5"`
		BufferSize          int     `yaml:"buffer_size" default:"1024"`
	} `yaml:"pipeline"`
	Bots []BotConfig `yaml:"bots"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Topics       struct {
			Events  string `yaml:"events" default:"btctrader.events"`
			Tickers string `yaml:"tickers" default:"btctrader.tickers"`
			Logs    string `yaml:"logs" default:"btctrader.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"btctrader"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"btctrader"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		CandleTable      string        `yaml:"candle_table" default:"rt_candles_1m"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"btctrader"`
		L1TTL    time.Duration `yaml:"l1_ttl" default:"30s"`
	} `yaml:"redis"`
	Postgres struct {
		Enabled      bool          `yaml:"enabled"`
		DSN          string        `yaml:"dsn"`
		MaxConns     int32         `yaml:"max_conns" default:"5"`
		QueryTimeout time.Duration `yaml:"query_timeout" default:"5s"`
		Table        string        `yaml:"table" default:"bot_configs"`
	} `yaml:"postgres"`
}

// BotConfig is a statically configured bot, used when Postgres is disabled.
// Zero fields fall back to the bot defaults.
type BotConfig struct {
	ID                   string  `yaml:"id"`
	UserID               string  `yaml:"user_id"`
	SelectionMode        string  `yaml:"selection_mode"`
	StrategyMode         string  `yaml:"strategy_mode"`
	RiskPreset           string  `yaml:"risk_preset"`
	OperationMode        string  `yaml:"operation_mode"`
	MaxPositions         int     `yaml:"max_positions"`
	MaxDailyDrawdownPct  float64 `yaml:"max_daily_drawdown_pct"`
	MaxWeeklyDrawdownPct float64 `yaml:"max_weekly_drawdown_pct"`
	AutoPickTopN         int     `yaml:"auto_pick_top_n"`
	ManualMarkets        string  `yaml:"manual_markets"`
}

// Default returns a config with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads .env (if present), the YAML file, then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	c.Server.Port = util.ParseIntDefault(getenv("SERVER_PORT"), c.Server.Port)
	if v := getenv("EXCHANGE_BASE_URL"); v != "" {
		c.Exchange.BaseURL = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
		c.Postgres.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("ENGINE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ENGINE_ENABLED: %w", err)
		}
		c.Engine.Enabled = b
	}
	if v := getenv("PAPER_INITIAL_CASH"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PAPER_INITIAL_CASH: %w", err)
		}
		c.Paper.InitialCash = f
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	if c.Paper.InitialCash <= 0 {
		return fmt.Errorf("paper.initial_cash must be positive, got %v", c.Paper.InitialCash)
	}
	if c.Engine.Interval <= 0 {
		return fmt.Errorf("engine.interval must be positive")
	}
	if c.Engine.CandleCount < 20 {
		return fmt.Errorf("engine.candle_count must be at least 20, got %d", c.Engine.CandleCount)
	}
	if c.Engine.CandleSource != "exchange" && c.Engine.CandleSource != "clickhouse" {
		return fmt.Errorf("engine.candle_source must be 'exchange' or 'clickhouse', got '%s'", c.Engine.CandleSource)
	}
	if c.Engine.CandleSource == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("engine.candle_source 'clickhouse' requires clickhouse.enabled")
	}
	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		return fmt.Errorf("engine.timezone: %w", err)
	}
	if c.Exchange.BaseURL == "" {
		return fmt.Errorf("exchange.base_url is required")
	}
	if c.RateLimit.MaxPerSecond < 0 || c.RateLimit.MaxPerMinute < 0 || c.RateLimit.MinInterval < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required when postgres is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	for i, b := range c.Bots {
		if strings.TrimSpace(b.UserID) == "" {
			return fmt.Errorf("bots[%d].user_id is required", i)
		}
	}
	return nil
}

// Location returns the engine timezone; UTC if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
