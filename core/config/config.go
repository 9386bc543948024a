package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	File        string `yaml:"file" envconfig:"LOG_FILE"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
	// QueueSize bounds log lines waiting to be written; 0 -> default.
	QueueSize int `yaml:"queue_size" envconfig:"LOG_QUEUE_SIZE"`
	// DropOnFull drops log lines instead of blocking when the queue is full.
	DropOnFull bool `yaml:"drop_on_full" envconfig:"LOG_DROP_ON_FULL"`
}

// DatabaseConfig describes the datastore holding users and survey answers.
type DatabaseConfig struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	URL            string `yaml:"url" envconfig:"DATABASE_URL"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// WorkerConfig sizes the per-user event pool.
type WorkerConfig struct {
	Shards         int `yaml:"shards" envconfig:"WORKER_SHARDS"`
	QueueSize      int `yaml:"queue_size" envconfig:"WORKER_QUEUE_SIZE"`
	TimeoutSeconds int `yaml:"timeout_seconds" envconfig:"WORKER_TIMEOUT_SECONDS"`
}

// SurveyConfig toggles survey persistence and reporting.
type SurveyConfig struct {
	// Persist stores completed surveys in the database; nil means enabled.
	Persist *bool `yaml:"persist" envconfig:"SURVEY_PERSIST"`
	// ReportSpec is a cron spec for periodic session snapshots; empty disables it.
	ReportSpec string `yaml:"report_spec" envconfig:"SURVEY_REPORT_SPEC"`
}

// HTTPConfig configures the optional ops server.
type HTTPConfig struct {
	// Listen is the ops server address; empty disables the server.
	Listen string `yaml:"listen" envconfig:"HTTP_LISTEN"`
	// Token, when set, is required as a bearer token on every route except /healthz.
	Token string `yaml:"token" envconfig:"HTTP_TOKEN"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// DriverPostgres selects PostgreSQL through lib/pq.
	DriverPostgres = "postgres"
	// DriverSQLite selects the embedded modernc SQLite driver.
	DriverSQLite = "sqlite"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

const (
	defaultMaxConnections = 4
	defaultMigrationsDir  = "migrations"
	defaultWorkerShards   = 8
	defaultWorkerQueue    = 64
	defaultWorkerTimeout  = 30
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the whole bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database"`
	Worker    WorkerConfig    `yaml:"worker"`
	Survey    SurveyConfig    `yaml:"survey"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// PersistEnabled reports whether completed surveys are written to the database.
func (c *Config) PersistEnabled() bool {
	if c == nil || c.Survey.Persist == nil {
		return true
	}
	return *c.Survey.Persist
}

// Load reads configuration from an optional YAML file, a .env file and environment variables.
// Environment variables win over YAML values.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadDatabase is Load for commands that only touch the database; the bot token is optional.
func LoadDatabase(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, requireToken bool) (*Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := normalize(&cfg, requireToken); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	return normalize(cfg, true)
}

func normalize(cfg *Config, requireToken bool) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if requireToken && strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required (BOT_TOKEN)")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if err := normalizeDatabase(cfg); err != nil {
		return err
	}
	normalizeWorker(&cfg.Worker)
	cfg.Survey.ReportSpec = strings.TrimSpace(cfg.Survey.ReportSpec)
	cfg.HTTP.Listen = strings.TrimSpace(cfg.HTTP.Listen)
	return nil
}

func normalizeDatabase(cfg *Config) error {
	db := &cfg.Database
	driver := strings.ToLower(strings.TrimSpace(db.Driver))
	switch driver {
	case "", "pq", "postgresql", DriverPostgres:
		driver = DriverPostgres
	case "sqlite3", DriverSQLite:
		driver = DriverSQLite
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite", db.Driver)
	}
	db.Driver = driver
	db.URL = strings.TrimSpace(db.URL)

	if cfg.PersistEnabled() && db.URL == "" {
		return fmt.Errorf("database url is required when survey persistence is enabled (DATABASE_URL)")
	}
	if db.MaxConnections <= 0 {
		db.MaxConnections = defaultMaxConnections
	}
	if strings.TrimSpace(db.MigrationsDir) == "" {
		db.MigrationsDir = defaultMigrationsDir
	}
	return nil
}

func normalizeWorker(w *WorkerConfig) {
	if w.Shards <= 0 {
		w.Shards = defaultWorkerShards
	}
	if w.QueueSize <= 0 {
		w.QueueSize = defaultWorkerQueue
	}
	if w.TimeoutSeconds <= 0 {
		w.TimeoutSeconds = defaultWorkerTimeout
	}
}
