package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"fritz-bot/internal/repository"
)

// Lambda is the configuration of the webhook function. Secrets live in
// Parameter Store under ParamPrefix.
type Lambda struct {
	SessionTable       string        `envconfig:"SESSION_TABLE" required:"true"`
	ParamPrefix        string        `envconfig:"PARAM_PREFIX" required:"true"`
	VocabularyCacheTTL time.Duration `envconfig:"VOCABULARY_CACHE_TTL" default:"60s"`
	HTTPTimeout        time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadLambda reads the function configuration from the environment.
func LoadLambda() (*Lambda, error) {
	var cfg Lambda
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	if cfg.ParamPrefix == "" {
		return nil, fmt.Errorf("PARAM_PREFIX must not be blank")
	}
	if cfg.VocabularyCacheTTL <= 0 {
		return nil, fmt.Errorf("VOCABULARY_CACHE_TTL must be > 0")
	}
	return &cfg, nil
}

// TelegramConfig holds the bot token and long polling settings.
type TelegramConfig struct {
	Token                  string `yaml:"token" envconfig:"BOT_TOKEN"`
	LongPollTimeoutSeconds int    `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// VocabularyConfig points at the spreadsheet holding topics and words.
type VocabularyConfig struct {
	SpreadsheetID string        `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	BaseURL       string        `yaml:"base_url" envconfig:"SHEETS_BASE_URL"`
	CacheTTL      time.Duration `yaml:"cache_ttl" envconfig:"VOCABULARY_CACHE_TTL"`
}

// DatabaseConfig selects the session store of the local runner.
type DatabaseConfig struct {
	Driver string `yaml:"driver" envconfig:"DB_DRIVER"`
	DSN    string `yaml:"dsn" envconfig:"DB_DSN"`
}

type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL"`
}

// Local is the configuration of the long polling runner.
type Local struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoadLocal reads configuration from a YAML file and environment variables.
// Environment values win over the file.
func LoadLocal(path string) (*Local, error) {
	var cfg Local

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Local) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.LongPollTimeoutSeconds < 0 {
		return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
	}
	if cfg.Telegram.LongPollTimeoutSeconds == 0 {
		cfg.Telegram.LongPollTimeoutSeconds = 10
	}

	cfg.Vocabulary.SpreadsheetID = strings.TrimSpace(cfg.Vocabulary.SpreadsheetID)
	if cfg.Vocabulary.SpreadsheetID == "" {
		return fmt.Errorf("vocabulary.spreadsheet_id is required")
	}
	if cfg.Vocabulary.CacheTTL < 0 {
		return fmt.Errorf("vocabulary.cache_ttl must be >= 0")
	}
	if cfg.Vocabulary.CacheTTL == 0 {
		cfg.Vocabulary.CacheTTL = time.Minute
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		driver = string(repository.DriverSQLite)
	case "postgres", "postgresql", "pgx":
		driver = string(repository.DriverPostgres)
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: sqlite, postgres", cfg.Database.Driver)
	}
	cfg.Database.Driver = driver

	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	return nil
}
