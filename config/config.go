package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Twitter    TwitterConfig
	Detection  DetectionConfig
	Enrichment EnrichmentConfig
	Database   DatabaseConfig

	ShortLinkBaseURL string
	RedisURL         string
	HTTPPort         int
	WebhookEnabled   bool

	LogLevel        log.Level
	LogFormat       LogFormat
	TestModeEnabled bool
}

type TwitterConfig struct {
	BotUserName    string
	SecretPath     string
	SearchPageSize int
	CallsPerTick   int
	CallSpacing    time.Duration
	PollSchedule   string
	RequestBudget  int
	RequestWindow  time.Duration
}

type DetectionConfig struct {
	ApiURL       url.URL
	Provider     string
	SecretPath   string
	PollInterval time.Duration
	PollAttempts int
}

type EnrichmentConfig struct {
	ApiURL     string
	Model      string
	SecretPath string
}

type DatabaseDriver string

const (
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

type DatabaseConfig struct {
	Driver             DatabaseDriver
	PostgresURL        string
	PostgresSecretPath string
	SQLitePath         string
}

type LogFormat string

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

type EnvfileKey string

const (
	// Which persistence backend to use ("postgres" or "sqlite")
	EnvfileKeyDatabaseDriver = "DATABASE_DRIVER"
	// Postgres connection string to use for database connections
	EnvfileKeyPostgresURL = "POSTGRES_URL"
	// AWS Secrets Manager path where Postgres connection string can be found
	EnvfileKeyPostgresSecretsPath = "POSTGRES_SECRETS_PATH"
	// File used by the sqlite backend
	EnvfileKeySQLitePath = "SQLITE_PATH"

	// Base URL of the detection provider API
	EnvfileKeyDetectionAPI = "DETECTION_API"
	// Provider label stored on every record
	EnvfileKeyDetectionProvider = "DETECTION_PROVIDER"
	// AWS Secrets Manager path where the detection API key can be found
	EnvfileKeyDetectionSecretPath = "DETECTION_SECRETS_PATH"
	// Seconds between job status polls
	EnvfileKeyDetectionPollInterval = "DETECTION_POLL_INTERVAL"
	// Maximum number of job status polls
	EnvfileKeyDetectionPollAttempts = "DETECTION_POLL_ATTEMPTS"

	// Base URL of an OpenAI-compatible API, blank for the OpenAI default
	EnvfileKeyEnrichmentAPI = "ENRICHMENT_API"
	// Model used for image descriptions
	EnvfileKeyEnrichmentModel = "ENRICHMENT_MODEL"
	// AWS Secrets Manager path where the enrichment API key can be found
	EnvfileKeyEnrichmentSecretPath = "ENRICHMENT_SECRETS_PATH"

	// AWS Secrets Manager path where Twitter secrets can be found
	EnvfileKeyTwitterSecretPath = "TWITTER_SECRETS_PATH"
	// Twitter username of the bot, used for tracking mentions
	// NOTE: the bot posts under the account configured in twitter secrets
	EnvfileKeyTwitterUserName = "TWITTER_USERNAME"
	// Number of tweets to request per search call
	EnvfileKeyTwitterSearchPageSize = "TWITTER_SEARCH_PAGE_SIZE"
	// Number of search calls issued per scheduled tick
	EnvfileKeyTwitterCallsPerTick = "TWITTER_SEARCH_CALLS_PER_TICK"
	// Seconds between search calls in one tick
	EnvfileKeyTwitterCallSpacing = "TWITTER_SEARCH_SPACING"
	// Cron spec for the mention poll
	EnvfileKeyTwitterPollSchedule = "TWITTER_POLL_SCHEDULE"
	// Signed requests allowed per window
	EnvfileKeyTwitterRequestBudget = "TWITTER_REQUEST_BUDGET"
	// Length of the signed request window, in seconds
	EnvfileKeyTwitterRequestWindow = "TWITTER_REQUEST_WINDOW"

	// Base URL for shareable result links, the short id is appended as a path segment
	EnvfileKeyShortLinkBaseURL = "SHORTLINK_BASE_URL"
	// Optional Redis URL for the mention cursor
	EnvfileKeyRedisURL = "REDIS_URL"
	// Port for webhook, lookup, health and metrics endpoints
	EnvfileKeyHTTPPort = "HTTP_PORT"
	// Whether to accept pushed mention batches
	EnvfileKeyWebhookEnabled = "WEBHOOK_ENABLED"

	// Log level (e.g. "debug", "info", "warn", "error")
	EnvfileKeyLogLevel = "LOG_LEVEL"
	// Log output format (e.g. "text", "json")
	EnvfileKeyLogFormat = "LOG_FORMAT"
	// Enables "test mode" (server simulates posting, etc.)
	EnvfileKeyTestMode = "TEST_MODE"
)

func FromEnvfile() Config {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("dotenv")

	if err := viper.ReadInConfig(); err != nil {
		// Everything can come from the environment, so a missing file is only worth a warning
		log.Warnf("error reading config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	return cfg
}

// Load builds a Config from env vars and whatever viper has already read.
func Load() (Config, error) {
	detectionURL, err := url.Parse(getConfigString(EnvfileKeyDetectionAPI))
	if err != nil {
		return Config{}, fmt.Errorf("error parsing detection URL: %w", err)
	}
	if detectionURL.Host == "" {
		return Config{}, fmt.Errorf("must supply %s", EnvfileKeyDetectionAPI)
	}

	twitterUsername := strings.TrimPrefix(getConfigString(EnvfileKeyTwitterUserName), "@")
	if twitterUsername == "" {
		return Config{}, fmt.Errorf("must supply username for bot")
	}

	shortLinkBase := strings.TrimSuffix(getConfigString(EnvfileKeyShortLinkBaseURL), "/")
	if shortLinkBase == "" {
		return Config{}, fmt.Errorf("must supply %s", EnvfileKeyShortLinkBaseURL)
	}

	logLevel, err := log.ParseLevel(getConfigString(EnvfileKeyLogLevel))
	if err != nil {
		// Default to info level but log a warning
		log.Warnf("unable to parse log level: %v", err)
		logLevel = log.InfoLevel
	}

	logFormat, err := parseLogFormat(getConfigString(EnvfileKeyLogFormat))
	if err != nil {
		// Default to text formatter but log a warning
		log.Warnf("unable to parse log format: %v", err)
		logFormat = LogFormatText
	}

	database, err := loadDatabaseConfig()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Twitter: TwitterConfig{
			BotUserName:    twitterUsername,
			SecretPath:     getConfigString(EnvfileKeyTwitterSecretPath),
			SearchPageSize: getConfigIntOr(EnvfileKeyTwitterSearchPageSize, 10),
			CallsPerTick:   getConfigIntOr(EnvfileKeyTwitterCallsPerTick, 4),
			CallSpacing:    getConfigSecondsOr(EnvfileKeyTwitterCallSpacing, 15*time.Second),
			PollSchedule:   getConfigStringOr(EnvfileKeyTwitterPollSchedule, "@every 5m"),
			RequestBudget:  getConfigIntOr(EnvfileKeyTwitterRequestBudget, 60),
			RequestWindow:  getConfigSecondsOr(EnvfileKeyTwitterRequestWindow, 15*time.Minute),
		},
		Detection: DetectionConfig{
			ApiURL:       *detectionURL,
			Provider:     getConfigStringOr(EnvfileKeyDetectionProvider, "detector"),
			SecretPath:   getConfigString(EnvfileKeyDetectionSecretPath),
			PollInterval: getConfigSecondsOr(EnvfileKeyDetectionPollInterval, 5*time.Second),
			PollAttempts: getConfigIntOr(EnvfileKeyDetectionPollAttempts, 12),
		},
		Enrichment: EnrichmentConfig{
			ApiURL:     getConfigString(EnvfileKeyEnrichmentAPI),
			Model:      getConfigStringOr(EnvfileKeyEnrichmentModel, "gpt-4o"),
			SecretPath: getConfigString(EnvfileKeyEnrichmentSecretPath),
		},
		Database:         database,
		ShortLinkBaseURL: shortLinkBase,
		RedisURL:         getConfigString(EnvfileKeyRedisURL),
		HTTPPort:         getConfigIntOr(EnvfileKeyHTTPPort, 8080),
		WebhookEnabled:   getConfigBoolOr(EnvfileKeyWebhookEnabled, true),
		LogLevel:         logLevel,
		LogFormat:        logFormat,
		TestModeEnabled:  getConfigBoolOr(EnvfileKeyTestMode, false),
	}, nil
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	driver := DatabaseDriver(strings.ToLower(getConfigStringOr(EnvfileKeyDatabaseDriver, string(DatabaseDriverPostgres))))
	cfg := DatabaseConfig{
		Driver:             driver,
		PostgresURL:        getConfigString(EnvfileKeyPostgresURL),
		PostgresSecretPath: getConfigString(EnvfileKeyPostgresSecretsPath),
		SQLitePath:         getConfigStringOr(EnvfileKeySQLitePath, "detectbot.db"),
	}
	switch driver {
	case DatabaseDriverPostgres:
		if cfg.PostgresURL == "" && cfg.PostgresSecretPath == "" {
			return cfg, fmt.Errorf("postgres not configured")
		}
	case DatabaseDriverSQLite:
	default:
		return cfg, fmt.Errorf("unknown database driver: %s", driver)
	}
	return cfg, nil
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(raw) {
	case LogFormatJSON:
		return LogFormatJSON, nil
	case LogFormatText:
		return LogFormatText, nil
	default:
		return "", fmt.Errorf("unidentified log format: %s", raw)
	}
}

// Gets a config value as a string from env vars or a .env file
func getConfigString(key string) string {
	value := os.Getenv(key)
	if value == "" {
		value = viper.GetString(key)
	}
	return value
}

func getConfigStringOr(key string, fallback string) string {
	if value := getConfigString(key); value != "" {
		return value
	}
	return fallback
}

// Gets a config value as an int from env vars or a .env file
func getConfigInt(key string) int {
	envVarValue := os.Getenv(key)
	if envVarValue == "" {
		return viper.GetInt(key)
	}
	value, err := strconv.Atoi(envVarValue)
	if err != nil {
		return 0
	}
	return value
}

func getConfigIntOr(key string, fallback int) int {
	if value := getConfigInt(key); value > 0 {
		return value
	}
	return fallback
}

// Durations are configured in whole seconds
func getConfigSecondsOr(key string, fallback time.Duration) time.Duration {
	if value := getConfigInt(key); value > 0 {
		return time.Duration(value) * time.Second
	}
	return fallback
}

func getConfigBoolOr(key string, fallback bool) bool {
	raw := getConfigString(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warnf("unable to parse %s as a boolean: %v", key, err)
		return fallback
	}
	return value
}
