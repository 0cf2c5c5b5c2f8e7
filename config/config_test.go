package config

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv(EnvfileKeyDetectionAPI, "https://detector.example.com/api")
	t.Setenv(EnvfileKeyTwitterUserName, "@detectbot")
	t.Setenv(EnvfileKeyShortLinkBaseURL, "https://det.example/r/")
	t.Setenv(EnvfileKeyPostgresURL, "postgres://localhost/detectbot")
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "detectbot", cfg.Twitter.BotUserName)
		assert.Equal(t, "https://det.example/r", cfg.ShortLinkBaseURL)
		assert.Equal(t, 4, cfg.Twitter.CallsPerTick)
		assert.Equal(t, 15*time.Second, cfg.Twitter.CallSpacing)
		assert.Equal(t, 60, cfg.Twitter.RequestBudget)
		assert.Equal(t, 15*time.Minute, cfg.Twitter.RequestWindow)
		assert.Equal(t, 5*time.Second, cfg.Detection.PollInterval)
		assert.Equal(t, 12, cfg.Detection.PollAttempts)
		assert.Equal(t, DatabaseDriverPostgres, cfg.Database.Driver)
		assert.True(t, cfg.WebhookEnabled)
		assert.False(t, cfg.TestModeEnabled)
	})

	t.Run("reads overrides from the environment", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv(EnvfileKeyDetectionPollAttempts, "3")
		t.Setenv(EnvfileKeyDatabaseDriver, "SQLite")
		t.Setenv(EnvfileKeyTestMode, "true")
		t.Setenv(EnvfileKeyLogLevel, "debug")
		t.Setenv(EnvfileKeyLogFormat, "JSON")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Detection.PollAttempts)
		assert.Equal(t, DatabaseDriverSQLite, cfg.Database.Driver)
		assert.True(t, cfg.TestModeEnabled)
		assert.Equal(t, log.DebugLevel, cfg.LogLevel)
		assert.Equal(t, LogFormat(LogFormatJSON), cfg.LogFormat)
	})

	t.Run("requires a bot username", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv(EnvfileKeyTwitterUserName, "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects unknown database drivers", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv(EnvfileKeyDatabaseDriver, "oracle")

		_, err := Load()
		assert.Error(t, err)
	})
}
