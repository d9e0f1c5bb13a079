package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvInt(t *testing.T) {
	var errs []error
	t.Setenv("TEST_INT", "42")
	assert.Equal(t, 42, envInt("TEST_INT", 0, &errs))
	assert.Equal(t, 99, envInt("TEST_INT_MISSING", 99, &errs))
	assert.Empty(t, errs)

	t.Setenv("TEST_INT_BAD", "abc")
	assert.Equal(t, 7, envInt("TEST_INT_BAD", 7, &errs))
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], `TEST_INT_BAD="abc" is not a valid integer`)
}

func TestEnvBoolAndDuration(t *testing.T) {
	var errs []error
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_BOOL_BAD", "maybe")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_DUR_BAD", "soon")

	assert.True(t, envBool("TEST_BOOL", false, &errs))
	assert.False(t, envBool("TEST_BOOL_BAD", false, &errs))
	assert.Equal(t, 90*time.Second, envDuration("TEST_DUR", 0, &errs))
	assert.Equal(t, time.Minute, envDuration("TEST_DUR_BAD", time.Minute, &errs))

	require.Len(t, errs, 2)
	assert.EqualError(t, errs[0], `TEST_BOOL_BAD="maybe" is not a valid boolean`)
	assert.EqualError(t, errs[1], `TEST_DUR_BAD="soon" is not a valid duration`)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "CFO", cfg.DefaultRole)
	assert.Equal(t, 24*time.Hour, cfg.SituationCooldown)
	assert.Equal(t, 4, cfg.EvaluationWorkers)
	assert.Equal(t, "memory", cfg.StorageBackend())
}

func TestLoad_CollectsAllParseErrors(t *testing.T) {
	t.Setenv("BEACON_PORT", "eighty")
	t.Setenv("BEACON_SITUATION_COOLDOWN", "a day")
	t.Setenv("BEACON_REGISTRY_WATCH", "sometimes")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BEACON_PORT")
	assert.Contains(t, err.Error(), "BEACON_SITUATION_COOLDOWN")
	assert.Contains(t, err.Error(), "BEACON_REGISTRY_WATCH")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Port: 8080, MaxRequestBodyBytes: 1, EvaluationWorkers: 1,
			MeasurementTimeout: time.Second, SituationCooldown: time.Hour, LogLevel: "info",
		}
	}
	require.NoError(t, base().Validate())

	c := base()
	c.JWTPrivateKeyPath = "/tmp/key.pem"
	assert.ErrorContains(t, c.Validate(), "must be set together")

	c = base()
	c.RegistryWatch = true
	assert.ErrorContains(t, c.Validate(), "requires BEACON_REGISTRY_PATH")

	c = base()
	c.LogLevel = "loud"
	c.EvaluationWorkers = 0
	err := c.Validate()
	assert.ErrorContains(t, err, "BEACON_LOG_LEVEL")
	assert.ErrorContains(t, err, "BEACON_EVALUATION_WORKERS")
}

func TestStorageBackend(t *testing.T) {
	assert.Equal(t, "sqlite", Config{SQLitePath: "x.db"}.StorageBackend())
	assert.Equal(t, "postgres", Config{SQLitePath: "x.db", DatabaseURL: "postgres://"}.StorageBackend())
}
