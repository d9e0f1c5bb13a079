package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/beacon/internal/auth"
	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BEACON_DATABASE_URL", "BEACON_SQLITE_PATH", "BEACON_REGISTRY_PATH",
		"BEACON_REGISTRY_WATCH", "BEACON_DUCKDB_PATH", "BEACON_MEASUREMENT_FIXTURES",
		"BEACON_JWT_PRIVATE_KEY", "BEACON_JWT_PUBLIC_KEY", "BEACON_API_CLIENTS",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("BEACON_RATE_LIMIT_RPS", "0")
}

func TestHashKey(t *testing.T) {
	out, err := execute(t, "hash-key", "finance-bot", "--role", "viewer")
	require.NoError(t, err)

	var key, entry string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if v, ok := strings.CutPrefix(line, "api_key: "); ok {
			key = v
		}
		if v, ok := strings.CutPrefix(line, "client_entry: "); ok {
			entry = v
		}
	}
	require.NotEmpty(t, key)
	require.True(t, strings.HasPrefix(entry, "finance-bot:viewer:"), entry)

	clients, err := auth.ParseClients(entry)
	require.NoError(t, err)
	client, ok := clients.Authenticate("finance-bot", key)
	require.True(t, ok)
	assert.Equal(t, model.RoleViewer, client.Role)
}

func TestHashKey_RejectsBadInput(t *testing.T) {
	_, err := execute(t, "hash-key", "finance-bot", "--role", "owner")
	assert.Error(t, err)

	_, err = execute(t, "hash-key", "bad id with spaces")
	assert.Error(t, err)
}

func TestGenKey(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "genkey", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "BEACON_JWT_PRIVATE_KEY=")

	priv := filepath.Join(dir, "jwt_private.pem")
	pub := filepath.Join(dir, "jwt_public.pem")
	info, err := os.Stat(priv)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = auth.NewJWTManager(priv, pub, time.Hour, testutil.TestLogger())
	assert.NoError(t, err)
}

func TestResolve(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, "resolve", "CFO")
	require.NoError(t, err)

	var r struct {
		PrincipalID string `json:"principal_id"`
		Fallback    bool   `json:"fallback"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "cfo_001", r.PrincipalID)
	assert.False(t, r.Fallback)
}

func TestDetect_WithFixtures(t *testing.T) {
	isolateEnv(t)
	fixtures := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(fixtures, []byte(`measurements:
  - kpi: Operating Expense
    value: 107
    comparison_value: 100
`), 0o600))

	out, err := execute(t, "detect",
		"--principal", "CFO",
		"--process", "Finance: Expense Management",
		"--fixtures", fixtures,
	)
	require.NoError(t, err)

	var res struct {
		PrincipalID       string `json:"principal_id"`
		KPIEvaluatedCount int    `json:"kpi_evaluated_count"`
		Situations        []struct {
			KPIName          string   `json:"kpi_name"`
			Severity         string   `json:"severity"`
			DedupeKey        string   `json:"dedupe_key"`
			SuggestedActions []string `json:"suggested_actions"`
		} `json:"situations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "cfo_001", res.PrincipalID)
	assert.Equal(t, 1, res.KPIEvaluatedCount)
	require.Len(t, res.Situations, 1)
	assert.Equal(t, "Operating Expense", res.Situations[0].KPIName)
	assert.Equal(t, "HIGH", res.Situations[0].Severity)
	assert.NotEmpty(t, res.Situations[0].DedupeKey)
	assert.NotEmpty(t, res.Situations[0].SuggestedActions)
}

func TestDetect_InvalidTimeframe(t *testing.T) {
	isolateEnv(t)
	_, err := execute(t, "detect", "--principal", "CFO", "--timeframe", "someday")
	assert.Error(t, err)
}
