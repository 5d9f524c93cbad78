package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
)

func validConfig() *TapConfig {
	cfg := NewTapConfig()
	cfg.APIKey = "k"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TapConfig)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(*TapConfig) {}},
		{name: "missing api key", mutate: func(c *TapConfig) { c.APIKey = " " }, wantErr: true},
		{name: "relative api url", mutate: func(c *TapConfig) { c.APIURL = "/api/v2" }, wantErr: true},
		{name: "date start", mutate: func(c *TapConfig) { c.StartDate = "2024-01-01" }},
		{name: "datetime start", mutate: func(c *TapConfig) { c.StartDate = "2024-01-01T00:00:00Z" }},
		{name: "bad start", mutate: func(c *TapConfig) { c.StartDate = "yesterday" }, wantErr: true},
		{name: "zero timeout", mutate: func(c *TapConfig) { c.Timeouts.Request = 0 }, wantErr: true},
		{name: "negative rate", mutate: func(c *TapConfig) { c.Reliability.RateLimitPerSec = -1 }, wantErr: true},
		{name: "jsonl without path", mutate: func(c *TapConfig) { c.Output.Type = OutputJSONL }, wantErr: true},
		{name: "s3 without bucket", mutate: func(c *TapConfig) { c.Output.Type = OutputS3 }, wantErr: true},
		{name: "kafka without brokers", mutate: func(c *TapConfig) { c.Output.Type = OutputKafka }, wantErr: true},
		{name: "unknown output", mutate: func(c *TapConfig) { c.Output.Type = "parquet" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBaseURLTrimsSlash(t *testing.T) {
	cfg := NewTapConfig()
	cfg.APIURL = SandboxAPIURL + "/"
	assert.Equal(t, SandboxAPIURL, cfg.BaseURL())
}

func TestLoadSubstitutesEnv(t *testing.T) {
	t.Setenv("TEST_LEAFLINK_KEY", "secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api_key: ${TEST_LEAFLINK_KEY}
start_date: "2024-01-01"
streams: [products, customers]
timeouts:
  request: 5s
output:
  type: jsonl
  path: /tmp/out
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "2024-01-01", cfg.StartDate)
	assert.Equal(t, []string{"products", "customers"}, cfg.Streams)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Request)
	assert.Equal(t, OutputJSONL, cfg.Output.Type)
	// untouched defaults survive
	assert.Equal(t, ProductionAPIURL, cfg.APIURL)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Connection)
}

func TestLoadJSONConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"api_key": "k", "api_url": "https://www.sandbox.leaflink.com/api/v2", "start_date": "2024-01-01T00:00:00Z"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SandboxAPIURL, cfg.APIURL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := validConfig()
	cfg.Streams = []string{"brands"}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.APIKey, loaded.APIKey)
	assert.Equal(t, cfg.Streams, loaded.Streams)
	assert.Equal(t, cfg.Timeouts, loaded.Timeouts)
	assert.Equal(t, cfg.Output.Type, loaded.Output.Type)
}

func TestResolveEnvOverrides(t *testing.T) {
	t.Setenv("LEAFLINK_API_KEY", "from-env")
	t.Setenv("LEAFLINK_OUTPUT_TYPE", OutputKafka)
	t.Setenv("LEAFLINK_OUTPUT_BROKERS", "b1:9092,b2:9092")
	t.Setenv("LEAFLINK_STREAMS", "products, brands")

	cfg := NewTapConfig()
	cfg.StartDate = "2023-06-01"
	Resolve(cfg, NewViper())

	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, OutputKafka, cfg.Output.Type)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Output.Brokers)
	assert.Equal(t, []string{"products", "brands"}, cfg.Streams)
	assert.Equal(t, "2023-06-01", cfg.StartDate)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("A_VAR", "x")
	assert.Equal(t, "x-y-", substituteEnvVars("${A_VAR}-y-${UNSET_TEST_VAR}"))
	assert.Equal(t, "open ${brace", substituteEnvVars("open ${brace"))
}
