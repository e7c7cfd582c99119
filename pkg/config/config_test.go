package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Source.MaxDaysBack)
	assert.Equal(t, StrategyAuto, cfg.Source.Strategy)
	assert.Equal(t, 4, cfg.Parser.CategoryWindow)
	assert.Equal(t, 60, cfg.Parser.CategoryMaxLen)
	assert.Equal(t, "@every 168h", cfg.Scheduler.IngestSpec)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.IngestTimeout)
	assert.Equal(t, int64(25<<20), cfg.Source.MaxBodyBytes)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SOURCE_STRATEGY", "listing")
	t.Setenv("SOURCE_TIMEOUT", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("SCHEDULER_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:9000", cfg.Server.Addr())
	assert.Equal(t, StrategyListing, cfg.Source.Strategy)
	assert.Equal(t, 5*time.Second, cfg.Source.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("SOURCE_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Source.Timeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"port out of range", map[string]string{"SERVER_PORT": "70000"}, "SERVER_PORT"},
		{"unknown strategy", map[string]string{"SOURCE_STRATEGY": "guess"}, "SOURCE_STRATEGY"},
		{"zero days back", map[string]string{"SOURCE_MAX_DAYS_BACK": "0"}, "SOURCE_MAX_DAYS_BACK"},
		{"template without day", map[string]string{"SOURCE_URL_TEMPLATE": "https://x/{YYYY}.pdf"}, "SOURCE_URL_TEMPLATE"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"negative window", map[string]string{"CATEGORY_WINDOW": "-1"}, "CATEGORY_WINDOW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable", MaxConns: 4}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable pool_max_conns=4", c.DSN())
}
