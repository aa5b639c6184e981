package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/navreturns/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("NAVRETURNS_DATA_DIR", dataDir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "https://api.mfapi.in/mf/", cfg.MFAPIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 10, cfg.MaxWorkers)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, CacheModeRefresh, cfg.CacheMode)
	assert.Equal(t, 10000.0, cfg.SIPAmount)
	assert.Equal(t, 1, cfg.SIPDay)
	assert.Equal(t, "periodic", cfg.Methodology)
	assert.Equal(t, "schemeswithcodes.csv", cfg.SchemesFile)
	assert.Equal(t, "precomputed_clean.csv", cfg.OutputFile)
	assert.False(t, cfg.Publish.Enabled())
	assert.Empty(t, cfg.SplitFactors)
	assert.Equal(t, "0 0 * * * *", cfg.MaintenanceSchedule)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("NAVRETURNS_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9100")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("MAX_WORKERS", "4")
	t.Setenv("CACHE_MODE", "prefer")
	t.Setenv("SIP_AMOUNT", "5000")
	t.Setenv("SIP_DAY", "15")
	t.Setenv("METHODOLOGY", "lumpsum")
	t.Setenv("R2_BUCKET", "navs")
	t.Setenv("R2_ACCESS_KEY_ID", "key")
	t.Setenv("R2_SECRET_ACCESS_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.Equal(t, CacheModePrefer, cfg.CacheMode)
	assert.Equal(t, 5000.0, cfg.SIPAmount)
	assert.Equal(t, 15, cfg.SIPDay)
	assert.True(t, cfg.Publish.Enabled())
	assert.Equal(t, "auto", cfg.Publish.Region)
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("NAVRETURNS_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "not-a-port")
	t.Setenv("FETCH_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"sip day out of range", "SIP_DAY", "32"},
		{"unknown methodology", "METHODOLOGY", "twrr"},
		{"unknown cache mode", "CACHE_MODE", "never"},
		{"zero workers", "MAX_WORKERS", "0"},
		{"negative amount", "SIP_AMOUNT", "-1"},
		{"bad base url", "MFAPI_BASE_URL", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NAVRETURNS_DATA_DIR", t.TempDir())
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate_PublishNeedsCredentials(t *testing.T) {
	t.Setenv("NAVRETURNS_DATA_DIR", t.TempDir())
	t.Setenv("R2_BUCKET", "navs")

	_, err := Load()
	assert.Error(t, err)
}

func TestEngineConfig(t *testing.T) {
	t.Setenv("NAVRETURNS_DATA_DIR", t.TempDir())
	t.Setenv("SIP_AMOUNT", "2500")
	t.Setenv("SIP_DAY", "10")
	t.Setenv("METHODOLOGY", "lumpsum")

	cfg, err := Load()
	require.NoError(t, err)

	engine, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, 2500.0, engine.ContributionAmount)
	assert.Equal(t, 10, engine.ContributionDay)
	assert.Equal(t, domain.MethodologyLumpsum, engine.Methodology)
	assert.Len(t, engine.Windows, 8)
}

func TestResolvePath(t *testing.T) {
	cfg := &Config{DataDir: "/srv/data"}

	assert.Equal(t, filepath.Join("/srv/data", "out.csv"), cfg.ResolvePath("out.csv"))
	assert.Equal(t, "/tmp/in.csv", cfg.ResolvePath("/tmp/in.csv"))
	assert.Equal(t, "", cfg.ResolvePath(""))
}

func TestLoad_SplitFactors(t *testing.T) {
	t.Setenv("NAVRETURNS_DATA_DIR", t.TempDir())
	t.Setenv("SPLIT_FACTORS", "2, 10,abc, 100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 10, 100}, cfg.SplitFactors)

	engine, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 10, 100}, engine.SplitFactors)
}

func TestLoad_RejectsSplitFactorNotAboveOne(t *testing.T) {
	t.Setenv("NAVRETURNS_DATA_DIR", t.TempDir())
	t.Setenv("SPLIT_FACTORS", "0.5")

	_, err := Load()
	assert.Error(t, err)
}
