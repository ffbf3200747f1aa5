package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	ferrors "github.com/finvalue-ai/finvalue/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	path := writeConfig(t, `
system:
  env: test
data_source:
  provider: mock
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "finvalue", cfg.System.ServiceName)
	assert.Equal(t, "finvalue-analysis", cfg.Temporal.TaskQueue)
	assert.Equal(t, 24*time.Hour, cfg.Storage.CacheTTL)
	assert.Equal(t, 0.08, cfg.Analysis.Valuation.DiscountRate)
	assert.Equal(t, 0.03, cfg.Analysis.Valuation.PerpetualGrowthRate)
	assert.Equal(t, -0.10, cfg.Analysis.Sensitivity.FCFGrowthRate)
	assert.True(t, cfg.Analysis.Sensitivity.Enabled)
	assert.Equal(t, 0.0001, cfg.Analysis.Leverage.MaterialityFloor)
	assert.Equal(t, []string{"财务费用", "利息费用"}, cfg.Analysis.Leverage.InterestExpenseKeys)
	assert.Equal(t, int64(100_000_000), cfg.Analysis.Valuation.DefaultTotalShares)
	assert.Equal(t, 1000.0, cfg.Validation.Tolerance)
	assert.Equal(t, []string{"markdown"}, cfg.Report.Formats)
}

func TestLoadFileExplicitZeroRateKept(t *testing.T) {
	path := writeConfig(t, `
analysis:
  valuation:
    fcf_growth_rate: 0
  sensitivity:
    fcf_growth_rate: 0
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Analysis.Valuation.FCFGrowthRate)
	assert.Equal(t, 0.0, cfg.Analysis.Sensitivity.FCFGrowthRate)
}

func TestLoadFileEnvOverrides(t *testing.T) {
	t.Setenv("TUSHARE_TOKEN", "secret-token")
	t.Setenv("DATA_SOURCE_PROVIDER", "tushare")
	path := writeConfig(t, `
data_source:
  provider: mock
  tushare:
    token: ${TUSHARE_TOKEN}
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "tushare", cfg.DataSource.Provider)
	assert.Equal(t, "secret-token", cfg.DataSource.Tushare.Token)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Analysis.Valuation = ValuationConfig{DiscountRate: 0.08, PerpetualGrowthRate: 0.03, LowYield: 0.04, HighYield: 0.02}
		cfg.Analysis.Sensitivity = SensitivityConfig{Enabled: true, DiscountRate: 0.08, PerpetualGrowthRate: 0.04}
		cfg.DataSource.Provider = "mock"
		cfg.Report.Formats = []string{"markdown", "csv"}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"primary rates inverted", func(c *Config) { c.Analysis.Valuation.PerpetualGrowthRate = 0.09 }, true},
		{"sensitivity rates equal", func(c *Config) { c.Analysis.Sensitivity.PerpetualGrowthRate = 0.08 }, true},
		{"disabled sensitivity ignored", func(c *Config) {
			c.Analysis.Sensitivity.Enabled = false
			c.Analysis.Sensitivity.PerpetualGrowthRate = 0.08
		}, false},
		{"zero yield", func(c *Config) { c.Analysis.Valuation.HighYield = 0 }, true},
		{"unknown provider", func(c *Config) { c.DataSource.Provider = "akshare" }, true},
		{"tushare without token", func(c *Config) { c.DataSource.Provider = "tushare" }, true},
		{"unknown report format", func(c *Config) { c.Report.Formats = []string{"pdf"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ferrors.ErrConfigInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
