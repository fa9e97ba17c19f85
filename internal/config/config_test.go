package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chartmark/chartmark/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT"}, cfg.Symbols)
	assert.Equal(t, core.Interval1h, cfg.Interval)
	assert.Equal(t, DefaultPort, cfg.Chart.Port)
	assert.Equal(t, DefaultCandleLimit, cfg.Chart.CandleLimit)
	assert.Equal(t, DefaultStoragePath, cfg.StoragePath)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Alerts.Cooldown)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chartmark.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbols: [btcusdt, ethusdt]
interval: 15m
storage_path: /tmp/marks.db
chart:
  port: 9999
  candle_limit: 100
alerts:
  enabled: true
  cooldown: 5m
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	assert.Equal(t, core.Interval15m, cfg.Interval)
	assert.Equal(t, "/tmp/marks.db", cfg.StoragePath)
	assert.Equal(t, 9999, cfg.Chart.Port)
	assert.Equal(t, 100, cfg.Chart.CandleLimit)
	assert.True(t, cfg.Alerts.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Alerts.Cooldown)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, core.Interval1h, cfg.Interval)
}

func TestValidate(t *testing.T) {
	valid := func() *AppConfig {
		return &AppConfig{
			Symbols:  []string{"BTCUSDT"},
			Interval: core.Interval1h,
			Chart:    ChartConfig{Port: 8080, CandleLimit: 400},
		}
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Symbols = nil
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Interval = "13m"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Chart.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Telegram.Enabled = true
	assert.Error(t, cfg.Validate())
}
