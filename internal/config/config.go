// Package config handles application configuration management using Viper
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chartmark/chartmark/core"
	"github.com/spf13/viper"
)

// Constants for configuration
const (
	DefaultConfigPath  = "./chartmark.yaml"
	DefaultStoragePath = "./chartmark.db"
	DefaultInterval    = "1h"
	DefaultPort        = 8080
	DefaultCandleLimit = 400
)

// AppConfig holds the application configuration
type AppConfig struct {
	Symbols     []string
	Interval    core.Interval
	Chart       ChartConfig
	Binance     BinanceConfig
	Telegram    TelegramConfig
	Alerts      AlertConfig
	StoragePath string
}

// ChartConfig holds the chart server configuration
type ChartConfig struct {
	Port        int
	CandleLimit int
	Debug       bool
}

// BinanceConfig holds Binance exchange configuration
type BinanceConfig struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled bool
	Token   string
	Users   []int
}

// AlertConfig holds the drawing alert watcher configuration
type AlertConfig struct {
	Enabled  bool
	Cooldown time.Duration
}

// Load reads the application configuration. Values come from a YAML file
// when one exists at path, environment variables override the file.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("symbols", []string{"BTCUSDT"})
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("storage_path", DefaultStoragePath)
	v.SetDefault("chart.port", DefaultPort)
	v.SetDefault("chart.candle_limit", DefaultCandleLimit)
	v.SetDefault("chart.debug", false)
	v.SetDefault("binance.use_testnet", false)
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.cooldown", "30m")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	config := &AppConfig{
		Symbols:     normalizeSymbols(v.GetStringSlice("symbols")),
		Interval:    core.Interval(v.GetString("interval")),
		StoragePath: v.GetString("storage_path"),
		Chart: ChartConfig{
			Port:        v.GetInt("chart.port"),
			CandleLimit: v.GetInt("chart.candle_limit"),
			Debug:       v.GetBool("chart.debug"),
		},
		Binance: BinanceConfig{
			APIKey:     v.GetString("binance.api_key"),
			SecretKey:  v.GetString("binance.secret_key"),
			UseTestnet: v.GetBool("binance.use_testnet"),
		},
		Telegram: TelegramConfig{
			Enabled: v.GetBool("telegram.enabled"),
			Token:   v.GetString("telegram.token"),
			Users:   v.GetIntSlice("telegram.users"),
		},
		Alerts: AlertConfig{
			Enabled:  v.GetBool("alerts.enabled"),
			Cooldown: v.GetDuration("alerts.cooldown"),
		},
	}

	return config, config.Validate()
}

// Validate reports the first configuration error found
func (c *AppConfig) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}

	if !c.Interval.Valid() {
		return fmt.Errorf("invalid interval %q", c.Interval)
	}

	if c.Chart.Port < 1 || c.Chart.Port > 65535 {
		return fmt.Errorf("invalid chart port %d", c.Chart.Port)
	}

	if c.Chart.CandleLimit < 10 {
		return fmt.Errorf("candle limit %d is too small", c.Chart.CandleLimit)
	}

	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("telegram is enabled but no token is set")
	}

	return nil
}

func normalizeSymbols(symbols []string) []string {
	normalized := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol != "" {
			normalized = append(normalized, symbol)
		}
	}
	return normalized
}
