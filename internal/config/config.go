// Package config handles configuration loading for gexray.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Polygon PolygonConfig `mapstructure:"polygon" yaml:"polygon"`
	Spot    SpotConfig    `mapstructure:"spot"    yaml:"spot"`
	Gex     GexConfig     `mapstructure:"gex"     yaml:"gex"`
	Vol     VolConfig     `mapstructure:"vol"     yaml:"vol"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
}

// PolygonConfig holds the market-data vendor settings.
type PolygonConfig struct {
	APIKey       string `mapstructure:"api_key"       yaml:"api_key"`
	BaseURL      string `mapstructure:"base_url"      yaml:"base_url"`
	LookbackDays int    `mapstructure:"lookback_days" yaml:"lookback_days"` // daily-close history window
}

// SpotConfig holds the spot-price resolution chain: per-request override
// beats the configured value, which beats Default.
type SpotConfig struct {
	Default  float64 `mapstructure:"default"  yaml:"default"`
	Override float64 `mapstructure:"override" yaml:"override"` // 0 = unset
}

// PresetConfig is one mass-aggregation filter preset.
type PresetConfig struct {
	SpotWindow float64 `mapstructure:"spot_window" yaml:"spot_window"`
	MinOI      int64   `mapstructure:"min_oi"      yaml:"min_oi"`
	MaxDTEDays int     `mapstructure:"max_dte_days" yaml:"max_dte_days"` // 0 = no limit
	BinStep    float64 `mapstructure:"bin_step"    yaml:"bin_step"`
}

// GexConfig holds the aggregation presets and HVL smoothing windows.
type GexConfig struct {
	All PresetConfig `mapstructure:"all" yaml:"all"`
	// ZeroDTE is the display preset for the nearest-expiry aggregate.
	ZeroDTE PresetConfig `mapstructure:"zero_dte" yaml:"zero_dte"`
	// CurveSpotWindow0 widens the 0DTE window for the HVL curve so the
	// flip level is not overfit to a handful of display strikes.
	CurveSpotWindow0 float64 `mapstructure:"curve_spot_window_0" yaml:"curve_spot_window_0"`
	SmoothAll        int     `mapstructure:"smooth_all"          yaml:"smooth_all"`
	SmoothZeroDTE    int     `mapstructure:"smooth_zero_dte"     yaml:"smooth_zero_dte"`
	BarQuantile      float64 `mapstructure:"bar_quantile"        yaml:"bar_quantile"`
}

// VolConfig holds the volatility-band estimator settings.
type VolConfig struct {
	Lambda float64 `mapstructure:"lambda" yaml:"lambda"` // EWMA decay
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.gexray/config.yaml (home directory)
//  3. /etc/gexray/config.yaml (system)
//
// Environment variables override config file values.
// Format: GEXRAY_<SECTION>_<KEY>, e.g., GEXRAY_SPOT_OVERRIDE.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".gexray"))
	v.AddConfigPath("/etc/gexray")

	v.SetEnvPrefix("GEXRAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("GEXRAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// ResolveSpot applies the spot resolution chain: explicit override first,
// then the configured/env override, then the default.
func (c *Config) ResolveSpot(override float64) float64 {
	if override > 0 {
		return override
	}
	if c.Spot.Override > 0 {
		return c.Spot.Override
	}
	return c.Spot.Default
}

// setDefaults sets defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Vendor defaults.
	v.SetDefault("polygon.base_url", "https://api.polygon.io")
	v.SetDefault("polygon.lookback_days", 90)

	// Spot defaults.
	v.SetDefault("spot.default", 6449)
	v.SetDefault("spot.override", 0)

	// All-expirations aggregation preset.
	v.SetDefault("gex.all.spot_window", 0.35)
	v.SetDefault("gex.all.min_oi", 5)
	v.SetDefault("gex.all.max_dte_days", 365)
	v.SetDefault("gex.all.bin_step", 5)

	// Zero-DTE display preset.
	v.SetDefault("gex.zero_dte.spot_window", 0.05)
	v.SetDefault("gex.zero_dte.min_oi", 10)
	v.SetDefault("gex.zero_dte.max_dte_days", 0)
	v.SetDefault("gex.zero_dte.bin_step", 5)

	// Curve and display tuning.
	v.SetDefault("gex.curve_spot_window_0", 0.08)
	v.SetDefault("gex.smooth_all", 5)
	v.SetDefault("gex.smooth_zero_dte", 7)
	v.SetDefault("gex.bar_quantile", 0.9)

	// Volatility defaults (RiskMetrics decay).
	v.SetDefault("vol.lambda", 0.94)

	// API defaults.
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
}

// overrideFromEnv explicitly reads sensitive or legacy keys from the
// environment. POLY_API_KEY is the vendor's conventional variable name.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("GEXRAY_POLYGON_API_KEY"); key != "" {
		cfg.Polygon.APIKey = key
	}
	if cfg.Polygon.APIKey == "" {
		cfg.Polygon.APIKey = os.Getenv("POLY_API_KEY")
	}
	if raw := os.Getenv("GEXRAY_SPOT_OVERRIDE"); raw != "" {
		if spot, err := strconv.ParseFloat(raw, 64); err == nil && spot > 0 {
			cfg.Spot.Override = spot
		}
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
