// Package config loads the application configuration from a YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration. It is
// established once at startup and treated as read-only for the life of a
// run.
type Config struct {
	Scraper ScraperConfig `mapstructure:"scraper" yaml:"scraper"`
	Lake    LakeConfig    `mapstructure:"lake"    yaml:"lake"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ScraperConfig holds the extraction tunables.
type ScraperConfig struct {
	ETFSymbols     []string `mapstructure:"etf_symbols"      yaml:"etf_symbols"`
	MaxHoldings    int      `mapstructure:"max_holdings"     yaml:"max_holdings"`
	MaxWorkers     int      `mapstructure:"max_workers"      yaml:"max_workers"`
	BaseURL        string   `mapstructure:"base_url"         yaml:"base_url"`
	RequestsPerSec int      `mapstructure:"requests_per_sec" yaml:"requests_per_sec"`
}

// LakeConfig holds the data lake location.
type LakeConfig struct {
	BasePath string `mapstructure:"base_path" yaml:"base_path"`
}

// APIConfig holds the read-side HTTP server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.etfscope/config.yaml (home directory)
//  3. /etc/etfscope/config.yaml (system)
//
// Environment variables (prefix ETFSCOPE_) override config file values.
// An absent or unreadable config file is not fatal: the fixed defaults
// apply so a pipeline run can always proceed.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".etfscope"))
	v.AddConfigPath("/etc/etfscope")

	v.SetEnvPrefix("ETFSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.WithField("cause", err.Error()).Warn("config file unreadable, using defaults")
			v = defaultsOnly()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path. Unlike
// Load, a bad file here is an error: the caller asked for it by name.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("ETFSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// defaultsOnly returns a viper carrying only the defaults and env vars.
func defaultsOnly() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ETFSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults sets the fixed default set used when no config is present.
func setDefaults(v *viper.Viper) {
	// Scraper defaults
	v.SetDefault("scraper.etf_symbols", []string{"VTI", "VOO", "QQQ", "SPY"})
	v.SetDefault("scraper.max_holdings", 100)
	v.SetDefault("scraper.max_workers", 3)
	v.SetDefault("scraper.base_url", "")
	v.SetDefault("scraper.requests_per_sec", 2)

	// Lake defaults
	v.SetDefault("lake.base_path", "data_lake")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 3000)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
