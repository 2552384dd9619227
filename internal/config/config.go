// Package config loads runtime settings from an optional YAML file and
// KEYCOV_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultDBPath       = "coverage.db"
	DefaultProfilesPath = "profiles.db"
	DefaultPort         = 8080
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"
	DefaultFleetWorkers = 4

	envPrefix = "KEYCOV"
)

// Config is the resolved runtime configuration
type Config struct {
	DB       DBConfig       `mapstructure:"db"`
	Profiles ProfilesConfig `mapstructure:"profiles"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Fleet    FleetConfig    `mapstructure:"fleet"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type ProfilesConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type FleetConfig struct {
	Workers int `mapstructure:"workers"`
}

// New returns a viper instance with defaults and env binding applied
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.path", DefaultDBPath)
	v.SetDefault("profiles.path", DefaultProfilesPath)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("fleet.workers", DefaultFleetWorkers)
}

// Load reads path (if non-empty) into v and returns the validated config
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return Config{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}

// Validate returns every problem found, empty when the config is usable
func (c Config) Validate() []string {
	var errs []string
	if strings.TrimSpace(c.DB.Path) == "" {
		errs = append(errs, "db.path is required")
	}
	if strings.TrimSpace(c.Profiles.Path) == "" {
		errs = append(errs, "profiles.path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Fleet.Workers < 1 {
		errs = append(errs, "fleet.workers must be at least 1")
	}
	return errs
}
