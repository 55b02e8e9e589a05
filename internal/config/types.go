// types.go
package config

import "github.com/xtding233/dicepool-tables/internal/montecarlo"

// RawConfig is one configuration layer (defaults, YAML file, environment,
// flags). Nil fields are unset and fall through to the layer below.
type RawConfig struct {
	Output        *string    `yaml:"output,omitempty"`
	FormatVersion *string    `yaml:"format_version,omitempty"`
	Seed          *uint64    `yaml:"seed,omitempty"`
	Workers       *int       `yaml:"workers,omitempty"`
	LogLevel      *string    `yaml:"log_level,omitempty"`
	Trials        *TrialsCfg `yaml:"trials,omitempty"`
}

type TrialsCfg struct {
	None            *int `yaml:"none,omitempty"`
	ExplodeOnMax    *int `yaml:"explode_on_max,omitempty"`
	ExplodeOnTopTwo *int `yaml:"explode_on_top_two,omitempty"`
}

// EnvConfig is read with caarlos0/env. Zero values mean unset.
type EnvConfig struct {
	ConfigFile    string `env:"PROBGEN_CONFIG"`
	Output        string `env:"PROBGEN_OUTPUT"`
	FormatVersion string `env:"PROBGEN_FORMAT_VERSION"`
	Seed          uint64 `env:"PROBGEN_SEED"`
	Workers       int    `env:"PROBGEN_WORKERS"`
	LogLevel      string `env:"PROBGEN_LOG_LEVEL"`
}

// Config is the normalized configuration used by the generator.
type Config struct {
	ConfigFile    string
	Output        string
	FormatVersion string
	Seed          uint64 // 0 means draw one from crypto/rand
	Workers       int    // 0 means GOMAXPROCS
	LogLevel      string
	Trials        montecarlo.Trials
}
