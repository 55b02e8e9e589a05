package config

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/xtding233/dicepool-tables/internal/montecarlo"
	"github.com/xtding233/dicepool-tables/internal/table"
	"gopkg.in/yaml.v3"
)

const DefaultOutput = "data/probability-tables.json"

// Defaults is the bottom configuration layer.
func Defaults() RawConfig {
	t := montecarlo.DefaultTrials
	return RawConfig{
		Output:        ptr(DefaultOutput),
		FormatVersion: ptr(table.FormatVersion),
		Seed:          ptr(uint64(0)),
		Workers:       ptr(0),
		LogLevel:      ptr("info"),
		Trials: &TrialsCfg{
			None:            ptr(t.None),
			ExplodeOnMax:    ptr(t.ExplodeOnMax),
			ExplodeOnTopTwo: ptr(t.ExplodeOnTopTwo),
		},
	}
}

// ParseConfig builds the configuration from defaults <- YAML file <-
// environment <- flags, then validates it.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var e EnvConfig
	if err := env.Parse(&e); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	var (
		file    = fs.String("config", e.ConfigFile, "path to YAML config file (optional)")
		output  = fs.String("output", "", "artifact path; a .pb extension writes the protobuf encoding")
		version = fs.String("format-version", "", "schema version written into the artifact")
		seed    = fs.Uint64("seed", 0, "base seed; 0 draws one from crypto/rand")
		workers = fs.Int("workers", 0, "simulation workers per configuration; 0 means GOMAXPROCS")
		level   = fs.String("log.level", "", "log level (trace debug info warn error)")
	)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	fileCfg, err := readYAML(*file)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", *file, err)
	}

	var flagCfg RawConfig
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			flagCfg.Output = output
		case "format-version":
			flagCfg.FormatVersion = version
		case "seed":
			flagCfg.Seed = seed
		case "workers":
			flagCfg.Workers = workers
		case "log.level":
			flagCfg.LogLevel = level
		}
	})

	merged := Defaults()
	merged = mergeRaw(merged, fileCfg)
	merged = mergeRaw(merged, e.raw())
	merged = mergeRaw(merged, flagCfg)
	if err := ValidateRaw(merged); err != nil {
		return Config{}, err
	}
	cfg := normalize(merged)
	cfg.ConfigFile = *file
	return cfg, nil
}

// raw converts the environment layer, treating zero values as unset.
func (e EnvConfig) raw() RawConfig {
	var r RawConfig
	if e.Output != "" {
		r.Output = ptr(e.Output)
	}
	if e.FormatVersion != "" {
		r.FormatVersion = ptr(e.FormatVersion)
	}
	if e.Seed != 0 {
		r.Seed = ptr(e.Seed)
	}
	if e.Workers != 0 {
		r.Workers = ptr(e.Workers)
	}
	if e.LogLevel != "" {
		r.LogLevel = ptr(e.LogLevel)
	}
	return r
}

// readYAML loads a YAML file into RawConfig. An empty path or a missing
// file yields an empty layer.
func readYAML(path string) (RawConfig, error) {
	var cfg RawConfig
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RawConfig{}, nil
		}
		return RawConfig{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return RawConfig{}, err
	}
	return cfg, nil
}

// mergeRaw returns a with every field b sets overriding it.
func mergeRaw(a, b RawConfig) RawConfig {
	out := a
	if b.Output != nil {
		out.Output = b.Output
	}
	if b.FormatVersion != nil {
		out.FormatVersion = b.FormatVersion
	}
	if b.Seed != nil {
		out.Seed = b.Seed
	}
	if b.Workers != nil {
		out.Workers = b.Workers
	}
	if b.LogLevel != nil {
		out.LogLevel = b.LogLevel
	}

	// trials
	switch {
	case out.Trials == nil && b.Trials != nil:
		c := *b.Trials
		out.Trials = &c
	case out.Trials != nil && b.Trials != nil:
		c := *out.Trials
		if b.Trials.None != nil {
			c.None = b.Trials.None
		}
		if b.Trials.ExplodeOnMax != nil {
			c.ExplodeOnMax = b.Trials.ExplodeOnMax
		}
		if b.Trials.ExplodeOnTopTwo != nil {
			c.ExplodeOnTopTwo = b.Trials.ExplodeOnTopTwo
		}
		out.Trials = &c
	}
	return out
}

// normalize flattens a validated, fully merged RawConfig.
func normalize(r RawConfig) Config {
	return Config{
		Output:        deref(r.Output),
		FormatVersion: deref(r.FormatVersion),
		Seed:          deref(r.Seed),
		Workers:       deref(r.Workers),
		LogLevel:      deref(r.LogLevel),
		Trials: montecarlo.Trials{
			None:            deref(r.Trials.None),
			ExplodeOnMax:    deref(r.Trials.ExplodeOnMax),
			ExplodeOnTopTwo: deref(r.Trials.ExplodeOnTopTwo),
		},
	}
}

func ptr[T any](v T) *T { return &v }

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
