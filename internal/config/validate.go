package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/xtding233/dicepool-tables/internal/montecarlo"
)

// ValidateRaw checks semantic constraints of a merged RawConfig.
func ValidateRaw(cfg RawConfig) error {
	var errs []string

	if cfg.Output == nil || strings.TrimSpace(*cfg.Output) == "" {
		errs = append(errs, "output must not be empty")
	}
	if cfg.FormatVersion != nil && strings.TrimSpace(*cfg.FormatVersion) == "" {
		errs = append(errs, "format_version must not be empty")
	}
	if cfg.Workers != nil && (*cfg.Workers < 0 || *cfg.Workers > montecarlo.MaxWorkers) {
		errs = append(errs, fmt.Sprintf("workers must be within 0..%d (0 means GOMAXPROCS)", montecarlo.MaxWorkers))
	}
	if cfg.LogLevel != nil {
		if _, ok := levels[*cfg.LogLevel]; !ok {
			names := lo.Keys(levels)
			slices.Sort(names)
			errs = append(errs, fmt.Sprintf("log_level must be one of: %s", strings.Join(names, ", ")))
		}
	}

	// trials
	if cfg.Trials == nil {
		errs = append(errs, "trials must be set")
	} else {
		counts := []lo.Tuple2[string, *int]{
			lo.T2("trials.none", cfg.Trials.None),
			lo.T2("trials.explode_on_max", cfg.Trials.ExplodeOnMax),
			lo.T2("trials.explode_on_top_two", cfg.Trials.ExplodeOnTopTwo),
		}
		for _, c := range counts {
			if c.B == nil || *c.B <= 0 {
				errs = append(errs, c.A+" must be >= 1")
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
