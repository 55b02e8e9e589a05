// Package batch drives table generation: every roll configuration is
// simulated, validated, reduced and appended to one document. The first
// failure aborts the whole run so no partial table is ever published.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xtding233/dicepool-tables/internal/dice"
	"github.com/xtding233/dicepool-tables/internal/montecarlo"
	"github.com/xtding233/dicepool-tables/internal/stats"
	"github.com/xtding233/dicepool-tables/internal/table"
	"golang.org/x/sync/errgroup"
)

// Options controls one batch run.
type Options struct {
	Trials  montecarlo.Trials
	Workers int    // per configuration; <=0 means GOMAXPROCS
	Seed    uint64 // base seed; every configuration and worker gets its own stream
	Version string
	Now     func() time.Time // nil means time.Now
	Log     *logrus.Entry    // nil means the standard logger
}

// ConfigError identifies the configuration a run stopped on.
type ConfigError struct {
	Index  int
	Config dice.RollConfig
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration %d (%s): %v", e.Index+1, e.Config.Label(), e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Progress describes one finished configuration.
type Progress struct {
	Index   int
	Total   int
	Config  dice.RollConfig
	Elapsed time.Duration
}

func (p Progress) Percent() float64 {
	return float64(p.Index+1) / float64(p.Total) * 100
}

// Generator runs configurations with fixed options.
type Generator struct {
	opts Options
	log  *logrus.Entry
}

func NewGenerator(opts Options) *Generator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := opts.Log
	if l == nil {
		l = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Generator{opts: opts, log: l}
}

// stream derives the PCG stream for worker w of configuration idx. The
// runner keeps w <= montecarlo.MaxWorkers, so streams never collide.
func stream(idx, w int) uint64 {
	return uint64(idx)<<montecarlo.WorkerBits | uint64(w)
}

// Entry simulates and validates a single configuration.
func (g *Generator) Entry(ctx context.Context, idx int, cfg dice.RollConfig) (table.Entry, error) {
	trials := g.opts.Trials.For(cfg.Mode)
	runner := montecarlo.Runner{
		Workers: g.opts.Workers,
		Source: func(w int) dice.RandomSource {
			return dice.NewStreamRNG(g.opts.Seed, stream(idx, w))
		},
	}
	h, err := runner.Simulate(ctx, cfg, trials)
	if err != nil {
		return table.Entry{}, fmt.Errorf("simulate: %w", err)
	}
	if err := stats.ValidateHistogram(h, trials); err != nil {
		return table.Entry{}, err
	}

	// both reducers only read h
	var (
		st  stats.Statistics
		cum stats.Cumulative
		eg  errgroup.Group
	)
	eg.Go(func() (err error) {
		st, err = stats.Reduce(h, trials)
		return err
	})
	eg.Go(func() (err error) {
		cum, err = stats.BuildCumulative(h, trials)
		return err
	})
	if err := eg.Wait(); err != nil {
		return table.Entry{}, err
	}
	if err := stats.ValidateCumulative(cum); err != nil {
		return table.Entry{}, err
	}
	return table.NewEntry(cfg, st, cum), nil
}

// Run processes configs in order and assembles the document.
func (g *Generator) Run(ctx context.Context, configs []dice.RollConfig) (*table.Document, error) {
	entries := make([]table.Entry, 0, len(configs))
	for i, cfg := range configs {
		start := time.Now()
		e, err := g.Entry(ctx, i, cfg)
		if err != nil {
			return nil, &ConfigError{Index: i, Config: cfg, Err: err}
		}
		entries = append(entries, e)
		g.report(Progress{Index: i, Total: len(configs), Config: cfg, Elapsed: time.Since(start)})
	}
	return table.NewDocument(g.opts.Version, g.opts.Now(), g.opts.Trials, entries), nil
}

func (g *Generator) report(p Progress) {
	g.log.WithFields(logrus.Fields{
		"index":   fmt.Sprintf("%3d/%3d", p.Index+1, p.Total),
		"percent": fmt.Sprintf("%5.1f%%", p.Percent()),
		"elapsed": p.Elapsed.Round(time.Millisecond).String(),
	}).Info(p.Config.Label())
}
