package montecarlo

import (
	"context"
	"errors"
	"runtime"

	"github.com/xtding233/dicepool-tables/internal/dice"
	"golang.org/x/sync/errgroup"
)

// Trials holds the per-mode trial counts. Exploding modes have long thin
// tails and need more samples to populate the rare high buckets.
type Trials struct {
	None            int `json:"unskilled"`
	ExplodeOnMax    int `json:"skilled"`
	ExplodeOnTopTwo int `json:"mastery"`
}

// DefaultTrials are the counts used for published tables.
var DefaultTrials = Trials{
	None:            200_000,
	ExplodeOnMax:    300_000,
	ExplodeOnTopTwo: 500_000,
}

// For returns the trial count for mode.
func (t Trials) For(mode dice.ExplosionMode) int {
	switch mode {
	case dice.ExplodeOnMax:
		return t.ExplodeOnMax
	case dice.ExplodeOnTopTwo:
		return t.ExplodeOnTopTwo
	default:
		return t.None
	}
}

// TrialCount returns the default trial count for mode.
func TrialCount(mode dice.ExplosionMode) int {
	return DefaultTrials.For(mode)
}

var ErrNoTrials = errors.New("trial count must be positive")

// checkEvery is how many trials a worker runs between context checks.
const checkEvery = 4096

// Simulate runs trials sequential trials of cfg on one source and tallies
// the outcomes.
func Simulate(ctx context.Context, cfg dice.RollConfig, trials int, rng dice.RandomSource) (Histogram, error) {
	if trials <= 0 {
		return nil, ErrNoTrials
	}
	h := make(Histogram, 64)
	r := dice.NewRoller(rng)
	for i := 0; i < trials; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		v, err := r.Trial(cfg)
		if err != nil {
			return nil, err
		}
		h.Add(v)
	}
	return h, nil
}

const (
	// WorkerBits is the width reserved for a worker index when callers
	// derive per-worker stream ids.
	WorkerBits = 16
	// MaxWorkers caps the workers of one Runner so indexes fit in WorkerBits.
	MaxWorkers = 1<<WorkerBits - 1
)

// SourceFunc hands out the entropy source for one worker.
type SourceFunc func(worker int) dice.RandomSource

// Runner splits a configuration's trials into batches, one per worker,
// each with its own source, and merges the partial histograms. Counts add,
// so the merged result does not depend on scheduling.
type Runner struct {
	Workers int        // <=0 means GOMAXPROCS; capped at MaxWorkers
	Source  SourceFunc // nil means the crypto default for every worker
}

func (r Runner) workers(trials int) int {
	n := r.Workers
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return min(n, trials, MaxWorkers)
}

// Simulate runs trials trials of cfg across the runner's workers.
func (r Runner) Simulate(ctx context.Context, cfg dice.RollConfig, trials int) (Histogram, error) {
	if trials <= 0 {
		return nil, ErrNoTrials
	}
	n := r.workers(trials)
	parts := make([]Histogram, n)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < n; w++ {
		batch := trials / n
		if w < trials%n {
			batch++
		}
		var rng dice.RandomSource
		if r.Source != nil {
			rng = r.Source(w)
		}
		g.Go(func() error {
			h, err := Simulate(gctx, cfg, batch, rng)
			if err != nil {
				return err
			}
			parts[w] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := parts[0]
	for _, p := range parts[1:] {
		out.Merge(p)
	}
	return out, nil
}
