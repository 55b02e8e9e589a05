package dice

import (
	"errors"
	"fmt"
	"slices"
)

// MaxExplosions caps one die's explosion chain. Under a uniform source the
// chance of reaching it is below (2/10)^10000; hitting it means the source
// is broken.
const MaxExplosions = 10_000

var ErrExplosionRunaway = errors.New("explosion chain exceeded limit")

// DieOutcome is one die's accumulated total.
// Exploded is true iff at least one extra roll was added.
type DieOutcome struct {
	Total    int
	Exploded bool
}

func rollFace(rng RandomSource) int {
	return rng.IntN(Faces) + 1
}

// RollDie rolls one d10, chaining extra rolls while ShouldExplode holds
// for the most recent face.
func RollDie(mode ExplosionMode, rng RandomSource) (DieOutcome, error) {
	face := rollFace(rng)
	out := DieOutcome{Total: face}
	for n := 0; ShouldExplode(face, mode); n++ {
		if n >= MaxExplosions {
			return DieOutcome{}, fmt.Errorf("%w: %d rolls (mode %s)", ErrExplosionRunaway, n, mode)
		}
		face = rollFace(rng)
		out.Total += face
		out.Exploded = true
	}
	return out, nil
}

// ApplyEmphasis rerolls, in place, every die that shows 1 and did not
// explode. Other dice and slice order are untouched.
func ApplyEmphasis(pool []DieOutcome, mode ExplosionMode, rng RandomSource) error {
	for i := range pool {
		if pool[i].Exploded || pool[i].Total != 1 {
			continue
		}
		d, err := RollDie(mode, rng)
		if err != nil {
			return err
		}
		pool[i] = d
	}
	return nil
}

// Roller simulates trials for one goroutine, reusing its pool buffer.
type Roller struct {
	rng  RandomSource
	pool []DieOutcome
}

func NewRoller(rng RandomSource) *Roller {
	if rng == nil {
		rng = DefaultRNG()
	}
	return &Roller{rng: rng, pool: make([]DieOutcome, 0, MaxPool)}
}

// Pool rolls cfg.PoolSize dice, applies emphasis when enabled, and returns
// them highest first. The slice is reused by the next call.
func (r *Roller) Pool(cfg RollConfig) ([]DieOutcome, error) {
	r.pool = r.pool[:0]
	for i := 0; i < cfg.PoolSize; i++ {
		d, err := RollDie(cfg.Mode, r.rng)
		if err != nil {
			return nil, err
		}
		r.pool = append(r.pool, d)
	}
	if cfg.Emphasis {
		if err := ApplyEmphasis(r.pool, cfg.Mode, r.rng); err != nil {
			return nil, err
		}
	}
	// ties are irrelevant to the sum
	slices.SortFunc(r.pool, func(a, b DieOutcome) int { return b.Total - a.Total })
	return r.pool, nil
}

// Trial returns the sum of the KeepCount highest totals of one Pool.
func (r *Roller) Trial(cfg RollConfig) (int, error) {
	pool, err := r.Pool(cfg)
	if err != nil {
		return 0, err
	}
	sum := 0
	for _, d := range pool[:cfg.KeepCount] {
		sum += d.Total
	}
	return sum, nil
}

// SimulateTrial runs a single trial with a throwaway Roller.
func SimulateTrial(cfg RollConfig, rng RandomSource) (int, error) {
	return NewRoller(rng).Trial(cfg)
}
