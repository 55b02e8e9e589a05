package dice

import (
	"errors"
	"fmt"
)

const (
	// Faces is the die size. Fixed.
	Faces = 10
	// MaxPool bounds both pool size and keep count.
	MaxPool = 10
)

var ErrInvalidConfig = errors.New("invalid roll config")

// RollConfig is one "roll X, keep Y" parameter combination.
type RollConfig struct {
	PoolSize  int
	KeepCount int
	Mode      ExplosionMode
	Emphasis  bool
}

// NewRollConfig validates and builds a RollConfig.
// It requires 1 <= keep <= pool <= MaxPool and a known mode.
func NewRollConfig(pool, keep int, mode ExplosionMode, emphasis bool) (RollConfig, error) {
	if pool < 1 || pool > MaxPool {
		return RollConfig{}, fmt.Errorf("%w: pool size %d outside 1..%d", ErrInvalidConfig, pool, MaxPool)
	}
	if keep < 1 || keep > pool {
		return RollConfig{}, fmt.Errorf("%w: keep count %d outside 1..%d", ErrInvalidConfig, keep, pool)
	}
	if !mode.Valid() {
		return RollConfig{}, fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnknownMode, string(mode))
	}
	return RollConfig{PoolSize: pool, KeepCount: keep, Mode: mode, Emphasis: emphasis}, nil
}

// Label renders the compact form used in progress output, e.g. "5k3 s+e".
func (c RollConfig) Label() string {
	e := ""
	if c.Emphasis {
		e = "+e"
	}
	return fmt.Sprintf("%dk%d %s%s", c.PoolSize, c.KeepCount, c.Mode.Letter(), e)
}

func (c RollConfig) String() string { return c.Label() }

// AllConfigs enumerates every valid combination: pool 1..10, keep 1..pool,
// each mode, emphasis off then on. 330 in total.
func AllConfigs() []RollConfig {
	out := make([]RollConfig, 0, 330)
	for pool := 1; pool <= MaxPool; pool++ {
		for keep := 1; keep <= pool; keep++ {
			for _, mode := range Modes {
				for _, emphasis := range []bool{false, true} {
					c, err := NewRollConfig(pool, keep, mode, emphasis)
					if err != nil {
						// enumeration bounds are fixed above; reaching this is a bug
						panic(err)
					}
					out = append(out, c)
				}
			}
		}
	}
	return out
}
