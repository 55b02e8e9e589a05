package table

import (
	"errors"
	"fmt"
	"time"

	"github.com/xtding233/dicepool-tables/internal/dice"
	"github.com/xtding233/dicepool-tables/internal/montecarlo"
	"github.com/xtding233/dicepool-tables/internal/stats"
)

// FormatVersion is the schema version written into new documents.
const FormatVersion = "1.0.0"

var ErrNotFound = errors.New("no probability table for configuration")

// Entry is the published distribution of one roll configuration.
type Entry struct {
	Roll          int                `json:"roll"`
	Keep          int                `json:"keep"`
	ExplosionMode dice.ExplosionMode `json:"explosion_mode"`
	Emphasis      bool               `json:"emphasis"`
	Statistics    stats.Statistics   `json:"statistics"`
	Cumulative    map[string]float64 `json:"cumulative_probability"`
}

// Document is the full artifact consumed downstream.
type Document struct {
	Version           string            `json:"version"`
	GeneratedAt       string            `json:"generated_at"`
	SimulationRounds  montecarlo.Trials `json:"simulation_rounds"`
	ProbabilityCutoff float64           `json:"probability_cutoff"`
	Tables            []Entry           `json:"tables"`
}

func NewEntry(cfg dice.RollConfig, s stats.Statistics, c stats.Cumulative) Entry {
	return Entry{
		Roll:          cfg.PoolSize,
		Keep:          cfg.KeepCount,
		ExplosionMode: cfg.Mode,
		Emphasis:      cfg.Emphasis,
		Statistics:    s,
		Cumulative:    c.StringKeys(),
	}
}

// NewDocument wraps entries with the run metadata.
func NewDocument(version string, at time.Time, trials montecarlo.Trials, entries []Entry) *Document {
	if version == "" {
		version = FormatVersion
	}
	return &Document{
		Version:           version,
		GeneratedAt:       at.UTC().Format(time.RFC3339),
		SimulationRounds:  trials,
		ProbabilityCutoff: stats.Cutoff,
		Tables:            entries,
	}
}

// Config recovers the entry's roll configuration.
func (e *Entry) Config() (dice.RollConfig, error) {
	return dice.NewRollConfig(e.Roll, e.Keep, e.ExplosionMode, e.Emphasis)
}

func (e *Entry) Label() string {
	cfg := dice.RollConfig{PoolSize: e.Roll, KeepCount: e.Keep, Mode: e.ExplosionMode, Emphasis: e.Emphasis}
	return cfg.Label()
}

// AtLeast returns P(total >= tn) for this entry.
func (e *Entry) AtLeast(tn int) (float64, error) {
	c, err := stats.ParseCumulative(e.Cumulative)
	if err != nil {
		return 0, fmt.Errorf("entry %s: %w", e.Label(), err)
	}
	return c.AtLeast(tn), nil
}

// Lookup finds the entry for cfg.
func (d *Document) Lookup(cfg dice.RollConfig) (*Entry, error) {
	for i := range d.Tables {
		e := &d.Tables[i]
		if e.Roll == cfg.PoolSize && e.Keep == cfg.KeepCount && e.ExplosionMode == cfg.Mode && e.Emphasis == cfg.Emphasis {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, cfg.Label())
}

// Validate re-checks every entry before it is served: the configuration
// must be one the generator can produce, appear once, and its cumulative
// table must start at exactly 1 for threshold 0 and satisfy
// stats.ValidateCumulative.
func (d *Document) Validate() error {
	seen := make(map[dice.RollConfig]struct{}, len(d.Tables))
	for i := range d.Tables {
		e := &d.Tables[i]
		cfg, err := e.Config()
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if _, dup := seen[cfg]; dup {
			return fmt.Errorf("entry %d: duplicate table %s", i, cfg.Label())
		}
		seen[cfg] = struct{}{}
		c, err := stats.ParseCumulative(e.Cumulative)
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.Label(), err)
		}
		if p, ok := c[0]; !ok || p != 1 {
			return fmt.Errorf("entry %s: %w", e.Label(),
				&stats.InvariantError{Check: "cumulative", Threshold: 0, Reason: fmt.Sprintf("P(>=0) is %v, want 1", p)})
		}
		if err := stats.ValidateCumulative(c); err != nil {
			return fmt.Errorf("entry %s: %w", e.Label(), err)
		}
	}
	return nil
}
