package batch

import (
	"errors"
	"fmt"
	"io"

	"github.com/xtding233/dicepool-tables/internal/dice"
	"github.com/xtding233/dicepool-tables/internal/table"
)

// SummaryTarget is the target number reported in the summary.
const SummaryTarget = 25

// SummaryConfigs are the configurations highlighted after a run.
var SummaryConfigs = []dice.RollConfig{
	{PoolSize: 5, KeepCount: 3, Mode: dice.ExplodeOnMax},
	{PoolSize: 7, KeepCount: 4, Mode: dice.ExplodeOnTopTwo},
	{PoolSize: 10, KeepCount: 10, Mode: dice.ExplodeOnTopTwo, Emphasis: true},
}

// WriteSummary prints sample statistics for SummaryConfigs found in doc.
func WriteSummary(w io.Writer, doc *table.Document) error {
	fmt.Fprintln(w, "Sample statistics:")
	for _, cfg := range SummaryConfigs {
		e, err := doc.Lookup(cfg)
		if errors.Is(err, table.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		s := e.Statistics
		fmt.Fprintf(w, "  %s\n", cfg.Label())
		fmt.Fprintf(w, "    Mean:   %.2f\n", s.Mean)
		fmt.Fprintf(w, "    StdDev: %.2f\n", s.StdDev)
		fmt.Fprintf(w, "    Median: %d\n", s.Median)
		fmt.Fprintf(w, "    Range:  %d - %d\n", s.Min, s.Max)
		if p, ok := e.Cumulative[fmt.Sprint(SummaryTarget)]; ok {
			fmt.Fprintf(w, "    P(>=%d): %.1f%%\n", SummaryTarget, p*100)
		}
	}
	return nil
}
