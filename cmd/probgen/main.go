// Command probgen simulates every roll configuration and writes the
// probability table artifact.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xtding233/dicepool-tables/internal/batch"
	"github.com/xtding233/dicepool-tables/internal/config"
	"github.com/xtding233/dicepool-tables/internal/dice"
	"github.com/xtding233/dicepool-tables/internal/table"
)

var log = logrus.WithField("module", "probgen")

func main() {
	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := config.ConfigureLogging(cfg.LogLevel); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	if cfg.Seed == 0 {
		s, err := dice.NewSeed()
		if err != nil {
			return fmt.Errorf("draw seed: %w", err)
		}
		cfg.Seed = s
	}

	configs := dice.AllConfigs()
	log.WithFields(logrus.Fields{
		"tables":  len(configs),
		"seed":    cfg.Seed,
		"workers": cfg.Workers,
	}).Info("generating probability tables")

	start := time.Now()
	gen := batch.NewGenerator(batch.Options{
		Trials:  cfg.Trials,
		Workers: cfg.Workers,
		Seed:    cfg.Seed,
		Version: cfg.FormatVersion,
		Log:     log,
	})
	doc, err := gen.Run(ctx, configs)
	if err != nil {
		return err
	}

	n, err := table.WriteFile(cfg.Output, doc)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"path":    cfg.Output,
		"size":    table.FormatFileSize(n),
		"elapsed": time.Since(start).Round(time.Millisecond).String(),
		"tables":  len(doc.Tables),
	}).Info("artifact written")

	return batch.WriteSummary(os.Stdout, doc)
}
