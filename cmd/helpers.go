package main

import (
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/caselaw-cli/internal/adapter"
	"github.com/sells-group/caselaw-cli/internal/checkpoint"
	"github.com/sells-group/caselaw-cli/internal/config"
	"github.com/sells-group/caselaw-cli/internal/ratelimit"
	"github.com/sells-group/caselaw-cli/internal/resilience"
	"github.com/sells-group/caselaw-cli/internal/runlog"
	"github.com/sells-group/caselaw-cli/internal/scrape"
	"github.com/sells-group/caselaw-cli/internal/storage"
	"github.com/sells-group/caselaw-cli/internal/timing"
)

var adapterName string

func init() {
	rootCmd.PersistentFlags().StringVarP(&adapterName, "adapter", "a", "example", "data source adapter")
	rootCmd.PersistentFlags().String("data-dir", "", "override data directory")
}

// dataDir resolves the effective data directory: flag beats config.
func dataDir() string {
	if v, err := rootCmd.PersistentFlags().GetString("data-dir"); err == nil && v != "" {
		return v
	}
	return cfg.Data.Dir
}

// buildEngine wires a scrape engine for the selected adapter from config.
func buildEngine(c *config.Config) (*scrape.Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	ad, err := adapter.Default().New(adapterName, c)
	if err != nil {
		return nil, err
	}

	dir := dataDir()
	store, err := storage.NewStore(dir)
	if err != nil {
		return nil, err
	}
	checkpoints, err := checkpoint.NewStore(filepath.Join(dir, "checkpoints"))
	if err != nil {
		return nil, err
	}
	limiter, err := ratelimit.New(filepath.Join(dir, "ratelimit"), ad.Name(), c.Scrape.DailyRequestLimit)
	if err != nil {
		return nil, err
	}
	skips, err := resilience.NewSkipLog(filepath.Join(dir, "skipped"))
	if err != nil {
		return nil, err
	}

	format, err := storage.ParseFormat(c.Data.OutputFormat)
	if err != nil {
		return nil, err
	}

	// The config default for reading_pause_chance is 0.12, so a zero here
	// is an explicit operator choice to turn reading pauses off.
	pauseChance := c.Timing.ReadingPauseChance
	if pauseChance == 0 {
		pauseChance = -1
	}

	controller := timing.NewController(timing.Options{
		MinDelay:           secs(c.Timing.MinDelaySecs),
		MaxDelay:           secs(c.Timing.MaxDelaySecs),
		ReadingPauseChance: pauseChance,
		ReadingPauseMin:    secs(c.Timing.ReadingPauseMin),
		ReadingPauseMax:    secs(c.Timing.ReadingPauseMax),
		BreakEveryMin:      c.Timing.BreakEveryMin,
		BreakEveryMax:      c.Timing.BreakEveryMax,
		BreakMin:           secs(c.Timing.BreakDurationMin),
		BreakMax:           secs(c.Timing.BreakDurationMax),
	})

	return scrape.New(ad, controller, limiter, checkpoints, store, skips, scrape.Options{
		Format:      format,
		MaxRetries:  c.Scrape.MaxRetries,
		CallTimeout: c.Scrape.CallTimeout(),
	}), nil
}

// openStore opens the read side of the data directory for analytics and
// status commands.
func openStore() (*storage.Store, error) {
	return storage.NewStore(dataDir())
}

// openRunLog opens the run history database in the data directory.
func openRunLog() (*runlog.Log, error) {
	dir := dataDir()
	store, err := storage.NewStore(dir)
	if err != nil {
		return nil, err
	}
	return runlog.Open(filepath.Join(store.Dir(), "runs.db"))
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// requireFlag wraps cobra's error for a missing required value.
func requireFlag(name, value string) error {
	if value == "" {
		return eris.Errorf("--%s is required", name)
	}
	return nil
}
