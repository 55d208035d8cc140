// Package timing produces human-like delays between scraping requests:
// randomized base delays, occasional longer "reading" pauses, and extended
// breaks at resampled intervals, so the inter-request distribution has no
// detectable periodicity.
package timing

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Options configures the delay model. Zero values fall back to defaults.
type Options struct {
	// MinDelay and MaxDelay bound the uniform base delay. Defaults: 5s, 20s.
	MinDelay time.Duration
	MaxDelay time.Duration

	// ReadingPauseChance is the probability a reading pause is added on top
	// of the base delay. Zero means the default of 0.12; a negative value
	// disables reading pauses entirely.
	ReadingPauseChance float64
	// ReadingPauseMin and ReadingPauseMax bound the pause. Defaults: 30s, 90s.
	ReadingPauseMin time.Duration
	ReadingPauseMax time.Duration

	// BreakEveryMin and BreakEveryMax bound the randomized request-count
	// threshold between extended breaks. Defaults: 22, 38.
	BreakEveryMin int
	BreakEveryMax int
	// BreakMin and BreakMax bound the break duration. Defaults: 90s, 180s.
	BreakMin time.Duration
	BreakMax time.Duration

	// Rand is the random source. Injectable so tests can seed it. Defaults
	// to a source seeded from crypto randomness (rand/v2 default behavior).
	Rand *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.MinDelay <= 0 {
		o.MinDelay = 5 * time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 20 * time.Second
	}
	if o.MaxDelay < o.MinDelay {
		o.MaxDelay = o.MinDelay
	}
	switch {
	case o.ReadingPauseChance == 0:
		o.ReadingPauseChance = 0.12
	case o.ReadingPauseChance < 0:
		o.ReadingPauseChance = 0
	}
	if o.ReadingPauseMin <= 0 {
		o.ReadingPauseMin = 30 * time.Second
	}
	if o.ReadingPauseMax <= 0 {
		o.ReadingPauseMax = 90 * time.Second
	}
	if o.BreakEveryMin <= 0 {
		o.BreakEveryMin = 22
	}
	if o.BreakEveryMax <= o.BreakEveryMin {
		o.BreakEveryMax = o.BreakEveryMin + 16
	}
	if o.BreakMin <= 0 {
		o.BreakMin = 90 * time.Second
	}
	if o.BreakMax <= 0 {
		o.BreakMax = 180 * time.Second
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return o
}

// Controller computes the delay before each next request. Not safe for
// concurrent use: the engine is a single sequential loop and calls it from
// one goroutine only.
type Controller struct {
	opts Options

	requestCount int
	nextBreakAt  int
}

// NewController creates a controller with the next break threshold already
// sampled.
func NewController(opts Options) *Controller {
	c := &Controller{opts: opts.withDefaults()}
	c.nextBreakAt = c.sampleBreakThreshold()
	return c
}

// NextDelay advances the request counter and returns the delay to wait
// before the next request: a uniform base delay, plus a reading pause with
// configured probability, plus an extended break when the counter crosses
// the current threshold. Thresholds and durations are resampled every time.
func (c *Controller) NextDelay() time.Duration {
	c.requestCount++

	delay := c.uniform(c.opts.MinDelay, c.opts.MaxDelay)

	if c.opts.Rand.Float64() < c.opts.ReadingPauseChance {
		pause := c.uniform(c.opts.ReadingPauseMin, c.opts.ReadingPauseMax)
		zap.L().Debug("adding reading pause", zap.Duration("pause", pause))
		delay += pause
	}

	if c.requestCount >= c.nextBreakAt {
		brk := c.uniform(c.opts.BreakMin, c.opts.BreakMax)
		zap.L().Info("taking extended break",
			zap.Duration("break", brk),
			zap.Int("requests", c.requestCount),
		)
		delay += brk
		c.nextBreakAt = c.requestCount + c.sampleBreakThreshold()
	}

	return delay
}

// Wait blocks for NextDelay() on the calling goroutine, returning early with
// the context error if cancelled. Callers invoke it immediately before every
// adapter call.
func (c *Controller) Wait(ctx context.Context) error {
	d := c.NextDelay()
	zap.L().Debug("waiting before next request", zap.Duration("delay", d))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RequestCount returns how many delays have been issued.
func (c *Controller) RequestCount() int {
	return c.requestCount
}

// Reset clears the request counter and resamples the break threshold, e.g.
// for a fresh session.
func (c *Controller) Reset() {
	c.requestCount = 0
	c.nextBreakAt = c.sampleBreakThreshold()
}

// sampleBreakThreshold picks the request count until the next break,
// uniform in [BreakEveryMin, BreakEveryMax).
func (c *Controller) sampleBreakThreshold() int {
	return c.opts.BreakEveryMin + c.opts.Rand.IntN(c.opts.BreakEveryMax-c.opts.BreakEveryMin)
}

// uniform samples a duration in [lo, hi].
func (c *Controller) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(c.opts.Rand.Int64N(int64(hi-lo)+1))
}
