package jobs

import (
	"math"
	"time"

	"lca-companion/internal/shared/config"
)

// Backoff computes the wait between status polls.
type Backoff struct {
	Base        time.Duration
	Multiplier  float64
	MaxExponent int
}

// Delay returns Base × Multiplier^min(attempt, MaxExponent).
func (b Backoff) Delay(attempt int) time.Duration {
	n := attempt
	if n < 0 {
		n = 0
	}
	if n > b.MaxExponent {
		n = b.MaxExponent
	}
	return time.Duration(float64(b.Base) * math.Pow(b.Multiplier, float64(n)))
}

// Config tunes the poll loop.
type Config struct {
	Backoff     Backoff
	MaxAttempts int
}

// ConfigFromPoll converts the env-driven poll settings.
func ConfigFromPoll(p config.PollConfig) Config {
	return Config{
		Backoff: Backoff{
			Base:        p.BaseInterval,
			Multiplier:  p.Multiplier,
			MaxExponent: p.MaxExponent,
		},
		MaxAttempts: p.MaxAttempts,
	}
}

func (c Config) withDefaults() Config {
	def := ConfigFromPoll(config.DefaultPollConfig())
	if c.Backoff.Base <= 0 {
		c.Backoff.Base = def.Backoff.Base
	}
	if c.Backoff.Multiplier < 1 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	if c.Backoff.MaxExponent < 0 {
		c.Backoff.MaxExponent = def.Backoff.MaxExponent
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	return c
}
