package engine

import (
	"math"
	"math/rand"
	"time"

	"github.com/forge-labs/attractor/internal/attractor/dot"
	"github.com/forge-labs/attractor/internal/attractor/model"
)

// BackoffConfig controls the delay between retry attempts on the same node
// (§4.2.3). Node attrs override the defaults per hop.
type BackoffConfig struct {
	Base   time.Duration
	Max    time.Duration
	Jitter bool
}

func defaultBackoffConfig() BackoffConfig {
	return BackoffConfig{Base: 200 * time.Millisecond, Max: 60 * time.Second, Jitter: false}
}

// backoffConfigFor reads backoff_base/backoff_max/backoff_jitter off the
// node, falling back to defaultBackoffConfig for anything unset.
func backoffConfigFor(n *model.Node) BackoffConfig {
	cfg := defaultBackoffConfig()
	if n == nil {
		return cfg
	}
	cfg.Base = dot.DurationAttr(n.Attrs, "backoff_base", cfg.Base)
	cfg.Max = dot.DurationAttr(n.Attrs, "backoff_max", cfg.Max)
	cfg.Jitter = dot.BoolAttr(n.Attrs, "backoff_jitter", cfg.Jitter)
	return cfg
}

// delayForAttempt computes the exponential backoff for the given 1-indexed
// attempt number, doubling per attempt and capped at cfg.Max. rnd, when
// non-nil, lets tests substitute a deterministic jitter source.
func delayForAttempt(cfg BackoffConfig, attempt int, rnd func() float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(cfg.Base) * math.Pow(2, float64(attempt-1))
	if cfg.Max > 0 && base > float64(cfg.Max) {
		base = float64(cfg.Max)
	}
	if cfg.Jitter {
		r := rand.Float64
		if rnd != nil {
			r = rnd
		}
		// Half-jitter: keep delay in [0.5*base, 1.5*base).
		base = base * (0.5 + r())
	}
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}
