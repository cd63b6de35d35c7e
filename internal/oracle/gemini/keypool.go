package gemini

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// keyPool rotates through the configured API credentials. Each key gets
// its own circuit breaker that trips after rotationThreshold consecutive
// failures, so a failing credential is sidelined instead of exhausted.
// The mutex keeps the rotation cursor safe if callers ever add worker
// concurrency.
type keyPool struct {
	mu       sync.Mutex
	keys     []string
	breakers []*gobreaker.CircuitBreaker
	cursor   int
}

var errNoKeys = errors.New("no oracle credentials configured")

func newKeyPool(keys []string, rotationThreshold int) (*keyPool, error) {
	if len(keys) == 0 {
		return nil, errNoKeys
	}

	breakers := make([]*gobreaker.CircuitBreaker, len(keys))
	for i := range keys {
		threshold := uint32(rotationThreshold)
		st := gobreaker.Settings{
			Name:    "oracle-key",
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		}
		breakers[i] = gobreaker.NewCircuitBreaker(st)
	}

	return &keyPool{keys: keys, breakers: breakers}, nil
}

// pick returns the next usable credential, preferring keys whose breaker
// is closed. When every breaker is open it still returns the cursor's
// key; the breaker then fails fast and the caller's backoff absorbs the
// wait until a breaker re-enters half-open.
func (p *keyPool) pick() (int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.keys)
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		if p.breakers[idx].State() != gobreaker.StateOpen {
			p.cursor = idx
			return idx, p.keys[idx]
		}
	}
	idx := p.cursor % n
	return idx, p.keys[idx]
}

// execute runs fn under the breaker for key idx. A failure advances the
// rotation cursor so the next attempt starts from the following key once
// this one trips.
func (p *keyPool) execute(idx int, fn func() (any, error)) (any, error) {
	out, err := p.breakers[idx].Execute(fn)
	if err != nil {
		p.mu.Lock()
		if p.breakers[idx].State() == gobreaker.StateOpen {
			p.cursor = (idx + 1) % len(p.keys)
		}
		p.mu.Unlock()
	}
	return out, err
}

// size returns the number of pooled credentials.
func (p *keyPool) size() int {
	return len(p.keys)
}
