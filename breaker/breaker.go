/*
Package breaker implements a per-dependency circuit breaker.

PURPOSE:
  Short-circuits calls to a failing dependency (primary store, fallback
  store, event fan-out, collaborator HTTP) so a dead backend fails fast
  instead of tying up request tasks in timeouts.

STATE MACHINE:
  closed     normal operation; consecutive failures are counted
  open       threshold reached; calls fail fast until the cool-down ends
  half-open  one probe call admitted; success closes, failure re-opens

  Breakers are NOT global: each outbound dependency owns one, with its
  counters protected by a mutex. Half-open admits exactly one probe.

USAGE:
  br := breaker.New("cart-kv", 3, 60*time.Second)
  err := br.Do(func() error { return kv.Put(...) })
  if errors.Is(err, breaker.ErrOpen) { ... fail fast path ... }
*/
package breaker

import (
	"errors"
	"log"
	"sync"
	"time"
)

// ErrOpen is returned without invoking the call while the circuit is open.
var ErrOpen = errors.New("circuit breaker open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker guards one outbound dependency.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    state
	failures int
	openedAt time.Time
	probing  bool

	// now is swappable for tests.
	now func() time.Time
}

// New creates a breaker that opens after threshold consecutive failures
// and admits a probe after the cool-down.
func New(name string, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Do runs fn through the breaker. While open it returns ErrOpen without
// invoking fn; in half-open exactly one caller gets through as the probe.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.state = stateHalfOpen
		b.probing = false
		log.Printf("[Breaker] %s: open -> half-open", b.name)
		fallthrough
	case stateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != stateClosed {
			log.Printf("[Breaker] %s: %s -> closed", b.name, b.state)
		}
		b.state = stateClosed
		b.failures = 0
		b.probing = false
		return
	}

	switch b.state {
	case stateHalfOpen:
		// Probe failed: back to open for another cool-down.
		b.state = stateOpen
		b.openedAt = b.now()
		b.probing = false
		log.Printf("[Breaker] %s: half-open -> open (probe failed: %v)", b.name, err)
	default:
		b.failures++
		if b.failures >= b.threshold {
			b.state = stateOpen
			b.openedAt = b.now()
			log.Printf("[Breaker] %s: closed -> open after %d failures (%v)", b.name, b.failures, err)
		}
	}
}

// State returns the current state name, for health reporting.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return stateHalfOpen.String()
	}
	return b.state.String()
}

// SetClock overrides the time source. Tests only.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}
