package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// State is a circuit breaker state. The numeric values are exported as a gauge.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// BreakerSettings configures a Breaker. Zero values take the defaults noted.
type BreakerSettings struct {
	Name string
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Default 5.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before admitting a probe.
	// Default 30s.
	Cooldown time.Duration
	Clock    clockwork.Clock
	// IsFailure decides whether an error counts against the dependency.
	// Default DefaultIsFailure.
	IsFailure func(error) bool
	// OnStateChange is called outside the breaker's lock.
	OnStateChange func(name string, from, to State)
}

// Breaker is a consecutive-failure circuit breaker for one dependency.
// Construct one per upstream and share it between every caller of that upstream.
type Breaker struct {
	settings BreakerSettings

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// BreakerStatus is a point-in-time view of a breaker.
type BreakerStatus struct {
	Name       string        `json:"name"`
	State      string        `json:"state"`
	Failures   int           `json:"consecutive_failures"`
	RetryAfter time.Duration `json:"retry_after_ns,omitempty"`
}

type transition struct {
	from, to State
}

// NewBreaker creates a closed breaker.
func NewBreaker(s BreakerSettings) *Breaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.Clock == nil {
		s.Clock = clockwork.NewRealClock()
	}
	if s.IsFailure == nil {
		s.IsFailure = DefaultIsFailure
	}
	return &Breaker{settings: s}
}

// Name returns the dependency name.
func (b *Breaker) Name() string { return b.settings.Name }

// State returns the current state. An open breaker whose cool-down has elapsed
// still reports open until the next call moves it to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status returns the state, failure count and remaining cool-down.
func (b *Breaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := BreakerStatus{Name: b.settings.Name, State: b.state.String(), Failures: b.failures}
	if b.state == StateOpen {
		st.RetryAfter = b.remaining(b.settings.Clock.Now())
	}
	return st
}

// Execute runs fn unless the breaker rejects the call with a
// *CircuitOpenError, and records the outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// errPanicked records an operation that panicked. The panic itself is not
// recovered.
var errPanicked = errors.New("operation panicked")

// Call is Execute for operations that return a value. A panic in fn counts as
// a failure and is re-raised.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	probe, err := b.allow()
	if err != nil {
		var zero T
		return zero, err
	}
	completed := false
	defer func() {
		if !completed {
			b.record(probe, errPanicked)
		}
	}()
	v, err := fn(ctx)
	completed = true
	b.record(probe, err)
	return v, err
}

func (b *Breaker) allow() (bool, error) {
	var changes []transition
	defer func() { b.notify(changes) }()

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		now := b.settings.Clock.Now()
		if wait := b.remaining(now); wait > 0 {
			return false, &CircuitOpenError{Dependency: b.settings.Name, RetryAfter: wait}
		}
		changes = append(changes, b.setState(StateHalfOpen))
		b.probing = true
		return true, nil
	case StateHalfOpen:
		if b.probing {
			return false, &CircuitOpenError{Dependency: b.settings.Name}
		}
		b.probing = true
		return true, nil
	default:
		return false, nil
	}
}

func (b *Breaker) record(probe bool, err error) {
	var changes []transition
	defer func() { b.notify(changes) }()

	b.mu.Lock()
	defer b.mu.Unlock()

	failed := errors.Is(err, errPanicked) || (err != nil && b.settings.IsFailure(err))

	if probe {
		b.probing = false
		switch {
		case errors.Is(err, context.Canceled):
			// Abandoned probe: the next call probes again.
		case failed:
			b.openedAt = b.settings.Clock.Now()
			changes = append(changes, b.setState(StateOpen))
		default:
			b.failures = 0
			changes = append(changes, b.setState(StateClosed))
		}
		return
	}

	if b.state != StateClosed {
		return
	}
	if !failed {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.settings.FailureThreshold {
		b.openedAt = b.settings.Clock.Now()
		changes = append(changes, b.setState(StateOpen))
	}
}

func (b *Breaker) remaining(now time.Time) time.Duration {
	return b.settings.Cooldown - now.Sub(b.openedAt)
}

func (b *Breaker) setState(to State) transition {
	t := transition{from: b.state, to: to}
	b.state = to
	return t
}

func (b *Breaker) notify(changes []transition) {
	if b.settings.OnStateChange == nil {
		return
	}
	for _, c := range changes {
		if c.from != c.to {
			b.settings.OnStateChange(b.settings.Name, c.from, c.to)
		}
	}
}
