// Package breaker implements the circuit breaker protecting provider calls.
package breaker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker's current posture toward the primary provider.
type State string

// Breaker states.
const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config controls tripping behavior. The zero value is unusable; callers load
// thresholds from service configuration. One Config applies per provider and
// is shared by every worker calling that provider.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before a half-open trial.
	Cooldown time.Duration
	// PrimaryDisabled forces every call to the fallback without touching state.
	PrimaryDisabled bool
	// ShadowMode runs the fallback alongside the primary for comparison; the
	// primary result is always the one served.
	ShadowMode bool
	// OnStateChange is invoked after each transition (metrics wiring).
	OnStateChange func(name string, state State)
}

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
)

// Breaker guards a single provider. Many workers share one Breaker, so all
// state is mutex-protected. T is the provider's result type.
type Breaker[T any] struct {
	name   string
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New constructs a closed Breaker named after the provider it protects.
func New[T any](name string, cfg Config, logger *zap.Logger) *Breaker[T] {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker[T]{
		name:   name,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		state:  StateClosed,
	}
}

// State returns the current breaker state.
func (b *Breaker[T]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do routes a call through the breaker. While closed it invokes primary and
// propagates its error (counting the failure); once the threshold trips it
// serves fallback until the cool-down elapses, then admits exactly one trial
// call back to primary.
func (b *Breaker[T]) Do(
	ctx context.Context,
	primary func(context.Context) (T, error),
	fallback func(context.Context) (T, error),
) (T, error) {
	if b.cfg.PrimaryDisabled {
		return fallback(ctx)
	}
	if b.cfg.ShadowMode {
		b.shadowCompare(ctx, fallback)
	}

	usePrimary, trial := b.admit()
	if !usePrimary {
		return fallback(ctx)
	}

	result, err := primary(ctx)
	if err == nil {
		b.recordSuccess()
		return result, nil
	}
	b.recordFailure(trial)
	if trial {
		// The trial reopened the circuit; serve this caller from the
		// fallback instead of failing it on a provider known to be down.
		return fallback(ctx)
	}
	return result, err
}

// admit decides whether the caller may hit the primary. The second return
// value marks the single half-open trial call.
func (b *Breaker[T]) admit() (usePrimary, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true, false
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, false
		}
		b.setState(StateHalfOpen)
		b.probing = true
		return true, true
	case StateHalfOpen:
		if b.probing {
			return false, false
		}
		b.probing = true
		return true, true
	default:
		return true, false
	}
}

func (b *Breaker[T]) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateClosed {
		b.logger.Info("circuit closed after successful trial", zap.String("breaker", b.name))
	}
	b.setState(StateClosed)
	b.failures = 0
	b.probing = false
}

func (b *Breaker[T]) recordFailure(trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.setState(StateOpen)
		b.openedAt = b.now()
		b.probing = false
		b.logger.Warn("circuit reopened after failed trial", zap.String("breaker", b.name))
		return
	}

	b.failures++
	if b.failures >= b.cfg.FailureThreshold && b.state == StateClosed {
		b.setState(StateOpen)
		b.openedAt = b.now()
		b.logger.Warn("circuit opened",
			zap.String("breaker", b.name),
			zap.Int("failures", b.failures),
		)
	}
}

func (b *Breaker[T]) setState(s State) {
	if b.state == s {
		return
	}
	b.state = s
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, s)
	}
}

// shadowCompare runs the fallback out-of-band and logs its outcome so the two
// providers can be compared without affecting the served result.
func (b *Breaker[T]) shadowCompare(ctx context.Context, fallback func(context.Context) (T, error)) {
	go func() {
		if _, err := fallback(ctx); err != nil {
			b.logger.Warn("shadow fallback call failed",
				zap.String("breaker", b.name),
				zap.Error(err),
			)
			return
		}
		b.logger.Debug("shadow fallback call succeeded", zap.String("breaker", b.name))
	}()
}
