package biz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"KuroAccounts/internal/conf"
	"KuroAccounts/internal/data"
	"KuroAccounts/internal/model"
	pkglog "KuroAccounts/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned by Allow while a dependency's breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

const mirrorTimeout = 2 * time.Second

// BreakerSettings configures the breaker of one dependency.
type BreakerSettings struct {
	FailureThreshold uint32
	OpenDuration     time.Duration
}

// DefaultBreakerSettings applies to dependencies registered without settings.
var DefaultBreakerSettings = BreakerSettings{FailureThreshold: 3, OpenDuration: 10 * time.Second}

type breaker struct {
	cb        *gobreaker.TwoStepCircuitBreaker
	settings  BreakerSettings
	changedAt atomic.Int64
}

// Permit is one admitted call. Exactly one of Success, Failure or Release
// takes effect; later calls are ignored.
type Permit struct {
	once     sync.Once
	done     func(success bool)
	halfOpen func() bool
}

// Success records a successful call.
func (p *Permit) Success() {
	p.once.Do(func() { p.done(true) })
}

// Failure records a failed call.
func (p *Permit) Failure() {
	p.once.Do(func() { p.done(false) })
}

// Release ends a call that its caller abandoned, without counting it against
// the dependency. A half-open probe is still recorded as a failure: only the
// probe's outcome can leave the half-open state.
func (p *Permit) Release() {
	p.once.Do(func() {
		if p.halfOpen != nil && p.halfOpen() {
			p.done(false)
		}
	})
}

// CircuitBreakerRegistry owns exactly one breaker per dependency for the life
// of the process.
//
// A breaker starts closed. ConsecutiveFailures reaching the threshold opens
// it; while open every call is rejected with ErrCircuitOpen. After the open
// duration the next call is admitted as the single half-open probe: success
// closes the breaker, failure reopens it for another open duration.
// Transitions are logged and mirrored to Redis in the background.
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*breaker
	settings map[string]BreakerSettings

	mirror CircuitStateRepo
	logger *pkglog.LogHelper

	onTransition atomic.Pointer[TransitionFunc]
}

// TransitionFunc observes a breaker transition. It runs under the breaker's
// lock and must not call back into the registry.
type TransitionFunc func(dependency, from, to string)

// NewCircuitBreakerRegistry creates the registry and the cards and loans
// breakers from c.
func NewCircuitBreakerRegistry(c *conf.Downstream, mirror CircuitStateRepo, logger log.Logger) *CircuitBreakerRegistry {
	r := &CircuitBreakerRegistry{
		breakers: make(map[string]*breaker),
		settings: make(map[string]BreakerSettings),
		mirror:   mirror,
		logger:   pkglog.NewLogHelper(logger),
	}

	if c != nil {
		for name, dep := range map[string]*conf.Dependency{
			data.DependencyCards: c.Cards,
			data.DependencyLoans: c.Loans,
		} {
			if dep == nil {
				continue
			}
			r.Register(name, BreakerSettings{
				FailureThreshold: dep.FailureThreshold,
				OpenDuration:     dep.OpenDuration,
			})
		}
	}

	return r
}

// Register creates the breaker of dependency unless it already exists.
func (r *CircuitBreakerRegistry) Register(dependency string, settings BreakerSettings) {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = DefaultBreakerSettings.FailureThreshold
	}
	if settings.OpenDuration <= 0 {
		settings.OpenDuration = DefaultBreakerSettings.OpenDuration
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings[dependency] = settings
	if _, exists := r.breakers[dependency]; !exists {
		r.breakers[dependency] = r.newBreaker(dependency, settings)
	}
}

func (r *CircuitBreakerRegistry) get(dependency string) *breaker {
	r.mu.RLock()
	b, exists := r.breakers[dependency]
	r.mu.RUnlock()

	if exists {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if b, exists = r.breakers[dependency]; exists {
		return b
	}

	settings, ok := r.settings[dependency]
	if !ok {
		settings = DefaultBreakerSettings
	}
	b = r.newBreaker(dependency, settings)
	r.breakers[dependency] = b
	return b
}

func (r *CircuitBreakerRegistry) newBreaker(dependency string, settings BreakerSettings) *breaker {
	b := &breaker{settings: settings}
	b.changedAt.Store(time.Now().UnixNano())
	b.cb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        dependency,
		MaxRequests: 1,
		Timeout:     settings.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		// Runs under the breaker's lock: must not call back into b.cb.
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.handleStateChange(b, name, from, to)
		},
	})

	r.logger.Infof("Created circuit breaker for dependency: %s (threshold=%d, open=%s)",
		dependency, settings.FailureThreshold, settings.OpenDuration)
	return b
}

func (r *CircuitBreakerRegistry) handleStateChange(b *breaker, dependency string, from, to gobreaker.State) {
	b.changedAt.Store(time.Now().UnixNano())
	r.logger.Circuit(dependency, from.String(), to.String(),
		"failure_threshold", b.settings.FailureThreshold,
		"open_duration", b.settings.OpenDuration.String())

	if r.mirror != nil {
		go r.mirrorState(dependency, b)
	}
	if fn := r.onTransition.Load(); fn != nil {
		(*fn)(dependency, from.String(), to.String())
	}
}

// OnTransition sets the observer of every later transition, replacing any
// previous one.
func (r *CircuitBreakerRegistry) OnTransition(fn TransitionFunc) {
	r.onTransition.Store(&fn)
}

// Dependencies returns the names of every registered dependency, sorted.
func (r *CircuitBreakerRegistry) Dependencies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *CircuitBreakerRegistry) mirrorState(dependency string, b *breaker) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	if err := r.mirror.SaveState(ctx, snapshotOf(dependency, b)); err != nil {
		r.logger.Warnw("msg", "failed to mirror circuit state (degraded mode)",
			"dependency", dependency,
			"error", err)
	}
}

// Allow asks the dependency's breaker for a permit. It returns an error
// wrapping ErrCircuitOpen when the breaker is open, or half-open with its
// probe already in flight.
func (r *CircuitBreakerRegistry) Allow(dependency string) (*Permit, error) {
	b := r.get(dependency)
	done, err := b.cb.Allow()
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s (%v)", ErrCircuitOpen, dependency, err)
		}
		return nil, err
	}
	return &Permit{
		done:     done,
		halfOpen: func() bool { return b.cb.State() == gobreaker.StateHalfOpen },
	}, nil
}

// State returns the current mode of the dependency's breaker.
func (r *CircuitBreakerRegistry) State(dependency string) string {
	return r.get(dependency).cb.State().String()
}

// Snapshot returns the state of every breaker, sorted by dependency.
func (r *CircuitBreakerRegistry) Snapshot() []*model.CircuitState {
	r.mu.RLock()
	names := make([]string, 0, len(r.breakers))
	breakers := make(map[string]*breaker, len(r.breakers))
	for name, b := range r.breakers {
		names = append(names, name)
		breakers[name] = b
	}
	r.mu.RUnlock()

	sort.Strings(names)
	states := make([]*model.CircuitState, 0, len(names))
	for _, name := range names {
		states = append(states, snapshotOf(name, breakers[name]))
	}
	return states
}

func snapshotOf(dependency string, b *breaker) *model.CircuitState {
	counts := b.cb.Counts()
	return &model.CircuitState{
		Dependency:           dependency,
		Mode:                 b.cb.State().String(),
		ConsecutiveFailures:  counts.ConsecutiveFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		FailureThreshold:     b.settings.FailureThreshold,
		OpenDuration:         b.settings.OpenDuration.String(),
		ChangedAt:            time.Unix(0, b.changedAt.Load()),
	}
}
