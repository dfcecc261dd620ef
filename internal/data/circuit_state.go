package data

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"KuroAccounts/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// CircuitStateRepo mirrors breaker transitions into Redis hashes at
// circuit:{dependency} so operators can inspect them across instances.
type CircuitStateRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewCircuitStateRepo creates a new circuit state repository.
func NewCircuitStateRepo(rdb *redis.Client, logger log.Logger) *CircuitStateRepo {
	return &CircuitStateRepo{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// SaveState overwrites the mirrored state of one dependency.
func (r *CircuitStateRepo) SaveState(ctx context.Context, state *model.CircuitState) error {
	if r.rdb == nil {
		return ErrRedisUnavailable
	}

	key := BuildCacheKey(CacheKeyCircuit, state.Dependency)
	err := r.rdb.HSet(ctx, key, map[string]interface{}{
		"mode":                  state.Mode,
		"consecutive_failures":  state.ConsecutiveFailures,
		"consecutive_successes": state.ConsecutiveSuccesses,
		"failure_threshold":     state.FailureThreshold,
		"open_duration":         state.OpenDuration,
		"changed_at":            state.ChangedAt.UTC().Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to save circuit state for %s: %w", state.Dependency, err)
	}

	r.logger.Debugw("msg", "circuit state mirrored", "dependency", state.Dependency, "mode", state.Mode)
	return nil
}

// LoadState reads the mirrored state of one dependency. It returns
// ErrCacheNotFound when nothing was mirrored yet.
func (r *CircuitStateRepo) LoadState(ctx context.Context, dependency string) (*model.CircuitState, error) {
	if r.rdb == nil {
		return nil, ErrRedisUnavailable
	}

	values, err := r.rdb.HGetAll(ctx, BuildCacheKey(CacheKeyCircuit, dependency)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load circuit state for %s: %w", dependency, err)
	}
	if len(values) == 0 {
		return nil, ErrCacheNotFound
	}

	state := &model.CircuitState{
		Dependency:           dependency,
		Mode:                 values["mode"],
		ConsecutiveFailures:  parseUint32(values["consecutive_failures"]),
		ConsecutiveSuccesses: parseUint32(values["consecutive_successes"]),
		FailureThreshold:     parseUint32(values["failure_threshold"]),
		OpenDuration:         values["open_duration"],
	}
	if changedAt, err := time.Parse(time.RFC3339Nano, values["changed_at"]); err == nil {
		state.ChangedAt = changedAt
	}
	return state, nil
}

func parseUint32(s string) uint32 {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}
