// Package data provides data access layer implementations.
// It handles database connections, Redis, downstream HTTP clients and the
// event bus adapters.
package data

import (
	"context"
	"fmt"

	pkgerrors "KuroAccounts/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewRedisClient,
	NewCacheClient,
	NewMySQLClient,
	NewCustomerRepo,
	NewCircuitStateRepo,
	NewDeliveryLogRepo,
	NewCardsClient,
	NewLoansClient,
	NewEventBus,
)

// Data groups the shared storage clients. MySQL is required; Redis is
// optional and its absence only degrades the remote cache, the circuit
// mirror and the Redis stream bus.
type Data struct {
	db     *gorm.DB
	rdb    *redis.Client
	logger *log.Helper
}

// NewData creates a new Data instance. A missing Redis client does not
// prevent startup.
func NewData(db *gorm.DB, rdb *redis.Client, logger log.Logger) (*Data, func(), error) {
	helper := log.NewHelper(logger)

	if db == nil {
		return nil, nil, fmt.Errorf("database connection is required")
	}
	if rdb == nil {
		helper.Warn("Redis client is nil, remote cache and circuit mirror are unavailable")
	}

	d := &Data{
		db:     db,
		rdb:    rdb,
		logger: helper,
	}

	cleanup := func() {
		helper.Info("closing the data resources")
	}

	return d, cleanup, nil
}

// Ping checks the database and, when configured, Redis. Only a database
// failure is returned; Redis failures are logged as degraded mode.
func (d *Data) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", pkgerrors.ClassifyDBError(err))
	}

	if d.rdb != nil {
		if err := d.rdb.Ping(ctx).Err(); err != nil {
			d.logger.Warnw("msg", "Redis ping failed (degraded mode)", "error", err)
		}
	}
	return nil
}

// RedisAvailable reports whether a Redis client was configured.
func (d *Data) RedisAvailable() bool {
	return d.rdb != nil
}
