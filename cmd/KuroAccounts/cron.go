package main

import (
	"context"
	"time"

	"KuroAccounts/internal/biz"
	"KuroAccounts/internal/data"
	"KuroAccounts/internal/model"
	pkglog "KuroAccounts/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// newScheduler registers the housekeeping jobs. The scheduler is started and
// stopped by the app lifecycle hooks.
//
// Every minute: refresh the accounts gauge and log the view cache stats.
// Every 30 seconds: ping storage and publish the result on the gRPC health
// server under the empty service name.
func newScheduler(
	accounts *biz.AccountUsecase,
	views *biz.ResultCache[*model.CustomerDetails],
	d *data.Data,
	hs *health.Server,
	logger log.Logger,
) *cron.Cron {
	helper := pkglog.NewLogHelper(logger)

	c := cron.New(cron.WithSeconds())

	_, err := c.AddFunc("0 * * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := accounts.RefreshAccountCount(ctx); err != nil {
			helper.Scheduler("account count refresh failed", "error", err)
		}

		stats := views.Stats()
		helper.CacheStats(stats.Name, int64(stats.Size), stats.Hits, stats.Misses)
	})
	if err != nil {
		helper.Scheduler("failed to register stats job", "error", err)
	}

	_, err = c.AddFunc("*/30 * * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err := d.Ping(ctx); err != nil {
			helper.Scheduler("storage ping failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", status)
	})
	if err != nil {
		helper.Scheduler("failed to register storage ping job", "error", err)
	}

	helper.Scheduler("scheduler configured", "jobs", len(c.Entries()))
	return c
}
