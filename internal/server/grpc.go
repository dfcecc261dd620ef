package server

import (
	"KuroAccounts/internal/biz"
	"KuroAccounts/internal/conf"
	"KuroAccounts/internal/model"
	"KuroAccounts/internal/server/middleware"
	pkglog "KuroAccounts/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewHealthServer creates the gRPC health service. The overall service ("")
// starts serving and is later driven by the storage ping job; each
// downstream dependency is reported under its own name and is NOT_SERVING
// while its breaker is open.
func NewHealthServer(breakers *biz.CircuitBreakerRegistry) *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	for _, state := range breakers.Snapshot() {
		hs.SetServingStatus(state.Dependency, servingStatus(state.Mode))
	}
	breakers.OnTransition(func(dependency, _, to string) {
		hs.SetServingStatus(dependency, servingStatus(to))
	})
	return hs
}

func servingStatus(mode string) healthpb.HealthCheckResponse_ServingStatus {
	if mode == model.CircuitOpen {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

// NewGRPCServer new a gRPC server exposing the health service.
func NewGRPCServer(c *conf.Server, hs *health.Server, logger log.Logger) *grpc.Server {
	var opts = []grpc.ServerOption{
		grpc.CustomHealth(),
		grpc.Middleware(
			recovery.Recovery(),
			middleware.Logging(pkglog.NewLogHelper(logger)),
		),
	}
	if c != nil && c.GRPC != nil {
		if c.GRPC.Network != "" {
			opts = append(opts, grpc.Network(c.GRPC.Network))
		}
		if c.GRPC.Addr != "" {
			opts = append(opts, grpc.Address(c.GRPC.Addr))
		}
		if c.GRPC.Timeout > 0 {
			opts = append(opts, grpc.Timeout(c.GRPC.Timeout))
		}
	}
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}
