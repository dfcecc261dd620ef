//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"KuroAccounts/internal/biz"
	"KuroAccounts/internal/conf"
	"KuroAccounts/internal/data"
	"KuroAccounts/internal/server"
	"KuroAccounts/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"go.opentelemetry.io/otel/metric"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.Downstream, *conf.Cache, *conf.Events, metric.MeterProvider, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		server.ProviderSet,
		newScheduler,
		newApp,
	))
}
