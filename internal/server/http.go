package server

import (
	"KuroAccounts/internal/conf"
	"KuroAccounts/internal/server/middleware"
	"KuroAccounts/internal/service"
	pkglog "KuroAccounts/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer new an HTTP server serving the /api routes.
func NewHTTPServer(c *conf.Server, accounts *service.AccountService, customers *service.CustomerService, logger log.Logger) *http.Server {
	logHelper := pkglog.NewLogHelper(logger)

	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Logging(logHelper),
		),
	}
	if c != nil && c.HTTP != nil {
		if c.HTTP.Network != "" {
			opts = append(opts, http.Network(c.HTTP.Network))
		}
		if c.HTTP.Addr != "" {
			opts = append(opts, http.Address(c.HTTP.Addr))
		}
		if c.HTTP.Timeout > 0 {
			opts = append(opts, http.Timeout(c.HTTP.Timeout))
		}
	}
	srv := http.NewServer(opts...)

	api := srv.Route("/api")
	service.RegisterAccountHTTPServer(api, accounts)
	service.RegisterCustomerHTTPServer(api, customers)

	return srv
}
