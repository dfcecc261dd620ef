// Package middleware holds the kratos middleware shared by the HTTP and gRPC
// servers.
package middleware

import (
	"context"
	"strings"

	"KuroAccounts/internal/data"
	pkglog "KuroAccounts/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// Logging returns a middleware that tags each request with a correlation id
// and logs its outcome.
//
// The id is read from the correlation-id header, or generated when absent,
// and echoed in the reply header. It is stored in the request context for
// downstream calls and event logs.
//
//	🟢 GET /api/fetchCustomerDetails?mobileNumber=4354437687 - 200 (42ms) | CorrelationID: mgrn0zfqda12
func Logging(logger *pkglog.LogHelper) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			var (
				method        string
				path          string
				ip            string
				userAgent     string
				correlationID string
				operation     string
			)

			if tr, ok := transport.FromServerContext(ctx); ok {
				operation = tr.Operation()
				method = tr.Kind().String()
				path = tr.Operation()
				correlationID = tr.RequestHeader().Get(data.CorrelationIDHeader)

				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					method = httpReq.Method
					path = httpReq.URL.Path
					if httpReq.URL.RawQuery != "" {
						path = path + "?" + httpReq.URL.RawQuery
					}
					ip = extractClientIP(httpReq)
					userAgent = httpReq.Header.Get("User-Agent")
				}
			}
			if correlationID == "" {
				correlationID = pkglog.GenerateCorrelationID()
			}
			if tr, ok := transport.FromServerContext(ctx); ok {
				tr.ReplyHeader().Set(data.CorrelationIDHeader, correlationID)
			}

			ctx = pkglog.WithRequestContext(ctx, correlationID, operation)

			reply, err := handler(ctx, req)

			logger.Request(ctx, method, path, extractStatus(err), pkglog.GetElapsedTime(ctx),
				"ip", ip,
				"user_agent", userAgent,
			)

			return reply, err
		}
	}
}

// extractClientIP returns the client address.
// Priority: X-Real-IP > X-Forwarded-For > RemoteAddr
func extractClientIP(req *http.Request) string {
	if ip := req.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	return req.RemoteAddr
}

// extractStatus maps err to the HTTP status the error encoder will send.
func extractStatus(err error) int {
	if err == nil {
		return 200
	}
	return int(errors.FromError(err).Code)
}
