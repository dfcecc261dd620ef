// Package server builds the kratos HTTP and gRPC servers.
package server

import "github.com/google/wire"

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer, NewHealthServer, NewGRPCServer)
