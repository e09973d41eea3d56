//go:build wireinject

package agent

import (
	"github.com/google/wire"

	"github.com/Quaternioneer/trezor-agent/internal/config"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// serviceSet groups the providers required for initing a server.
var serviceSet = wire.NewSet(
	newServerWithComponents,
	NewRegistry,
	NewBackend,
	NewClock,
	NewAuditLogger,
)

// InitNewServer returns a new Server instance assembled from configuration.
func InitNewServer(
	_ config.Server,
) (*Server, error) {
	wire.Build(serviceSet)
	return new(Server), nil
}
