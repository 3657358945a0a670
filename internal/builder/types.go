package builder

import (
	"context"

	"github.com/docker/docker/api/types"

	"github.com/alvesdmateus/base-images/internal/builder/registry"
	"github.com/alvesdmateus/base-images/internal/builder/strategies"
)

// Engine is the docker engine handle shared by the build and publish drivers
type Engine interface {
	strategies.BuildEngine
	registry.PushEngine

	// Ping checks that the daemon is reachable
	Ping(ctx context.Context) (types.Ping, error)

	// Close releases the underlying connection
	Close() error
}
