package builder

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"
)

// EngineConfig holds docker engine connection settings
type EngineConfig struct {
	// Host overrides DOCKER_HOST when set, e.g. "unix:///var/run/docker.sock"
	Host string
}

// ErrEngineUnavailable is returned when the daemon cannot be reached
type ErrEngineUnavailable struct {
	Host string
	Err  error
}

func (e ErrEngineUnavailable) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("docker engine unavailable: %v", e.Err)
	}
	return fmt.Sprintf("docker engine unavailable at %s: %v", e.Host, e.Err)
}

func (e ErrEngineUnavailable) Unwrap() error {
	return e.Err
}

// NewEngine connects to the docker engine and verifies it responds. The
// caller owns the returned handle and must Close it.
func NewEngine(ctx context.Context, config EngineConfig) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if config.Host != "" {
		opts = append(opts, client.WithHost(config.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	if err := Verify(ctx, cli); err != nil {
		cli.Close()
		return nil, ErrEngineUnavailable{Host: config.Host, Err: err}
	}

	log.Debug().
		Str("host", cli.DaemonHost()).
		Str("apiVersion", cli.ClientVersion()).
		Msg("Connected to docker engine")

	return cli, nil
}

// Verify pings the engine
func Verify(ctx context.Context, engine Engine) error {
	ping, err := engine.Ping(ctx)
	if err != nil {
		return err
	}
	log.Debug().Str("apiVersion", ping.APIVersion).Str("osType", ping.OSType).Msg("Docker engine ping")
	return nil
}
