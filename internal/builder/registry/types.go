package registry

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/image"

	"github.com/alvesdmateus/base-images/internal/definitions"
)

// Config contains registry push settings. Credentials are optional and passed
// through to the engine unchanged; an empty username pushes with whatever
// the engine already has.
type Config struct {
	ServerAddress string
	Username      string
	Password      string
}

// PushEngine is the part of the docker engine API the publish driver uses
type PushEngine interface {
	ImagePush(ctx context.Context, image string, options image.PushOptions) (io.ReadCloser, error)
}

// Client pushes built images to a registry
type Client interface {
	// Publish pushes target and reports whether no error event was observed
	Publish(ctx context.Context, target definitions.PublishTarget) (bool, error)
}
