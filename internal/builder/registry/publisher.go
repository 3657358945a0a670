package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/image"
	dockerregistry "github.com/docker/docker/api/types/registry"
	"github.com/rs/zerolog/log"

	"github.com/alvesdmateus/base-images/internal/definitions"
)

// Publisher pushes images through the docker engine and streams progress
type Publisher struct {
	engine       PushEngine
	config       Config
	registryAuth string
	out          io.Writer
	errOut       io.Writer
}

var _ Client = (*Publisher)(nil)

// NewPublisher creates a publisher. out receives status lines and progress
// dots, errOut receives engine error text.
func NewPublisher(engine PushEngine, config Config, out, errOut io.Writer) (*Publisher, error) {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = out
	}

	p := &Publisher{
		engine: engine,
		config: config,
		out:    out,
		errOut: errOut,
	}

	if config.Username != "" {
		encoded, err := dockerregistry.EncodeAuthConfig(dockerregistry.AuthConfig{
			Username:      config.Username,
			Password:      config.Password,
			ServerAddress: config.ServerAddress,
		})
		if err != nil {
			return nil, ErrAuthenticationFailed{Registry: config.ServerAddress, Err: err}
		}
		p.registryAuth = encoded
	}

	return p, nil
}

// Publish pushes target. Every event is drained even after an error so all
// failure detail reaches the operator. No retries are attempted.
func (p *Publisher) Publish(ctx context.Context, target definitions.PublishTarget) (bool, error) {
	imageTag := target.Reference()
	log.Info().Str("imageTag", imageTag).Msg("Pushing image")

	pushResponse, err := p.engine.ImagePush(ctx, imageTag, image.PushOptions{
		RegistryAuth: p.registryAuth,
	})
	if err != nil {
		fmt.Fprintf(p.errOut, "\n%s\n", err)
		return false, PublishError{ImageTag: imageTag, Err: err}
	}
	defer pushResponse.Close()

	messages, err := p.streamPushOutput(ctx, pushResponse)
	if err != nil {
		return false, PublishError{ImageTag: imageTag, Messages: messages, Err: err}
	}
	if len(messages) > 0 {
		log.Error().
			Str("imageTag", imageTag).
			Strs("errors", messages).
			Msg("Image push reported errors")
		return false, PublishError{ImageTag: imageTag, Messages: messages}
	}

	log.Info().Str("imageTag", imageTag).Msg("Image pushed successfully")
	return true, nil
}

// streamPushOutput prints each event as it arrives and collects error messages
func (p *Publisher) streamPushOutput(ctx context.Context, reader io.Reader) ([]string, error) {
	decoder := json.NewDecoder(reader)
	var lastStatus string
	var errs []string

	for {
		select {
		case <-ctx.Done():
			return errs, ctx.Err()
		default:
		}

		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return errs, nil
			}
			return errs, fmt.Errorf("failed to decode push output: %w", err)
		}

		event := DecodePushEvent(raw)
		switch event.Kind {
		case StatusEvent:
			if event.Status != lastStatus {
				fmt.Fprintf(p.out, "\n%s", event.Status)
				lastStatus = event.Status
			} else {
				fmt.Fprint(p.out, ".")
			}
		case ErrorEvent:
			fmt.Fprintf(p.errOut, "\n%s\n", event.Error)
			errs = append(errs, event.Error)
		default:
			fmt.Fprintf(p.out, "\n%s", event.Raw)
			lastStatus = ""
		}
	}
}
