package registry

import (
	"fmt"
	"strings"
)

// PublishError is returned when one or more error events were seen during a
// push, or the push could not be started at all
type PublishError struct {
	ImageTag string
	Messages []string
	Err      error
}

func (e PublishError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to push image %s: %v", e.ImageTag, e.Err)
	}
	return fmt.Sprintf("failed to push image %s: %s", e.ImageTag, strings.Join(e.Messages, "; "))
}

func (e PublishError) Unwrap() error {
	return e.Err
}

// ErrAuthenticationFailed is returned when the configured credentials cannot be encoded
type ErrAuthenticationFailed struct {
	Registry string
	Err      error
}

func (e ErrAuthenticationFailed) Error() string {
	return fmt.Sprintf("authentication failed for registry %s: %v", e.Registry, e.Err)
}

func (e ErrAuthenticationFailed) Unwrap() error {
	return e.Err
}
