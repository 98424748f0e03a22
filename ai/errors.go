package ai

import "github.com/pkg/errors"

var (
	// ErrModelInvocation is returned when a model backend could not be
	// reached or returned an unusable response.
	ErrModelInvocation = errors.New("model invocation failed")

	// ErrModelContract is returned when generated output violates the
	// structured output contract of the operation.
	ErrModelContract = errors.New("model output violates contract")
)
