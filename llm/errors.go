package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrConfig          = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrProvider        = errors.New("provider error")
	ErrDeserialization = errors.New("deserialization error")
	ErrTemplate        = errors.New("template error")
	ErrCapability      = errors.New("capability not supported")
)

// ValidationError lists every violation found in a batch of input
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", strings.Join(e.Violations, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ProviderFailure wraps err so that it matches ErrProvider while keeping the cause.
func ProviderFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProvider) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
}
