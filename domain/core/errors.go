package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Construction errors: misconfiguration, surfaced as hard failures
	ErrInvalidSpectralWindow = errors.New("invalid spectral window")
	ErrMissingField          = errors.New("required field missing from measurement")
	ErrShapeMismatch         = errors.New("shape mismatch")
	ErrGridMismatch          = errors.New("theory grid mismatch")
	ErrInvalidObservation    = errors.New("invalid canonical observation")
	ErrDuplicateParameter    = errors.New("duplicate parameter name")

	// Per-evaluation errors: converted to -Inf likelihood by the caller
	ErrParameterOutOfDomain = errors.New("parameter out of model domain")
	ErrInvalidParameter     = errors.New("parameter outside prior support")

	// Strict mode only
	ErrSingularCovariance = errors.New("covariance matrix is singular")
)

// Error constructors with context
func NewSpectralWindowError(index, count int) error {
	return fmt.Errorf("%w: index %d, measurement has %d windows", ErrInvalidSpectralWindow, index, count)
}

func NewMissingFieldError(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

func NewShapeMismatchError(what string, got, want int) error {
	return fmt.Errorf("%w: %s has %d elements, want %d", ErrShapeMismatch, what, got, want)
}

func NewGridMismatchError(reason string) error {
	return fmt.Errorf("%w: %s", ErrGridMismatch, reason)
}

func NewOutOfDomainError(model string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrParameterOutOfDomain, model, err)
}

func NewSingularCovarianceError(n int) error {
	return fmt.Errorf("%w: %dx%d matrix is not positive definite", ErrSingularCovariance, n, n)
}

// Error checking helpers
func IsConstructionError(err error) bool {
	return errors.Is(err, ErrInvalidSpectralWindow) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrShapeMismatch) ||
		errors.Is(err, ErrGridMismatch) ||
		errors.Is(err, ErrInvalidObservation) ||
		errors.Is(err, ErrDuplicateParameter)
}

func IsEvaluationError(err error) bool {
	return errors.Is(err, ErrParameterOutOfDomain) ||
		errors.Is(err, ErrInvalidParameter)
}
