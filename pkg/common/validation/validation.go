// Package validation provides common validation utilities for the smoothrate library.
package validation

import (
	"math"

	srerrors "github.com/vnykmshr/smoothrate/pkg/common/errors"
)

// ValidatePermits validates a permit count passed to an acquire-family call.
// Returns an argument ValidationError if the count is not positive.
func ValidatePermits(module string, n int) error {
	if n <= 0 {
		return srerrors.NewArgumentError(module, "permits", n, "must be positive").
			WithHint("request at least one permit")
	}
	return nil
}

// ValidateRate validates a rate passed to SetRate.
// NaN and infinite values are rejected along with non-positive ones.
func ValidateRate(module, field string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return srerrors.NewArgumentError(module, field, value, "must be a positive finite number").
			WithHint("rate is expressed in permits per second")
	}
	return nil
}

// ValidateNonNegative validates that a numeric value is non-negative (>= 0).
// Returns a ValidationError if the value is negative.
func ValidateNonNegative(module, field string, value float64) error {
	if value < 0 || math.IsNaN(value) {
		return srerrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 or a positive value")
	}
	return nil
}

// ValidateNonNegativeInt validates that an integer value is non-negative (>= 0).
func ValidateNonNegativeInt(module, field string, value int) error {
	if value < 0 {
		return srerrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 or a positive value")
	}
	return nil
}

// ValidatePositiveFloat validates that a float64 value is positive (> 0) and finite.
// Returns a ValidationError if the value is not positive.
func ValidatePositiveFloat(module, field string, value float64) error {
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return srerrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNotEmpty validates that a string value is not empty.
// Returns a ValidationError if the string is empty.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return srerrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}
