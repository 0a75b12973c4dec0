// Package validation provides common validation utilities for limiter
// arguments and configuration parameters across the smoothrate library.
//
// Constructor and config checks return errors that unwrap to
// errors.ErrInvalidConfiguration. Checks on call arguments (permit counts,
// rates passed to SetRate) return errors that unwrap to
// errors.ErrInvalidArgument.
package validation
