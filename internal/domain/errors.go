package domain

import (
	"errors"
	"fmt"
)

// AuthError marks a credential or token rejection. Auth failures are
// fatal: the run aborts instead of burning through every principal with
// the same broken credential.
type AuthError struct {
	Provider Provider
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuth reports whether err is (or wraps) an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// NormalizationError marks a raw item that could not be mapped into a
// canonical message. The item is skipped and recorded; it never aborts
// the principal or the run.
type NormalizationError struct {
	ProviderID string
	Reason     string
	Err        error
}

func (e *NormalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize %s: %s: %v", e.ProviderID, e.Reason, e.Err)
	}
	return fmt.Sprintf("normalize %s: %s", e.ProviderID, e.Reason)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// IsNormalization reports whether err is (or wraps) a NormalizationError.
func IsNormalization(err error) bool {
	var ne *NormalizationError
	return errors.As(err, &ne)
}
