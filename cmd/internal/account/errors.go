package account

import "errors"

var (
	// ErrInvalidInput is returned when account data fails validation.
	ErrInvalidInput = errors.New("account: invalid input")

	// ErrNotFound is returned when no account matches the email.
	ErrNotFound = errors.New("account: not found")

	// ErrEmailExists is returned when the email already has an account.
	ErrEmailExists = errors.New("account: email already registered")

	// ErrNotEligible is returned when referral requirements are not met.
	ErrNotEligible = errors.New("account: not eligible for referral codes")
)
