package referral

import "errors"

var (
	// ErrInvalidInput is returned when a referral fails validation.
	ErrInvalidInput = errors.New("referral: invalid input")

	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("referral: not found")

	// ErrAlreadyClaimed is returned when a reward tier was already claimed.
	ErrAlreadyClaimed = errors.New("referral: reward already claimed")
)
