package waitlist

import "errors"

var (
	// ErrInvalidInput is returned when a signup fails validation.
	ErrInvalidInput = errors.New("waitlist: invalid input")

	// ErrEmailExists is returned when the email is already on the list.
	ErrEmailExists = errors.New("waitlist: email already registered")

	// ErrNotFound is returned when no entry matches the email.
	ErrNotFound = errors.New("waitlist: entry not found")

	// ErrDisposableEmail is returned when the email domain is denylisted.
	ErrDisposableEmail = errors.New("waitlist: disposable email domain")
)
