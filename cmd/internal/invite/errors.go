package invite

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("invite code not found")
	ErrCodeExists   = errors.New("invite code already exists")
	ErrAlreadyUsed  = errors.New("invite code already used")
	ErrExpired      = errors.New("invite code expired")

	// ErrEmailTaken is returned by AccountCreator implementations when the
	// redeeming email already owns an account.
	ErrEmailTaken = errors.New("email already has an account")
)
