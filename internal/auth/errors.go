package auth

import "errors"

// User-facing error taxonomy. Handlers and the notifier branch on these;
// anything else is surfaced wrapped with its original message.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAlreadyRegistered  = errors.New("this email is already registered")
	ErrProfileMissing     = errors.New("could not retrieve user profile")
	ErrNotAuthenticated   = errors.New("user not authenticated")
	ErrProfileNotFound    = errors.New("profile not found")
)
