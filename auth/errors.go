package auth

import "errors"

var (
	// ErrAuthFailed means the state machine ended in Failed.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrStartup means the login page could not be opened at all.
	ErrStartup = errors.New("could not open the sign-in page")
)
