package auth

import (
	"errors"
)

var (
	// ErrInvalidCredentials covers unknown tenant, unknown user and wrong
	// password. Callers must surface one identical message for all three
	// so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRateLimited means too many attempts inside the current window.
	// The one failure that is allowed to look different to the client:
	// revealing rate limiting does not leak account existence.
	ErrRateLimited = errors.New("too many attempts")

	// ErrUnauthorized is the external collapse of every session failure:
	// no cookie, expired, and unknown token are indistinguishable to the
	// client.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSlugUnavailable means the requested tenant slug is taken,
	// reserved, or fails the slug grammar.
	ErrSlugUnavailable = errors.New("slug unavailable")

	// ErrInvalidResetToken means the password-reset token is unknown,
	// expired, or already used.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)
