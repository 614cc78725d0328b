package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrUnauthorized  = fmt.Errorf("unauthorized")
	ErrTokenExpired  = fmt.Errorf("credential expired")
	ErrTokenInvalid  = fmt.Errorf("credential invalid")
	ErrStateMismatch = fmt.Errorf("state parameter mismatch")

	// API and service errors
	ErrUpstream           = fmt.Errorf("upstream request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrUserNotFound       = fmt.Errorf("user not found")

	// Playlist generation errors
	ErrParseFailed         = fmt.Errorf("generated response could not be parsed")
	ErrInsufficientMatches = fmt.Errorf("too few suggestions matched upstream tracks")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
