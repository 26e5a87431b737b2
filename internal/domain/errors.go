package domain

import "errors"

var (
	ErrPresenceUnavailable = errors.New("presence unavailable")
	ErrMissingSessionStart = errors.New("tracking state has no session start")
	ErrTickInProgress      = errors.New("tick already in progress")
	ErrUnknownBackend      = errors.New("unknown backend")
	ErrUnknownPolicy       = errors.New("unknown policy")
)
