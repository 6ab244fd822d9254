package domain

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrContextNotFound   = errors.New("conversation context not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrBreakdownFailed   = errors.New("couldn't break that down, try again")
	ErrTrackerOffline    = errors.New("task tracker unreachable")
	ErrSecretNotFound    = errors.New("secret not found")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrNothingToCorrect  = errors.New("no recent task to correct")
	ErrEmptyInput        = errors.New("input text is empty")
	ErrInvalidDuration   = errors.New("no duration found in text")
)
