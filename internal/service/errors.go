package service

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrGameNotFound         = errors.New("game not found")
	ErrPlayerNotFound       = errors.New("player not found")
	ErrInvalidGameConfig    = errors.New("invalid game configuration")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: username already exists")
	ErrInvalidCredentials   = errors.New("username and password are required")
	ErrInternalServer       = errors.New("internal server error")
)
