package service

import "errors"

// Errores de negocio. El router los traduce a códigos HTTP y mensajes públicos.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthenticated     = errors.New("not authenticated")
	ErrForbidden           = errors.New("forbidden")
	ErrUserNotFound        = errors.New("user not found")
	ErrEntryNotFound       = errors.New("watchlist entry not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrAlreadyInWatchlist  = errors.New("anime already in watchlist")
	ErrNotVerified         = errors.New("account not verified")
	ErrAlreadyVerified     = errors.New("account already verified")
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidDetails      = errors.New("invalid details")
	ErrUploadFailed        = errors.New("upload failed")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
