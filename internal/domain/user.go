package domain

import "time"

type User struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	IsVerified        bool      `json:"isVerified"`
	VerificationToken *string   `json:"-"`
	ResetToken        *string   `json:"-"`
	ProfileImageURL   *string   `json:"profileImageUrl"`
	RegisteredAt      time.Time `json:"registeredAt"`
}

// PublicUser es la proyección compartible de un usuario: sin email, hash ni tokens.
type PublicUser struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ProfileImageURL *string   `json:"profileImageUrl"`
	RegisteredAt    time.Time `json:"registeredAt"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Name:            u.Name,
		ProfileImageURL: u.ProfileImageURL,
		RegisteredAt:    u.RegisteredAt,
	}
}

// Identity es el usuario autenticado resuelto a partir de un session token.
type Identity struct {
	UserID string
	Name   string
	Email  string
}
