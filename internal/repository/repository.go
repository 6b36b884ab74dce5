package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"anime-watchlist/internal/domain"
)

var (
	// ErrNotFound se devuelve cuando la entidad no existe o el id no es válido.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate se devuelve cuando se viola un índice único.
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	// MarkVerified y ResetPassword solo escriben si el token sigue pendiente;
	// si no coincide devuelven ErrNotFound.
	MarkVerified(ctx context.Context, id, token string) error
	SetResetToken(ctx context.Context, id, token string) error
	ResetPassword(ctx context.Context, id, token, passwordHash string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfileImage(ctx context.Context, id, url string) error
}

// WatchlistRepository define el contrato de persistencia para el watchlist.
type WatchlistRepository interface {
	Create(ctx context.Context, entry domain.WatchlistEntry) error
	GetByID(ctx context.Context, id string) (domain.WatchlistEntry, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.WatchlistEntry, error)
	ExistsForOwner(ctx context.Context, ownerID string, externalAnimeID int) (bool, error)
	Update(ctx context.Context, entry domain.WatchlistEntry) (domain.WatchlistEntry, error)
	Delete(ctx context.Context, id string) error
}

// Códigos SQLSTATE que se traducen a errores del repositorio.
const (
	pgUniqueViolation      = "23505"
	pgInvalidTextRepresent = "22P02"
)

// mapPgError traduce errores de pgx a ErrNotFound / ErrDuplicate.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicate
		case pgInvalidTextRepresent:
			return ErrNotFound
		}
	}
	return err
}

func affectedOrNotFound(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
