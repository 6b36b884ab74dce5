package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"anime-watchlist/internal/domain"
)

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, name, email, password_hash, is_verified, verification_token, reset_token, profile_image_url, registered_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.IsVerified,
		user.VerificationToken,
		user.ResetToken,
		user.ProfileImageURL,
		user.RegisteredAt,
	)
	return mapPgError(err)
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.User{}, ErrNotFound
	}
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *PgUserRepository) getOne(ctx context.Context, query string, arg any) (domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.IsVerified,
		&u.VerificationToken,
		&u.ResetToken,
		&u.ProfileImageURL,
		&u.RegisteredAt,
	)
	if err != nil {
		return domain.User{}, mapPgError(err)
	}
	return u, nil
}

func (r *PgUserRepository) MarkVerified(ctx context.Context, id, token string) error {
	const query = `
		UPDATE users
		SET is_verified = TRUE, verification_token = NULL
		WHERE id = $1 AND is_verified = FALSE AND verification_token = $2
	`
	return affectedOrNotFound(r.pool.Exec(ctx, query, id, token))
}

func (r *PgUserRepository) SetResetToken(ctx context.Context, id, token string) error {
	const query = `UPDATE users SET reset_token = $1 WHERE id = $2`
	return affectedOrNotFound(r.pool.Exec(ctx, query, token, id))
}

func (r *PgUserRepository) ResetPassword(ctx context.Context, id, token, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $1, reset_token = NULL
		WHERE id = $2 AND reset_token = $3
	`
	return affectedOrNotFound(r.pool.Exec(ctx, query, passwordHash, id, token))
}

func (r *PgUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $1 WHERE id = $2`
	return affectedOrNotFound(r.pool.Exec(ctx, query, passwordHash, id))
}

func (r *PgUserRepository) UpdateProfileImage(ctx context.Context, id, url string) error {
	const query = `UPDATE users SET profile_image_url = $1 WHERE id = $2`
	return affectedOrNotFound(r.pool.Exec(ctx, query, url, id))
}
