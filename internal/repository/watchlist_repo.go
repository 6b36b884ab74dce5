package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"anime-watchlist/internal/domain"
)

// PgWatchlistRepository implementa WatchlistRepository usando pgxpool.
type PgWatchlistRepository struct {
	pool *pgxpool.Pool
}

func NewPgWatchlistRepository(pool *pgxpool.Pool) *PgWatchlistRepository {
	return &PgWatchlistRepository{pool: pool}
}

const entryColumns = `id, owner_id, external_anime_id, anime_data, status, watch_url, added_at`

func (r *PgWatchlistRepository) Create(ctx context.Context, entry domain.WatchlistEntry) error {
	const query = `
		INSERT INTO watchlist_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.OwnerID,
		entry.ExternalAnimeID,
		map[string]any(entry.AnimeSnapshot),
		string(entry.Status),
		entry.WatchURL,
		entry.AddedAt,
	)
	return mapPgError(err)
}

func (r *PgWatchlistRepository) GetByID(ctx context.Context, id string) (domain.WatchlistEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.WatchlistEntry{}, ErrNotFound
	}
	const query = `SELECT ` + entryColumns + ` FROM watchlist_entries WHERE id = $1`
	entry, err := scanEntry(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.WatchlistEntry{}, mapPgError(err)
	}
	return entry, nil
}

func (r *PgWatchlistRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.WatchlistEntry, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return []domain.WatchlistEntry{}, nil
	}
	const query = `
		SELECT ` + entryColumns + `
		FROM watchlist_entries
		WHERE owner_id = $1
		ORDER BY added_at DESC, id DESC
	`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	entries := make([]domain.WatchlistEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *PgWatchlistRepository) ExistsForOwner(ctx context.Context, ownerID string, externalAnimeID int) (bool, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return false, nil
	}
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM watchlist_entries WHERE owner_id = $1 AND external_anime_id = $2
		)
	`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, ownerID, externalAnimeID).Scan(&exists); err != nil {
		return false, mapPgError(err)
	}
	return exists, nil
}

func (r *PgWatchlistRepository) Update(ctx context.Context, entry domain.WatchlistEntry) (domain.WatchlistEntry, error) {
	const query = `
		UPDATE watchlist_entries
		SET anime_data = $1, status = $2, watch_url = $3
		WHERE id = $4 AND owner_id = $5
		RETURNING ` + entryColumns
	updated, err := scanEntry(r.pool.QueryRow(ctx, query,
		map[string]any(entry.AnimeSnapshot),
		string(entry.Status),
		entry.WatchURL,
		entry.ID,
		entry.OwnerID,
	))
	if err != nil {
		return domain.WatchlistEntry{}, mapPgError(err)
	}
	return updated, nil
}

func (r *PgWatchlistRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM watchlist_entries WHERE id = $1`
	return affectedOrNotFound(r.pool.Exec(ctx, query, id))
}

func scanEntry(row pgx.Row) (domain.WatchlistEntry, error) {
	var (
		entry  domain.WatchlistEntry
		data   map[string]any
		status string
	)
	if err := row.Scan(
		&entry.ID,
		&entry.OwnerID,
		&entry.ExternalAnimeID,
		&data,
		&status,
		&entry.WatchURL,
		&entry.AddedAt,
	); err != nil {
		return domain.WatchlistEntry{}, err
	}
	entry.AnimeSnapshot = domain.AnimeSnapshot(data)
	entry.Status = domain.WatchStatus(status)
	return entry, nil
}
