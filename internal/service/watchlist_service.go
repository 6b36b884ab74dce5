package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"anime-watchlist/internal/domain"
	"anime-watchlist/internal/repository"
)

// WatchlistService aplica las reglas de propiedad sobre el watchlist.
type WatchlistService struct {
	logger       *zap.Logger
	entries      repository.WatchlistRepository
	shareBaseURL string
	now          func() time.Time
}

func NewWatchlistService(logger *zap.Logger, entries repository.WatchlistRepository, shareBaseURL string) *WatchlistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatchlistService{
		logger:       logger,
		entries:      entries,
		shareBaseURL: strings.TrimSpace(shareBaseURL),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type AddEntryInput struct {
	// ExternalAnimeID es opcional; si falta se toma de snapshot["mal_id"].
	ExternalAnimeID *int
	Snapshot        domain.AnimeSnapshot
	Status          domain.WatchStatus
	WatchURL        string
}

// OwnerListing es el listado de un usuario.
type OwnerListing struct {
	Count              int                     `json:"count"`
	Entries            []domain.WatchlistEntry `json:"data"`
	ShareWatchlistLink string                  `json:"shareWatchlistLink,omitempty"`
}

func (s *WatchlistService) AddEntry(ctx context.Context, ownerID string, input AddEntryInput) (domain.WatchlistEntry, error) {
	if strings.TrimSpace(ownerID) == "" {
		return domain.WatchlistEntry{}, ErrUnauthenticated
	}
	if len(input.Snapshot) == 0 {
		return domain.WatchlistEntry{}, fmt.Errorf("%w: anime data is required", ErrInvalidInput)
	}

	var externalID int
	if input.ExternalAnimeID != nil {
		externalID = *input.ExternalAnimeID
	} else {
		id, ok := input.Snapshot.MalID()
		if !ok {
			return domain.WatchlistEntry{}, fmt.Errorf("%w: anime id is required", ErrInvalidInput)
		}
		externalID = id
	}
	if externalID <= 0 {
		return domain.WatchlistEntry{}, fmt.Errorf("%w: anime id must be positive", ErrInvalidInput)
	}

	status := input.Status
	if status == "" {
		status = domain.StatusUnwatched
	}
	if !status.Valid() {
		return domain.WatchlistEntry{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	watchURL := strings.TrimSpace(input.WatchURL)
	if watchURL == "" {
		watchURL = domain.DefaultWatchURL
	}

	entry := domain.WatchlistEntry{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		ExternalAnimeID: externalID,
		AnimeSnapshot:   input.Snapshot,
		Status:          status,
		WatchURL:        watchURL,
		AddedAt:         s.now(),
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.WatchlistEntry{}, ErrAlreadyInWatchlist
		}
		return domain.WatchlistEntry{}, fmt.Errorf("create entry: %w", err)
	}
	return entry, nil
}

// ListEntries devuelve el watchlist del dueño junto con el enlace para compartirlo.
func (s *WatchlistService) ListEntries(ctx context.Context, identity *domain.Identity) (OwnerListing, error) {
	if identity == nil {
		return OwnerListing{}, ErrUnauthenticated
	}
	listing, err := s.listing(ctx, identity.UserID)
	if err != nil {
		return OwnerListing{}, err
	}
	listing.ShareWatchlistLink = s.shareLink(identity.UserID, identity.Name)
	return listing, nil
}

// ListEntriesPublic no exige autenticación; un dueño inexistente devuelve una lista vacía.
func (s *WatchlistService) ListEntriesPublic(ctx context.Context, ownerID string) (OwnerListing, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return OwnerListing{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	return s.listing(ctx, ownerID)
}

func (s *WatchlistService) listing(ctx context.Context, ownerID string) (OwnerListing, error) {
	entries, err := s.entries.ListByOwner(ctx, ownerID)
	if err != nil {
		return OwnerListing{}, fmt.Errorf("list entries: %w", err)
	}
	out := make([]domain.WatchlistEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.WithoutOwner())
	}
	return OwnerListing{Count: len(out), Entries: out}, nil
}

func (s *WatchlistService) DeleteEntry(ctx context.Context, requesterID, entryID string) error {
	if _, err := s.ownedEntry(ctx, requesterID, entryID); err != nil {
		return err
	}
	if err := s.entries.Delete(ctx, entryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEntryNotFound
		}
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// UpdateEntry aplica el patch. El dueño y el id externo no cambian nunca.
func (s *WatchlistService) UpdateEntry(ctx context.Context, requesterID, entryID string, patch domain.WatchlistPatch) (domain.WatchlistEntry, error) {
	entry, err := s.ownedEntry(ctx, requesterID, entryID)
	if err != nil {
		return domain.WatchlistEntry{}, err
	}

	if patch.Status != nil {
		if !patch.Status.Valid() {
			return domain.WatchlistEntry{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *patch.Status)
		}
		entry.Status = *patch.Status
	}
	if patch.AnimeSnapshot != nil {
		if len(patch.AnimeSnapshot) == 0 {
			return domain.WatchlistEntry{}, fmt.Errorf("%w: anime data cannot be empty", ErrInvalidInput)
		}
		entry.AnimeSnapshot = patch.AnimeSnapshot
	}
	if patch.WatchURL != nil {
		watchURL := strings.TrimSpace(*patch.WatchURL)
		if watchURL == "" {
			watchURL = domain.DefaultWatchURL
		}
		entry.WatchURL = watchURL
	}
	entry.OwnerID = requesterID

	updated, err := s.entries.Update(ctx, entry)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.WatchlistEntry{}, ErrEntryNotFound
		}
		return domain.WatchlistEntry{}, fmt.Errorf("update entry: %w", err)
	}
	return updated, nil
}

// Stats siempre incluye todas las claves de estado, aunque estén en cero.
func (s *WatchlistService) Stats(ctx context.Context, ownerID string) (domain.WatchlistStats, error) {
	entries, err := s.entries.ListByOwner(ctx, ownerID)
	if err != nil {
		return domain.WatchlistStats{}, fmt.Errorf("list entries: %w", err)
	}
	stats := domain.WatchlistStats{ByStatus: make(map[domain.WatchStatus]int, len(domain.WatchStatuses))}
	for _, st := range domain.WatchStatuses {
		stats.ByStatus[st] = 0
	}
	for _, e := range entries {
		stats.Total++
		if _, ok := stats.ByStatus[e.Status]; ok {
			stats.ByStatus[e.Status]++
			continue
		}
		// Valor desconocido en la base: se cuenta como Unwatched para no romper la suma.
		s.logger.Warn("entry with unknown status", zap.String("entry_id", e.ID), zap.String("status", string(e.Status)))
		stats.ByStatus[domain.StatusUnwatched]++
	}
	return stats, nil
}

func (s *WatchlistService) Contains(ctx context.Context, ownerID string, externalAnimeID int) (bool, error) {
	ok, err := s.entries.ExistsForOwner(ctx, ownerID, externalAnimeID)
	if err != nil {
		return false, fmt.Errorf("check entry: %w", err)
	}
	return ok, nil
}

func (s *WatchlistService) ownedEntry(ctx context.Context, requesterID, entryID string) (domain.WatchlistEntry, error) {
	if strings.TrimSpace(requesterID) == "" {
		return domain.WatchlistEntry{}, ErrUnauthenticated
	}
	entry, err := s.entries.GetByID(ctx, strings.TrimSpace(entryID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.WatchlistEntry{}, ErrEntryNotFound
		}
		return domain.WatchlistEntry{}, fmt.Errorf("get entry: %w", err)
	}
	if entry.OwnerID != requesterID {
		return domain.WatchlistEntry{}, ErrForbidden
	}
	return entry, nil
}

func (s *WatchlistService) shareLink(ownerID, name string) string {
	q := url.Values{}
	q.Set("id", ownerID)
	q.Set("name", normalizeName(name))
	return s.shareBaseURL + "?" + q.Encode()
}
