package repository

import (
	"context"
	"sort"
	"sync"

	"anime-watchlist/internal/domain"
)

// MemoryUserRepository guarda usuarios en memoria. Útil para desarrollo local y tests.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[user.Email]; ok {
		return ErrDuplicate
	}
	if _, ok := r.byID[user.ID]; ok {
		return ErrDuplicate
	}
	r.byID[user.ID] = cloneUser(user)
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryUserRepository) MarkVerified(_ context.Context, id, token string) error {
	return r.mutateIf(id, func(u domain.User) bool {
		return !u.IsVerified && pendingToken(u.VerificationToken, token)
	}, func(u *domain.User) {
		u.IsVerified = true
		u.VerificationToken = nil
	})
}

func (r *MemoryUserRepository) SetResetToken(_ context.Context, id, token string) error {
	return r.mutate(id, func(u *domain.User) {
		u.ResetToken = &token
	})
}

func (r *MemoryUserRepository) ResetPassword(_ context.Context, id, token, passwordHash string) error {
	return r.mutateIf(id, func(u domain.User) bool {
		return pendingToken(u.ResetToken, token)
	}, func(u *domain.User) {
		u.PasswordHash = passwordHash
		u.ResetToken = nil
	})
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return r.mutate(id, func(u *domain.User) {
		u.PasswordHash = passwordHash
	})
}

func (r *MemoryUserRepository) UpdateProfileImage(_ context.Context, id, url string) error {
	return r.mutate(id, func(u *domain.User) {
		u.ProfileImageURL = &url
	})
}

func (r *MemoryUserRepository) mutate(id string, fn func(*domain.User)) error {
	return r.mutateIf(id, nil, fn)
}

// mutateIf evalúa cond y aplica fn bajo el mismo lock.
func (r *MemoryUserRepository) mutateIf(id string, cond func(domain.User) bool, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok || (cond != nil && !cond(user)) {
		return ErrNotFound
	}
	fn(&user)
	r.byID[id] = user
	return nil
}

func cloneUser(u domain.User) domain.User {
	u.VerificationToken = cloneString(u.VerificationToken)
	u.ResetToken = cloneString(u.ResetToken)
	u.ProfileImageURL = cloneString(u.ProfileImageURL)
	return u
}

func pendingToken(stored *string, token string) bool {
	return stored != nil && *stored == token
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// MemoryWatchlistRepository guarda entradas del watchlist en memoria.
type MemoryWatchlistRepository struct {
	mu      sync.RWMutex
	entries map[string]domain.WatchlistEntry
}

func NewMemoryWatchlistRepository() *MemoryWatchlistRepository {
	return &MemoryWatchlistRepository{entries: make(map[string]domain.WatchlistEntry)}
}

func (r *MemoryWatchlistRepository) Create(_ context.Context, entry domain.WatchlistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.ID]; ok {
		return ErrDuplicate
	}
	for _, e := range r.entries {
		if e.OwnerID == entry.OwnerID && e.ExternalAnimeID == entry.ExternalAnimeID {
			return ErrDuplicate
		}
	}
	r.entries[entry.ID] = cloneEntry(entry)
	return nil
}

func (r *MemoryWatchlistRepository) GetByID(_ context.Context, id string) (domain.WatchlistEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return domain.WatchlistEntry{}, ErrNotFound
	}
	return cloneEntry(entry), nil
}

func (r *MemoryWatchlistRepository) ListByOwner(_ context.Context, ownerID string) ([]domain.WatchlistEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.WatchlistEntry, 0)
	for _, e := range r.entries {
		if e.OwnerID == ownerID {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].AddedAt.After(out[j].AddedAt)
	})
	return out, nil
}

func (r *MemoryWatchlistRepository) ExistsForOwner(_ context.Context, ownerID string, externalAnimeID int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.OwnerID == ownerID && e.ExternalAnimeID == externalAnimeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryWatchlistRepository) Update(_ context.Context, entry domain.WatchlistEntry) (domain.WatchlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.entries[entry.ID]
	if !ok || current.OwnerID != entry.OwnerID {
		return domain.WatchlistEntry{}, ErrNotFound
	}
	current.AnimeSnapshot = entry.AnimeSnapshot
	current.Status = entry.Status
	current.WatchURL = entry.WatchURL
	r.entries[entry.ID] = cloneEntry(current)
	return cloneEntry(current), nil
}

func (r *MemoryWatchlistRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

// cloneEntry copia el snapshot a un nivel para que los llamadores no compartan el mapa.
func cloneEntry(e domain.WatchlistEntry) domain.WatchlistEntry {
	if e.AnimeSnapshot != nil {
		snap := make(domain.AnimeSnapshot, len(e.AnimeSnapshot))
		for k, v := range e.AnimeSnapshot {
			snap[k] = v
		}
		e.AnimeSnapshot = snap
	}
	return e
}
