package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"anime-watchlist/internal/catalog"
	"anime-watchlist/internal/domain"
)

const (
	defaultListLimit = 10
	maxListLimit     = 25
)

var seasons = map[string]struct{}{
	"winter": {},
	"spring": {},
	"summer": {},
	"fall":   {},
}

// AnimeService expone el catálogo externo y lo combina con el watchlist del usuario.
type AnimeService struct {
	logger    *zap.Logger
	catalog   catalog.Client
	watchlist *WatchlistService
}

func NewAnimeService(logger *zap.Logger, client catalog.Client, watchlist *WatchlistService) *AnimeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnimeService{logger: logger, catalog: client, watchlist: watchlist}
}

// AnimeDetails es el detalle del catálogo más la marca de pertenencia al watchlist.
type AnimeDetails struct {
	AlreadyInWatchlist bool            `json:"alreadyInWatchlist"`
	Data               json.RawMessage `json:"data"`
}

func (s *AnimeService) Search(ctx context.Context, query string, limit int) ([]json.RawMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidInput)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	items, err := s.catalog.Search(ctx, query, limit)
	if err != nil {
		return nil, upstreamErr(err)
	}
	return items, nil
}

// Details sólo calcula alreadyInWatchlist cuando hay identidad.
func (s *AnimeService) Details(ctx context.Context, identity *domain.Identity, id int) (AnimeDetails, error) {
	if id <= 0 {
		return AnimeDetails{}, fmt.Errorf("%w: anime id must be positive", ErrInvalidInput)
	}
	data, err := s.catalog.Details(ctx, id)
	if err != nil {
		return AnimeDetails{}, upstreamErr(err)
	}
	out := AnimeDetails{Data: data}
	if identity != nil && s.watchlist != nil {
		found, err := s.watchlist.Contains(ctx, identity.UserID, id)
		if err != nil {
			return AnimeDetails{}, err
		}
		out.AlreadyInWatchlist = found
	}
	return out, nil
}

func (s *AnimeService) Reviews(ctx context.Context, id int) ([]json.RawMessage, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: anime id must be positive", ErrInvalidInput)
	}
	items, err := s.catalog.Reviews(ctx, id)
	if err != nil {
		return nil, upstreamErr(err)
	}
	return items, nil
}

func (s *AnimeService) Top(ctx context.Context, page int, category string, limit int) ([]json.RawMessage, error) {
	if page <= 0 {
		return nil, fmt.Errorf("%w: page must be positive", ErrInvalidInput)
	}
	n, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	items, err := s.catalog.Top(ctx, page, strings.ToLower(strings.TrimSpace(category)))
	if err != nil {
		return nil, upstreamErr(err)
	}
	return firstN(items, n), nil
}

func (s *AnimeService) Seasonal(ctx context.Context, year int, season string, limit int) ([]json.RawMessage, error) {
	season = strings.ToLower(strings.TrimSpace(season))
	if _, ok := seasons[season]; !ok {
		return nil, fmt.Errorf("%w: season must be one of winter, spring, summer, fall", ErrInvalidInput)
	}
	if year <= 0 {
		return nil, fmt.Errorf("%w: year must be positive", ErrInvalidInput)
	}
	n, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	items, err := s.catalog.Seasonal(ctx, year, season)
	if err != nil {
		return nil, upstreamErr(err)
	}
	return firstN(items, n), nil
}

// normalizeLimit: 0 usa el valor por defecto; el rango válido es 1..25.
func normalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return defaultListLimit, nil
	}
	if limit < 1 || limit > maxListLimit {
		return 0, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, maxListLimit)
	}
	return limit, nil
}

func firstN(items []json.RawMessage, n int) []json.RawMessage {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func upstreamErr(err error) error {
	if errors.Is(err, catalog.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return err
}
