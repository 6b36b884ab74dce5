package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL     = "https://api.jikan.moe/v4"
	DefaultSearchLimit = 6
	maxBodyBytes       = 8 << 20
)

// ErrUnavailable cubre errores de transporte, respuestas no 2xx y cuerpos ilegibles.
var ErrUnavailable = errors.New("catalog unavailable")

// Client es el contrato del catálogo externo de anime. Los documentos se
// devuelven tal cual los entrega el proveedor.
type Client interface {
	Search(ctx context.Context, query string, limit int) ([]json.RawMessage, error)
	Details(ctx context.Context, id int) (json.RawMessage, error)
	Reviews(ctx context.Context, id int) ([]json.RawMessage, error)
	Top(ctx context.Context, page int, category string) ([]json.RawMessage, error)
	Seasonal(ctx context.Context, year int, season string) ([]json.RawMessage, error)
}

// JikanClient implementa Client contra la API v4 de Jikan.
type JikanClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewJikanClient(baseURL string, timeout time.Duration, logger *zap.Logger) *JikanClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JikanClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type listEnvelope struct {
	Data []json.RawMessage `json:"data"`
}

type itemEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// Search trata un 404 del proveedor como "sin resultados".
func (c *JikanClient) Search(ctx context.Context, query string, limit int) ([]json.RawMessage, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	var env listEnvelope
	status, err := c.get(ctx, "/anime", q, &env)
	if status == http.StatusNotFound {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	return nonNil(env.Data), nil
}

func (c *JikanClient) Details(ctx context.Context, id int) (json.RawMessage, error) {
	var env itemEnvelope
	if _, err := c.get(ctx, fmt.Sprintf("/anime/%d/full", id), nil, &env); err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("%w: empty details payload", ErrUnavailable)
	}
	return env.Data, nil
}

func (c *JikanClient) Reviews(ctx context.Context, id int) ([]json.RawMessage, error) {
	var env listEnvelope
	if _, err := c.get(ctx, fmt.Sprintf("/anime/%d/reviews", id), nil, &env); err != nil {
		return nil, err
	}
	return nonNil(env.Data), nil
}

// Top omite el filtro de tipo cuando category está vacío o es "all".
func (c *JikanClient) Top(ctx context.Context, page int, category string) ([]json.RawMessage, error) {
	if page <= 0 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if category = strings.TrimSpace(category); category != "" && !strings.EqualFold(category, "all") {
		q.Set("type", category)
	}

	var env listEnvelope
	if _, err := c.get(ctx, "/top/anime", q, &env); err != nil {
		return nil, err
	}
	return nonNil(env.Data), nil
}

func (c *JikanClient) Seasonal(ctx context.Context, year int, season string) ([]json.RawMessage, error) {
	var env listEnvelope
	path := fmt.Sprintf("/seasons/%d/%s", year, url.PathEscape(season))
	if _, err := c.get(ctx, path, nil, &env); err != nil {
		return nil, err
	}
	return nonNil(env.Data), nil
}

// get devuelve el status HTTP (0 si no hubo respuesta) y decodifica el cuerpo en out.
func (c *JikanClient) get(ctx context.Context, path string, query url.Values, out any) (int, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("catalog request failed", zap.String("path", path), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("catalog error status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(body, 512)),
		)
		return resp.StatusCode, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, nil
}

func nonNil(items []json.RawMessage) []json.RawMessage {
	if items == nil {
		return []json.RawMessage{}
	}
	return items
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
