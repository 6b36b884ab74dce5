package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anime-watchlist/internal/catalog"
	"anime-watchlist/internal/repository"
	"anime-watchlist/internal/service"
)

type captureSender struct {
	mu    sync.Mutex
	links []string
}

func (s *captureSender) SendAccountVerification(_ context.Context, _, _, link string) error {
	return s.add(link)
}

func (s *captureSender) SendPasswordReset(_ context.Context, _, _, link string) error {
	return s.add(link)
}

func (s *captureSender) add(link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, link)
	return nil
}

func (s *captureSender) lastToken(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.links) == 0 {
		t.Fatalf("no email captured")
	}
	u, err := url.Parse(s.links[len(s.links)-1])
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return u.Query().Get("token")
}

type stubCatalog struct {
	err error
}

func (s stubCatalog) Search(_ context.Context, q string, _ int) ([]json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []json.RawMessage{json.RawMessage(fmt.Sprintf(`{"mal_id":1,"title":%q}`, q))}, nil
}

func (s stubCatalog) Details(_ context.Context, id int) (json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(fmt.Sprintf(`{"mal_id":%d}`, id)), nil
}

func (s stubCatalog) Reviews(context.Context, int) ([]json.RawMessage, error) {
	return nil, s.err
}

func (s stubCatalog) Top(context.Context, int, string) ([]json.RawMessage, error) {
	return s.list(30)
}

func (s stubCatalog) Seasonal(context.Context, int, string) ([]json.RawMessage, error) {
	return s.list(30)
}

func (s stubCatalog) list(n int) ([]json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]json.RawMessage, n)
	for i := range out {
		out[i] = json.RawMessage(fmt.Sprintf(`{"mal_id":%d}`, i+1))
	}
	return out, nil
}

var _ catalog.Client = stubCatalog{}

type testServer struct {
	router *gin.Engine
	sender *captureSender
	jwt    *service.JWTService
}

func newTestServer(t *testing.T, cat catalog.Client) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	users := repository.NewMemoryUserRepository()
	entries := repository.NewMemoryWatchlistRepository()
	sender := &captureSender{}
	jwtSvc := service.NewJWTService("test-secret", time.Hour)

	accounts := service.NewAccountService(logger, users, jwtSvc, sender, nil, service.AccountOptions{
		FrontendURL: "http://localhost:3000",
		BcryptCost:  10,
	})
	watchlist := service.NewWatchlistService(logger, entries, "http://localhost:3000/shared")
	anime := service.NewAnimeService(logger, cat, watchlist)

	router := NewRouter(
		logger,
		NewMetrics(nil),
		NewAuthMiddleware(logger, jwtSvc, accounts),
		Handlers{
			Users:     NewUserHandler(logger, accounts),
			Watchlist: NewWatchlistHandler(logger, watchlist, anime),
			Catalog:   NewCatalogHandler(logger, anime),
		},
		nil,
	)
	return &testServer{router: router, sender: sender, jwt: jwtSvc}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func (s *testServer) registerAndLogin(t *testing.T, name, email, password string) string {
	t.Helper()
	if code, body := s.do(t, http.MethodPost, "/auth/register", "", gin.H{"name": name, "email": email, "password": password}); code != http.StatusCreated {
		t.Fatalf("register: %d %v", code, body)
	}
	token := s.sender.lastToken(t)
	if code, body := s.do(t, http.MethodPost, "/auth/verify-account", "", gin.H{"email": email, "token": token}); code != http.StatusOK {
		t.Fatalf("verify: %d %v", code, body)
	}
	code, body := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": email, "password": password})
	if code != http.StatusOK {
		t.Fatalf("login: %d %v", code, body)
	}
	return "Bearer " + body["token"].(string)
}

func TestScenario_RegisterVerifyLoginWatchlist(t *testing.T) {
	s := newTestServer(t, stubCatalog{})

	code, body := s.do(t, http.MethodPost, "/auth/register", "", gin.H{"name": "Alice", "email": "a@x.com", "password": "secret1"})
	if code != http.StatusCreated || body["success"] != true {
		t.Fatalf("register: expected 201, got %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "a@x.com", "password": "secret1"})
	if code != http.StatusUnauthorized || body["error"] != "Please verify your account before logging in." {
		t.Fatalf("login before verify: expected 401 not verified, got %d %v", code, body)
	}

	token := s.sender.lastToken(t)
	if len(token) != 7 {
		t.Fatalf("expected 7-char token, got %q", token)
	}
	if code, body = s.do(t, http.MethodPost, "/auth/verify-account", "", gin.H{"email": "a@x.com", "token": token}); code != http.StatusOK {
		t.Fatalf("verify: %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "a@x.com", "password": "secret1"})
	if code != http.StatusOK {
		t.Fatalf("login: %d %v", code, body)
	}
	session, _ := body["token"].(string)
	if session == "" || body["expiresAt"] == nil {
		t.Fatalf("expected session token and expiry, got %v", body)
	}
	bearer := "Bearer " + session

	add := gin.H{"animeData": gin.H{"mal_id": 5, "title": "Bebop"}, "status": "Watching"}
	code, body = s.do(t, http.MethodPost, "/watchlist", bearer, add)
	if code != http.StatusCreated {
		t.Fatalf("add: expected 201, got %d %v", code, body)
	}
	entry := body["data"].(map[string]any)
	entryID := entry["id"].(string)
	if entry["animeStatus"] != "Watching" || entry["externalAnimeId"] != float64(5) {
		t.Fatalf("unexpected entry: %v", entry)
	}

	code, body = s.do(t, http.MethodPost, "/watchlist", bearer, add)
	if code != http.StatusBadRequest {
		t.Fatalf("duplicate add: expected 400, got %d %v", code, body)
	}

	code, body = s.do(t, http.MethodGet, "/watchlist", bearer, nil)
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("list: expected 1 entry, got %d %v", code, body)
	}
	listed := body["data"].([]any)[0].(map[string]any)
	if listed["animeStatus"] != "Watching" {
		t.Fatalf("unexpected listed entry: %v", listed)
	}
	if _, ok := listed["ownerId"]; ok {
		t.Fatalf("owner must be stripped from listing")
	}
	if !strings.Contains(body["shareWatchlistLink"].(string), "name=alice") {
		t.Fatalf("unexpected share link: %v", body["shareWatchlistLink"])
	}

	code, body = s.do(t, http.MethodDelete, "/watchlist/"+entryID, bearer, nil)
	if code != http.StatusOK {
		t.Fatalf("delete: %d %v", code, body)
	}
	if data, ok := body["data"].(map[string]any); !ok || len(data) != 0 {
		t.Fatalf("expected empty payload, got %v", body["data"])
	}

	code, body = s.do(t, http.MethodGet, "/watchlist", bearer, nil)
	if code != http.StatusOK || body["count"] != float64(0) || len(body["data"].([]any)) != 0 {
		t.Fatalf("list after delete: %d %v", code, body)
	}
}

func TestScenario_ForgotAndResetPassword(t *testing.T) {
	s := newTestServer(t, stubCatalog{})
	s.registerAndLogin(t, "Bob", "b@x.com", "secret1")

	code, body := s.do(t, http.MethodPut, "/auth/forgot-password", "", gin.H{"email": "nobody@x.com"})
	if code != http.StatusNotFound {
		t.Fatalf("forgot unknown: expected 404, got %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPut, "/auth/forgot-password", "", gin.H{"email": "b@x.com"})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("forgot: %d %v", code, body)
	}
	resetToken := s.sender.lastToken(t)

	code, body = s.do(t, http.MethodPut, "/auth/reset-password", "", gin.H{"email": "b@x.com", "token": "WRONG00", "newPassword": "brandnew"})
	if code != http.StatusBadRequest || body["error"] != "Invalid token." {
		t.Fatalf("reset wrong token: expected 400, got %d %v", code, body)
	}
	if code, _ := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "b@x.com", "password": "secret1"}); code != http.StatusOK {
		t.Fatalf("password must be unchanged after failed reset, login got %d", code)
	}

	code, body = s.do(t, http.MethodPut, "/auth/reset-password", "", gin.H{"email": "b@x.com", "token": resetToken, "newPassword": "brandnew"})
	if code != http.StatusOK {
		t.Fatalf("reset: %d %v", code, body)
	}
	if code, _ := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "b@x.com", "password": "brandnew"}); code != http.StatusOK {
		t.Fatalf("login with new password: %d", code)
	}
}

func TestAuthGate(t *testing.T) {
	s := newTestServer(t, stubCatalog{})
	bearer := s.registerAndLogin(t, "Carol", "c@x.com", "secret1")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"bearer", bearer, http.StatusOK},
		{"raw token", strings.TrimPrefix(bearer, "Bearer "), http.StatusOK},
		{"lowercase scheme", "bearer " + strings.TrimPrefix(bearer, "Bearer "), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := s.do(t, http.MethodGet, "/auth/me", tt.header, nil)
			if code != tt.want {
				t.Fatalf("expected %d, got %d %v", tt.want, code, body)
			}
			if code == http.StatusUnauthorized && body["error"] != "You are not logged in to your account." {
				t.Fatalf("unexpected error message: %v", body["error"])
			}
		})
	}

	// Token válido de un usuario que ya no existe.
	ghost, err := s.jwt.Issue("00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if code, _ := s.do(t, http.MethodGet, "/watchlist", "Bearer "+ghost.Token, nil); code != http.StatusUnauthorized {
		t.Fatalf("vanished user: expected 401, got %d", code)
	}
}

func TestMe_DoesNotLeakSecrets(t *testing.T) {
	s := newTestServer(t, stubCatalog{})
	bearer := s.registerAndLogin(t, "Dan", "d@x.com", "secret1")

	code, body := s.do(t, http.MethodGet, "/auth/me", bearer, nil)
	if code != http.StatusOK {
		t.Fatalf("me: %d %v", code, body)
	}
	data := body["data"].(map[string]any)
	if data["email"] != "d@x.com" || data["isVerified"] != true {
		t.Fatalf("unexpected me: %v", data)
	}
	for _, key := range []string{"passwordHash", "PasswordHash", "verificationToken", "resetToken"} {
		if _, ok := data[key]; ok {
			t.Fatalf("leaked %s", key)
		}
	}
}

func TestDeleteForbiddenForOtherOwner(t *testing.T) {
	s := newTestServer(t, stubCatalog{})
	alice := s.registerAndLogin(t, "Alice", "a@x.com", "secret1")
	bob := s.registerAndLogin(t, "Bob", "b@x.com", "secret1")

	code, body := s.do(t, http.MethodPost, "/watchlist", bob, gin.H{"animeData": gin.H{"mal_id": 9}})
	if code != http.StatusCreated {
		t.Fatalf("add: %d %v", code, body)
	}
	entryID := body["data"].(map[string]any)["id"].(string)

	code, body = s.do(t, http.MethodDelete, "/watchlist/"+entryID, alice, nil)
	if code != http.StatusUnauthorized || body["error"] != "You are not authorized to perform this action." {
		t.Fatalf("expected 401 forbidden, got %d %v", code, body)
	}
	code, body = s.do(t, http.MethodPut, "/watchlist/"+entryID, alice, gin.H{"status": "Dropped"})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 forbidden on update, got %d %v", code, body)
	}
	if code, _ := s.do(t, http.MethodDelete, "/watchlist/missing", alice, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing entry, got %d", code)
	}

	code, body = s.do(t, http.MethodPut, "/watchlist/"+entryID, bob, gin.H{"status": "on hold"})
	if code != http.StatusCreated || body["data"].(map[string]any)["animeStatus"] != "On Hold" {
		t.Fatalf("owner update: %d %v", code, body)
	}
}

func TestWatchlist_InvalidStatusAndStats(t *testing.T) {
	s := newTestServer(t, stubCatalog{})
	bearer := s.registerAndLogin(t, "Eve", "e@x.com", "secret1")

	code, body := s.do(t, http.MethodPost, "/watchlist", bearer, gin.H{"animeData": gin.H{"mal_id": 1}, "status": "Binging"})
	if code != http.StatusBadRequest {
		t.Fatalf("invalid status: expected 400, got %d %v", code, body)
	}

	for i, st := range []string{"Completed", "Completed", "Dropped"} {
		if code, body := s.do(t, http.MethodPost, "/watchlist", bearer, gin.H{"animeData": gin.H{"mal_id": i + 1}, "status": st}); code != http.StatusCreated {
			t.Fatalf("add: %d %v", code, body)
		}
	}

	code, body = s.do(t, http.MethodGet, "/watchlist/stats", bearer, nil)
	if code != http.StatusOK || body["total"] != float64(3) {
		t.Fatalf("stats: %d %v", code, body)
	}
	byStatus := body["byStatus"].(map[string]any)
	if len(byStatus) != 6 || byStatus["Completed"] != float64(2) || byStatus["On Hold"] != float64(0) {
		t.Fatalf("unexpected byStatus: %v", byStatus)
	}
}

func TestPublicListingAndGetUser(t *testing.T) {
	s := newTestServer(t, stubCatalog{})
	bearer := s.registerAndLogin(t, "Mary Jane", "mj@x.com", "secret1")

	code, body := s.do(t, http.MethodGet, "/auth/me", bearer, nil)
	if code != http.StatusOK {
		t.Fatalf("me: %d", code)
	}
	id := body["data"].(map[string]any)["id"].(string)

	if code, body := s.do(t, http.MethodPost, "/watchlist", bearer, gin.H{"animeData": gin.H{"mal_id": 3}}); code != http.StatusCreated {
		t.Fatalf("add: %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/watchlist/by-user", "", gin.H{"ownerId": id})
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("public list: %d %v", code, body)
	}
	if _, ok := body["shareWatchlistLink"]; ok {
		t.Fatalf("public listing must not include share link")
	}

	code, body = s.do(t, http.MethodPost, "/auth/get-user", "", gin.H{"id": id, "name": "maryjane"})
	if code != http.StatusOK {
		t.Fatalf("get-user: %d %v", code, body)
	}
	data := body["data"].(map[string]any)
	if _, ok := data["email"]; ok {
		t.Fatalf("public projection leaked email")
	}
	if code, _ := s.do(t, http.MethodPost, "/auth/get-user", "", gin.H{"id": id, "name": "someone"}); code != http.StatusUnauthorized {
		t.Fatalf("get-user mismatch: expected 401, got %d", code)
	}
}

func TestDetails_OptionalAuth(t *testing.T) {
	s := newTestServer(t, stubCatalog{})
	bearer := s.registerAndLogin(t, "Finn", "f@x.com", "secret1")
	if code, body := s.do(t, http.MethodPost, "/watchlist", bearer, gin.H{"animeData": gin.H{"mal_id": 21}}); code != http.StatusCreated {
		t.Fatalf("add: %d %v", code, body)
	}

	code, body := s.do(t, http.MethodGet, "/watchlist/21/details", "", nil)
	if code != http.StatusOK || body["alreadyInWatchlist"] != false {
		t.Fatalf("anonymous details: %d %v", code, body)
	}
	code, body = s.do(t, http.MethodGet, "/watchlist/21/details", "Bearer broken", nil)
	if code != http.StatusOK || body["alreadyInWatchlist"] != false {
		t.Fatalf("invalid token must fall back to anonymous: %d %v", code, body)
	}
	code, body = s.do(t, http.MethodGet, "/watchlist/21/details", bearer, nil)
	if code != http.StatusOK || body["alreadyInWatchlist"] != true {
		t.Fatalf("owner details: %d %v", code, body)
	}
	if code, _ := s.do(t, http.MethodGet, "/watchlist/abc/details", "", nil); code != http.StatusBadRequest {
		t.Fatalf("non numeric id: expected 400, got %d", code)
	}
}

func TestCatalogRoutes(t *testing.T) {
	s := newTestServer(t, stubCatalog{})

	code, body := s.do(t, http.MethodGet, "/catalog/top/1/all/5", "", nil)
	if code != http.StatusOK || body["count"] != float64(5) {
		t.Fatalf("top: %d %v", code, body)
	}
	code, body = s.do(t, http.MethodGet, "/catalog/season/2024/fall/25", "", nil)
	if code != http.StatusOK || body["count"] != float64(25) {
		t.Fatalf("season: %d %v", code, body)
	}
	if code, _ := s.do(t, http.MethodGet, "/catalog/season/2024/monsoon/5", "", nil); code != http.StatusBadRequest {
		t.Fatalf("bad season: expected 400, got %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/watchlist/5/reviews", "", nil); code != http.StatusOK {
		t.Fatalf("reviews: expected 200, got %d", code)
	}
}

func TestUpstreamFailureIs502(t *testing.T) {
	s := newTestServer(t, stubCatalog{err: fmt.Errorf("%w: status 503", catalog.ErrUnavailable)})
	bearer := s.registerAndLogin(t, "Gus", "g@x.com", "secret1")

	code, body := s.do(t, http.MethodPost, "/watchlist/search", bearer, gin.H{"query": "naruto"})
	if code != http.StatusBadGateway || body["success"] != false {
		t.Fatalf("expected 502, got %d %v", code, body)
	}
	if code, _ := s.do(t, http.MethodGet, "/catalog/top/1/tv/5", "", nil); code != http.StatusBadGateway {
		t.Fatalf("expected 502 for top, got %d", code)
	}
}

func TestUpdateProfilePic_UploadDisabled(t *testing.T) {
	s := newTestServer(t, stubCatalog{})
	bearer := s.registerAndLogin(t, "Hal", "h@x.com", "secret1")

	code, body := s.do(t, http.MethodPut, "/auth/update-profile-pic", bearer, gin.H{"imageData": "data:image/png;base64,AAAA"})
	if code != http.StatusUnauthorized || body["error"] != "Image upload failed." {
		t.Fatalf("expected 401 upload failed, got %d %v", code, body)
	}
}

func TestBindingFailureIs400(t *testing.T) {
	s := newTestServer(t, stubCatalog{})
	code, body := s.do(t, http.MethodPost, "/auth/register", "", gin.H{"email": "x@x.com"})
	if code != http.StatusBadRequest || body["error"] != "invalid request" {
		t.Fatalf("expected 400 invalid request, got %d %v", code, body)
	}
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{fmt.Errorf("%w: password must be at least 6 characters", service.ErrInvalidInput), http.StatusBadRequest, "password must be at least 6 characters"},
		{service.ErrEmailTaken, http.StatusBadRequest, "User already exists."},
		{service.ErrNotVerified, http.StatusUnauthorized, "Please verify your account before logging in."},
		{service.ErrEntryNotFound, http.StatusNotFound, "Anime not found in your watchlist."},
		{fmt.Errorf("%w: boom", service.ErrUpstreamUnavailable), http.StatusBadGateway, "Anime catalog is unavailable, please try again later."},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tt := range tests {
		code, msg := translateError(tt.err)
		if code != tt.code || msg != tt.msg {
			t.Fatalf("translateError(%v) = %d %q, want %d %q", tt.err, code, msg, tt.code, tt.msg)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, stubCatalog{})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "anime_watchlist_http_requests_total") {
		t.Fatalf("metrics: %d %s", rec.Code, rec.Body.String())
	}
}
