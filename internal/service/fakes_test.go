package service

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	"anime-watchlist/internal/catalog"
	"anime-watchlist/internal/repository"
)

type sentMail struct {
	kind string
	to   string
	name string
	link string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeSender) SendAccountVerification(_ context.Context, to, name, link string) error {
	return f.record("verify", to, name, link)
}

func (f *fakeSender) SendPasswordReset(_ context.Context, to, name, link string) error {
	return f.record("reset", to, name, link)
}

func (f *fakeSender) record(kind, to, name, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{kind: kind, to: to, name: name, link: link})
	return f.err
}

func (f *fakeSender) last(t *testing.T) sentMail {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatalf("expected an email to be sent")
	}
	return f.sent[len(f.sent)-1]
}

// tokenFromLink extrae el token del enlace enviado por email.
func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	tok := u.Query().Get("token")
	if tok == "" {
		t.Fatalf("link without token: %s", link)
	}
	return tok
}

type fakeUploader struct {
	url   string
	err   error
	calls int
}

func (f *fakeUploader) Upload(_ context.Context, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeCatalog struct {
	items    []json.RawMessage
	details  json.RawMessage
	err      error
	lastTop  string
	lastPage int
}

func (f *fakeCatalog) Search(_ context.Context, _ string, _ int) ([]json.RawMessage, error) {
	return f.items, f.err
}

func (f *fakeCatalog) Details(_ context.Context, _ int) (json.RawMessage, error) {
	return f.details, f.err
}

func (f *fakeCatalog) Reviews(_ context.Context, _ int) ([]json.RawMessage, error) {
	return f.items, f.err
}

func (f *fakeCatalog) Top(_ context.Context, page int, category string) ([]json.RawMessage, error) {
	f.lastPage = page
	f.lastTop = category
	return f.items, f.err
}

func (f *fakeCatalog) Seasonal(_ context.Context, _ int, _ string) ([]json.RawMessage, error) {
	return f.items, f.err
}

var _ catalog.Client = (*fakeCatalog)(nil)

type env struct {
	users    *repository.MemoryUserRepository
	entries  *repository.MemoryWatchlistRepository
	sender   *fakeSender
	uploader *fakeUploader
	jwt      *JWTService
	accounts *AccountService
	list     *WatchlistService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		users:    repository.NewMemoryUserRepository(),
		entries:  repository.NewMemoryWatchlistRepository(),
		sender:   &fakeSender{},
		uploader: &fakeUploader{url: "https://cdn.example.com/profile-images/u/x.png"},
		jwt:      NewJWTService("test-secret", time.Hour),
	}
	e.accounts = NewAccountService(nil, e.users, e.jwt, e.sender, e.uploader, AccountOptions{
		FrontendURL: "http://localhost:3000/",
		BcryptCost:  4,
	})
	e.list = NewWatchlistService(nil, e.entries, "http://localhost:3000/shared")
	return e
}
