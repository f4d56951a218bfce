package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/cohort/pkg/auth"
)

// memCache is an in-memory SessionCache for middleware tests.
type memCache struct {
	mu       sync.Mutex
	values   map[string][]byte
	counters map[string]int64
}

func newMemCache() *memCache {
	return &memCache{
		values:   make(map[string][]byte),
		counters: make(map[string]int64),
	}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.values[key]
	if !ok {
		return nil, nil
	}
	return value, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *memCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

func (c *memCache) GetInt(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[key], nil
}

// memUserStore holds a single test user.
type memUserStore struct {
	user *auth.User
}

func (s *memUserStore) GetUser(ctx context.Context, id string) (*auth.User, error) {
	if s.user != nil && s.user.ID == id {
		return s.user, nil
	}
	return nil, auth.ErrNotFound
}

func (s *memUserStore) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	if s.user != nil && s.user.Username == username {
		return s.user, nil
	}
	return nil, auth.ErrNotFound
}

func (s *memUserStore) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	if s.user != nil && s.user.ID == userID {
		s.user.PasswordHash = passwordHash
		return nil
	}
	return auth.ErrNotFound
}

func (s *memUserStore) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	return nil
}

func setupService(t *testing.T, level auth.AccessLevel) (*auth.Service, string) {
	t.Helper()

	hasher := auth.NewHasher(auth.Argon2idParams{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}, 2)

	hash, err := hasher.Hash(context.Background(), "correct-horse")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	store := &memUserStore{user: &auth.User{
		ID:             "user-1",
		Username:       "alice",
		PasswordHash:   hash,
		OrganizationID: "org-1",
		AccessLevel:    level,
		IsActive:       true,
	}}

	sessions := auth.NewSessionManager(newMemCache(), auth.SessionConfig{TTL: time.Hour})
	service := auth.NewService(store, hasher, sessions)

	token, err := service.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	return service, token
}

func echoHandler(t *testing.T, sawSession *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetSession(r) != nil {
			*sawSession = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	service, token := setupService(t, auth.AccessLevelUser)

	t.Run("missing header rejected", func(t *testing.T) {
		m := NewAuthMiddleware(service, false)
		var saw bool
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/protected", nil)

		m.Handler(echoHandler(t, &saw)).ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
		if saw {
			t.Error("Handler should not have run")
		}
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		m := NewAuthMiddleware(service, false)
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/protected", nil)
		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

		m.Handler(echoHandler(t, new(bool))).ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		m := NewAuthMiddleware(service, false)
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/protected", nil)
		r.Header.Set("Authorization", "Bearer not-a-real-token")

		m.Handler(echoHandler(t, new(bool))).ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})

	t.Run("valid token injects session", func(t *testing.T) {
		m := NewAuthMiddleware(service, false)
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/protected", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		var gotUserID string
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := GetSession(r)
			if session == nil {
				t.Fatal("Expected session in context")
			}
			gotUserID = session.UserID
			w.WriteHeader(http.StatusOK)
		})

		m.Handler(handler).ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", w.Code)
		}
		if gotUserID != "user-1" {
			t.Errorf("Expected user-1, got %s", gotUserID)
		}
	})

	t.Run("optional mode passes anonymous requests", func(t *testing.T) {
		m := NewAuthMiddleware(service, true)
		var saw bool
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/public", nil)

		m.Handler(echoHandler(t, &saw)).ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", w.Code)
		}
		if saw {
			t.Error("Anonymous request should carry no session")
		}
	})

	t.Run("optional mode still rejects bad tokens", func(t *testing.T) {
		m := NewAuthMiddleware(service, true)
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/public", nil)
		r.Header.Set("Authorization", "Bearer stale-token")

		m.Handler(echoHandler(t, new(bool))).ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})

	t.Run("revoked token rejected", func(t *testing.T) {
		if err := service.Logout(context.Background(), token); err != nil {
			t.Fatalf("Logout failed: %v", err)
		}

		m := NewAuthMiddleware(service, false)
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/protected", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		m.Handler(echoHandler(t, new(bool))).ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 after logout, got %d", w.Code)
		}
	})
}

func TestRequireAccessLevel(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(level auth.AccessLevel, required auth.AccessLevel) int {
		service, token := setupService(t, level)
		m := NewAuthMiddleware(service, false)

		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/admin", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		m.Handler(RequireAccessLevel(required)(ok)).ServeHTTP(w, r)
		return w.Code
	}

	tests := []struct {
		name     string
		have     auth.AccessLevel
		want     auth.AccessLevel
		expected int
	}{
		{"user meets user", auth.AccessLevelUser, auth.AccessLevelUser, http.StatusOK},
		{"user below org admin", auth.AccessLevelUser, auth.AccessLevelOrgAdmin, http.StatusForbidden},
		{"org admin meets org admin", auth.AccessLevelOrgAdmin, auth.AccessLevelOrgAdmin, http.StatusOK},
		{"org admin below system admin", auth.AccessLevelOrgAdmin, auth.AccessLevelSystemAdmin, http.StatusForbidden},
		{"system admin meets everything", auth.AccessLevelSystemAdmin, auth.AccessLevelUser, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serve(tt.have, tt.want); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}

	t.Run("no session forbidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/admin", nil)

		RequireAccessLevel(auth.AccessLevelUser)(ok).ServeHTTP(w, r)

		if w.Code != http.StatusForbidden {
			t.Errorf("Expected 403 without session, got %d", w.Code)
		}
	})
}
