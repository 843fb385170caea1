package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aioptimizer/frontend/internal/cli/auth"
	"github.com/aioptimizer/frontend/internal/models"
)

// mockTokenStore is a simple in-memory token store for testing
type mockTokenStore struct {
	tokens map[string]string
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{
		tokens: make(map[string]string),
	}
}

func (m *mockTokenStore) SaveToken(backendURL, token string) error {
	m.tokens[backendURL] = token
	return nil
}

func (m *mockTokenStore) LoadToken(backendURL string) (string, error) {
	token, exists := m.tokens[backendURL]
	if !exists {
		return "", auth.ErrNotAuthenticated
	}
	return token, nil
}

func (m *mockTokenStore) DeleteToken(backendURL string) error {
	delete(m.tokens, backendURL)
	return nil
}

// fakeBackend simulates the AI Optimizer API
type fakeBackend struct {
	mu         sync.Mutex
	users      map[string]*models.User // by email
	passwords  map[string]string
	sessions   map[string]string // cookie value -> email
	meDown     bool
	logoutDown bool
	registered []string
	deleted    []string
	promoted   []string
	demoted    []string
	optimized  []models.OptimizeRequest
}

func newFakeBackend() *fakeBackend {
	joined := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &fakeBackend{
		users: map[string]*models.User{
			"demo@example.com":  {ID: "1", Name: "Demo User", Email: "demo@example.com", Role: models.RoleUser, Verified: true, Credits: 10, CreatedAt: joined},
			"admin@example.com": {ID: "2", Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin, Verified: true, CreatedAt: joined.Add(time.Hour)},
		},
		passwords: map[string]string{
			"demo@example.com":  "password123",
			"admin@example.com": "adminpass1",
		},
		sessions: map[string]string{},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func message(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// current returns the user behind the request cookie; callers hold mu
func (b *fakeBackend) current(r *http.Request) *models.User {
	cookie, err := r.Cookie("session")
	if err != nil {
		return nil
	}
	return b.users[b.sessions[cookie.Value]]
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		defer b.mu.Unlock()
		user, ok := b.users[req.Email]
		if !ok || b.passwords[req.Email] != req.Password {
			message(w, http.StatusUnauthorized, "Incorrect email or password.")
			return
		}
		token := "tok-" + user.ID
		b.sessions[token] = user.Email
		http.SetCookie(w, &http.Cookie{Name: "session", Value: token, Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	})

	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.meDown {
			message(w, http.StatusBadGateway, "upstream unavailable")
			return
		}
		user := b.current(r)
		if user == nil {
			message(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	})

	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.logoutDown {
			message(w, http.StatusInternalServerError, "boom")
			return
		}
		if cookie, err := r.Cookie("session"); err == nil {
			delete(b.sessions, cookie.Value)
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "", Path: "/", MaxAge: -1})
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Name, Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		defer b.mu.Unlock()
		if _, exists := b.users[req.Email]; exists {
			message(w, http.StatusConflict, "Email already exists")
			return
		}
		b.registered = append(b.registered, req.Email)
		message(w, http.StatusOK, "Registration successful. Please check your email for verification code.")
	})

	mux.HandleFunc("POST /api/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email, Code string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Code != "123456" {
			message(w, http.StatusBadRequest, "Invalid verification code")
			return
		}
		message(w, http.StatusOK, "Email verified successfully")
	})

	mux.HandleFunc("POST /api/auth/resend-verification", func(w http.ResponseWriter, r *http.Request) {
		message(w, http.StatusOK, "Verification code sent successfully")
	})

	mux.HandleFunc("POST /api/auth/forgot-password", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email string }
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.users[req.Email]; !ok {
			message(w, http.StatusNotFound, "This email is not registered.")
			return
		}
		message(w, http.StatusOK, "Reset code sent to your email")
	})

	mux.HandleFunc("POST /api/auth/reset-password", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email, Code, NewPassword string }
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		defer b.mu.Unlock()
		if req.Code != "123456" {
			message(w, http.StatusBadRequest, "Invalid reset code")
			return
		}
		b.passwords[req.Email] = req.NewPassword
		message(w, http.StatusOK, "Password updated successfully")
	})

	mux.HandleFunc("GET /api/admin/users", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if !b.current(r).IsAdmin() {
			message(w, http.StatusForbidden, "Forbidden")
			return
		}
		var out []*models.User
		for _, u := range b.users {
			out = append(out, u)
		}
		writeJSON(w, http.StatusOK, out)
	})

	adminMutation := func(record *[]string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			if !b.current(r).IsAdmin() {
				message(w, http.StatusForbidden, "Forbidden")
				return
			}
			*record = append(*record, r.PathValue("id"))
			message(w, http.StatusOK, "ok")
		}
	}
	mux.HandleFunc("POST /api/admin/users/{id}/promote", adminMutation(&b.promoted))
	mux.HandleFunc("POST /api/admin/users/{id}/demote", adminMutation(&b.demoted))
	mux.HandleFunc("DELETE /api/admin/users/{id}", adminMutation(&b.deleted))

	mux.HandleFunc("POST /api/optimize/{mode}", func(w http.ResponseWriter, r *http.Request) {
		var req models.OptimizeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		defer b.mu.Unlock()
		user := b.current(r)
		if user == nil {
			message(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		user.Credits--
		b.optimized = append(b.optimized, req)
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     "opt-7",
			"mode":   r.PathValue("mode"),
			"status": "COMPLETED",
			"score":  87.5,
			"result": map[string]any{"keywords": req.Keywords},
		})
	})

	mux.HandleFunc("GET /api/optimizations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "opt-1", "mode": "seo", "status": "COMPLETED", "score": 70, "title": "Landing page", "createdAt": "2024-03-02T10:00:00Z"},
			{"id": "opt-2", "mode": "veo", "status": "COMPLETED", "score": 55, "title": "Launch video"},
		})
	})

	mux.HandleFunc("GET /api/optimizations/{id}/report", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "opt-1" {
			message(w, http.StatusNotFound, "Optimization not found")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="seo-report.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	})

	return mux
}

// cliEnv is a fake backend plus the fakes a command run needs
type cliEnv struct {
	backend *fakeBackend
	url     string
	tokens  *mockTokenStore
	out     *bytes.Buffer
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()

	backend := newFakeBackend()
	ts := httptest.NewServer(backend.handler())
	t.Cleanup(ts.Close)

	return &cliEnv{
		backend: backend,
		url:     ts.URL + "/api",
		tokens:  newMockTokenStore(),
		out:     &bytes.Buffer{},
	}
}

// opts returns the options every run gets, followed by extra
func (e *cliEnv) opts(extra ...Option) []Option {
	return append([]Option{
		WithBackend(e.url),
		WithTokenStore(e.tokens),
		WithOutput(e.out),
		WithPasswordPrompt(func(label string) (string, error) {
			panic("unexpected password prompt: " + label)
		}),
		WithConfirm(func(label string) (bool, error) {
			panic("unexpected confirmation: " + label)
		}),
	}, extra...)
}

// loginAs stores a live backend session for email, as a previous login would
func (e *cliEnv) loginAs(email string) {
	e.backend.mu.Lock()
	defer e.backend.mu.Unlock()
	user := e.backend.users[email]
	token := "tok-" + user.ID
	e.backend.sessions[token] = email
	e.tokens.tokens[e.url] = token
}
