package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aioptimizer/frontend/internal/config"
	"github.com/aioptimizer/frontend/internal/models"
)

// fakeBackend is an in-memory stand-in for the AI Optimizer REST API
type fakeBackend struct {
	mu          sync.Mutex
	users       map[string]*models.User // by email
	passwords   map[string]string
	sessions    map[string]string // cookie value -> email
	meDown      bool
	logoutDown  bool
	historyDown bool
	meCalls     int
	deleted     []string
	promoted    []string
	demoted     []string
}

func newFakeBackend() *fakeBackend {
	joined := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
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
	email, ok := b.sessions[cookie.Value]
	if !ok {
		return nil
	}
	return b.users[email]
}

func (b *fakeBackend) startSession(w http.ResponseWriter, user *models.User) {
	token := "tok-" + user.ID
	b.sessions[token] = user.Email
	http.SetCookie(w, &http.Cookie{Name: "session", Value: token, Path: "/", HttpOnly: true})
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
		b.startSession(w, user)
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	})

	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.meCalls++
		if b.meDown {
			message(w, http.StatusServiceUnavailable, "maintenance")
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
		_, _ = w.Write([]byte("Verification code sent successfully"))
	})

	mux.HandleFunc("POST /api/auth/forgot-password", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email == "notfound@example.com" {
			message(w, http.StatusNotFound, "This email is not registered.")
			return
		}
		message(w, http.StatusOK, "Reset code sent to your email")
	})

	mux.HandleFunc("POST /api/auth/reset-password", func(w http.ResponseWriter, r *http.Request) {
		message(w, http.StatusOK, "Password updated successfully")
	})

	mux.HandleFunc("GET /api/auth/google", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"url": "https://accounts.google.com/o/oauth2/auth?client_id=test"})
	})

	mux.HandleFunc("POST /api/auth/google/callback", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Code string }
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		defer b.mu.Unlock()
		if req.Code != "good-code" {
			message(w, http.StatusBadRequest, "Invalid authorization code")
			return
		}
		user := b.users["demo@example.com"]
		b.startSession(w, user)
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	})

	mux.HandleFunc("PUT /api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Name string }
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		defer b.mu.Unlock()
		user := b.current(r)
		if user == nil {
			message(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		user.Name = req.Name
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
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
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     "opt-7",
			"status": "COMPLETED",
			"score":  87.5,
			"title":  req.Title,
			"result": map[string]any{"keywords": req.Keywords},
		})
	})

	mux.HandleFunc("GET /api/optimizations", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.historyDown {
			message(w, http.StatusInternalServerError, "boom")
			return
		}
		if b.current(r) == nil {
			message(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "opt-1", "mode": "seo", "status": "COMPLETED", "score": 70, "title": "Landing page"},
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

// testEnv wires a Server to a fake backend
type testEnv struct {
	server  *Server
	backend *fakeBackend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := newFakeBackend()
	ts := httptest.NewServer(backend.handler())
	t.Cleanup(ts.Close)

	cfg := &config.Config{
		Server:  config.ServerConfig{Port: "0", CORSOrigins: []string{"http://localhost:5173"}},
		Backend: config.BackendConfig{URL: ts.URL + "/api", Timeout: 2 * time.Second, CookieName: "session"},
		Session: config.SessionConfig{StateSecret: "test-state-secret"},
		Cache:   config.CacheConfig{TTL: time.Minute},
		Logging: config.LoggingConfig{Level: "disabled", Format: "json"},
	}

	srv, err := New(cfg, zerolog.Nop(), "test")
	require.NoError(t, err)

	return &testEnv{server: srv, backend: backend}
}

// do performs a request against the frontend with optional cookies
func (e *testEnv) do(method, target string, form map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		values := url.Values{}
		for k, v := range form {
			values.Set(k, v)
		}
		req = httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	return e.serve(req)
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func sessionCookie(value string) *http.Cookie {
	return &http.Cookie{Name: "session", Value: value}
}

// responseCookie finds a cookie set by the response
func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// loginAs opens a backend session directly and returns the browser cookie for it
func (e *testEnv) loginAs(email string) *http.Cookie {
	e.backend.mu.Lock()
	defer e.backend.mu.Unlock()
	user := e.backend.users[email]
	token := "tok-" + user.ID
	e.backend.sessions[token] = email
	return sessionCookie(token)
}
