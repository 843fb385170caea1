// Package session holds "who is logged in" for one browser session or CLI
// run. All mutations go through a reducer; pages and commands only read
// State() or call the operations below.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aioptimizer/frontend/internal/client"
	"github.com/aioptimizer/frontend/internal/models"
	"github.com/aioptimizer/frontend/internal/usercache"
)

const defaultTimeout = 15 * time.Second

// AuthAPI is the subset of the backend client the store needs
type AuthAPI interface {
	Credential() string
	SetCredential(value string)
	Login(ctx context.Context, email, password string) (*models.User, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.User, error)
	Register(ctx context.Context, req client.RegisterRequest) (models.Message, error)
	Verify(ctx context.Context, email, code string) (models.Message, error)
	ResendVerification(ctx context.Context, email string) (models.Message, error)
	ForgotPassword(ctx context.Context, email string) (models.Message, error)
	ResetPassword(ctx context.Context, req client.ResetPasswordRequest) (models.Message, error)
	GoogleCallback(ctx context.Context, code string) error
	UpdateProfile(ctx context.Context, update client.ProfileUpdate) (*models.User, error)
}

// Store is the single source of truth for the current session
type Store struct {
	api     AuthAPI
	cache   usercache.Cache
	timeout time.Duration
	logger  zerolog.Logger

	mu    sync.RWMutex
	state State
}

// Option configures a Store
type Option func(*Store)

// WithCache enables the read-through "who am I" cache
func WithCache(cache usercache.Cache) Option {
	return func(s *Store) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithTimeout bounds every backend call made by the store
func WithTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithLogger sets the logger used for swallowed errors and transitions
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store in the loading state
func NewStore(api AuthAPI, opts ...Option) *Store {
	s := &Store{
		api:     api,
		cache:   usercache.Noop{},
		timeout: defaultTimeout,
		logger:  zerolog.Nop(),
		state:   initialState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the session
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// dispatch is the single mutator
func (s *Store) dispatch(action Action) State {
	s.mu.Lock()
	prev := s.state.Phase()
	s.state = Reduce(s.state, action)
	next := s.state.clone()
	s.mu.Unlock()

	s.logger.Debug().
		Str("action", string(action.Type)).
		Str("from", string(prev)).
		Str("to", string(next.Phase())).
		Msg("Session transition")

	return next
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// cacheKey is derived from the credential at call time, since login and
// logout replace it
func (s *Store) cacheKey() string {
	return usercache.Key(s.api.Credential())
}

func (s *Store) cacheUser(ctx context.Context, user *models.User) {
	key := s.cacheKey()
	if key == "" || user == nil {
		return
	}
	if err := s.cache.Set(ctx, key, user); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to cache current user")
	}
}

func (s *Store) forget(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to drop cached user")
	}
}

// Invalidate drops the cached user behind the current credential, so the next
// Resolve for it asks the backend again. The state of this store is unchanged.
func (s *Store) Invalidate(ctx context.Context) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	s.forget(ctx, s.cacheKey())
}

// Resolve settles the initial loading state. Without a credential no call is
// made. A rejected credential ends anonymous; transport and server failures
// leave the session loading and are returned.
func (s *Store) Resolve(ctx context.Context) (State, error) {
	if current := s.State(); !current.Loading {
		return current, nil
	}

	if s.api.Credential() == "" {
		return s.dispatch(Action{Type: ActionUserCleared}), nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := s.cacheKey()
	cached, err := s.cache.Get(ctx, key)
	if err == nil {
		return s.dispatch(Action{Type: ActionUserLoaded, User: cached}), nil
	}
	if !errors.Is(err, usercache.ErrMiss) {
		s.logger.Warn().Err(err).Msg("User cache lookup failed")
	}

	user, err := s.api.Me(ctx)
	if err != nil {
		if client.IsUnauthorized(err) {
			return s.dispatch(Action{Type: ActionUserCleared}), nil
		}
		return s.State(), fmt.Errorf("failed to resolve session: %w", err)
	}

	s.cacheUser(ctx, user)
	return s.dispatch(Action{Type: ActionUserLoaded, User: user}), nil
}

// Login authenticates and, on success, makes the user current. A failure
// returns the backend error untouched and leaves the state as it was.
func (s *Store) Login(ctx context.Context, email, password string) (*models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s.cacheUser(ctx, user)
	return s.dispatch(Action{Type: ActionLoginSuccess, User: user}).User, nil
}

// Logout always ends anonymous; backend failures are logged, never returned
func (s *Store) Logout(ctx context.Context) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := s.cacheKey()
	if err := s.api.Logout(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Backend logout failed, clearing session anyway")
	}

	s.forget(ctx, key)
	s.api.SetCredential("")
	s.dispatch(Action{Type: ActionLogout})
}

// Register creates an account; the session stays as it is until the user verifies and logs in
func (s *Store) Register(ctx context.Context, req client.RegisterRequest) (models.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.api.Register(ctx, req)
}

// Verify confirms an email address; it does not log the user in
func (s *Store) Verify(ctx context.Context, email, code string) (models.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.api.Verify(ctx, email, code)
}

func (s *Store) ResendVerification(ctx context.Context, email string) (models.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.api.ResendVerification(ctx, email)
}

func (s *Store) ForgotPassword(ctx context.Context, email string) (models.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.api.ForgotPassword(ctx, email)
}

func (s *Store) ResetPassword(ctx context.Context, req client.ResetPasswordRequest) (models.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.api.ResetPassword(ctx, req)
}

// RefreshUser re-fetches the current user, bypassing the cache
func (s *Store) RefreshUser(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.refresh(ctx)
}

func (s *Store) refresh(ctx context.Context) error {
	user, err := s.api.Me(ctx)
	if err != nil {
		if client.IsUnauthorized(err) {
			s.forget(ctx, s.cacheKey())
			s.dispatch(Action{Type: ActionUserCleared})
		}
		return err
	}

	s.cacheUser(ctx, user)
	s.dispatch(Action{Type: ActionUserLoaded, User: user})
	return nil
}

// UpdateProfile saves profile fields, then refreshes so the session reflects them
func (s *Store) UpdateProfile(ctx context.Context, update client.ProfileUpdate) (*models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.api.UpdateProfile(ctx, update); err != nil {
		return nil, err
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	return s.State().User, nil
}

// CompleteOAuth exchanges a provider code for a session, then loads the user
func (s *Store) CompleteOAuth(ctx context.Context, code string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.api.GoogleCallback(ctx, code); err != nil {
		return err
	}
	return s.refresh(ctx)
}
