package session

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aioptimizer/frontend/internal/client"
	"github.com/aioptimizer/frontend/internal/models"
	"github.com/aioptimizer/frontend/internal/usercache"
)

// fakeAPI is an in-memory backend for store tests
type fakeAPI struct {
	mu         sync.Mutex
	credential string
	users      map[string]*models.User // by email
	passwords  map[string]string
	current    *models.User
	meErr      error
	logoutErr  error
	meCalls    int
	block      bool
	verified   []string
	registered []string
}

func newFakeAPI() *fakeAPI {
	demo := &models.User{ID: "1", Name: "Demo User", Email: "demo@example.com", Role: models.RoleUser, Verified: true}
	admin := &models.User{ID: "2", Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin, Verified: true}
	return &fakeAPI{
		users:     map[string]*models.User{demo.Email: demo, admin.Email: admin},
		passwords: map[string]string{demo.Email: "password123", admin.Email: "adminpass1"},
	}
}

func (f *fakeAPI) Credential() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.credential
}

func (f *fakeAPI) SetCredential(value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credential = value
}

func (f *fakeAPI) Login(_ context.Context, email, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[email]
	if !ok || f.passwords[email] != password {
		return nil, &client.APIError{StatusCode: http.StatusUnauthorized, Message: "Incorrect email or password."}
	}
	f.credential = "cookie-" + user.ID
	f.current = user
	u := *user
	return &u, nil
}

func (f *fakeAPI) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = nil
	return f.logoutErr
}

func (f *fakeAPI) Me(ctx context.Context) (*models.User, error) {
	f.mu.Lock()
	f.meCalls++
	block, meErr, current := f.block, f.meErr, f.current
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if meErr != nil {
		return nil, meErr
	}
	if current == nil {
		return nil, &client.APIError{StatusCode: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	u := *current
	return &u, nil
}

func (f *fakeAPI) Register(_ context.Context, req client.RegisterRequest) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[req.Email]; exists {
		return models.Message{}, &client.APIError{StatusCode: http.StatusConflict, Message: "Email already exists"}
	}
	f.registered = append(f.registered, req.Email)
	return models.Message{Message: "Registration successful. Please check your email for verification code."}, nil
}

func (f *fakeAPI) Verify(_ context.Context, email, code string) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code != "123456" {
		return models.Message{}, &client.APIError{StatusCode: http.StatusBadRequest, Message: "Invalid verification code"}
	}
	f.verified = append(f.verified, email)
	return models.Message{Message: "Email verified successfully"}, nil
}

func (f *fakeAPI) ResendVerification(context.Context, string) (models.Message, error) {
	return models.Message{Message: "Verification code sent successfully"}, nil
}

func (f *fakeAPI) ForgotPassword(_ context.Context, email string) (models.Message, error) {
	if email == "notfound@example.com" {
		return models.Message{}, &client.APIError{StatusCode: http.StatusNotFound, Message: "This email is not registered."}
	}
	return models.Message{Message: "Reset code sent to your email"}, nil
}

func (f *fakeAPI) ResetPassword(context.Context, client.ResetPasswordRequest) (models.Message, error) {
	return models.Message{Message: "Password updated successfully"}, nil
}

func (f *fakeAPI) GoogleCallback(_ context.Context, code string) error {
	if code != "good-code" {
		return &client.APIError{StatusCode: http.StatusBadRequest, Message: "invalid code"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.users["demo@example.com"]
	f.credential = "cookie-oauth"
	return nil
}

func (f *fakeAPI) UpdateProfile(_ context.Context, update client.ProfileUpdate) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, &client.APIError{StatusCode: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	f.current.Name = update.Name
	u := *f.current
	return &u, nil
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meCalls
}

func TestStore_StartsLoading(t *testing.T) {
	store := NewStore(newFakeAPI())
	state := store.State()
	assert.True(t, state.Loading)
	assert.Equal(t, PhaseLoading, state.Phase())
	assert.False(t, state.IsAuthenticated())
}

func TestStore_DemoLogin(t *testing.T) {
	store := NewStore(newFakeAPI())

	user, err := store.Login(context.Background(), "demo@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "Demo User", user.Name)

	state := store.State()
	assert.Equal(t, PhaseAuthenticated, state.Phase())
	assert.True(t, state.IsAuthenticated())
	assert.False(t, state.IsAdmin())
}

func TestStore_LoginFailureDoesNotMutate(t *testing.T) {
	api := newFakeAPI()
	store := NewStore(api)
	ctx := context.Background()

	_, err := store.Login(ctx, "demo@example.com", "password123")
	require.NoError(t, err)
	before := store.State()

	_, err = store.Login(ctx, "demo@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Incorrect email or password.", err.Error())
	assert.Equal(t, before, store.State())
}

func TestStore_LoginThenLogoutAlwaysAnonymous(t *testing.T) {
	for _, logoutErr := range []error{nil, errors.New("connection refused"), &client.APIError{StatusCode: 500, Message: "boom"}} {
		api := newFakeAPI()
		api.logoutErr = logoutErr
		cache := usercache.NewMemoryCache(time.Minute)
		store := NewStore(api, WithCache(cache))
		ctx := context.Background()

		_, err := store.Login(ctx, "admin@example.com", "adminpass1")
		require.NoError(t, err)
		key := usercache.Key(api.Credential())
		_, err = cache.Get(ctx, key)
		require.NoError(t, err, "login should populate the cache")

		store.Logout(ctx)

		state := store.State()
		assert.Equal(t, PhaseAnonymous, state.Phase())
		assert.Nil(t, state.User)
		assert.Empty(t, api.Credential())
		_, err = cache.Get(ctx, key)
		assert.ErrorIs(t, err, usercache.ErrMiss)
	}
}

func TestStore_ResolveWithoutCredentialMakesNoCall(t *testing.T) {
	api := newFakeAPI()
	store := NewStore(api)

	state, err := store.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseAnonymous, state.Phase())
	assert.Equal(t, 0, api.calls())
}

func TestStore_ResolveLoadsUser(t *testing.T) {
	api := newFakeAPI()
	api.credential = "cookie-1"
	api.current = api.users["demo@example.com"]
	store := NewStore(api)

	state, err := store.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseAuthenticated, state.Phase())
	assert.Equal(t, "demo@example.com", state.User.Email)

	// Settled stores do not resolve again
	_, err = store.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls())
}

func TestStore_ResolveRejectedCredential(t *testing.T) {
	api := newFakeAPI()
	api.credential = "stale"
	store := NewStore(api)

	state, err := store.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseAnonymous, state.Phase())
}

func TestStore_ResolveTransportFailureStaysLoading(t *testing.T) {
	api := newFakeAPI()
	api.credential = "cookie-1"
	api.meErr = errors.New("failed to send request: connection refused")
	store := NewStore(api)

	state, err := store.Resolve(context.Background())
	require.Error(t, err)
	assert.Equal(t, PhaseLoading, state.Phase())

	// A later attempt may still settle the session
	api.mu.Lock()
	api.meErr = nil
	api.current = api.users["demo@example.com"]
	api.mu.Unlock()

	state, err = store.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseAuthenticated, state.Phase())
}

func TestStore_ResolveTimesOut(t *testing.T) {
	api := newFakeAPI()
	api.credential = "cookie-1"
	api.block = true
	store := NewStore(api, WithTimeout(30*time.Millisecond))

	start := time.Now()
	state, err := store.Resolve(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, state.Loading)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestStore_ResolveUsesCache(t *testing.T) {
	api := newFakeAPI()
	api.credential = "cookie-1"
	cache := usercache.NewMemoryCache(time.Minute)
	require.NoError(t, cache.Set(context.Background(), usercache.Key("cookie-1"), &models.User{ID: "1", Email: "cached@example.com"}))

	store := NewStore(api, WithCache(cache))
	state, err := store.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached@example.com", state.User.Email)
	assert.Equal(t, 0, api.calls())
}

func TestStore_InvalidateForcesLookup(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.credential = "cookie-1"
	api.current = api.users["demo@example.com"]
	cache := usercache.NewMemoryCache(time.Minute)
	stale := &models.User{ID: "1", Email: "demo@example.com", Role: models.RoleAdmin}
	require.NoError(t, cache.Set(ctx, usercache.Key("cookie-1"), stale))

	store := NewStore(api, WithCache(cache))
	state, err := store.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, state.User.Role)

	store.Invalidate(ctx)
	assert.Equal(t, models.RoleAdmin, store.State().User.Role, "the current state is kept")

	// A fresh store for the same credential goes to the backend
	state, err = NewStore(api, WithCache(cache)).Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, state.User.Role)
	assert.Equal(t, 1, api.calls())
}

func TestStore_InvalidateWithoutCredential(t *testing.T) {
	store := NewStore(newFakeAPI())
	store.Invalidate(context.Background())
	assert.True(t, store.State().Loading)
}

func TestStore_RefreshUserAfterProfileUpdate(t *testing.T) {
	api := newFakeAPI()
	cache := usercache.NewMemoryCache(time.Minute)
	store := NewStore(api, WithCache(cache))
	ctx := context.Background()

	_, err := store.Login(ctx, "demo@example.com", "password123")
	require.NoError(t, err)

	user, err := store.UpdateProfile(ctx, client.ProfileUpdate{Name: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", user.Name)
	assert.Equal(t, "Renamed", store.State().User.Name)

	cached, err := cache.Get(ctx, usercache.Key(api.Credential()))
	require.NoError(t, err)
	assert.Equal(t, "Renamed", cached.Name)

	// An out-of-band change shows up on explicit refresh without re-login
	api.mu.Lock()
	api.current.Credits = 99
	api.mu.Unlock()
	require.NoError(t, store.RefreshUser(ctx))
	assert.Equal(t, 99, store.State().User.Credits)
}

func TestStore_RefreshUserRejected(t *testing.T) {
	api := newFakeAPI()
	store := NewStore(api)
	ctx := context.Background()

	_, err := store.Login(ctx, "demo@example.com", "password123")
	require.NoError(t, err)

	api.mu.Lock()
	api.current = nil
	api.mu.Unlock()

	err = store.RefreshUser(ctx)
	assert.True(t, client.IsUnauthorized(err))
	assert.Equal(t, PhaseAnonymous, store.State().Phase())
}

func TestStore_RefreshUserTransportErrorKeepsUser(t *testing.T) {
	api := newFakeAPI()
	store := NewStore(api)
	ctx := context.Background()

	_, err := store.Login(ctx, "demo@example.com", "password123")
	require.NoError(t, err)

	api.mu.Lock()
	api.meErr = errors.New("failed to send request: EOF")
	api.mu.Unlock()

	assert.Error(t, store.RefreshUser(ctx))
	assert.True(t, store.State().IsAuthenticated())
}

func TestStore_PassThroughOperationsDoNotSetUser(t *testing.T) {
	api := newFakeAPI()
	store := NewStore(api)
	ctx := context.Background()

	msg, err := store.Register(ctx, client.RegisterRequest{Name: "New", Email: "new@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Contains(t, msg.Message, "Registration successful")

	_, err = store.Register(ctx, client.RegisterRequest{Name: "Dup", Email: "demo@example.com", Password: "password123"})
	assert.True(t, client.IsConflict(err))

	msg, err = store.Verify(ctx, "new@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, "Email verified successfully", msg.Message)

	_, err = store.Verify(ctx, "new@example.com", "000000")
	assert.EqualError(t, err, "Invalid verification code")

	_, err = store.ResendVerification(ctx, "new@example.com")
	require.NoError(t, err)
	_, err = store.ForgotPassword(ctx, "notfound@example.com")
	assert.True(t, client.IsNotFound(err))
	_, err = store.ResetPassword(ctx, client.ResetPasswordRequest{Email: "new@example.com", Code: "1", NewPassword: "password123"})
	require.NoError(t, err)

	state := store.State()
	assert.Nil(t, state.User)
	assert.True(t, state.Loading, "pass-through calls must not settle the session")
}

func TestStore_CompleteOAuth(t *testing.T) {
	api := newFakeAPI()
	store := NewStore(api)
	ctx := context.Background()

	require.Error(t, store.CompleteOAuth(ctx, "bad-code"))
	assert.True(t, store.State().Loading)

	require.NoError(t, store.CompleteOAuth(ctx, "good-code"))
	assert.Equal(t, "demo@example.com", store.State().User.Email)
	assert.Equal(t, "cookie-oauth", api.Credential())
}

func TestStore_StateIsASnapshot(t *testing.T) {
	store := NewStore(newFakeAPI())
	_, err := store.Login(context.Background(), "demo@example.com", "password123")
	require.NoError(t, err)

	snapshot := store.State()
	snapshot.User.Role = models.RoleAdmin
	assert.False(t, store.State().IsAdmin())
}

func TestStore_IsAuthenticatedMatchesUser(t *testing.T) {
	api := newFakeAPI()
	store := NewStore(api)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	ops := []func(){
		func() { _, _ = store.Login(ctx, "demo@example.com", "password123") },
		func() { _, _ = store.Login(ctx, "demo@example.com", "nope") },
		func() { store.Logout(ctx) },
		func() { _ = store.RefreshUser(ctx) },
		func() { _, _ = store.Resolve(ctx) },
		func() { _, _ = store.Verify(ctx, "demo@example.com", "123456") },
	}

	for i := 0; i < 200; i++ {
		ops[rng.Intn(len(ops))]()
		state := store.State()
		assert.Equal(t, state.User != nil, state.IsAuthenticated())
		if !state.Loading {
			assert.Equal(t, state.User != nil, state.Phase() == PhaseAuthenticated)
		}
	}
}

func TestStore_ConcurrentOperations(t *testing.T) {
	api := newFakeAPI()
	store := NewStore(api)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.Login(ctx, "demo@example.com", "password123")
		}()
		go func() {
			defer wg.Done()
			_ = store.State().IsAuthenticated()
		}()
	}
	wg.Wait()

	store.Logout(ctx)
	assert.Equal(t, PhaseAnonymous, store.State().Phase())
}
