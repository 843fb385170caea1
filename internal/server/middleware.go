package server

import (
	"crypto/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/aioptimizer/frontend/internal/client"
	"github.com/aioptimizer/frontend/internal/guard"
	"github.com/aioptimizer/frontend/internal/models"
	"github.com/aioptimizer/frontend/internal/session"
)

const (
	requestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
	apiKey       = "api"
	storeKey     = "store"
)

// requestIDMiddleware tags every request with a ULID, reusing a valid incoming one
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := ulid.ParseStrict(id); err != nil {
			id = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// sessionMiddleware builds a backend client seeded with the browser's cookie and
// a session store on top of it. Nothing is shared between requests except the
// user cache.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, _ := c.Cookie(s.config.Backend.CookieName)

		api, err := client.New(s.config.Backend.URL,
			client.WithHTTPClient(s.httpClient),
			client.WithCookieName(s.config.Backend.CookieName),
			client.WithSessionCookie(credential),
		)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to create backend client")
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		store := session.NewStore(api,
			session.WithCache(s.cache),
			session.WithTimeout(s.config.Backend.Timeout),
			session.WithLogger(s.logger.With().Str("request_id", requestID(c)).Logger()),
		)

		c.Set(apiKey, api)
		c.Set(storeKey, store)
		c.Next()
	}
}

func apiFrom(c *gin.Context) *client.Client {
	return c.MustGet(apiKey).(*client.Client)
}

func storeFrom(c *gin.Context) *session.Store {
	return c.MustGet(storeKey).(*session.Store)
}

// requireSession resolves the session and applies the guard decision. An
// empty role only requires a logged-in user.
func (s *Server) requireSession(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := storeFrom(c)

		state, err := store.Resolve(c.Request.Context())
		if err != nil {
			s.logger.Warn().Err(err).Str("request_id", requestID(c)).Msg("Session could not be resolved")
		}

		decision := guard.Decide(state, role)
		switch decision {
		case guard.Allow:
			c.Next()

		case guard.Wait:
			c.Header("Retry-After", "2")
			s.render(c, http.StatusServiceUnavailable, "loading.tmpl", page{Title: "Loading"})
			c.Abort()

		case guard.RedirectLogin:
			// A cookie the backend rejected is useless to the browser
			if hadCookie(c, s.config.Backend.CookieName) {
				s.expireCredential(c)
			}
			c.Redirect(http.StatusFound, s.policy.Target(decision, c.Request.URL.RequestURI()))
			c.Abort()

		case guard.RedirectDefault:
			s.logger.Warn().
				Str("request_id", requestID(c)).
				Str("user_id", state.User.ID).
				Str("role", string(state.User.Role)).
				Str("required_role", string(role)).
				Str("path", c.Request.URL.Path).
				Msg("Role check failed, redirecting to default page")
			c.Redirect(http.StatusFound, s.policy.Target(decision, c.Request.URL.RequestURI()))
			c.Abort()
		}
	}
}

func hadCookie(c *gin.Context, name string) bool {
	value, err := c.Cookie(name)
	return err == nil && value != ""
}

// syncCredential copies the backend client's session cookie to the browser.
// It must run before the response is written.
func (s *Server) syncCredential(c *gin.Context) {
	value := apiFrom(c).Credential()
	if value == "" {
		s.expireCredential(c)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.config.Backend.CookieName, value, 0, "/", "", s.config.Session.CookieSecure, true)
}

func (s *Server) expireCredential(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.config.Backend.CookieName, "", -1, "/", "", s.config.Session.CookieSecure, true)
}

// sessionRejected reports a 401 from the backend. A 403 means the session is
// fine but lacks rights, so it is shown as an error instead.
func sessionRejected(err error) bool {
	return client.StatusOf(err) == http.StatusUnauthorized
}

// dropStaleRole forgets the cached user when the backend refuses a call the
// cached role allowed, so the next request checks the role again
func (s *Server) dropStaleRole(c *gin.Context, err error) {
	if client.StatusOf(err) != http.StatusForbidden {
		return
	}
	s.logger.Info().Str("request_id", requestID(c)).Msg("Backend refused the cached role, dropping cached user")
	storeFrom(c).Invalidate(c.Request.Context())
}

// sessionExpired handles a credential the backend stopped accepting mid-request
func (s *Server) sessionExpired(c *gin.Context) {
	s.expireCredential(c)
	c.Redirect(http.StatusSeeOther, s.policy.Target(guard.RedirectLogin, c.Request.URL.RequestURI()))
}
