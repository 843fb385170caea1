package server

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/aioptimizer/frontend/internal/auth"
	"github.com/aioptimizer/frontend/internal/guard"
)

const stateCookie = "oauth_state"

// googleLogin asks the backend for the provider URL, binds a signed state to
// the browser and sends it off to the provider
func (s *Server) googleLogin(c *gin.Context) {
	loginPage := page{Title: "Log in", Form: loginForm{Next: c.Query("next")}}

	providerURL, err := apiFrom(c).GoogleAuthURL(c.Request.Context())
	if err != nil {
		s.renderFailure(c, "login.tmpl", loginPage, err, "")
		return
	}

	target, err := url.Parse(providerURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		s.logger.Error().Err(err).Str("url", providerURL).Msg("Backend returned an invalid provider url")
		loginPage.Error = genericFailure
		s.render(c, http.StatusBadGateway, "login.tmpl", loginPage)
		return
	}

	state, err := s.states.Issue(guard.SafeNext(c.Query("next")))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to issue oauth state")
		loginPage.Error = genericFailure
		s.render(c, http.StatusInternalServerError, "login.tmpl", loginPage)
		return
	}

	q := target.Query()
	q.Set("state", state)
	target.RawQuery = q.Encode()

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int(auth.StateTTL.Seconds()), "/auth", "", s.config.Session.CookieSecure, true)
	c.Redirect(http.StatusFound, target.String())
}

// googleCallback completes the provider round-trip. The state must match the
// cookie set by googleLogin before the code is exchanged.
func (s *Server) googleCallback(c *gin.Context) {
	loginPage := page{Title: "Log in", Form: loginForm{}}

	stored, _ := c.Cookie(stateCookie)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, "", -1, "/auth", "", s.config.Session.CookieSecure, true)

	if providerErr := c.Query("error"); providerErr != "" {
		s.logger.Warn().Str("error", providerErr).Str("request_id", requestID(c)).Msg("Provider denied sign-in")
		loginPage.Error = "Google sign-in was cancelled."
		s.render(c, http.StatusUnauthorized, "login.tmpl", loginPage)
		return
	}

	claims, err := s.states.Check(c.Query("state"), stored)
	if err != nil {
		s.logger.Warn().Err(err).Str("request_id", requestID(c)).Msg("Rejected oauth state")
		loginPage.Error = "Your sign-in link expired. Please try again."
		s.render(c, http.StatusBadRequest, "login.tmpl", loginPage)
		return
	}

	code := c.Query("code")
	if code == "" {
		loginPage.Error = "Google sign-in did not return a code. Please try again."
		s.render(c, http.StatusBadRequest, "login.tmpl", loginPage)
		return
	}

	if err := storeFrom(c).CompleteOAuth(c.Request.Context(), code); err != nil {
		s.renderFailure(c, "login.tmpl", loginPage, err, "")
		return
	}

	s.syncCredential(c)
	c.Redirect(http.StatusFound, s.afterLogin(claims.Next))
}
