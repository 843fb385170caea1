// Package guard decides whether a page may render for the current session.
package guard

import (
	"net/url"
	"strings"

	"github.com/aioptimizer/frontend/internal/models"
	"github.com/aioptimizer/frontend/internal/session"
)

// Decision is the outcome of a guard check
type Decision int

const (
	// Allow renders the protected page
	Allow Decision = iota
	// Wait renders a neutral placeholder while the session is still loading
	Wait
	// RedirectLogin sends anonymous visitors to the login page
	RedirectLogin
	// RedirectDefault sends users lacking the required role to the default page
	RedirectDefault
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Wait:
		return "wait"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDefault:
		return "redirect_default"
	default:
		return "unknown"
	}
}

// Decide gates a page on the session. An empty requiredRole only requires a
// logged-in user.
func Decide(state session.State, requiredRole models.Role) Decision {
	if state.Loading {
		return Wait
	}
	if !state.IsAuthenticated() {
		return RedirectLogin
	}
	if requiredRole != "" && !state.User.HasRole(requiredRole) {
		return RedirectDefault
	}
	return Allow
}

// Policy holds the redirect targets
type Policy struct {
	LoginPath   string
	DefaultPath string
}

// DefaultPolicy redirects to /login and /dashboard
var DefaultPolicy = Policy{LoginPath: "/login", DefaultPath: "/dashboard"}

// Target returns the Location for a redirect decision, or "" for Allow and
// Wait. The login redirect carries the requested path as next.
func (p Policy) Target(decision Decision, requestedPath string) string {
	switch decision {
	case RedirectLogin:
		if next := SafeNext(requestedPath); next != "" {
			return p.LoginPath + "?next=" + url.QueryEscape(next)
		}
		return p.LoginPath
	case RedirectDefault:
		return p.DefaultPath
	default:
		return ""
	}
}

// SafeNext returns path when it is a local absolute path, otherwise "".
// Scheme-relative and backslash forms are rejected so next can never leave
// the site.
func SafeNext(path string) string {
	if path == "" || !strings.HasPrefix(path, "/") {
		return ""
	}
	if strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") || strings.ContainsAny(path, "\r\n") {
		return ""
	}
	parsed, err := url.Parse(path)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return ""
	}
	return path
}
