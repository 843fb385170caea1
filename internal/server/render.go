package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/aioptimizer/frontend/internal/client"
	"github.com/aioptimizer/frontend/internal/models"
	"github.com/aioptimizer/frontend/internal/session"
)

const genericFailure = "Something went wrong on our side. Please try again in a moment."

// page is the data every template receives
type page struct {
	Title       string
	User        *models.User
	Error       string
	Flash       string
	FieldErrors map[string]string
	Form        any
	Data        any
}

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	},
	"json": func(raw json.RawMessage) string {
		if len(raw) == 0 {
			return ""
		}
		var out bytes.Buffer
		if err := json.Indent(&out, raw, "", "  "); err != nil {
			return string(raw)
		}
		return out.String()
	},
	"modeLabel": func(m models.Mode) string {
		return m.Label()
	},
	"join": strings.Join,
}

// render fills in the session user and writes the named template
func (s *Server) render(c *gin.Context, status int, name string, p page) {
	if p.User == nil {
		if store, ok := c.Get(storeKey); ok {
			p.User = store.(*session.Store).State().User
		}
	}
	c.HTML(status, name, p)
}

// failure describes how a backend error is shown on a form
type failure struct {
	status  int
	message string
	field   string
}

// classify maps a backend error onto a form response. Auth errors are form
// level; not-found and conflict errors attach to field; everything without a
// backend answer is a generic 502.
func classify(err error, field string) failure {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return failure{status: http.StatusBadGateway, message: genericFailure}
	}

	switch {
	case client.IsUnauthorized(err):
		return failure{status: apiErr.StatusCode, message: apiErr.Message}
	case client.IsNotFound(err), client.IsConflict(err):
		return failure{status: apiErr.StatusCode, message: apiErr.Message, field: field}
	case client.IsValidation(err):
		return failure{status: http.StatusBadRequest, message: apiErr.Message}
	case client.IsServerError(err):
		return failure{status: http.StatusBadGateway, message: genericFailure}
	default:
		return failure{status: apiErr.StatusCode, message: apiErr.Message}
	}
}

// renderFailure re-renders a form with the backend error attached
func (s *Server) renderFailure(c *gin.Context, name string, p page, err error, field string) {
	f := classify(err, field)
	if f.status == http.StatusBadGateway {
		s.logger.Error().Err(err).Str("request_id", requestID(c)).Str("template", name).Msg("Backend call failed")
	}

	if f.field != "" {
		if p.FieldErrors == nil {
			p.FieldErrors = map[string]string{}
		}
		p.FieldErrors[f.field] = f.message
	} else {
		p.Error = f.message
	}
	s.render(c, f.status, name, p)
}

// renderInvalid re-renders a form after a binding failure
func (s *Server) renderInvalid(c *gin.Context, name string, p page, err error) {
	p.FieldErrors = fieldErrors(err)
	if len(p.FieldErrors) == 0 {
		p.Error = "Please check the form and try again."
	}
	s.render(c, http.StatusBadRequest, name, p)
}

// fieldErrors turns validator errors into per-field messages keyed by form name
func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[formName(fe.Field())] = validationMessage(fe)
	}
	return out
}

func formName(field string) string {
	switch field {
	case "ConfirmPassword":
		return "confirm_password"
	case "TargetAudience":
		return "target_audience"
	case "VideoURL":
		return "video_url"
	case "URL":
		return "url"
	default:
		return strings.ToLower(field)
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "password":
		return "Use at least 8 characters with a letter and a digit."
	case "eqfield":
		return "Passwords do not match."
	case "url":
		return "Enter a valid URL."
	case "len":
		return "Must be exactly " + fe.Param() + " characters."
	case "numeric":
		return "Digits only."
	case "max":
		return "Must be at most " + fe.Param() + " characters."
	default:
		return "Invalid value."
	}
}
