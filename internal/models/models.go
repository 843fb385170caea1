package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role is the access level attached to a user record
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole normalizes a role string; anything unknown is a plain user
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// User mirrors the backend user record
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Verified  bool      `json:"verified"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// HasRole reports whether the user holds exactly the given role
func (u *User) HasRole(role Role) bool {
	if u == nil {
		return false
	}
	if u.Role == "" {
		return role == RoleUser
	}
	return u.Role == role
}

// UnmarshalJSON accepts numeric or string ids, since the backend uses integer keys
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	aux := struct {
		ID        json.RawMessage `json:"id"`
		CreatedAt json.RawMessage `json:"createdAt"`
		*alias
	}{alias: (*alias)(u)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	u.ID = ""
	if len(aux.ID) > 0 && string(aux.ID) != "null" {
		var s string
		if err := json.Unmarshal(aux.ID, &s); err == nil {
			u.ID = s
		} else {
			var n json.Number
			if err := json.Unmarshal(aux.ID, &n); err != nil {
				return fmt.Errorf("invalid user id %s: %w", string(aux.ID), err)
			}
			u.ID = n.String()
		}
	}

	u.CreatedAt = time.Time{}
	if len(aux.CreatedAt) > 0 && string(aux.CreatedAt) != "null" {
		var raw string
		if err := json.Unmarshal(aux.CreatedAt, &raw); err != nil {
			return fmt.Errorf("invalid createdAt %s: %w", string(aux.CreatedAt), err)
		}
		ts, err := parseTimestamp(raw)
		if err != nil {
			return err
		}
		u.CreatedAt = ts
	}

	if u.Role != "" {
		u.Role = ParseRole(string(u.Role))
	}
	return nil
}

// timestampLayouts covers RFC 3339 and zone-less local date-times
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid createdAt %q", raw)
}

// Message is the generic {message} payload returned by pass-through auth calls
type Message struct {
	Message string `json:"message"`
}

// Mode selects which optimizer the backend runs
type Mode string

const (
	ModeSEO Mode = "seo"
	ModeGEO Mode = "geo"
	ModeVEO Mode = "veo"
)

// Modes lists every supported optimizer mode
var Modes = []Mode{ModeSEO, ModeGEO, ModeVEO}

// ParseMode validates an optimizer mode name
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown optimizer mode %q (expected seo, geo or veo)", s)
}

// Label returns the display name of the mode
func (m Mode) Label() string {
	return strings.ToUpper(string(m))
}

// OptimizeRequest is the payload for POST /optimize/{mode}
type OptimizeRequest struct {
	Content        string   `json:"content,omitempty"`
	URL            string   `json:"url,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	TargetAudience string   `json:"targetAudience,omitempty"`
	VideoURL       string   `json:"videoUrl,omitempty"`
	Title          string   `json:"title,omitempty"`
	Description    string   `json:"description,omitempty"`
}

// Validate checks that the fields required by the given mode are present
func (r OptimizeRequest) Validate(mode Mode) error {
	switch mode {
	case ModeSEO, ModeGEO:
		if strings.TrimSpace(r.Content) == "" && strings.TrimSpace(r.URL) == "" {
			return fmt.Errorf("%s optimization needs content or a url", mode.Label())
		}
	case ModeVEO:
		if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Description) == "" {
			return fmt.Errorf("VEO optimization needs a title and a description")
		}
	default:
		return fmt.Errorf("unknown optimizer mode %q", mode)
	}
	return nil
}

// Optimization is one optimizer run; the scoring payload is passed through untouched
type Optimization struct {
	ID        string          `json:"id"`
	Mode      Mode            `json:"mode"`
	Status    string          `json:"status"`
	Score     float64         `json:"score"`
	Title     string          `json:"title"`
	CreatedAt time.Time       `json:"createdAt"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// Report is a downloaded optimization report
type Report struct {
	ContentType string
	Filename    string
	Size        int64
	Body        []byte
}
