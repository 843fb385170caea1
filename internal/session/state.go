package session

import (
	"github.com/aioptimizer/frontend/internal/models"
)

// Phase is the coarse session state a guard decides on
type Phase string

const (
	PhaseLoading       Phase = "loading"
	PhaseAuthenticated Phase = "authenticated"
	PhaseAnonymous     Phase = "anonymous"
)

// State is the session as seen by consumers. It only changes through Reduce.
type State struct {
	User    *models.User
	Loading bool
}

// initialState is the state of a store that has not resolved its user yet
func initialState() State {
	return State{Loading: true}
}

// IsAuthenticated is exactly User != nil
func (s State) IsAuthenticated() bool {
	return s.User != nil
}

// IsAdmin reports whether the session belongs to an admin
func (s State) IsAdmin() bool {
	return s.User.IsAdmin()
}

// Phase derives loading/authenticated/anonymous from the state
func (s State) Phase() Phase {
	switch {
	case s.Loading:
		return PhaseLoading
	case s.User != nil:
		return PhaseAuthenticated
	default:
		return PhaseAnonymous
	}
}

// clone copies the user so callers cannot mutate store-owned data
func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// ActionType names a session transition
type ActionType string

const (
	ActionLoginSuccess ActionType = "LOGIN_SUCCESS"
	ActionUserLoaded   ActionType = "USER_LOADED"
	ActionUserCleared  ActionType = "USER_CLEARED"
	ActionLogout       ActionType = "LOGOUT"
)

// Action is one input to the reducer
type Action struct {
	Type ActionType
	User *models.User
}

// Reduce is the only place session state changes. Unknown actions are ignored.
func Reduce(state State, action Action) State {
	switch action.Type {
	case ActionLoginSuccess, ActionUserLoaded:
		// A nil user cannot be "loaded"; treat it as cleared so
		// IsAuthenticated never disagrees with User.
		return State{User: action.User, Loading: false}.clone()
	case ActionUserCleared, ActionLogout:
		return State{User: nil, Loading: false}
	default:
		return state
	}
}
