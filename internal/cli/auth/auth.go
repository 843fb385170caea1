package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	service = "aiopt-cli"
)

// ErrNotAuthenticated is returned when no session is stored for a backend
var ErrNotAuthenticated = errors.New("not authenticated. Please run 'aiopt login' first")

// TokenStore keeps the backend session cookie between CLI runs, one entry per
// backend URL. LoadToken returns ErrNotAuthenticated when nothing is stored,
// and DeleteToken of a missing entry is not an error, so logout and a
// rejected session can both drop the entry unconditionally.
type TokenStore interface {
	SaveToken(backendURL, token string) error
	LoadToken(backendURL string) (string, error)
	DeleteToken(backendURL string) error
}

// keyringStore stores session cookies in the OS keychain/credential manager
type keyringStore struct{}

// Default is the TokenStore used outside of tests
var Default TokenStore = keyringStore{}

// getKeyringKey returns a unique key for storing the session cookie per backend
func getKeyringKey(backendURL string) string {
	return fmt.Sprintf("session-%s", backendURL)
}

func (keyringStore) SaveToken(backendURL, token string) error {
	if token == "" {
		return errors.New("refusing to store an empty session")
	}
	if err := keyring.Set(service, getKeyringKey(backendURL), token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (keyringStore) LoadToken(backendURL string) (string, error) {
	token, err := keyring.Get(service, getKeyringKey(backendURL))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotAuthenticated
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

func (keyringStore) DeleteToken(backendURL string) error {
	if err := keyring.Delete(service, getKeyringKey(backendURL)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
