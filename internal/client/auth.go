package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aioptimizer/frontend/internal/models"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyRequest represents the email verification request body
type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// ResetPasswordRequest represents the password reset request body
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

// ProfileUpdate represents the editable profile fields
type ProfileUpdate struct {
	Name string `json:"name"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type codeRequest struct {
	Code string `json:"code"`
}

// userEnvelope accepts both {"user": {...}} and a bare user object
type userEnvelope struct {
	User *models.User
}

func (e *userEnvelope) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		User *models.User `json:"user"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	if wrapped.User != nil {
		e.User = wrapped.User
		return nil
	}

	var bare models.User
	if err := json.Unmarshal(data, &bare); err != nil {
		return err
	}
	if bare.ID == "" && bare.Email == "" {
		return fmt.Errorf("response does not contain a user")
	}
	e.User = &bare
	return nil
}

func (c *Client) userCall(ctx context.Context, method, path string, body any) (*models.User, error) {
	var env userEnvelope
	if err := c.do(ctx, method, path, body, &env); err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, fmt.Errorf("failed to decode response: no user in %s %s", method, path)
	}
	return env.User, nil
}

func (c *Client) messageCall(ctx context.Context, path string, body any) (models.Message, error) {
	var env messageEnvelope
	if err := c.do(ctx, http.MethodPost, path, body, &env); err != nil {
		return models.Message{}, err
	}
	return models.Message{Message: env.Message}, nil
}

// Register creates an account; the user must verify their email before logging in
func (c *Client) Register(ctx context.Context, req RegisterRequest) (models.Message, error) {
	return c.messageCall(ctx, "/auth/register", req)
}

// Login authenticates the user; the backend sets the session cookie
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	return c.userCall(ctx, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password})
}

// Logout invalidates the session on the backend
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Me returns the user owning the current session
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	return c.userCall(ctx, http.MethodGet, "/auth/me", nil)
}

// Verify confirms an email address with the emailed code
func (c *Client) Verify(ctx context.Context, email, code string) (models.Message, error) {
	return c.messageCall(ctx, "/auth/verify", VerifyRequest{Email: email, Code: code})
}

// ResendVerification emails a fresh verification code
func (c *Client) ResendVerification(ctx context.Context, email string) (models.Message, error) {
	return c.messageCall(ctx, "/auth/resend-verification", emailRequest{Email: email})
}

// ForgotPassword emails a password reset code
func (c *Client) ForgotPassword(ctx context.Context, email string) (models.Message, error) {
	return c.messageCall(ctx, "/auth/forgot-password", emailRequest{Email: email})
}

// ResetPassword sets a new password using the emailed reset code
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) (models.Message, error) {
	return c.messageCall(ctx, "/auth/reset-password", req)
}

// GoogleAuthURL returns the provider URL the browser should be sent to
func (c *Client) GoogleAuthURL(ctx context.Context) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/google", nil, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("failed to decode response: empty google auth url")
	}
	return resp.URL, nil
}

// GoogleCallback exchanges the provider code for a backend session
func (c *Client) GoogleCallback(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodPost, "/auth/google/callback", codeRequest{Code: code}, nil)
}

// UpdateProfile saves profile fields and returns the updated user
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*models.User, error) {
	return c.userCall(ctx, http.MethodPut, "/auth/profile", update)
}
