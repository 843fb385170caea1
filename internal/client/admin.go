package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/aioptimizer/frontend/internal/models"
)

// ListUsers returns every user account (admin only)
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/admin/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// PromoteUser grants the admin role
func (c *Client) PromoteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/admin/users/"+url.PathEscape(userID)+"/promote", nil, nil)
}

// DemoteUser revokes the admin role
func (c *Client) DemoteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/admin/users/"+url.PathEscape(userID)+"/demote", nil, nil)
}

// DeleteUser removes a user account
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(userID), nil, nil)
}
