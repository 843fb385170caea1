package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the AI Optimizer backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), email, password, commandOptions(cmd)...)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set AIOPT_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set AIOPT_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(ctx context.Context, email, password string, opts ...Option) error {
	// Environment variables are useful for CI
	if email == "" {
		email = os.Getenv("AIOPT_EMAIL")
	}
	if password == "" {
		password = os.Getenv("AIOPT_PASSWORD")
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or AIOPT_EMAIL env var)")
	}

	env, err := newRunEnv(opts...)
	if err != nil {
		return err
	}

	if password == "" {
		password, err = env.promptPassword("Password")
		if err != nil {
			return err
		}
	}

	env.printf("Logging in to %s...\n", env.backend)

	user, err := env.store.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := env.persistCredential(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	env.printf("✓ Login successful!\n")
	env.printf("  User: %s (%s)\n", user.Name, user.Email)
	if user.IsAdmin() {
		env.printf("  Role: Admin\n")
	}

	return nil
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context(), commandOptions(cmd)...)
		},
	}
}

// runLogout always forgets the local session, even when the backend call fails
func runLogout(ctx context.Context, opts ...Option) error {
	env, err := newRunEnv(opts...)
	if err != nil {
		return err
	}

	env.store.Logout(ctx)

	if err := env.persistCredential(); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}

	env.printf("Logged out.\n")
	return nil
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd.Context(), commandOptions(cmd)...)
		},
	}
}

func runWhoami(ctx context.Context, opts ...Option) error {
	env, err := newRunEnv(opts...)
	if err != nil {
		return err
	}

	user, err := env.requireSession(ctx, "")
	if err != nil {
		return err
	}

	env.printf("%s <%s>\n", user.Name, user.Email)
	env.printf("  Role:     %s\n", user.Role)
	env.printf("  Verified: %t\n", user.Verified)
	env.printf("  Credits:  %d\n", user.Credits)
	return nil
}
