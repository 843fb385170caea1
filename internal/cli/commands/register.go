package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aioptimizer/frontend/internal/auth"
	"github.com/aioptimizer/frontend/internal/client"
	"github.com/aioptimizer/frontend/internal/models"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account on the AI Optimizer backend.

A verification code is emailed to you. Confirm it with 'aiopt verify'
before logging in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd.Context(), name, email, password, commandOptions(cmd)...)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (will prompt if not provided)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runRegister(ctx context.Context, name, email, password string, opts ...Option) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return fmt.Errorf("name and email are required")
	}

	env, err := newRunEnv(opts...)
	if err != nil {
		return err
	}

	if password == "" {
		if password, err = env.newPassword(); err != nil {
			return err
		}
	}
	if err := auth.CheckPassword(password); err != nil {
		return err
	}

	msg, err := env.store.Register(ctx, client.RegisterRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	env.printMessage(msg, "Registration successful.")
	env.printf("Next: aiopt verify --email %s --code <code>\n", email)
	return nil
}

// NewVerifyCmd creates the verify command
func NewVerifyCmd() *cobra.Command {
	var email, code string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Confirm your email address with the emailed code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), email, code, commandOptions(cmd)...)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&code, "code", "", "6-digit verification code")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("code")

	return cmd
}

// runVerify confirms the address only; the user logs in separately
func runVerify(ctx context.Context, email, code string, opts ...Option) error {
	if err := checkCode(code); err != nil {
		return err
	}

	env, err := newRunEnv(opts...)
	if err != nil {
		return err
	}

	msg, err := env.store.Verify(ctx, strings.TrimSpace(email), code)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	env.printMessage(msg, "Email verified.")
	env.printf("You can now run: aiopt login --email %s\n", strings.TrimSpace(email))
	return nil
}

// NewResendVerificationCmd creates the resend-verification command
func NewResendVerificationCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "resend-verification",
		Short: "Send a new verification code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResendVerification(cmd.Context(), email, commandOptions(cmd)...)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runResendVerification(ctx context.Context, email string, opts ...Option) error {
	env, err := newRunEnv(opts...)
	if err != nil {
		return err
	}

	msg, err := env.store.ResendVerification(ctx, strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("failed to resend verification code: %w", err)
	}

	env.printMessage(msg, "Verification code sent.")
	return nil
}

// NewForgotPasswordCmd creates the forgot-password command
func NewForgotPasswordCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Email a password reset code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForgotPassword(cmd.Context(), email, commandOptions(cmd)...)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runForgotPassword(ctx context.Context, email string, opts ...Option) error {
	env, err := newRunEnv(opts...)
	if err != nil {
		return err
	}

	msg, err := env.store.ForgotPassword(ctx, strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("failed to request password reset: %w", err)
	}

	env.printMessage(msg, "Reset code sent.")
	env.printf("Next: aiopt reset-password --email %s --code <code>\n", strings.TrimSpace(email))
	return nil
}

// NewResetPasswordCmd creates the reset-password command
func NewResetPasswordCmd() *cobra.Command {
	var email, code, password string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password using the emailed code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResetPassword(cmd.Context(), email, code, password, commandOptions(cmd)...)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&code, "code", "", "6-digit reset code")
	cmd.Flags().StringVar(&password, "password", "", "New password (will prompt if not provided)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("code")

	return cmd
}

func runResetPassword(ctx context.Context, email, code, password string, opts ...Option) error {
	if err := checkCode(code); err != nil {
		return err
	}

	env, err := newRunEnv(opts...)
	if err != nil {
		return err
	}

	if password == "" {
		if password, err = env.newPassword(); err != nil {
			return err
		}
	}
	if err := auth.CheckPassword(password); err != nil {
		return err
	}

	msg, err := env.store.ResetPassword(ctx, client.ResetPasswordRequest{
		Email:       strings.TrimSpace(email),
		Code:        code,
		NewPassword: password,
	})
	if err != nil {
		return fmt.Errorf("password reset failed: %w", err)
	}

	env.printMessage(msg, "Password updated.")
	return nil
}

// newPassword prompts twice and requires both entries to match
func (e *runEnv) newPassword() (string, error) {
	password, err := e.promptPassword("Password")
	if err != nil {
		return "", err
	}
	confirm, err := e.promptPassword("Confirm password")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

func (e *runEnv) printMessage(msg models.Message, fallback string) {
	if strings.TrimSpace(msg.Message) == "" {
		e.printf("✓ %s\n", fallback)
		return
	}
	e.printf("✓ %s\n", msg.Message)
}

// checkCode enforces the 6-digit format of verification and reset codes
func checkCode(code string) error {
	if len(code) != 6 {
		return fmt.Errorf("code must be 6 digits")
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("code must be 6 digits")
		}
	}
	return nil
}
