package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aioptimizer/frontend/internal/cli/auth"
	"github.com/aioptimizer/frontend/internal/cli/config"
	"github.com/aioptimizer/frontend/internal/client"
	"github.com/aioptimizer/frontend/internal/guard"
	"github.com/aioptimizer/frontend/internal/logger"
	"github.com/aioptimizer/frontend/internal/models"
	"github.com/aioptimizer/frontend/internal/session"
)

// API is everything the commands need from the backend client
type API interface {
	session.AuthAPI
	ListUsers(ctx context.Context) ([]models.User, error)
	PromoteUser(ctx context.Context, userID string) error
	DemoteUser(ctx context.Context, userID string) error
	DeleteUser(ctx context.Context, userID string) error
	Optimize(ctx context.Context, mode models.Mode, req models.OptimizeRequest) (*models.Optimization, error)
	ListOptimizations(ctx context.Context) ([]models.Optimization, error)
	DownloadReport(ctx context.Context, optimizationID string) (*models.Report, error)
}

// runEnv carries the collaborators of one command run
type runEnv struct {
	backend        string
	api            API
	tokens         auth.TokenStore
	out            io.Writer
	promptPassword func(label string) (string, error)
	confirm        func(label string) (bool, error)
	selectMode     func() (models.Mode, error)
	store          *session.Store
}

// Option customizes a command run; tests use these to inject fakes
type Option func(*runEnv)

// WithAPIClient replaces the backend client
func WithAPIClient(api API) Option {
	return func(e *runEnv) { e.api = api }
}

// WithTokenStore replaces the keyring
func WithTokenStore(tokens auth.TokenStore) Option {
	return func(e *runEnv) { e.tokens = tokens }
}

// WithBackend pins the backend URL, skipping the config file and environment
func WithBackend(backend string) Option {
	return func(e *runEnv) { e.backend = backend }
}

// WithOutput redirects command output
func WithOutput(out io.Writer) Option {
	return func(e *runEnv) { e.out = out }
}

// WithPasswordPrompt replaces the terminal password prompt
func WithPasswordPrompt(prompt func(label string) (string, error)) Option {
	return func(e *runEnv) { e.promptPassword = prompt }
}

// WithConfirm replaces the interactive yes/no prompt
func WithConfirm(confirm func(label string) (bool, error)) Option {
	return func(e *runEnv) { e.confirm = confirm }
}

// WithModeSelector replaces the interactive optimizer mode picker
func WithModeSelector(selectMode func() (models.Mode, error)) Option {
	return func(e *runEnv) { e.selectMode = selectMode }
}

// commandOptions turns the persistent flags of cmd into options
func commandOptions(cmd *cobra.Command) []Option {
	opts := []Option{WithOutput(cmd.OutOrStdout())}
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		opts = append(opts, WithBackend(backend))
	}
	return opts
}

// newRunEnv resolves the backend and restores the stored session into the client
func newRunEnv(opts ...Option) (*runEnv, error) {
	e := &runEnv{
		tokens:         auth.Default,
		out:            os.Stdout,
		promptPassword: terminalPassword,
		confirm:        promptConfirm,
		selectMode:     promptMode,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.backend == "" {
		path, err := config.GetConfigPath()
		if err != nil {
			return nil, err
		}

		backend, err := config.ResolveBackend(path, "")
		if err != nil {
			return nil, err
		}
		e.backend = backend
	}

	if e.api == nil {
		apiClient, err := client.New(e.backend)
		if err != nil {
			return nil, err
		}
		e.api = apiClient
	}

	token, err := e.tokens.LoadToken(e.backend)
	switch {
	case err == nil:
		e.api.SetCredential(token)
	case errors.Is(err, auth.ErrNotAuthenticated):
	default:
		return nil, err
	}

	e.store = session.NewStore(e.api, session.WithLogger(logger.GetLogger()))
	return e, nil
}

// requireSession resolves the stored session and applies the same guard the
// web pages use
func (e *runEnv) requireSession(ctx context.Context, role models.Role) (*models.User, error) {
	log := logger.GetLogger()

	state, err := e.store.Resolve(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Session lookup failed")
	}

	switch guard.Decide(state, role) {
	case guard.Wait:
		return nil, fmt.Errorf("backend at %s is unavailable, try again in a moment: %w", e.backend, err)
	case guard.RedirectLogin:
		if delErr := e.tokens.DeleteToken(e.backend); delErr != nil {
			log.Warn().Err(delErr).Msg("Failed to drop stale session")
		}
		return nil, auth.ErrNotAuthenticated
	case guard.RedirectDefault:
		return nil, fmt.Errorf("this command requires the %s role", role)
	}

	return state.User, nil
}

// persistCredential mirrors the client's session cookie into the keyring
func (e *runEnv) persistCredential() error {
	credential := e.api.Credential()
	if credential == "" {
		return e.tokens.DeleteToken(e.backend)
	}
	return e.tokens.SaveToken(e.backend, credential)
}

func (e *runEnv) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}

// terminalPassword reads a password without echo; it refuses piped input
func terminalPassword(label string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("%s is required in non-interactive mode", label)
	}

	fmt.Fprintf(os.Stderr, "%s: ", label)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

func promptConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation cancelled: %w", err)
	}
	return true, nil
}

func promptMode() (models.Mode, error) {
	type modeOption struct {
		Label string
		Mode  models.Mode
	}

	options := make([]modeOption, len(models.Modes))
	for i, mode := range models.Modes {
		options[i] = modeOption{Label: mode.Label(), Mode: mode}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select an optimizer",
		Items:     options,
		Templates: templates,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("mode selection cancelled: %w", err)
	}

	return options[index].Mode, nil
}
