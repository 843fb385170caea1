package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aioptimizer/frontend/internal/cli/commands"
	"github.com/aioptimizer/frontend/internal/logger"
)

var version = "dev" // Will be set during build

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "aiopt",
	Short: "AI Optimizer - SEO, GEO and VEO content optimization",
	Long: `AI Optimizer CLI - Run optimizers and manage your account from the terminal.

The CLI talks to the same backend as the web app. Your session is kept in
the OS keychain, one entry per backend URL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Logs go to stderr so command output stays pipeable
		logger.InitWithWriter(logLevel, "console", os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().String("backend", "", "Backend API URL (or set AIOPT_BACKEND_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "aiopt version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewLoginCmd())
	rootCmd.AddCommand(commands.NewLogoutCmd())
	rootCmd.AddCommand(commands.NewWhoamiCmd())
	rootCmd.AddCommand(commands.NewRegisterCmd())
	rootCmd.AddCommand(commands.NewVerifyCmd())
	rootCmd.AddCommand(commands.NewResendVerificationCmd())
	rootCmd.AddCommand(commands.NewForgotPasswordCmd())
	rootCmd.AddCommand(commands.NewResetPasswordCmd())
	rootCmd.AddCommand(commands.NewOptimizeCmd())
	rootCmd.AddCommand(commands.NewHistoryCmd())
	rootCmd.AddCommand(commands.NewReportCmd())
	rootCmd.AddCommand(commands.NewAdminCmd())
}

// Execute runs the root command; Ctrl-C cancels in-flight backend calls
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
