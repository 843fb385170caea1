package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aioptimizer/frontend/internal/models"
)

// NewAdminCmd creates the admin command group
func NewAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage users (admin only)",
	}

	cmd.AddCommand(newAdminUsersCmd())
	cmd.AddCommand(newAdminActionCmd("promote", "Grant the admin role to a user", adminPromote))
	cmd.AddCommand(newAdminActionCmd("demote", "Remove the admin role from a user", adminDemote))
	cmd.AddCommand(newAdminActionCmd("delete", "Delete a user account", adminDelete))

	return cmd
}

func newAdminUsersCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminUsers(cmd.Context(), search, commandOptions(cmd)...)
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Only show users whose name or email contains this text")

	return cmd
}

func runAdminUsers(ctx context.Context, search string, opts ...Option) error {
	env, err := newRunEnv(opts...)
	if err != nil {
		return err
	}

	if _, err := env.requireSession(ctx, models.RoleAdmin); err != nil {
		return err
	}

	users, err := env.api.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(search))
	var shown []models.User
	for _, u := range users {
		if needle == "" ||
			strings.Contains(strings.ToLower(u.Name), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) {
			shown = append(shown, u)
		}
	}
	sort.SliceStable(shown, func(i, j int) bool { return shown[i].CreatedAt.Before(shown[j].CreatedAt) })

	if len(shown) == 0 {
		env.printf("No users found.\n")
		return nil
	}

	w := tabwriter.NewWriter(env.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tVERIFIED\tCREDITS")
	fmt.Fprintln(w, "──\t────\t─────\t────\t────────\t───────")

	for _, u := range shown {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\n", u.ID, u.Name, u.Email, u.Role, u.Verified, u.Credits)
	}

	return w.Flush()
}

// adminAction describes one user mutation
type adminAction struct {
	verb        string
	forbidSelf  bool
	confirm     bool
	call        func(ctx context.Context, api API, userID string) error
	description string
}

var (
	adminPromote = adminAction{
		verb:        "promote",
		description: "promoted to admin",
		call:        func(ctx context.Context, api API, id string) error { return api.PromoteUser(ctx, id) },
	}
	adminDemote = adminAction{
		verb:        "demote",
		forbidSelf:  true,
		description: "demoted to user",
		call:        func(ctx context.Context, api API, id string) error { return api.DemoteUser(ctx, id) },
	}
	adminDelete = adminAction{
		verb:        "delete",
		forbidSelf:  true,
		confirm:     true,
		description: "deleted",
		call:        func(ctx context.Context, api API, id string) error { return api.DeleteUser(ctx, id) },
	}
)

func newAdminActionCmd(use, short string, action adminAction) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   use + " <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminAction(cmd.Context(), action, args[0], yes, commandOptions(cmd)...)
		},
	}

	if action.confirm {
		cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	}

	return cmd
}

func runAdminAction(ctx context.Context, action adminAction, userID string, yes bool, opts ...Option) error {
	env, err := newRunEnv(opts...)
	if err != nil {
		return err
	}

	me, err := env.requireSession(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}

	if action.forbidSelf && me.ID == userID {
		return fmt.Errorf("cannot %s yourself", action.verb)
	}

	if action.confirm && !yes {
		ok, err := env.confirm(fmt.Sprintf("%s user %s", strings.ToUpper(action.verb[:1])+action.verb[1:], userID))
		if err != nil {
			return err
		}
		if !ok {
			env.printf("Aborted.\n")
			return nil
		}
	}

	if err := action.call(ctx, env.api, userID); err != nil {
		return fmt.Errorf("failed to %s user %s: %w", action.verb, userID, err)
	}

	env.printf("✓ User %s %s\n", userID, action.description)
	return nil
}
