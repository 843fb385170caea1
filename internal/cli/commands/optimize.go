package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aioptimizer/frontend/internal/models"
)

// NewOptimizeCmd creates the optimize command
func NewOptimizeCmd() *cobra.Command {
	var req models.OptimizeRequest
	var keywords string

	cmd := &cobra.Command{
		Use:   "optimize [seo|geo|veo]",
		Short: "Run an optimizer",
		Long: `Run the SEO, GEO or VEO optimizer.

If no mode is given, an interactive prompt will be shown.

Examples:
  $ aiopt optimize seo --url https://example.com --keywords "ai, seo"
  $ aiopt optimize geo --content "$(cat page.md)"
  $ aiopt optimize veo --title "Launch" --description "Product launch video"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mode string
			if len(args) > 0 {
				mode = args[0]
			}
			req.Keywords = splitKeywords(keywords)
			return runOptimize(cmd.Context(), mode, req, commandOptions(cmd)...)
		},
	}

	cmd.Flags().StringVar(&req.Content, "content", "", "Content to optimize")
	cmd.Flags().StringVar(&req.URL, "url", "", "Page URL to optimize")
	cmd.Flags().StringVar(&keywords, "keywords", "", "Comma separated target keywords")
	cmd.Flags().StringVar(&req.TargetAudience, "audience", "", "Target audience")
	cmd.Flags().StringVar(&req.VideoURL, "video-url", "", "Video URL (veo)")
	cmd.Flags().StringVar(&req.Title, "title", "", "Title (veo)")
	cmd.Flags().StringVar(&req.Description, "description", "", "Description (veo)")

	return cmd
}

func runOptimize(ctx context.Context, modeName string, req models.OptimizeRequest, opts ...Option) error {
	env, err := newRunEnv(opts...)
	if err != nil {
		return err
	}

	var mode models.Mode
	if modeName == "" {
		if mode, err = env.selectMode(); err != nil {
			return err
		}
	} else if mode, err = models.ParseMode(modeName); err != nil {
		return err
	}

	if err := req.Validate(mode); err != nil {
		return err
	}

	if _, err := env.requireSession(ctx, ""); err != nil {
		return err
	}

	result, err := env.api.Optimize(ctx, mode, req)
	if err != nil {
		return fmt.Errorf("%s optimization failed: %w", mode.Label(), err)
	}

	// Credits change with every run
	if err := env.store.RefreshUser(ctx); err != nil {
		env.printf("Warning: failed to refresh account: %v\n", err)
	}

	env.printf("✓ %s optimization %s\n", mode.Label(), result.ID)
	env.printf("  Status: %s\n", result.Status)
	env.printf("  Score:  %g\n", result.Score)
	if user := env.store.State().User; user != nil {
		env.printf("  Credits left: %d\n", user.Credits)
	}

	if len(result.Result) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, result.Result, "", "  "); err != nil {
			pretty.Reset()
			pretty.Write(result.Result)
		}
		env.printf("\n%s\n", pretty.String())
	}

	env.printf("\nDownload the report with: aiopt report %s\n", result.ID)
	return nil
}

func splitKeywords(raw string) []string {
	var out []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ls"},
		Short:   "List past optimizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), mode, commandOptions(cmd)...)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Only show seo, geo or veo runs")

	return cmd
}

func runHistory(ctx context.Context, modeName string, opts ...Option) error {
	var filter models.Mode
	if modeName != "" {
		var err error
		if filter, err = models.ParseMode(modeName); err != nil {
			return err
		}
	}

	env, err := newRunEnv(opts...)
	if err != nil {
		return err
	}

	if _, err := env.requireSession(ctx, ""); err != nil {
		return err
	}

	items, err := env.api.ListOptimizations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list optimizations: %w", err)
	}

	var shown []models.Optimization
	for _, item := range items {
		if filter == "" || item.Mode == filter {
			shown = append(shown, item)
		}
	}

	if len(shown) == 0 {
		env.printf("No optimizations found.\n")
		env.printf("\nRun one with: aiopt optimize <seo|geo|veo>\n")
		return nil
	}

	w := tabwriter.NewWriter(env.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tSTATUS\tSCORE\tTITLE\tCREATED AT")
	fmt.Fprintln(w, "──\t────\t──────\t─────\t─────\t──────────")

	for _, item := range shown {
		created := ""
		if !item.CreatedAt.IsZero() {
			created = item.CreatedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\t%s\n",
			item.ID,
			item.Mode.Label(),
			item.Status,
			item.Score,
			item.Title,
			created,
		)
	}

	return w.Flush()
}

// NewReportCmd creates the report command
func NewReportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "report <optimization-id>",
		Short: "Download the report of an optimization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), args[0], output, commandOptions(cmd)...)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write (defaults to the name sent by the backend)")

	return cmd
}

func runReport(ctx context.Context, optimizationID, output string, opts ...Option) error {
	env, err := newRunEnv(opts...)
	if err != nil {
		return err
	}

	if _, err := env.requireSession(ctx, ""); err != nil {
		return err
	}

	report, err := env.api.DownloadReport(ctx, optimizationID)
	if err != nil {
		return fmt.Errorf("failed to download report: %w", err)
	}

	if output == "" {
		output = filepath.Base(report.Filename)
		if output == "" || output == "." || output == string(filepath.Separator) {
			output = fmt.Sprintf("report-%s", optimizationID)
		}
	}

	if err := os.WriteFile(output, report.Body, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	env.printf("✓ Saved %s (%d bytes)\n", output, len(report.Body))
	return nil
}
