package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/synthpanel/synthpanel/internal/model"
	"github.com/synthpanel/synthpanel/internal/store"
)

// UsageOptions holds flags for the usage command.
type UsageOptions struct {
	*RootOptions
	Database  string
	TestID    string
	PersonaID string
	Model     string
	Since     time.Duration
}

// NewUsageCommand creates the usage command.
func NewUsageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UsageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Report token spend from persisted usage records",
		Long: `Aggregate persisted usage records into a cost summary.

Reports totals, a per-model and per-test breakdown, and trailing
24h/7d/30d buckets. Filters narrow the record set before aggregation.

Example:
  synthpanel usage --db ./panel.db
  synthpanel usage --db ./panel.db --test 0192cf1e-... --model gpt-4o-mini
  synthpanel usage --db ./panel.db --since 168h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reportUsage(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.TestID, "test", "", "only records for this test id")
	cmd.Flags().StringVar(&opts.PersonaID, "persona", "", "only records for this persona id")
	cmd.Flags().StringVar(&opts.Model, "model", "", "only records for this model")
	cmd.Flags().DurationVar(&opts.Since, "since", 0, "only records newer than this trailing window")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func reportUsage(cmd *cobra.Command, opts *UsageOptions) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now()

	query := store.UsageQuery{
		TestID:    opts.TestID,
		PersonaID: opts.PersonaID,
		Model:     opts.Model,
	}
	if opts.Since > 0 {
		query.Since = now.Add(-opts.Since)
	}

	records, err := st.LoadUsageRecords(ctx, query)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load usage records", err)
	}

	var summary model.CostSummary
	for _, rec := range records {
		summary.Accumulate(rec, now)
	}
	if summary.ByModel == nil {
		summary.ByModel = map[string]model.ModelUsage{}
	}
	if summary.ByTest == nil {
		summary.ByTest = map[string]model.ModelUsage{}
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if formatter.JSON() {
		return formatter.Success(summary)
	}

	printUsageSummary(formatter, summary)
	return nil
}

func printUsageSummary(f *OutputFormatter, s model.CostSummary) {
	fmt.Fprintf(f.Writer, "Totals: %d calls, %d prompt + %d completion tokens, $%.6f\n",
		s.Totals.Calls, s.Totals.PromptTokens, s.Totals.CompletionTokens, s.Totals.Cost)

	fmt.Fprintln(f.Writer, "By model:")
	for _, name := range sortedKeys(s.ByModel) {
		u := s.ByModel[name]
		fmt.Fprintf(f.Writer, "  %-24s %5d calls  %8d tokens  $%.6f\n",
			name, u.Calls, u.PromptTokens+u.CompletionTokens, u.Cost)
	}

	fmt.Fprintln(f.Writer, "By test:")
	for _, id := range sortedKeys(s.ByTest) {
		u := s.ByTest[id]
		fmt.Fprintf(f.Writer, "  %-38s %5d calls  $%.6f\n", id, u.Calls, u.Cost)
	}

	fmt.Fprintf(f.Writer, "Last 24h: $%.6f   Last 7d: $%.6f   Last 30d: $%.6f\n",
		s.Buckets.Last24h.Cost, s.Buckets.Last7d.Cost, s.Buckets.Last30d.Cost)
}

func sortedKeys(m map[string]model.ModelUsage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
