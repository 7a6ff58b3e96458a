package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/synthpanel/synthpanel/internal/engine"
	"github.com/synthpanel/synthpanel/internal/ledger"
	"github.com/synthpanel/synthpanel/internal/llm"
	"github.com/synthpanel/synthpanel/internal/model"
	"github.com/synthpanel/synthpanel/internal/pricing"
	"github.com/synthpanel/synthpanel/internal/runner"
	"github.com/synthpanel/synthpanel/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Pricing     string
	BaseURL     string
	Model       string
	Concurrency int
	CallTimeout time.Duration
}

// runInput is the YAML shape of a panel definition file.
type runInput struct {
	Test     model.Test      `yaml:"test"`
	Personas []model.Persona `yaml:"personas"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <panel.yaml>",
		Short: "Execute a panel test",
		Long: `Execute one synthetic panel test defined in a YAML file.

The file declares the test (type, objective, target audience, settings)
and the personas to simulate. Personas are saved to the database, the
test is created in draft, started, and driven to a terminal state.

Example:
  synthpanel run --db ./panel.db ./examples/meal-planner.yaml
  synthpanel run --db ./panel.db --model gpt-4o-mini --concurrency 8 panel.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPanel(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Pricing, "pricing", "", "path to pricing YAML (default: built-in table)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "LLM endpoint base URL (default: local Ollama)")
	cmd.Flags().StringVar(&opts.Model, "model", "gpt-4o-mini", "model to invoke")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", engine.DefaultConcurrency, "max simultaneous persona runs")
	cmd.Flags().DurationVar(&opts.CallTimeout, "call-timeout", runner.DefaultCallTimeout, "per-call deadline for LLM invocations")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runPanel(cmd *cobra.Command, opts *RunOptions, inputPath string) error {
	input, err := loadRunInput(inputPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load panel definition", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	prices := pricing.Default()
	if opts.Pricing != "" {
		prices, err = pricing.Load(opts.Pricing)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load pricing table", err)
		}
	}

	led := ledger.New(prices)
	client := llm.NewHTTPClient(opts.BaseURL)
	rnr := runner.New(client, led, opts.Model, runner.WithCallTimeout(opts.CallTimeout))
	eng := engine.New(st, rnr, led, engine.WithConcurrency(opts.Concurrency))

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	// Seed storage: personas first, then the draft test.
	for _, p := range input.Personas {
		if err := st.SavePersona(ctx, p); err != nil {
			return WrapExitError(ExitCommandError, "failed to save persona", err)
		}
	}
	if err := eng.CreateTest(ctx, &input.Test); err != nil {
		return WrapExitError(ExitCommandError, "failed to create test", err)
	}

	// A signal cancels the run cooperatively; in-flight provider calls
	// abort and the test lands in failed with a cancellation marker.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, cancelling run", "signal", sig)
			if err := eng.Cancel(input.Test.ID); err != nil {
				slog.Warn("cancel rejected", "error", err)
			}
		case <-ctx.Done():
		}
	}()

	result, err := eng.Start(ctx, input.Test.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "run failed", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		printRunSummary(formatter, result)
	}

	if result.Status == model.StatusFailed {
		return NewExitError(ExitFailure, fmt.Sprintf("test %s failed: %s", result.ID, result.FailureReason))
	}
	return nil
}

// loadRunInput parses a panel definition and fills in missing IDs.
func loadRunInput(path string) (*runInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var input runInput
	if err := yaml.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(input.Personas) == 0 {
		return nil, fmt.Errorf("%s declares no personas", path)
	}

	gen := engine.UUIDv7Generator{}
	for i := range input.Personas {
		if input.Personas[i].ID == "" {
			input.Personas[i].ID = gen.Generate()
		}
	}
	if len(input.Test.PersonaIDs) == 0 {
		for _, p := range input.Personas {
			input.Test.PersonaIDs = append(input.Test.PersonaIDs, p.ID)
		}
	}
	if input.Test.Type == "" {
		input.Test.Type = model.TestTypeProduct
	}
	return &input, nil
}

// printRunSummary renders the per-persona outcome table and the spend
// total in text mode.
func printRunSummary(f *OutputFormatter, t *model.Test) {
	fmt.Fprintf(f.Writer, "Test %s: %s\n", t.ID, t.Status)
	if t.FailureReason != "" {
		fmt.Fprintf(f.Writer, "Reason: %s\n", t.FailureReason)
	}
	for _, r := range t.Results {
		if r.Failed() {
			fmt.Fprintf(f.Writer, "  %s  FAILED (%s): %s\n", r.PersonaID, r.ErrorKind, r.Error)
			continue
		}
		fmt.Fprintf(f.Writer, "  %s  ok: %s\n", r.PersonaID, r.Evaluation.FirstImpression)
	}
	fmt.Fprintf(f.Writer, "Usage: %d calls, %d prompt + %d completion tokens, $%.6f\n",
		t.Usage.Calls, t.Usage.PromptTokens, t.Usage.CompletionTokens, t.Usage.Cost)
}
