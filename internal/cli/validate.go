package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synthpanel/synthpanel/internal/schema"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <payload.json>",
		Short: "Validate an evaluation payload against the schema",
		Long: `Check a JSON file against the structured evaluation schema.

Reports the violation kind and path on failure. Useful for debugging
model output and for authoring test fixtures.

Example:
  synthpanel validate ./payload.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validatePayload(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func validatePayload(cmd *cobra.Command, rootOpts *RootOptions, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read payload", err)
	}

	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

	if _, err := schema.Validate(raw); err != nil {
		if ferr := formatter.Fail(err.Error()); ferr != nil {
			return ferr
		}
		return NewExitError(ExitFailure, fmt.Sprintf("payload %s is invalid", path))
	}

	if formatter.JSON() {
		return formatter.Success(map[string]string{"payload": path, "result": "valid"})
	}
	fmt.Fprintf(formatter.Writer, "%s: valid\n", path)
	return nil
}
