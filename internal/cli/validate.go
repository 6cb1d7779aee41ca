package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/internal/queryfile"
)

// ValidationReport is the data payload of a successful validate run.
type ValidationReport struct {
	Valid           bool     `json:"valid"`
	Fields          []string `json:"fields"`
	Steps           int      `json:"steps"`
	Fingerprintable bool     `json:"fingerprintable"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <query-file>",
		Short: "Check a query document without executing it",
		Long: `Parse and compile a query document without executing it.

Document shape errors, invalid selection descriptors, and unknown fields
all surface here. Data-dependent failures (a non-numeric sum input, say)
cannot: those only exist at execution time.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runDocValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &Formatter{
		Format:  opts.Format,
		Out:     cmd.OutOrStdout(),
		Err:     cmd.ErrOrStderr(),
		Verbose: opts.Verbose,
	}
	logger := newLogger(opts, cmd.ErrOrStderr())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	doc, err := queryfile.Load(path)
	if err != nil {
		formatter.Fail(ErrCodeDocument, err.Error())
		return WrapExitError(ExitCommandError, "invalid query document", err)
	}
	logger.Debug().Str("document", path).Msg("document parsed")

	src, err := queryfile.ResolveSource(ctx, doc)
	if err != nil {
		formatter.Fail(ErrCodeSource, err.Error())
		return WrapExitError(ExitCommandError, "cannot load source", err)
	}

	q, err := queryfile.Compile(doc, src)
	if err != nil {
		formatter.Fail(queryErrorCode(err), err.Error())
		return WrapExitError(ExitCommandError, "invalid query", err)
	}

	_, fpErr := q.Fingerprint()
	report := ValidationReport{
		Valid:           true,
		Fields:          src.Fieldnames(),
		Steps:           len(doc.Steps),
		Fingerprintable: fpErr == nil,
	}

	if opts.Format == "json" {
		return formatter.OK(report)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "valid")
	return nil
}
