package cli

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/internal/cache"
	"github.com/quarryhq/quarry/internal/queryfile"
	"github.com/quarryhq/quarry/tabular"
)

// cacheCapacity bounds the per-invocation result cache. A single CLI run
// executes one plan, so the capacity only matters for repeated documents.
const cacheCapacity = 64

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Cache bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <query-file>",
		Short: "Execute a query document",
		Long: `Execute a query document against its declared source.

The document is parsed and compiled first; execution only starts once the
whole plan is valid. Results render as text by default, or as a JSON
envelope with --format json.

Example:
  quarry run ./queries/grouped-sum.yaml
  quarry run --format json --cache ./queries/totals.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Cache, "cache", false, "cache results by plan fingerprint")

	return cmd
}

func runQuery(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &Formatter{
		Format:  opts.Format,
		Out:     cmd.OutOrStdout(),
		Err:     cmd.ErrOrStderr(),
		Verbose: opts.Verbose,
	}

	runToken := uuid.Must(uuid.NewV7()).String()
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr()).
		With().Str("run_token", runToken).Logger()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	started := time.Now()
	logger.Debug().Str("document", path).Msg("loading query document")

	doc, err := queryfile.Load(path)
	if err != nil {
		formatter.Fail(ErrCodeDocument, err.Error())
		return WrapExitError(ExitCommandError, "invalid query document", err)
	}

	src, err := queryfile.ResolveSource(ctx, doc)
	if err != nil {
		formatter.Fail(ErrCodeSource, err.Error())
		return WrapExitError(ExitCommandError, "cannot load source", err)
	}
	logger.Debug().
		Strs("fields", src.Fieldnames()).
		Int("rows", src.Len()).
		Msg("source loaded")

	q, err := queryfile.Compile(doc, src)
	if err != nil {
		formatter.Fail(queryErrorCode(err), err.Error())
		return WrapExitError(ExitCommandError, "cannot compile query", err)
	}
	q = q.WithLogger(logger)

	var res tabular.Result
	if opts.Cache {
		rc, err := cache.New(cacheCapacity, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "cannot create cache", err)
		}
		res, _, err = rc.Execute(ctx, q)
		if err != nil {
			formatter.Fail(queryErrorCode(err), err.Error())
			return WrapExitError(ExitFailure, "query failed", err)
		}
	} else {
		res, err = q.Execute(ctx)
		if err != nil {
			formatter.Fail(queryErrorCode(err), err.Error())
			return WrapExitError(ExitFailure, "query failed", err)
		}
	}

	logger.Debug().Dur("elapsed", time.Since(started)).Msg("query complete")
	return formatter.Result(res)
}
