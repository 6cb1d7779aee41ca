package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/internal/store"
	"github.com/quarryhq/quarry/tabular"
)

// FieldsOptions holds flags for the fields command.
type FieldsOptions struct {
	*RootOptions
	CSV   string
	DB    string
	Table string
}

// NewFieldsCommand creates the fields command.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FieldsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fields",
		Short: "Print a source's field names in column order",
		Long: `Print the field names of a CSV file or a SQLite table, in column order.

Example:
  quarry fields --csv ./data/sample.csv
  quarry fields --db ./data.db --table sample`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.CSV, "csv", "", "path to a CSV file")
	cmd.Flags().StringVar(&opts.DB, "db", "", "path to a SQLite database")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table name (with --db)")

	return cmd
}

func runFields(opts *FieldsOptions, cmd *cobra.Command) error {
	formatter := &Formatter{
		Format:  opts.Format,
		Out:     cmd.OutOrStdout(),
		Err:     cmd.ErrOrStderr(),
		Verbose: opts.Verbose,
	}

	src, err := openFieldsSource(cmd, opts)
	if err != nil {
		formatter.Fail(ErrCodeSource, err.Error())
		return WrapExitError(ExitCommandError, "cannot load source", err)
	}

	fields := src.Fieldnames()
	if opts.Format == "json" {
		return formatter.OK(map[string]any{"fields": fields})
	}
	for _, f := range fields {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	return nil
}

func openFieldsSource(cmd *cobra.Command, opts *FieldsOptions) (*tabular.Source, error) {
	switch {
	case opts.CSV != "" && opts.DB != "":
		return nil, fmt.Errorf("--csv and --db are mutually exclusive")
	case opts.CSV != "":
		return tabular.FromCSVFile(opts.CSV)
	case opts.DB != "":
		if opts.Table == "" {
			return nil, fmt.Errorf("--db requires --table")
		}
		db, err := store.Open(opts.DB)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return db.LoadTable(ctx, opts.Table)
	default:
		return nil, fmt.Errorf("one of --csv or --db is required")
	}
}
