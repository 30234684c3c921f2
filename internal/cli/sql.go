package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/deskquery/internal/backend"
	"github.com/roach88/deskquery/internal/querysql"
)

// SQLOptions holds flags for the sql command.
type SQLOptions struct {
	*RootOptions
	Query   QueryOptions
	Dialect string
	Limit   int
	Count   bool
}

// SQLResult is the JSON payload of the sql command.
type SQLResult struct {
	Dialect string `json:"dialect"`
	SQL     string `json:"sql"`
	Args    []any  `json:"args"`
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SQLOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sql [query...]",
		Short: "Compile a query to SQL",
		Long: `Parse a query and print the SQL the document store would run for it,
with its parameters.

The dialect defaults to the one of the configured store driver.

Examples:
  deskquery sql 'title:jazz OR author:davis'
  deskquery sql --dialect postgres --limit 20 'size>1MB'
  deskquery sql --count --syntax structured -f query.xml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(opts, args, cmd)
		},
	}

	opts.Query.bind(cmd)
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (sqlite|postgres), defaults to the store driver's")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of rows, 0 for no limit")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "compile a count of the matching documents")

	return cmd
}

func runSQL(opts *SQLOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.config()
	if err != nil {
		return err
	}

	name := opts.Dialect
	if name == "" {
		name = cfg.Store.Driver
	}
	dialect, err := querysql.ParseDialect(name)
	if err != nil {
		_ = formatter.Error(ErrCodeArgument, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid dialect", err)
	}

	parsed, err := opts.parseQuery(&opts.Query, args, cfg)
	if err != nil {
		_ = formatter.Error(ErrCodeQuery, err.Error(), nil)
		return err
	}
	if backend.IsEmpty(parsed.Query) {
		msg := "query is empty and matches nothing"
		_ = formatter.Error(ErrCodeCompile, msg, nil)
		return NewExitError(ExitFailure, msg)
	}

	c := querysql.NewSQLCompiler(dialect)
	c.Limit = opts.Limit

	var sql string
	var params []any
	if opts.Count {
		sql, params, err = c.CompileCount(parsed.Query)
	} else {
		sql, params, err = c.Compile(parsed.Query)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeCompile, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to compile query", err)
	}
	if params == nil {
		params = []any{}
	}

	if formatter.JSON() {
		return formatter.Success(SQLResult{Dialect: dialect.String(), SQL: sql, Args: params})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, sql)
	for i, p := range params {
		fmt.Fprintf(w, "  [%d] %v\n", i+1, p)
	}
	return nil
}
