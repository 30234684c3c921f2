package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/deskquery/internal/backend"
	"github.com/roach88/deskquery/internal/builder"
	"github.com/roach88/deskquery/internal/compact"
	"github.com/roach88/deskquery/internal/config"
	"github.com/roach88/deskquery/internal/store"
	"github.com/roach88/deskquery/internal/structured"
	"github.com/roach88/deskquery/internal/testutil"
)

// Query syntaxes accepted by --syntax.
const (
	SyntaxCompact    = "compact"
	SyntaxStructured = "structured"
)

// QueryOptions holds the flags shared by commands that read a query.
type QueryOptions struct {
	Syntax  string // "compact" | "structured"
	File    string // read the query from a file instead of the arguments
	Content string // content class applied before the first selection (compact only)
	Source  string // source class applied before the first selection (compact only)
}

func (q *QueryOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.Syntax, "syntax", SyntaxCompact, "query syntax (compact|structured)")
	cmd.Flags().StringVarP(&q.File, "file", "f", "", "read the query from a file")
	cmd.Flags().StringVar(&q.Content, "content", "", "restrict to a content class (compact syntax)")
	cmd.Flags().StringVar(&q.Source, "source", "", "restrict to a source class (compact syntax)")
}

// parsedQuery is the outcome of one parse.
type parsedQuery struct {
	Query   backend.Query
	Full    bool
	Skipped []compact.Span
	Events  []testutil.Event
}

// parseQuery parses the query given as arguments or through --file and
// returns the builder's query together with the recorded builder calls.
//
// A structured query that fails to parse is an ExitFailure error. A compact
// query always yields a query; Full reports whether recovery was needed.
func (o *RootOptions) parseQuery(q *QueryOptions, args []string, cfg *config.Config) (*parsedQuery, error) {
	text := strings.Join(args, " ")
	switch {
	case q.File != "" && len(args) > 0:
		return nil, NewExitError(ExitCommandError, "give the query as arguments or with --file, not both")
	case q.File == "" && len(args) == 0:
		return nil, NewExitError(ExitCommandError, "no query given")
	}

	logger := o.logger()
	b := builder.New(cfg, builder.WithLogger(logger), builder.WithMetrics(o.metrics))
	rec := testutil.NewRecorder(b)
	out := &parsedQuery{}

	switch q.Syntax {
	case SyntaxCompact:
		if q.Content != "" || q.Source != "" {
			rec.OnQuery(q.Content, q.Source)
		}
		p := compact.New(compact.WithLogger(logger), compact.WithMetrics(o.metrics))
		var res compact.Result
		if q.File != "" {
			var err error
			res, err = p.ParseFile(q.File, rec)
			if err != nil {
				return nil, WrapExitError(ExitCommandError, "failed to read query", err)
			}
		} else {
			res = p.ParseDetailed(text, rec)
		}
		out.Full = res.Full
		out.Skipped = res.Skipped

	case SyntaxStructured:
		if q.Content != "" || q.Source != "" {
			return nil, NewExitError(ExitCommandError, "--content and --source apply to compact queries only")
		}
		p := structured.New(structured.WithLogger(logger), structured.WithMetrics(o.metrics))
		var err error
		if q.File != "" {
			err = p.ParseFile(q.File, rec)
		} else {
			err = p.ParseString(text, rec)
		}
		if err != nil {
			var pe *structured.ParseError
			if errors.As(err, &pe) {
				return nil, WrapExitError(ExitFailure, "query rejected", err)
			}
			return nil, WrapExitError(ExitCommandError, "failed to read query", err)
		}
		out.Full = true

	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown syntax %q: must be %s or %s", q.Syntax, SyntaxCompact, SyntaxStructured))
	}

	for _, span := range out.Skipped {
		logger.Debug("skipped", "offset", span.Offset, "text", span.Text)
	}
	out.Events = rec.Events()
	out.Query = b.GetQuery()
	return out, nil
}

// StoreFlags override the configured store.
type StoreFlags struct {
	Driver string
	DSN    string
}

func (s *StoreFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.Driver, "driver", "", "store driver (sqlite|sqlite3|pgx), overrides the config")
	cmd.Flags().StringVar(&s.DSN, "dsn", "", "store data source name, overrides the config")
}

func (s *StoreFlags) apply(cfg config.StoreConfig) config.StoreConfig {
	if s.Driver != "" {
		cfg.Driver = s.Driver
	}
	if s.DSN != "" {
		cfg.DSN = s.DSN
	}
	return cfg
}

// openStore opens the store named by the config and flags.
func (o *RootOptions) openStore(ctx context.Context, cfg *config.Config, flags *StoreFlags) (*store.Store, error) {
	sc := flags.apply(cfg.Store)
	o.logger().Debug("opening store", "driver", sc.Driver)
	st, err := store.Open(ctx, sc, store.WithLogger(o.logger()), store.WithMetrics(o.metrics))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return st, nil
}
