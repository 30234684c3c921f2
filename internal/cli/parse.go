package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/deskquery/internal/backend"
	"github.com/roach88/deskquery/internal/harness"
	"github.com/roach88/deskquery/internal/ir"
	"github.com/roach88/deskquery/internal/testutil"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Query QueryOptions
}

// SkippedSpan is input dropped by compact recovery.
type SkippedSpan struct {
	Offset int    `json:"offset"`
	Text   string `json:"text"`
}

// ParseResult is the JSON payload of the parse command.
type ParseResult struct {
	Full        bool            `json:"full"`
	Skipped     []SkippedSpan   `json:"skipped"`
	Description string          `json:"description"`
	Events      json.RawMessage `json:"events"`
	TraceHash   string          `json:"trace_hash"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse [query...]",
		Short: "Parse a query and show the builder calls",
		Long: `Parse a query and print the builder calls it produced followed by a
description of the resulting backend query.

A compact query always parses; input that cannot be read is skipped and
reported. A structured query that is not well formed is rejected.

Exit codes:
  0 - Query parsed
  1 - Query rejected
  2 - Command error (missing query, unreadable file)

Examples:
  deskquery parse 'title:jazz -type:video'
  deskquery parse --content xesam:audio 'miles davis'
  deskquery parse --syntax structured -f query.xml
  deskquery parse --format json 'size>1MB'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args, cmd)
		},
	}

	opts.Query.bind(cmd)

	return cmd
}

func runParse(opts *ParseOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.config()
	if err != nil {
		return err
	}

	parsed, err := opts.parseQuery(&opts.Query, args, cfg)
	if err != nil {
		_ = formatter.Error(ErrCodeQuery, err.Error(), nil)
		return err
	}
	trace := testutil.Trace(parsed.Events)
	hash, err := ir.TraceHash(trace)
	if err != nil {
		return fmt.Errorf("failed to hash events: %w", err)
	}
	formatter.VerboseLog("%d builder call(s), full=%t, trace %s", len(parsed.Events), parsed.Full, hash)

	description := backend.Describe(parsed.Query)

	if formatter.JSON() {
		events, err := ir.MarshalCanonical(trace)
		if err != nil {
			return fmt.Errorf("failed to encode events: %w", err)
		}
		result := ParseResult{
			Full:        parsed.Full,
			Skipped:     make([]SkippedSpan, 0, len(parsed.Skipped)),
			Description: description,
			Events:      events,
			TraceHash:   hash,
		}
		for _, span := range parsed.Skipped {
			result.Skipped = append(result.Skipped, SkippedSpan{Offset: span.Offset, Text: span.Text})
		}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	for _, e := range parsed.Events {
		fmt.Fprintf(w, "[%d] %s\n", e.Seq, harness.FormatEvent(e))
	}
	for _, span := range parsed.Skipped {
		fmt.Fprintf(w, "skipped at %d: %q\n", span.Offset, span.Text)
	}
	fmt.Fprintln(w, description)
	return nil
}
