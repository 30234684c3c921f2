package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/deskquery/internal/backend"
	"github.com/roach88/deskquery/internal/store"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Query QueryOptions
	Store StoreFlags
	Limit int
	Count bool
}

// SearchHit is one matching document in JSON output.
type SearchHit struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	IPath    string `json:"ipath,omitempty"`
	Title    string `json:"title,omitempty"`
	MimeType string `json:"mimetype,omitempty"`
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
	Size     int64  `json:"size"`
}

// SearchResult is the JSON payload of the search command.
type SearchResult struct {
	Description string      `json:"description"`
	Full        bool        `json:"full"`
	Count       int         `json:"count"`
	Hits        []SearchHit `json:"hits,omitempty"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search the document store",
		Long: `Parse a query and list the matching documents in indexing order.

Examples:
  deskquery search 'title:blue author:davis'
  deskquery search --content xesam:audio --limit 10 jazz
  deskquery search --count 'date>2009-01-01'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, args, cmd)
		},
	}

	opts.Query.bind(cmd)
	opts.Store.bind(cmd)
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of results, 0 for no limit")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print only the number of matching documents")

	return cmd
}

func runSearch(opts *SearchOptions, args []string, cmd *cobra.Command) error {
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
	if !parsed.Full {
		formatter.VerboseLog("query parsed with recovery, %d span(s) skipped", len(parsed.Skipped))
	}

	ctx := cmd.Context()
	st, err := opts.openStore(ctx, cfg, &opts.Store)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer st.Close()

	result := SearchResult{
		Description: backend.Describe(parsed.Query),
		Full:        parsed.Full,
	}

	if opts.Count {
		n, err := st.Count(ctx, parsed.Query)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitFailure, "search failed", err)
		}
		result.Count = n
		if formatter.JSON() {
			return formatter.Success(result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	}

	recs, err := st.Search(ctx, parsed.Query, opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "search failed", err)
	}
	result.Count = len(recs)

	if formatter.JSON() {
		result.Hits = make([]SearchHit, 0, len(recs))
		for _, rec := range recs {
			result.Hits = append(result.Hits, hitFromRecord(rec))
		}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	for _, rec := range recs {
		fmt.Fprintf(w, "%s  %9s  %s", formatDay(rec.Day), humanize.Bytes(uint64(rec.Size)), rec.URL)
		if rec.IPath != "" {
			fmt.Fprintf(w, "|%s", rec.IPath)
		}
		if rec.Title != "" {
			fmt.Fprintf(w, "  %s", rec.Title)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%d document(s)\n", len(recs))
	return nil
}

func hitFromRecord(rec store.Record) SearchHit {
	return SearchHit{
		ID:       rec.ID,
		URL:      rec.URL,
		IPath:    rec.IPath,
		Title:    rec.Title,
		MimeType: rec.MimeType,
		Date:     rec.Day,
		Time:     rec.Time,
		Size:     rec.Size,
	}
}

// formatDay renders a YYYYMMDD day column as YYYY-MM-DD.
func formatDay(day string) string {
	if len(day) != 8 {
		return "----------"
	}
	return day[:4] + "-" + day[4:6] + "-" + day[6:]
}
