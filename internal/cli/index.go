package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/deskquery/internal/document"
)

// IndexOptions holds flags for the index command.
type IndexOptions struct {
	*RootOptions
	Store StoreFlags
}

// IndexResult is the JSON payload of the index command.
type IndexResult struct {
	Indexed int      `json:"indexed"`
	IDs     []string `json:"ids"`
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index [file.jsonl|-]...",
		Short: "Index document metadata",
		Long: `Read document metadata records, one JSON object per line, and add them to
the document store. A record replaces any earlier record with the same url
and ipath. With no files, or "-", records are read from standard input.

Record keys: url (required), ipath, title, author, content, mimetype,
charset, language, modified, size.

Examples:
  deskquery index library.jsonl
  extract-metadata ~/Music | deskquery index --dsn music.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(opts, args, cmd)
		},
	}

	opts.Store.bind(cmd)

	return cmd
}

func runIndex(opts *IndexOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.config()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := opts.openStore(ctx, cfg, &opts.Store)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer st.Close()

	if len(args) == 0 {
		args = []string{"-"}
	}

	result := IndexResult{IDs: []string{}}
	for _, name := range args {
		var r io.Reader
		if name == "-" {
			r = cmd.InOrStdin()
		} else {
			f, err := os.Open(name)
			if err != nil {
				_ = formatter.Error(ErrCodeArgument, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to open metadata", err)
			}
			defer f.Close()
			r = f
		}

		err := document.ReadJSONLines(r, func(line int, m document.Metadata) error {
			d, err := document.FromMetadata(m, cfg)
			if err != nil {
				return err
			}
			id, err := st.Put(ctx, d)
			if err != nil {
				return err
			}
			formatter.VerboseLog("%s:%d %s -> %s", name, line, d.URL, id)
			result.IDs = append(result.IDs, id)
			result.Indexed++
			return nil
		})
		if err != nil {
			_ = formatter.Error(ErrCodeStore, fmt.Sprintf("%s: %v", name, err), nil)
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to index %s", name), err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d document(s)\n", result.Indexed)
	return nil
}
