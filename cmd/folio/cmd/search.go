package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/folio/internal/config"
	"github.com/Aman-CERP/folio/internal/engine"
	ferrors "github.com/Aman-CERP/folio/internal/errors"
	"github.com/Aman-CERP/folio/internal/output"
	"github.com/Aman-CERP/folio/internal/search"
	"github.com/Aman-CERP/folio/internal/transform"
)

type searchFlags struct {
	field   string
	limit   int
	format  string
	columns []string
}

func newSearchCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the index",
		Long: `Query the index and print each hit with its stored and column values.

The query uses query-string syntax:
  book:Genesis                 exact book
  +book:John +chapter:>=3      all of several clauses
  text:"in the beginning"      phrase in the chapter text
  light darkness               words in any text field

With --field the query is matched as plain text against one field.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runSearch(cmd.Context(), cmd, cfg, flags, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&flags.field, "field", "f", "", "Match the query against this field only")
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 0, "Maximum results (default from config)")
	cmd.Flags().StringVar(&flags.format, "format", "text", "Output format: text or json")
	cmd.Flags().StringSliceVar(&flags.columns, "columns", nil, "Column-backed fields to include (default from config)")

	return cmd
}

func buildQuery(reg *transform.Registry, field, text string) (query.Query, error) {
	if field == "" {
		return search.QueryString(text)
	}
	if _, ok := reg.Lookup(field); !ok {
		return nil, ferrors.ValidationError(fmt.Sprintf("unknown field %q", field), nil).
			WithSuggestion(fmt.Sprintf("Known fields: %s", strings.Join(reg.Names(), ", ")))
	}
	return search.Match(field, text), nil
}

func runSearch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, flags searchFlags, text string) error {
	format, err := output.ParseFormat(flags.format)
	if err != nil {
		return ferrors.ValidationError(err.Error(), err)
	}

	reg := transform.DefaultRegistry()
	q, err := buildQuery(reg, flags.field, text)
	if err != nil {
		return err
	}

	limit := cfg.Search.Limit
	if flags.limit > 0 {
		limit = flags.limit
	}
	columns := cfg.Search.Columns
	if len(flags.columns) > 0 {
		columns = flags.columns
	}

	// A running ingest holds the index; wait for it the way the loader
	// waits for a reader.
	reader, err := ferrors.RetryWithResult(ctx, ferrors.DefaultRetryConfig(), func() (*engine.Reader, error) {
		return engine.OpenReader(cfg.Index.Path)
	})
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	assembler := search.NewAssembler(reader, reg,
		search.WithColumns(columns...),
		search.WithCacheSize(cfg.Search.CacheSize),
		search.WithLogger(slog.Default()),
	)
	res, err := assembler.Assemble(ctx, q, limit)
	if err != nil {
		return err
	}
	return output.NewWithFormat(cmd.OutOrStdout(), format).Results(res)
}
