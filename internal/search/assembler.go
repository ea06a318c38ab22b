package search

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/blevesearch/bleve/v2/search/query"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/folio/internal/engine"
	ferrors "github.com/Aman-CERP/folio/internal/errors"
	"github.com/Aman-CERP/folio/internal/transform"
)

// DefaultCacheSize is the number of assembled rows kept per Assembler.
const DefaultCacheSize = 512

// Assembler runs queries and turns each hit into a Row by merging the
// document's stored values with its column values.
type Assembler struct {
	reader   *engine.Reader
	registry *transform.Registry
	columns  []string
	cache    *lru.Cache[string, *Row]
	logger   *slog.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithColumns sets the column-backed fields read for every hit, in order.
// The default is every column the registry declares.
func WithColumns(names ...string) AssemblerOption {
	return func(a *Assembler) { a.columns = slices.Clone(names) }
}

// WithCacheSize sets the row cache size. Zero or less disables caching.
func WithCacheSize(n int) AssemblerOption {
	return func(a *Assembler) {
		if n <= 0 {
			a.cache = nil
			return
		}
		a.cache, _ = lru.New[string, *Row](n)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) AssemblerOption {
	return func(a *Assembler) { a.logger = l }
}

// NewAssembler creates an Assembler reading from reader. The registry decides
// which columns hold numbers.
func NewAssembler(reader *engine.Reader, registry *transform.Registry, opts ...AssemblerOption) *Assembler {
	cache, _ := lru.New[string, *Row](DefaultCacheSize)
	a := &Assembler{
		reader:   reader,
		registry: registry,
		columns:  registry.Columns(),
		cache:    cache,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Columns returns the column-backed fields read for every hit.
func (a *Assembler) Columns() []string {
	return slices.Clone(a.columns)
}

// Assemble runs q and assembles up to maxResults rows in rank order.
// Any search or fetch failure fails the whole call.
func (a *Assembler) Assemble(ctx context.Context, q query.Query, maxResults int) (*Results, error) {
	if maxResults <= 0 {
		return nil, ferrors.ValidationError(fmt.Sprintf("maxResults must be positive, got %d", maxResults), nil)
	}
	if q == nil {
		return nil, ferrors.New(ferrors.ErrCodeInvalidQuery, "query must not be nil", nil)
	}

	hits, err := a.reader.Search(ctx, q, maxResults)
	if err != nil {
		return nil, searchFailed(err)
	}

	res := &Results{
		TotalHits:          hits.Total,
		TotalIsApproximate: hits.LowerBound,
		Rows:               make([]Row, 0, len(hits.Ranked)),
	}
	if len(hits.Ranked) == 0 {
		return res, nil
	}

	snap, err := a.reader.Snapshot()
	if err != nil {
		return nil, searchFailed(err)
	}
	defer func() { _ = snap.Close() }()

	for _, h := range hits.Ranked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := a.row(snap, h.ID)
		if err != nil {
			return nil, searchFailed(err)
		}
		res.Rows = append(res.Rows, row.withScore(h.Score))
	}

	a.logger.Debug("query_assembled",
		slog.Uint64("total_hits", res.TotalHits),
		slog.Int("rows", len(res.Rows)))
	return res, nil
}

func (a *Assembler) row(snap *engine.Snapshot, id string) (*Row, error) {
	if a.cache != nil {
		if row, ok := a.cache.Get(id); ok {
			return row, nil
		}
	}

	row := newRow(id)

	stored, err := snap.StoredFields(id)
	if err != nil {
		return nil, err
	}
	for _, v := range stored {
		row.add(v.Name, v.Value)
	}

	cols, err := snap.ColumnValues(id, a.columns, a.registry.NumericColumn)
	if err != nil {
		return nil, err
	}
	for _, name := range a.columns {
		for _, v := range cols[name] {
			row.add(name, v)
		}
	}

	if a.cache != nil {
		a.cache.Add(id, row)
	}
	return row, nil
}

// Purge drops every cached row.
func (a *Assembler) Purge() {
	if a.cache != nil {
		a.cache.Purge()
	}
}

func searchFailed(err error) error {
	if ferrors.GetCode(err) == ferrors.ErrCodeUsageState {
		return err
	}
	return ferrors.Wrap(ferrors.ErrCodeSearchFailed, err)
}
