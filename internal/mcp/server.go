package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/folio/internal/engine"
	ferrors "github.com/Aman-CERP/folio/internal/errors"
	"github.com/Aman-CERP/folio/internal/ledger"
	"github.com/Aman-CERP/folio/internal/search"
	"github.com/Aman-CERP/folio/internal/transform"
	"github.com/Aman-CERP/folio/pkg/version"
)

const (
	defaultLimit = 10
	maxLimit     = 100
	// recentRuns is how many ledger runs stats reports.
	recentRuns = 5
)

// Options configures the server.
type Options struct {
	// IndexPath is the index directory. Required.
	IndexPath string

	// Registry supplies field encodings. Defaults to transform.DefaultRegistry.
	Registry *transform.Registry

	// Columns overrides the column-backed fields merged into each row.
	Columns []string

	// DefaultLimit is the result count when a call gives none.
	DefaultLimit int

	// Ledger is optional. When set, stats lists recent runs and the
	// folio://runs resource is registered.
	Ledger *ledger.Ledger

	Logger *slog.Logger
}

// Server exposes the index to MCP clients. It opens a read-only view of the
// index per call so a concurrent ingest only blocks while it commits.
type Server struct {
	mcp      *mcp.Server
	opts     Options
	registry *transform.Registry
	logger   *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Search the ingested archives. Accepts query-string syntax (book:Alpha +text:light, chapter:>=2) or plain words; set field to match words against a single field. Returns ranked documents with their stored and column values.",
	},
	{
		Name:        "stats",
		Description: "Report the index location, document count, result columns and the most recent ingest runs.",
	},
}

// NewServer creates a new MCP server.
func NewServer(opts Options) (*Server, error) {
	if opts.IndexPath == "" {
		return nil, errors.New("index path is required")
	}
	if opts.Registry == nil {
		opts.Registry = transform.DefaultRegistry()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		opts:     opts,
		registry: opts.Registry,
		logger:   opts.Logger,
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: "folio", Version: version.Version},
		nil,
	)
	s.registerTools()
	if opts.Ledger != nil {
		s.registerRunsResource()
	}
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "folio", version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with JSON-decoded arguments. search
// returns markdown; stats returns *StatsOutput.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		return s.handleSearchTool(ctx, args)
	case "stats":
		return s.handleStatsTool(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) handleSearchTool(ctx context.Context, args map[string]any) (string, error) {
	input := SearchInput{}
	input.Query, _ = args["query"].(string)
	input.Field, _ = args["field"].(string)
	if l, ok := args["limit"].(float64); ok {
		input.Limit = int(l)
	}

	res, err := s.search(ctx, input)
	if err != nil {
		return "", MapError(err)
	}
	return FormatSearchResults(input.Query, res), nil
}

// search validates input, runs the query and assembles the rows.
func (s *Server) search(ctx context.Context, input SearchInput) (*search.Results, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	limit := clampLimit(input.Limit, s.opts.DefaultLimit, 1, maxLimit)

	var (
		q   query.Query
		err error
	)
	if input.Field != "" {
		if _, ok := s.registry.Lookup(input.Field); !ok {
			return nil, NewInvalidParamsError(fmt.Sprintf("unknown field %q", input.Field))
		}
		q = search.Match(input.Field, input.Query)
	} else if q, err = search.QueryString(input.Query); err != nil {
		return nil, err
	}

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("search_started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.String("field", input.Field),
		slog.Int("limit", limit))

	reader, err := engine.OpenReader(s.opts.IndexPath)
	if err != nil {
		s.logger.Warn("search_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	opts := []search.AssemblerOption{search.WithCacheSize(0), search.WithLogger(s.logger)}
	if len(s.opts.Columns) > 0 {
		opts = append(opts, search.WithColumns(s.opts.Columns...))
	}
	res, err := search.NewAssembler(reader, s.registry, opts...).Assemble(ctx, q, limit)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.Info("search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Uint64("total_hits", res.TotalHits),
		slog.Int("result_count", len(res.Rows)))
	return res, nil
}

func (s *Server) handleStatsTool(ctx context.Context) (*StatsOutput, error) {
	reader, err := engine.OpenReader(s.opts.IndexPath)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = reader.Close() }()

	count, err := reader.DocCount()
	if err != nil {
		return nil, MapError(ferrors.Wrap(ferrors.ErrCodeSearchFailed, err))
	}

	out := &StatsOutput{
		IndexPath: s.opts.IndexPath,
		Documents: count,
		Columns:   s.opts.Columns,
	}
	if len(out.Columns) == 0 {
		out.Columns = s.registry.Columns()
	}

	if s.opts.Ledger != nil {
		runs, err := s.opts.Ledger.Recent(ctx, recentRuns)
		if err != nil {
			s.logger.Warn("ledger_read_failed", slog.String("error", err.Error()))
		}
		for _, r := range runs {
			out.Runs = append(out.Runs, toRunInfo(r))
		}
	}
	return out, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpStatsHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	res, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	output := SearchOutput{
		TotalHits:          res.TotalHits,
		TotalIsApproximate: res.TotalIsApproximate,
		Results:            make([]SearchHit, 0, len(res.Rows)),
	}
	for i := range res.Rows {
		output.Results = append(output.Results, toSearchHit(&res.Rows[i]))
	}
	return nil, output, nil
}

// mcpStatsHandler is the MCP SDK handler for the stats tool.
func (s *Server) mcpStatsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	*StatsOutput,
	error,
) {
	out, err := s.handleStatsTool(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

// Serve runs the server over the named transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting",
		slog.String("transport", transport),
		slog.String("index", s.opts.IndexPath))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
