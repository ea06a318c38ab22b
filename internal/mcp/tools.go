package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"query string, e.g. book:Alpha +text:light, or plain words"`
	Field string `json:"field,omitempty" jsonschema:"match the query as text against this one field instead of parsing it"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	TotalHits          uint64      `json:"total_hits" jsonschema:"number of matching documents"`
	TotalIsApproximate bool        `json:"total_is_approximate" jsonschema:"true when total_hits is a lower bound"`
	Results            []SearchHit `json:"results" jsonschema:"ranked results"`
}

// SearchHit is one assembled result row.
type SearchHit struct {
	ID     string         `json:"id" jsonschema:"document id"`
	Score  float64        `json:"score" jsonschema:"relevance score"`
	Fields map[string]any `json:"fields" jsonschema:"stored and column values; repeated fields are lists"`
}

// StatsInput defines the input schema for the stats tool (no parameters).
type StatsInput struct{}

// StatsOutput defines the output schema for the stats tool.
type StatsOutput struct {
	IndexPath string    `json:"index_path"`
	Documents uint64    `json:"documents"`
	Columns   []string  `json:"columns"`
	Runs      []RunInfo `json:"recent_runs,omitempty"`
}

// RunInfo summarizes one ingest run from the ledger.
type RunInfo struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Status     string `json:"status"`
	Accepted   int64  `json:"accepted"`
	Rejected   int64  `json:"rejected"`
	StartedAt  string `json:"started_at"`
	FailureDoc string `json:"failure_doc,omitempty"`
}
