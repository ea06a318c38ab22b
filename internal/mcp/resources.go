package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RunsURI is the resource listing recent ingest runs.
const RunsURI = "folio://runs"

// runsResourceLimit bounds the runs resource.
const runsResourceLimit = 50

func (s *Server) registerRunsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "runs",
			URI:         RunsURI,
			Description: "Recent archive ingest runs, newest first",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.handleReadRuns(ctx)
		},
	)
}

// handleReadRuns renders the ledger's recent runs as JSON.
func (s *Server) handleReadRuns(ctx context.Context) (*mcp.ReadResourceResult, error) {
	runs, err := s.opts.Ledger.Recent(ctx, runsResourceLimit)
	if err != nil {
		return nil, MapError(err)
	}

	infos := make([]RunInfo, 0, len(runs))
	for _, r := range runs {
		infos = append(infos, toRunInfo(r))
	}
	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: RunsURI, MIMEType: "application/json", Text: string(data)},
		},
	}, nil
}
