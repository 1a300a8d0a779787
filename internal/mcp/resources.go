package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rmrfslashbin/avrflash/internal/db"
	"github.com/rmrfslashbin/avrflash/internal/toolchain"
	"github.com/rmrfslashbin/avrflash/pkg/models"
	"gopkg.in/yaml.v3"
)

// handleConfigResource returns the effective configuration as YAML.
func (s *Server) handleConfigResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := yaml.Marshal(s.tc.Config())
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/yaml",
			Text:     string(out),
		},
	}, nil
}

// handleRunsResource returns the run history of one sketch.
func (s *Server) handleRunsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	// Extract project from URI: avrflash://runs/{project}
	uri := request.Params.URI
	project := strings.TrimPrefix(uri, "avrflash://runs/")
	if project == uri || project == "" {
		return nil, fmt.Errorf("invalid resource URI: %s", uri)
	}
	project, err := toolchain.NormalizeProject(project)
	if err != nil {
		return nil, err
	}

	database := s.history.DB()
	if database == nil {
		return nil, fmt.Errorf("run history is disabled")
	}

	runs, err := db.ListRuns(database, models.RunQuery{Project: project, Limit: 50})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	text := fmt.Sprintf("# Runs for %s\n\nNo runs recorded.\n", project)
	if len(runs) > 0 {
		text = fmt.Sprintf("# Runs for %s\n\n%s", project, formatRuns(runs))
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     text,
		},
	}, nil
}
