package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rmrfslashbin/avrflash/internal/db"
	"github.com/rmrfslashbin/avrflash/internal/toolchain"
	"github.com/rmrfslashbin/avrflash/pkg/models"
)

// handleDiagnoseFailure handles the diagnose_failure prompt.
func (s *Server) handleDiagnoseFailure(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	projectArg := request.Params.Arguments["project"]
	if projectArg == "" {
		return nil, fmt.Errorf("project argument is required")
	}
	project, err := toolchain.NormalizeProject(projectArg)
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

	var failed *models.Run
	for i := range runs {
		if runs[i].Status == models.StatusFailed {
			failed = &runs[i]
			break
		}
	}
	if failed == nil {
		return nil, fmt.Errorf("no failed runs recorded for %s", project)
	}

	cfg := s.tc.Config()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("The %s step for the AVR sketch %s.cpp failed.\n\n", failed.Operation, project))
	sb.WriteString(fmt.Sprintf("Target: %s at %s, programmer protocol %s on %s (%s baud).\n\n",
		cfg.MCU, cfg.ClockHz, cfg.Protocol, cfg.SerialPort, cfg.BaudRate))
	sb.WriteString(fmt.Sprintf("Error: %s\n", failed.Error))
	sb.WriteString(fmt.Sprintf("Exit code: %d\n", failed.ExitCode))
	if failed.StderrTail != "" {
		sb.WriteString(fmt.Sprintf("\nLast lines of the tool's error output:\n\n```\n%s\n```\n", failed.StderrTail))
	}

	sb.WriteString("\nPlease provide:\n")
	sb.WriteString("1. The most likely cause of the failure\n")
	sb.WriteString("2. The change to the sketch or configuration that fixes it\n")
	sb.WriteString("3. How to confirm the fix\n")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Diagnose the last failed %s of %s", failed.Operation, project),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: sb.String(),
				},
			},
		},
	}, nil
}
