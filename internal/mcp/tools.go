package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rmrfslashbin/avrflash/internal/db"
	"github.com/rmrfslashbin/avrflash/internal/toolchain"
	"github.com/rmrfslashbin/avrflash/pkg/models"
	"gopkg.in/yaml.v3"
)

type projectArgs struct {
	Project string `json:"project"`
}

// parseProject decodes the project argument and normalizes it, so runs are
// recorded under the same name lookups use.
func parseProject(request mcp.CallToolRequest) (string, error) {
	var args projectArgs
	if err := parseArgs(request, &args); err != nil {
		return "", err
	}
	return toolchain.NormalizeProject(args.Project)
}

// parseArgs decodes tool arguments into dst.
func parseArgs(request mcp.CallToolRequest, dst interface{}) error {
	argsJSON, err := json.Marshal(request.Params.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %v", err)
	}
	if err := json.Unmarshal(argsJSON, dst); err != nil {
		return fmt.Errorf("invalid arguments: %v", err)
	}
	return nil
}

// handleCompile handles the compile_sketch tool.
func (s *Server) handleCompile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := parseProject(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	res, err := s.tc.Compile(ctx, project)
	if err != nil {
		s.history.Record(project, models.OperationCompile, started, 0, err)
		return mcp.NewToolResultError(formatFailure("Compile", err)), nil
	}
	s.history.Record(res.Project, models.OperationCompile, started, res.Image.Size, nil)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Compiled %s\n\n", res.Project))
	writeCompileSummary(&sb, res)
	return mcp.NewToolResultText(sb.String()), nil
}

// handleUpload handles the upload_sketch tool.
func (s *Server) handleUpload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := parseProject(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	res, err := s.tc.Upload(ctx, project)
	if err != nil {
		s.history.Record(project, models.OperationUpload, started, 0, err)
		return mcp.NewToolResultError(formatFailure("Upload", err)), nil
	}
	s.history.Record(res.Project, models.OperationUpload, started, 0, nil)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Uploaded %s\n\n", res.Project))
	writeUploadSummary(&sb, res)
	return mcp.NewToolResultText(sb.String()), nil
}

// handleFlash handles the flash_sketch tool.
func (s *Server) handleFlash(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := parseProject(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	res, err := s.tc.Flash(ctx, project)
	imageBytes := 0
	if res != nil && res.Compile != nil {
		imageBytes = res.Compile.Image.Size
	}
	s.history.Record(project, models.OperationFlash, started, imageBytes, err)
	if err != nil {
		step := "Compile"
		if res != nil && res.Compile != nil {
			step = "Upload"
		}
		return mcp.NewToolResultError(formatFailure(step, err)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Flashed %s\n\n", res.Compile.Project))
	writeCompileSummary(&sb, res.Compile)
	writeUploadSummary(&sb, res.Upload)
	return mcp.NewToolResultText(sb.String()), nil
}

// handleListRuns handles the list_runs tool.
func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Project   string `json:"project,omitempty"`
		Operation string `json:"operation,omitempty"`
		Limit     *int   `json:"limit,omitempty"`
	}
	if err := parseArgs(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	database := s.history.DB()
	if database == nil {
		return mcp.NewToolResultError("run history is disabled"), nil
	}

	q := models.RunQuery{Limit: 20}
	if args.Project != "" {
		project, err := toolchain.NormalizeProject(args.Project)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		q.Project = project
	}
	if args.Limit != nil && *args.Limit > 0 {
		q.Limit = *args.Limit
	}
	if args.Operation != "" && args.Operation != "all" {
		op, err := models.ParseOperation(args.Operation)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		q.Operation = &op
	}

	runs, err := db.ListRuns(database, q)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("No runs recorded"), nil
	}

	return mcp.NewToolResultText(formatRuns(runs)), nil
}

// handleShowConfig handles the show_config tool.
func (s *Server) handleShowConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := yaml.Marshal(s.tc.Config())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to render config: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("```yaml\n%s```\n", out)), nil
}

func writeCompileSummary(sb *strings.Builder, res *toolchain.CompileResult) {
	sb.WriteString(fmt.Sprintf("- **ELF:** %s\n", res.Artifacts.Elf))
	sb.WriteString(fmt.Sprintf("- **Hex:** %s\n", res.Artifacts.Hex))
	sb.WriteString(fmt.Sprintf("- **Image size:** %d bytes at 0x%04x\n", res.Image.Size, res.Image.Address))
	sb.WriteString(fmt.Sprintf("- **Compile time:** %s\n", res.Duration.Round(time.Millisecond)))
}

func writeUploadSummary(sb *strings.Builder, res *toolchain.UploadResult) {
	sb.WriteString(fmt.Sprintf("- **Port:** %s\n", res.Port))
	sb.WriteString(fmt.Sprintf("- **Upload time:** %s\n", res.Duration.Round(time.Millisecond)))
}

// formatFailure renders an operation error, including the tool's stderr tail
// when the failure came from an external process.
func formatFailure(step string, err error) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s failed: %v\n", step, err))

	var perr *toolchain.ProcessError
	if errors.As(err, &perr) {
		sb.WriteString(fmt.Sprintf("\nCommand: %s\n", perr.Command.String()))
		sb.WriteString(fmt.Sprintf("Exit code: %d\n", perr.ExitCode))
		if perr.StderrTail != "" {
			sb.WriteString(fmt.Sprintf("\n```\n%s\n```\n", perr.StderrTail))
		}
	}

	switch {
	case errors.Is(err, toolchain.ErrMissingImage):
		sb.WriteString("\nRun compile_sketch first.\n")
	case errors.Is(err, toolchain.ErrPortUnavailable):
		sb.WriteString("\nCheck that the board is plugged in and the serial port setting is correct.\n")
	case errors.Is(err, toolchain.ErrTimeout):
		sb.WriteString("\nThe programmer did not finish in time; the board may not be responding.\n")
	}
	return sb.String()
}

func formatRuns(runs []models.Run) string {
	var sb strings.Builder
	sb.WriteString("| ID | Started | Project | Operation | Status | Exit | Duration |\n")
	sb.WriteString("|----|---------|---------|-----------|--------|------|----------|\n")
	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %d | %s |\n",
			r.ID,
			r.StartedAt.Format(time.RFC3339),
			r.Project,
			r.Operation,
			r.Status,
			r.ExitCode,
			r.Duration.Round(time.Millisecond),
		))
	}
	return sb.String()
}
