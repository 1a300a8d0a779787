// Package mcp exposes the toolchain to AI assistants over the Model Context
// Protocol.
package mcp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rmrfslashbin/avrflash/internal/history"
	"github.com/rmrfslashbin/avrflash/internal/toolchain"
)

// Server wraps the MCP server with our toolchain.
type Server struct {
	mcp       *server.MCPServer
	tc        *toolchain.Toolchain
	history   *history.Recorder
	logger    *slog.Logger
	version   string
	gitCommit string
	buildTime string

	// mu serializes toolchain calls: they share the build directory and
	// the serial port.
	mu sync.Mutex
}

// NewServer creates a new MCP server instance. rec may be nil when history
// is disabled.
func NewServer(tc *toolchain.Toolchain, rec *history.Recorder, version, gitCommit, buildTime string, logger *slog.Logger) *Server {
	s := &Server{
		tc:        tc,
		history:   rec,
		logger:    logger,
		version:   version,
		gitCommit: gitCommit,
		buildTime: buildTime,
	}

	s.mcp = server.NewMCPServer(
		"avrflash",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithPromptCapabilities(true),
		server.WithLogging(),
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() {
	projectArg := mcp.WithString("project",
		mcp.Description("Sketch name: compiles <project>.cpp from the working directory (a trailing .cpp is accepted)"),
		mcp.Required(),
	)

	s.mcp.AddTool(mcp.NewTool("compile_sketch",
		mcp.WithDescription("Compile a sketch with avr-gcc and convert it to an Intel-hex image in the build directory. Returns the image size, or the compiler's error output on failure."),
		projectArg,
	), s.handleCompile)

	s.mcp.AddTool(mcp.NewTool("upload_sketch",
		mcp.WithDescription("Upload a previously compiled hex image to the attached board with avrdude. Fails if the sketch has not been compiled or the serial port is not present."),
		projectArg,
	), s.handleUpload)

	s.mcp.AddTool(mcp.NewTool("flash_sketch",
		mcp.WithDescription("Compile a sketch and, if compilation succeeds, upload it to the attached board."),
		projectArg,
	), s.handleFlash)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent compile/upload runs from the history database, newest first, with exit codes and durations."),
		mcp.WithString("project",
			mcp.Description("Only show runs for this sketch"),
		),
		mcp.WithString("operation",
			mcp.Description("Filter by operation: 'compile', 'upload' or 'flash'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 20)"),
		),
	), s.handleListRuns)

	s.mcp.AddTool(mcp.NewTool("show_config",
		mcp.WithDescription("Show the effective toolchain configuration: executables, MCU, clock, serial port, baud rate and core paths."),
	), s.handleShowConfig)
}

// registerResources registers all MCP resources.
func (s *Server) registerResources() {
	s.mcp.AddResource(
		mcp.NewResource(
			"avrflash://config",
			"Toolchain configuration",
			mcp.WithResourceDescription("Effective avrflash configuration as YAML"),
			mcp.WithMIMEType("application/yaml"),
		),
		s.handleConfigResource,
	)

	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"avrflash://runs/{project}",
			"Run history for a sketch",
		),
		s.handleRunsResource,
	)
}

// registerPrompts registers all MCP prompts.
func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("diagnose_failure",
		mcp.WithPromptDescription("Explain the most recent failed compile or upload of a sketch and suggest a fix"),
		mcp.WithArgument("project",
			mcp.ArgumentDescription("Sketch name"),
			mcp.RequiredArgument(),
		),
	), s.handleDiagnoseFailure)
}

// Serve starts the MCP server with stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server with stdio transport")
	return server.ServeStdio(s.mcp)
}
