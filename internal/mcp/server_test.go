package mcp

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rmrfslashbin/avrflash/internal/db"
	"github.com/rmrfslashbin/avrflash/internal/history"
	"github.com/rmrfslashbin/avrflash/internal/toolchain"
	"github.com/rmrfslashbin/avrflash/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRunner fails the executables listed in fail and otherwise writes the
// artifacts the real tools would.
type scriptedRunner struct {
	dir  string
	fail map[string]bool
}

func (r *scriptedRunner) Run(ctx context.Context, cmd toolchain.Command) error {
	if r.fail[cmd.Name] {
		return &toolchain.ProcessError{
			Command:    cmd,
			ExitCode:   1,
			StderrTail: "blink.cpp:4:1: error: 'pinMod' was not declared in this scope",
		}
	}
	last := filepath.Join(r.dir, cmd.Args[len(cmd.Args)-1])
	switch cmd.Name {
	case "avr-objcopy":
		return os.WriteFile(last, []byte(":0400000001020304F2\n:00000001FF\n"), 0644)
	}
	return nil
}

type okProber struct{}

func (okProber) Probe(port string, baud int) error { return nil }

func newTestServer(t *testing.T, withHistory bool) (*Server, *scriptedRunner) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := &scriptedRunner{dir: dir, fail: map[string]bool{}}

	tc, err := toolchain.New(toolchain.DefaultConfig(), toolchain.Options{
		Dir:    dir,
		Runner: runner,
		Prober: okProber{},
		Logger: logger,
	})
	require.NoError(t, err)

	var rec *history.Recorder
	if withHistory {
		rec, err = history.Open(filepath.Join(dir, "history.db"), logger)
		require.NoError(t, err)
		t.Cleanup(func() { rec.Close() })
	}

	return NewServer(tc, rec, "test", "abc123", "now", logger), runner
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args

	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text, res.IsError
}

func TestHandleCompile(t *testing.T) {
	s, _ := newTestServer(t, true)

	text, isErr := callTool(t, s.handleCompile, map[string]any{"project": "blink"})
	assert.False(t, isErr)
	assert.Contains(t, text, "# Compiled blink")
	assert.Contains(t, text, "build/blink.hex")
	assert.Contains(t, text, "4 bytes")

	runs, err := db.ListRuns(s.history.DB(), models.RunQuery{Project: "blink"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.StatusOK, runs[0].Status)
	assert.Equal(t, 4, runs[0].ImageBytes)
}

func TestHandleCompile_Failure(t *testing.T) {
	s, runner := newTestServer(t, true)
	runner.fail["avr-gcc"] = true

	text, isErr := callTool(t, s.handleCompile, map[string]any{"project": "blink"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Compile failed")
	assert.Contains(t, text, "Exit code: 1")
	assert.Contains(t, text, "'pinMod' was not declared")

	runs, err := db.ListRuns(s.history.DB(), models.RunQuery{Project: "blink"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.StatusFailed, runs[0].Status)
	assert.Equal(t, 1, runs[0].ExitCode)
}

func TestHandleUpload_WithoutCompile(t *testing.T) {
	s, _ := newTestServer(t, false)

	text, isErr := callTool(t, s.handleUpload, map[string]any{"project": "blink"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Run compile_sketch first")
}

func TestHandleFlash(t *testing.T) {
	s, _ := newTestServer(t, true)

	text, isErr := callTool(t, s.handleFlash, map[string]any{"project": "blink.cpp"})
	assert.False(t, isErr)
	assert.Contains(t, text, "# Flashed blink")
	assert.Contains(t, text, "/dev/ttyACM0")
}

func TestHandleFlash_UploadFailure(t *testing.T) {
	s, runner := newTestServer(t, true)
	runner.fail["avrdude"] = true

	text, isErr := callTool(t, s.handleFlash, map[string]any{"project": "blink"})
	assert.True(t, isErr)
	assert.True(t, strings.HasPrefix(text, "Upload failed"), text)
}

func TestHandleInvalidProject(t *testing.T) {
	s, _ := newTestServer(t, false)

	text, isErr := callTool(t, s.handleCompile, map[string]any{"project": "../etc/passwd"})
	assert.True(t, isErr)
	assert.Contains(t, text, "invalid project name")
}

func TestHandleListRuns(t *testing.T) {
	s, runner := newTestServer(t, true)

	callTool(t, s.handleCompile, map[string]any{"project": "blink"})
	runner.fail["avr-gcc"] = true
	callTool(t, s.handleCompile, map[string]any{"project": "servo"})

	text, isErr := callTool(t, s.handleListRuns, map[string]any{})
	assert.False(t, isErr)
	assert.Contains(t, text, "| blink | compile | ok |")
	assert.Contains(t, text, "| servo | compile | failed |")

	text, _ = callTool(t, s.handleListRuns, map[string]any{"project": "blink", "limit": 5})
	assert.NotContains(t, text, "servo")

	text, _ = callTool(t, s.handleListRuns, map[string]any{"operation": "upload"})
	assert.Equal(t, "No runs recorded", text)
}

func TestHandleListRuns_HistoryDisabled(t *testing.T) {
	s, _ := newTestServer(t, false)

	text, isErr := callTool(t, s.handleListRuns, map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, text, "disabled")
}

func TestHandleShowConfig(t *testing.T) {
	s, _ := newTestServer(t, false)

	text, isErr := callTool(t, s.handleShowConfig, map[string]any{})
	assert.False(t, isErr)
	assert.Contains(t, text, "mcu: atmega328p")
	assert.Contains(t, text, "serial_port: /dev/ttyACM0")
}

func TestConfigResource(t *testing.T) {
	s, _ := newTestServer(t, false)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "avrflash://config"
	contents, err := s.handleConfigResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/yaml", text.MIMEType)
	assert.Contains(t, text.Text, "clock_hz: 16000000UL")
}

func TestRunsResource(t *testing.T) {
	s, _ := newTestServer(t, true)
	callTool(t, s.handleCompile, map[string]any{"project": "blink"})

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "avrflash://runs/blink"
	contents, err := s.handleRunsResource(context.Background(), req)
	require.NoError(t, err)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Contains(t, text.Text, "# Runs for blink")
	assert.Contains(t, text.Text, "| blink | compile | ok |")

	req.Params.URI = "avrflash://runs/"
	_, err = s.handleRunsResource(context.Background(), req)
	assert.Error(t, err)
}

func TestDiagnoseFailurePrompt(t *testing.T) {
	s, runner := newTestServer(t, true)
	runner.fail["avr-gcc"] = true
	callTool(t, s.handleCompile, map[string]any{"project": "blink"})

	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"project": "blink"}
	res, err := s.handleDiagnoseFailure(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)

	text, ok := res.Messages[0].Content.(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "The compile step for the AVR sketch blink.cpp failed")
	assert.Contains(t, text.Text, "'pinMod' was not declared")
}

func TestDiagnoseFailurePrompt_NoFailures(t *testing.T) {
	s, _ := newTestServer(t, true)
	callTool(t, s.handleCompile, map[string]any{"project": "blink"})

	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"project": "blink"}
	_, err := s.handleDiagnoseFailure(context.Background(), req)
	assert.Error(t, err)
}

func TestDiagnoseFailurePrompt_CppSuffix(t *testing.T) {
	s, runner := newTestServer(t, true)
	runner.fail["avr-gcc"] = true

	_, isErr := callTool(t, s.handleCompile, map[string]any{"project": "blink.cpp"})
	require.True(t, isErr)

	runs, err := db.ListRuns(s.history.DB(), models.RunQuery{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "blink", runs[0].Project)

	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"project": "blink"}
	res, err := s.handleDiagnoseFailure(context.Background(), req)
	require.NoError(t, err)

	text, ok := res.Messages[0].Content.(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "'pinMod' was not declared")
}

func TestHandleFlash_RecordsNormalizedName(t *testing.T) {
	s, runner := newTestServer(t, true)
	runner.fail["avrdude"] = true

	_, isErr := callTool(t, s.handleFlash, map[string]any{"project": " blink.cpp "})
	require.True(t, isErr)

	runs, err := db.ListRuns(s.history.DB(), models.RunQuery{Project: "blink"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.OperationFlash, runs[0].Operation)
	assert.Equal(t, models.StatusFailed, runs[0].Status)
	assert.Equal(t, 4, runs[0].ImageBytes)
}

func TestHandleInvalidProject_NotRecorded(t *testing.T) {
	s, _ := newTestServer(t, true)

	_, isErr := callTool(t, s.handleUpload, map[string]any{"project": "-U"})
	assert.True(t, isErr)

	runs, err := db.ListRuns(s.history.DB(), models.RunQuery{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestHandleListRuns_Filters(t *testing.T) {
	s, _ := newTestServer(t, true)
	callTool(t, s.handleCompile, map[string]any{"project": "blink"})

	text, isErr := callTool(t, s.handleListRuns, map[string]any{"project": "blink.cpp"})
	assert.False(t, isErr)
	assert.Contains(t, text, "| blink | compile | ok |")

	text, isErr = callTool(t, s.handleListRuns, map[string]any{"operation": "all"})
	assert.False(t, isErr)
	assert.Contains(t, text, "| blink | compile | ok |")

	text, isErr = callTool(t, s.handleListRuns, map[string]any{"operation": "uplaod"})
	assert.True(t, isErr)
	assert.Contains(t, text, `unknown operation "uplaod"`)

	text, isErr = callTool(t, s.handleListRuns, map[string]any{"project": "../blink"})
	assert.True(t, isErr)
	assert.Contains(t, text, "invalid project name")
}
