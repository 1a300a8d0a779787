package cmd

import (
	"log/slog"
	"os"

	"github.com/rmrfslashbin/avrflash/internal/mcp"
	"github.com/rmrfslashbin/avrflash/internal/toolchain"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server and listen for requests via stdio.

The server exposes compile_sketch, upload_sketch, flash_sketch, list_runs and
show_config as tools, so an assistant can build and flash sketches on this
machine. Only one tool call touches the toolchain at a time.

Environment Variables:
  AVRFLASH_DIR         - directory containing the sketch sources
  AVRFLASH_SERIAL_PORT - serial port of the board
  AVRFLASH_LOG_LEVEL   - Log level (debug, info, warn, error)
  AVRFLASH_LOG_FORMAT  - Log format (json, text)
  AVRFLASH_LOG_OUTPUT  - Log output (stderr, /path/to/file, /path/to/dir/)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.Default()

		// stdout carries the MCP protocol; tool output goes to stderr.
		runner := &toolchain.ExecRunner{Stdout: os.Stderr, Stderr: os.Stderr}
		tc, err := newToolchain(viper.GetViper(), runner)
		if err != nil {
			logger.Error("invalid configuration", "error", err)
			return err
		}

		rec := openHistory(viper.GetViper())
		defer rec.Close()

		cfg := tc.Config()
		logger.Info("starting MCP server",
			"version", version,
			"commit", gitCommit,
			"mcu", cfg.MCU,
			"port", cfg.SerialPort,
			"history", rec != nil,
		)

		mcpServer := mcp.NewServer(tc, rec, version, gitCommit, buildTime, logger)

		logger.Info("MCP server ready, listening on stdio")

		// Serve (blocks until shutdown)
		return mcpServer.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
