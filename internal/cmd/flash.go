package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rmrfslashbin/avrflash/internal/toolchain"
	"github.com/rmrfslashbin/avrflash/pkg/models"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flashCmd represents the flash command.
var flashCmd = &cobra.Command{
	Use:   "flash <sketch>",
	Short: "Compile a sketch and upload it to the board",
	Long: `Run compile and, only if it succeeds, upload.

Example:
  avrflash flash blink`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.Default()

		project, err := toolchain.NormalizeProject(args[0])
		if err != nil {
			return err
		}

		tc, err := newToolchain(viper.GetViper(), nil)
		if err != nil {
			logger.Error("invalid configuration", "error", err)
			return err
		}

		rec := openHistory(viper.GetViper())
		defer rec.Close()

		started := time.Now()
		res, err := tc.Flash(cmd.Context(), project)

		imageBytes := 0
		if res.Compile != nil {
			imageBytes = res.Compile.Image.Size
		}
		rec.Record(project, models.OperationFlash, started, imageBytes, err)

		if err != nil {
			logger.Error("flash failed", "project", project, "error", err)
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Flashed %s (%d bytes) to %s\n",
			res.Compile.Artifacts.Hex, imageBytes, res.Upload.Port)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flashCmd)
}
