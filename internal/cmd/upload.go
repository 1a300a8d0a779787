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

// uploadCmd represents the upload command.
var uploadCmd = &cobra.Command{
	Use:   "upload <sketch>",
	Short: "Upload build/<sketch>.hex to the board",
	Long: `Write a previously compiled hex image to the board's flash with avrdude.

The command fails without touching the board if build/<sketch>.hex does not
exist, or if the serial port cannot be opened (disable that check with
upload.probe_port: false).

Environment Variables:
  AVRFLASH_SERIAL_PORT       - serial port of the board
  AVRFLASH_SERIAL_BAUD_RATE  - programmer baud rate
  AVRFLASH_UPLOAD_TIMEOUT    - abort after this long, e.g. 90s

Example:
  avrflash upload blink --port /dev/ttyUSB0 --timeout 2m`,
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
		res, err := tc.Upload(cmd.Context(), project)
		if err != nil {
			rec.Record(project, models.OperationUpload, started, 0, err)
			logger.Error("upload failed", "project", project, "error", err)
			return err
		}
		rec.Record(project, models.OperationUpload, started, 0, nil)

		fmt.Fprintf(cmd.OutOrStdout(), "Upload complete! %s written to %s in %s\n",
			res.Hex, res.Port, res.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
