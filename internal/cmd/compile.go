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

// compileCmd represents the compile command.
var compileCmd = &cobra.Command{
	Use:   "compile <sketch>",
	Short: "Compile a sketch into build/<sketch>.hex",
	Long: `Compile <sketch>.cpp together with the Arduino core sources using
avr-gcc, then convert the ELF output to an Intel-hex image with avr-objcopy.

Outputs are written to the build directory:
  build/<sketch>.elf
  build/<sketch>.hex

Example:
  avrflash compile blink
  avrflash compile blink --mcu atmega2560 --log-level debug`,
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
		res, err := tc.Compile(cmd.Context(), project)
		if err != nil {
			rec.Record(project, models.OperationCompile, started, 0, err)
			logger.Error("compile failed", "project", project, "error", err)
			return err
		}
		rec.Record(project, models.OperationCompile, started, res.Image.Size, nil)

		fmt.Fprintf(cmd.OutOrStdout(), "Built %s (%d bytes)\n", res.Artifacts.Hex, res.Image.Size)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compileCmd)
}
