package cmd

import (
	"fmt"
	"runtime"

	"github.com/rmrfslashbin/avrflash/internal/toolchain"
	"github.com/spf13/cobra"
)

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long: `Display version information, the Go runtime avrflash was built with and
the default AVR tools it drives.`,
	Run: func(cmd *cobra.Command, args []string) {
		d := toolchain.DefaultConfig()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "avrflash %s (%s, built %s)\n", version, gitCommit, buildTime)
		fmt.Fprintf(out, "Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "Compiler:   %s (%s at %s)\n", d.Tools.Compiler, d.MCU, d.ClockHz)
		fmt.Fprintf(out, "Objcopy:    %s\n", d.Tools.Objcopy)
		fmt.Fprintf(out, "Programmer: %s -c %s on %s\n", d.Tools.Programmer, d.Protocol, d.SerialPort)
		fmt.Fprintf(out, "\nRun \"avrflash config\" for the settings in effect.\n")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
