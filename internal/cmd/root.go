// Package cmd provides the command-line interface for avrflash.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information (set by main)
	version   string
	gitCommit string
	buildTime string

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	logOutput string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "avrflash",
	Short: "Compile Arduino sketches with avr-gcc and upload them with avrdude",
	Long: `avrflash compiles an Arduino sketch against the ArduinoCore-avr sources
and flashes the resulting Intel-hex image onto a board over a serial port,
without the Arduino IDE.

Typical use on a Raspberry Pi with an Uno attached:
  git clone https://github.com/arduino/ArduinoCore-avr
  avrflash flash blink          # compiles blink.cpp, uploads build/blink.hex

Every setting can come from a config file, an AVRFLASH_* environment
variable or a flag; run "avrflash config" to see the effective values.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Setup logger for all commands
		return setupLogger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). Ctrl-C cancels the running tool.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version information from main.
func SetVersionInfo(ver, commit, build string) {
	version = ver
	gitCommit = commit
	buildTime = build
}

func init() {
	cobra.OnInitialize(initConfig)
	setDefaults(viper.GetViper())

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./avrflash.yaml, then $HOME/avrflash.yaml)")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "text", "log format (json, text)")
	pf.StringVar(&logOutput, "log-output", "stderr", "log output (stderr, /path/to/file, or /path/to/dir/)")
	pf.String("dir", ".", "directory containing the sketch sources")
	pf.String("history-db", "", "run history database (default is $HOME/.avrflash/history.db)")
	pf.Bool("no-history", false, "do not record runs in the history database")

	// Toolchain settings most often changed from the command line
	pf.String("mcu", "", "target microcontroller (default atmega328p)")
	pf.String("port", "", "serial port of the board (default /dev/ttyACM0)")
	pf.String("baud", "", "programmer baud rate (default 115200)")
	pf.String("port-flag", "", "avrdude flag used for the serial port (default -p)")
	pf.String("build-dir", "", "directory for .elf and .hex output (default build)")
	pf.Duration("timeout", 0, "abort the upload after this long (0 disables)")

	// Bind flags to viper
	bindings := map[string]string{
		"log.level":            "log-level",
		"log.format":           "log-format",
		"log.output":           "log-output",
		"dir":                  "dir",
		"history.path":         "history-db",
		"history.disabled":     "no-history",
		"mcu":                  "mcu",
		"serial.port":          "port",
		"serial.baud_rate":     "baud",
		"programmer.port_flag": "port-flag",
		"build.dir":            "build-dir",
		"upload.timeout":       "timeout",
	}
	for key, flag := range bindings {
		viper.BindPFlag(key, pf.Lookup(flag))
	}

	// Set environment variable prefix: serial.port -> AVRFLASH_SERIAL_PORT
	viper.SetEnvPrefix("AVRFLASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search the working directory first, then the home directory
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("avrflash")
	}

	if err := viper.ReadInConfig(); err == nil {
		slog.Debug("using config file", "file", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
}
