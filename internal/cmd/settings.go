package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rmrfslashbin/avrflash/internal/history"
	"github.com/rmrfslashbin/avrflash/internal/toolchain"
	"github.com/spf13/viper"
)

// setDefaults registers every toolchain setting with its default value so
// that config files and AVRFLASH_* variables can override any of them.
func setDefaults(v *viper.Viper) {
	d := toolchain.DefaultConfig()

	v.SetDefault("toolchain.compiler", d.Tools.Compiler)
	v.SetDefault("toolchain.objcopy", d.Tools.Objcopy)
	v.SetDefault("toolchain.programmer", d.Tools.Programmer)
	v.SetDefault("mcu", d.MCU)
	v.SetDefault("clock_hz", d.ClockHz)
	v.SetDefault("serial.port", d.SerialPort)
	v.SetDefault("serial.baud_rate", d.BaudRate)
	v.SetDefault("programmer.protocol", d.Protocol)
	v.SetDefault("programmer.port_flag", d.PortFlag)
	v.SetDefault("core.path", d.CorePath)
	v.SetDefault("core.variant_path", d.VariantPath)
	v.SetDefault("core.sources", d.CoreSources)
	v.SetDefault("core.library_paths", []string{})
	v.SetDefault("build.dir", d.BuildDir)
	v.SetDefault("build.optimization", d.Optimization)
	v.SetDefault("build.extra_flags", "")
	v.SetDefault("upload.timeout", d.UploadTimeout)
	v.SetDefault("upload.probe_port", d.ProbePort)
	v.SetDefault("dir", ".")
}

// configFromViper assembles and validates the toolchain configuration.
func configFromViper(v *viper.Viper) (toolchain.Config, error) {
	cfg := toolchain.Config{
		Tools: toolchain.Tools{
			Compiler:   v.GetString("toolchain.compiler"),
			Objcopy:    v.GetString("toolchain.objcopy"),
			Programmer: v.GetString("toolchain.programmer"),
		},
		MCU:           v.GetString("mcu"),
		ClockHz:       v.GetString("clock_hz"),
		SerialPort:    v.GetString("serial.port"),
		BaudRate:      v.GetString("serial.baud_rate"),
		Protocol:      v.GetString("programmer.protocol"),
		PortFlag:      v.GetString("programmer.port_flag"),
		CorePath:      v.GetString("core.path"),
		VariantPath:   v.GetString("core.variant_path"),
		CoreSources:   v.GetStringSlice("core.sources"),
		LibraryPaths:  v.GetStringSlice("core.library_paths"),
		BuildDir:      v.GetString("build.dir"),
		Optimization:  v.GetString("build.optimization"),
		ExtraFlags:    v.GetString("build.extra_flags"),
		UploadTimeout: v.GetDuration("upload.timeout"),
		ProbePort:     v.GetBool("upload.probe_port"),
	}
	if err := cfg.Validate(); err != nil {
		return toolchain.Config{}, err
	}
	return cfg, nil
}

// newToolchain builds a toolchain from the global settings. A nil runner
// sends tool output to the terminal.
func newToolchain(v *viper.Viper, runner *toolchain.ExecRunner) (*toolchain.Toolchain, error) {
	cfg, err := configFromViper(v)
	if err != nil {
		return nil, err
	}

	dir := v.GetString("dir")
	if runner == nil {
		runner = toolchain.NewExecRunner(dir)
	}
	runner.Dir = dir

	return toolchain.New(cfg, toolchain.Options{
		Dir:    dir,
		Runner: runner,
		Logger: slog.Default(),
	})
}

// openHistory opens the run history database. It returns nil when history
// is disabled or the database cannot be opened.
func openHistory(v *viper.Viper) *history.Recorder {
	logger := slog.Default()
	if v.GetBool("history.disabled") {
		return nil
	}

	path, err := historyPath(v)
	if err != nil {
		logger.Warn("run history disabled", "error", err)
		return nil
	}

	rec, err := history.Open(path, logger)
	if err != nil {
		logger.Warn("run history disabled", "path", path, "error", err)
		return nil
	}
	logger.Debug("recording run history", "path", path)
	return rec
}

func historyPath(v *viper.Viper) (string, error) {
	if p := v.GetString("history.path"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}
	return filepath.Join(home, ".avrflash", "history.db"), nil
}
