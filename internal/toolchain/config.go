// Package toolchain drives the AVR cross-compiler, object-copy utility and
// device programmer that turn a sketch into firmware on a board.
package toolchain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/shlex"
)

// Tools names the external executables. Bare names are resolved on PATH.
type Tools struct {
	Compiler   string `yaml:"compiler"`
	Objcopy    string `yaml:"objcopy"`
	Programmer string `yaml:"programmer"`
}

// Config is the immutable settings shared by every operation.
// A Config is passed by value; operations never modify it.
type Config struct {
	Tools Tools `yaml:"toolchain"`

	MCU     string `yaml:"mcu"`
	ClockHz string `yaml:"clock_hz"`

	SerialPort string `yaml:"serial_port"`
	BaudRate   string `yaml:"baud_rate"`
	Protocol   string `yaml:"protocol"`
	// PortFlag is the avrdude flag placed in front of SerialPort.
	// It defaults to "-p", matching the historical invocation, even though
	// avrdude selects the port with "-P".
	PortFlag string `yaml:"port_flag"`

	CorePath     string   `yaml:"core_path"`
	VariantPath  string   `yaml:"variant_path"`
	CoreSources  []string `yaml:"core_sources"`
	LibraryPaths []string `yaml:"library_paths,omitempty"`

	BuildDir     string `yaml:"build_dir"`
	Optimization string `yaml:"optimization"`
	ExtraFlags   string `yaml:"extra_flags,omitempty"`

	UploadTimeout time.Duration `yaml:"upload_timeout"`
	ProbePort     bool          `yaml:"probe_port"`
}

// DefaultPortFlag is the flag historically used for the serial port.
const DefaultPortFlag = "-p"

// DefaultConfig returns the settings for an Arduino Uno class board attached
// to the first USB CDC port, with the Arduino core checked out next to the
// sketch.
//
// The historical invocation spelled the port /dev/ttyACMO and the core entry
// point main_cpp; neither names a real file, so the defaults use
// /dev/ttyACM0 and main.cpp.
func DefaultConfig() Config {
	return Config{
		Tools: Tools{
			Compiler:   "avr-gcc",
			Objcopy:    "avr-objcopy",
			Programmer: "avrdude",
		},
		MCU:         "atmega328p",
		ClockHz:     "16000000UL",
		SerialPort:  "/dev/ttyACM0",
		BaudRate:    "115200",
		Protocol:    "arduino",
		PortFlag:    DefaultPortFlag,
		CorePath:    "ArduinoCore-avr/cores/arduino",
		VariantPath: "ArduinoCore-avr/variants/standard",
		CoreSources: []string{
			"main.cpp",
			"wiring_digital.c",
			"wiring_analog.c",
			"wiring.c",
			"wiring_pulse.c",
			"wiring_shift.c",
			"hooks.c",
			"wiring_pulse.S",
		},
		BuildDir:     "build",
		Optimization: "-Os",
		ProbePort:    true,
	}
}

// Validate checks that every required setting is present and well formed.
func (c Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"toolchain.compiler", c.Tools.Compiler},
		{"toolchain.objcopy", c.Tools.Objcopy},
		{"toolchain.programmer", c.Tools.Programmer},
		{"mcu", c.MCU},
		{"clock_hz", c.ClockHz},
		{"serial.port", c.SerialPort},
		{"serial.baud_rate", c.BaudRate},
		{"programmer.protocol", c.Protocol},
		{"programmer.port_flag", c.PortFlag},
		{"core.path", c.CorePath},
		{"core.variant_path", c.VariantPath},
		{"build.dir", c.BuildDir},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("invalid config: %s is required", r.name)
		}
	}

	if _, err := c.Baud(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.UploadTimeout < 0 {
		return fmt.Errorf("invalid config: upload.timeout must not be negative (got %s)", c.UploadTimeout)
	}
	if _, err := c.extraFlags(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Baud returns the baud rate as an integer.
func (c Config) Baud() (int, error) {
	baud, err := strconv.Atoi(c.BaudRate)
	if err != nil || baud <= 0 {
		return 0, fmt.Errorf("serial.baud_rate must be a positive integer (got %q)", c.BaudRate)
	}
	return baud, nil
}

// extraFlags splits ExtraFlags the way a POSIX shell would.
func (c Config) extraFlags() ([]string, error) {
	if c.ExtraFlags == "" {
		return nil, nil
	}
	flags, err := shlex.Split(c.ExtraFlags)
	if err != nil {
		return nil, fmt.Errorf("build.extra_flags: %w", err)
	}
	return flags, nil
}
