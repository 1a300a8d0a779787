package toolchain

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCompileCommand_Golden(t *testing.T) {
	cmd, err := DefaultConfig().CompileCommand("sketch")
	if err != nil {
		t.Fatalf("CompileCommand() error = %v", err)
	}

	want := Command{
		Name: "avr-gcc",
		Args: []string{
			"-mmcu=atmega328p",
			"-DF_CPU=16000000UL",
			"-Os",
			"-IArduinoCore-avr/cores/arduino",
			"-IArduinoCore-avr/variants/standard",
			"-o", "build/sketch.elf",
			"sketch.cpp",
			"ArduinoCore-avr/cores/arduino/main.cpp",
			"ArduinoCore-avr/cores/arduino/wiring_digital.c",
			"ArduinoCore-avr/cores/arduino/wiring_analog.c",
			"ArduinoCore-avr/cores/arduino/wiring.c",
			"ArduinoCore-avr/cores/arduino/wiring_pulse.c",
			"ArduinoCore-avr/cores/arduino/wiring_shift.c",
			"ArduinoCore-avr/cores/arduino/hooks.c",
			"ArduinoCore-avr/cores/arduino/wiring_pulse.S",
		},
	}
	if diff := cmp.Diff(want, cmd); diff != "" {
		t.Errorf("CompileCommand() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileCommand_LibrariesAndExtraFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LibraryPaths = []string{"libs/Servo/src"}
	cfg.ExtraFlags = `-Wall -DGREETING="hello world"`
	cfg.CoreSources = []string{"main.cpp"}

	cmd, err := cfg.CompileCommand("blink")
	if err != nil {
		t.Fatalf("CompileCommand() error = %v", err)
	}

	want := []string{
		"-mmcu=atmega328p",
		"-DF_CPU=16000000UL",
		"-Os",
		"-IArduinoCore-avr/cores/arduino",
		"-IArduinoCore-avr/variants/standard",
		"-Ilibs/Servo/src",
		"-Wall",
		"-DGREETING=hello world",
		"-o", "build/blink.elf",
		"blink.cpp",
		"ArduinoCore-avr/cores/arduino/main.cpp",
	}
	if diff := cmp.Diff(want, cmd.Args); diff != "" {
		t.Errorf("CompileCommand() args mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileCommand_BadExtraFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExtraFlags = `-DNAME="unterminated`

	if _, err := cfg.CompileCommand("sketch"); err == nil {
		t.Error("CompileCommand() should fail on an unterminated quote")
	}
}

func TestObjcopyCommand(t *testing.T) {
	cmd := DefaultConfig().ObjcopyCommand("sketch")

	want := Command{
		Name: "avr-objcopy",
		Args: []string{"-O", "ihex", "-R", ".eeprom", "build/sketch.elf", "build/sketch.hex"},
	}
	if diff := cmp.Diff(want, cmd); diff != "" {
		t.Errorf("ObjcopyCommand() mismatch (-want +got):\n%s", diff)
	}
}

func TestUploadCommand(t *testing.T) {
	tests := []struct {
		name     string
		portFlag string
		want     []string
	}{
		{
			name:     "historical part flag",
			portFlag: DefaultPortFlag,
			want: []string{
				"-c", "arduino",
				"-p", "atmega328p",
				"-p", "/dev/ttyACM0",
				"-b", "115200",
				"-U", "flash:w:build/sketch.hex:i",
			},
		},
		{
			name:     "port flag",
			portFlag: "-P",
			want: []string{
				"-c", "arduino",
				"-p", "atmega328p",
				"-P", "/dev/ttyACM0",
				"-b", "115200",
				"-U", "flash:w:build/sketch.hex:i",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.PortFlag = tt.portFlag

			cmd := cfg.UploadCommand("sketch")
			if cmd.Name != "avrdude" {
				t.Errorf("UploadCommand() name = %s, want avrdude", cmd.Name)
			}
			if diff := cmp.Diff(tt.want, cmd.Args); diff != "" {
				t.Errorf("UploadCommand() args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCommandString(t *testing.T) {
	cmd := Command{Name: "avrdude", Args: []string{"-c", "arduino"}}
	if got := cmd.String(); got != "avrdude -c arduino" {
		t.Errorf("String() = %q, want %q", got, "avrdude -c arduino")
	}
}

func TestNormalizeProject(t *testing.T) {
	tests := []struct {
		project string
		want    string
		wantErr bool
	}{
		{"sketch", "sketch", false},
		{"sketch.cpp", "sketch", false},
		{"  blink ", "blink", false},
		{"", "", true},
		{".cpp", "", true},
		{"src/sketch", "", true},
		{`src\sketch`, "", true},
		{"..", "", true},
		{"-Uflash:r:dump.hex", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.project, func(t *testing.T) {
			got, err := NormalizeProject(tt.project)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidProject) {
					t.Errorf("NormalizeProject(%q) error = %v, want ErrInvalidProject", tt.project, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeProject(%q) error = %v", tt.project, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeProject(%q) = %q, want %q", tt.project, got, tt.want)
			}
		})
	}
}

func TestArtifactsFor_CustomBuildDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuildDir = "out/avr"

	a := cfg.ArtifactsFor("sketch")
	want := Artifacts{Source: "sketch.cpp", Elf: "out/avr/sketch.elf", Hex: "out/avr/sketch.hex"}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Errorf("ArtifactsFor() mismatch (-want +got):\n%s", diff)
	}
}
