package toolchain

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidProject is returned for project names that cannot name a sketch.
var ErrInvalidProject = errors.New("invalid project name")

// Command is one external process invocation.
type Command struct {
	Name string
	Args []string
}

// String renders the command the way it would be typed in a shell.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Artifacts are the paths, relative to the working directory, that belong to
// a project.
type Artifacts struct {
	Source string
	Elf    string
	Hex    string
}

// NormalizeProject validates a project name and strips a trailing ".cpp".
func NormalizeProject(project string) (string, error) {
	name := strings.TrimSuffix(strings.TrimSpace(project), ".cpp")
	switch {
	case name == "":
		return "", fmt.Errorf("%w: name is empty", ErrInvalidProject)
	case strings.ContainsAny(name, `/\`):
		return "", fmt.Errorf("%w: %q must not contain a path separator", ErrInvalidProject, project)
	case name == "." || name == "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidProject, project)
	case strings.HasPrefix(name, "-"):
		return "", fmt.Errorf("%w: %q must not start with '-'", ErrInvalidProject, project)
	}
	return name, nil
}

// ArtifactsFor returns the source and output paths for a normalized project.
// Paths always use forward slashes so argv is identical on every host.
func (c Config) ArtifactsFor(project string) Artifacts {
	return Artifacts{
		Source: project + ".cpp",
		Elf:    path.Join(c.BuildDir, project+".elf"),
		Hex:    path.Join(c.BuildDir, project+".hex"),
	}
}

// CompileCommand builds the compiler invocation for a normalized project.
func (c Config) CompileCommand(project string) (Command, error) {
	extra, err := c.extraFlags()
	if err != nil {
		return Command{}, err
	}
	a := c.ArtifactsFor(project)

	args := []string{
		"-mmcu=" + c.MCU,
		"-DF_CPU=" + c.ClockHz,
	}
	if c.Optimization != "" {
		args = append(args, c.Optimization)
	}
	args = append(args, "-I"+c.CorePath, "-I"+c.VariantPath)
	for _, lib := range c.LibraryPaths {
		args = append(args, "-I"+lib)
	}
	args = append(args, extra...)
	args = append(args, "-o", a.Elf, a.Source)
	for _, src := range c.CoreSources {
		args = append(args, path.Join(c.CorePath, src))
	}

	return Command{Name: c.Tools.Compiler, Args: args}, nil
}

// ObjcopyCommand builds the ELF to Intel-hex conversion, dropping the EEPROM
// section.
func (c Config) ObjcopyCommand(project string) Command {
	a := c.ArtifactsFor(project)
	return Command{
		Name: c.Tools.Objcopy,
		Args: []string{"-O", "ihex", "-R", ".eeprom", a.Elf, a.Hex},
	}
}

// UploadCommand builds the programmer invocation that writes the hex image
// to flash.
func (c Config) UploadCommand(project string) Command {
	a := c.ArtifactsFor(project)
	return Command{
		Name: c.Tools.Programmer,
		Args: []string{
			"-c", c.Protocol,
			"-p", c.MCU,
			c.PortFlag, c.SerialPort,
			"-b", c.BaudRate,
			"-U", "flash:w:" + a.Hex + ":i",
		},
	}
}
