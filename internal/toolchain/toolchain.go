package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrMissingImage is returned by Upload when no hex image has been built.
	ErrMissingImage = errors.New("hex image not found")
	// ErrTimeout is returned by Upload when the programmer exceeds the
	// configured upload timeout.
	ErrTimeout = errors.New("upload timed out")
)

// Options configures a Toolchain. Zero values select the defaults.
type Options struct {
	// Dir is the directory holding the sketch; artifacts are written below it.
	Dir    string
	Runner Runner
	// Prober is consulted before uploading when Config.ProbePort is set.
	Prober Prober
	Logger *slog.Logger
}

// Toolchain compiles sketches and uploads them to a board.
// Calls are synchronous; a Toolchain must not be used for two operations at
// once because they share the build directory and serial port.
type Toolchain struct {
	cfg    Config
	dir    string
	runner Runner
	prober Prober
	logger *slog.Logger
}

// CompileResult describes a successful compile.
type CompileResult struct {
	Project   string
	Artifacts Artifacts
	Image     *Image
	Duration  time.Duration
}

// UploadResult describes a successful upload.
type UploadResult struct {
	Project  string
	Hex      string
	Port     string
	Duration time.Duration
}

// FlashResult holds both halves of a Flash call. Upload is nil if the
// compile failed.
type FlashResult struct {
	Compile *CompileResult
	Upload  *UploadResult
}

// New validates cfg and returns a Toolchain.
func New(cfg Config, opts Options) (*Toolchain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Toolchain{
		cfg:    cfg,
		dir:    opts.Dir,
		runner: opts.Runner,
		prober: opts.Prober,
		logger: opts.Logger,
	}
	if t.dir == "" {
		t.dir = "."
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if t.runner == nil {
		t.runner = NewExecRunner(t.dir)
	}
	if t.prober == nil {
		t.prober = SerialProber{Logger: t.logger}
	}
	return t, nil
}

// Config returns the configuration the toolchain was built with.
func (t *Toolchain) Config() Config {
	return t.cfg
}

// Compile builds <project>.cpp into <build>/<project>.elf and converts it to
// <build>/<project>.hex. Any stale hex image is removed first so a failed
// compile never leaves one behind.
func (t *Toolchain) Compile(ctx context.Context, project string) (*CompileResult, error) {
	start := time.Now()

	name, err := NormalizeProject(project)
	if err != nil {
		return nil, err
	}
	if err := t.ensureBuildDir(); err != nil {
		return nil, err
	}

	a := t.cfg.ArtifactsFor(name)
	if err := os.Remove(t.resolve(a.Hex)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale hex image: %w", err)
	}

	compile, err := t.cfg.CompileCommand(name)
	if err != nil {
		return nil, err
	}

	t.logger.Info("compiling", "project", name, "mcu", t.cfg.MCU, "output", a.Elf)
	t.logger.Debug("running compiler", "command", compile.String())
	if err := t.runner.Run(ctx, compile); err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", name, err)
	}

	objcopy := t.cfg.ObjcopyCommand(name)
	t.logger.Info("converting to hex image", "project", name, "output", a.Hex)
	t.logger.Debug("running objcopy", "command", objcopy.String())
	if err := t.runner.Run(ctx, objcopy); err != nil {
		return nil, fmt.Errorf("failed to convert %s to hex: %w", a.Elf, err)
	}

	img, err := LoadImage(t.resolve(a.Hex))
	if err != nil {
		return nil, fmt.Errorf("failed to load hex image: %w", err)
	}

	res := &CompileResult{
		Project:   name,
		Artifacts: a,
		Image:     img,
		Duration:  time.Since(start),
	}
	t.logger.Info("compile complete",
		"project", name,
		"image_bytes", img.Size,
		"address", fmt.Sprintf("0x%04x", img.Address),
		"duration", res.Duration.String(),
	)
	return res, nil
}

// Upload writes <build>/<project>.hex to the board through the programmer.
func (t *Toolchain) Upload(ctx context.Context, project string) (*UploadResult, error) {
	start := time.Now()

	name, err := NormalizeProject(project)
	if err != nil {
		return nil, err
	}
	if err := t.ensureBuildDir(); err != nil {
		return nil, err
	}

	a := t.cfg.ArtifactsFor(name)
	if _, err := os.Stat(t.resolve(a.Hex)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (compile %s first)", ErrMissingImage, a.Hex, name)
		}
		return nil, fmt.Errorf("failed to stat hex image: %w", err)
	}

	if t.cfg.ProbePort {
		baud, _ := t.cfg.Baud()
		if err := t.prober.Probe(t.cfg.SerialPort, baud); err != nil {
			return nil, err
		}
	}

	if t.cfg.PortFlag == DefaultPortFlag {
		t.logger.Warn("serial port passed with -p; avrdude expects -P, set programmer.port_flag to change it",
			"port", t.cfg.SerialPort)
	}

	runCtx := ctx
	if t.cfg.UploadTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.cfg.UploadTimeout)
		defer cancel()
	}

	upload := t.cfg.UploadCommand(name)
	t.logger.Info("uploading", "project", name, "port", t.cfg.SerialPort, "baud", t.cfg.BaudRate)
	t.logger.Debug("running programmer", "command", upload.String())
	if err := t.runner.Run(runCtx, upload); err != nil {
		if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %w", ErrTimeout, t.cfg.UploadTimeout, err)
		}
		return nil, fmt.Errorf("failed to upload %s: %w", a.Hex, err)
	}

	res := &UploadResult{
		Project:  name,
		Hex:      a.Hex,
		Port:     t.cfg.SerialPort,
		Duration: time.Since(start),
	}
	t.logger.Info("upload complete", "project", name, "duration", res.Duration.String())
	return res, nil
}

// Flash compiles project and, if that succeeds, uploads it.
func (t *Toolchain) Flash(ctx context.Context, project string) (*FlashResult, error) {
	res := &FlashResult{}

	var err error
	if res.Compile, err = t.Compile(ctx, project); err != nil {
		return res, err
	}
	if res.Upload, err = t.Upload(ctx, project); err != nil {
		return res, err
	}
	return res, nil
}

func (t *Toolchain) ensureBuildDir() error {
	if err := os.MkdirAll(t.resolve(t.cfg.BuildDir), 0755); err != nil {
		return fmt.Errorf("failed to create build directory: %w", err)
	}
	return nil
}

// resolve maps a slash-separated path relative to the sketch directory onto
// the host filesystem.
func (t *Toolchain) resolve(p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(t.dir, p)
}
