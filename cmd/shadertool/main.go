package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RedClaus/cortex-shadertool/internal/app"
	"github.com/RedClaus/cortex-shadertool/internal/config"
	"github.com/RedClaus/cortex-shadertool/internal/logging"
	"github.com/RedClaus/cortex-shadertool/internal/renderer"
	"github.com/RedClaus/cortex-shadertool/internal/window"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func init() {
	// GLFW and GL calls must stay on the main thread.
	runtime.LockOSThread()
}

type flags struct {
	cfgFile          string
	verbose          bool
	silent           bool
	autoReload       bool
	buffer           string
	width            int
	height           int
	screenshotDir    string
	screenshotFormat string
}

// runFunc starts the preview with the resolved settings.
type runFunc func(ctx context.Context, cfg *config.Config, opts app.Options) error

func newRootCmd(run runFunc) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "shadertool [flags] SCREEN_SHADER [BUFFER_SHADER]",
		Short: "Live preview for GLSL fragment shaders",
		Long: `shadertool renders a fragment shader over the whole window and recompiles
it when you press R, or on every save with --auto-reload.

With a second shader (or --buffer) the buffer shader is drawn first into an
offscreen texture which the screen shader samples through u_texture.

Uniforms: u_time (float), u_frame (uint), u_resolution (vec2), u_mouse (vec2).

Keys:
  Esc  quit
  R    reload shaders
  S    save a screenshot

Configuration:
  1. --config flag (explicit path)
  2. ./shadertool.yaml
  3. $HOME/.config/shadertool/shadertool.yaml
  Environment variables use the SHADERTOOL_ prefix, e.g. SHADERTOOL_WINDOW_WIDTH.`,
		Version:       version,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, opts, err := resolve(f, args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&f.cfgFile, "config", "", "config file (default is ./shadertool.yaml or $HOME/.config/shadertool/shadertool.yaml)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log debug output")
	cmd.Flags().BoolVarP(&f.silent, "silent", "s", false, "log errors only")
	cmd.Flags().BoolVarP(&f.silent, "quiet", "q", false, "alias for --silent")
	cmd.Flags().BoolVarP(&f.autoReload, "auto-reload", "r", false, "reload shaders when their files change")
	cmd.Flags().StringVarP(&f.buffer, "buffer", "b", "", "buffer shader rendered into the offscreen texture")
	cmd.Flags().IntVar(&f.width, "width", 0, "window width (overrides config)")
	cmd.Flags().IntVar(&f.height, "height", 0, "window height (overrides config)")
	cmd.Flags().StringVar(&f.screenshotDir, "screenshot-dir", "", "directory screenshots are written to (overrides config)")
	cmd.Flags().StringVar(&f.screenshotFormat, "screenshot-format", "", "screenshot format: png, bmp or tiff (overrides config)")

	return cmd
}

// resolve loads the configuration and applies command line overrides.
func resolve(f *flags, args []string) (*config.Config, app.Options, error) {
	opts := app.Options{ScreenShader: args[0], BufferShader: f.buffer}
	if len(args) == 2 {
		if f.buffer != "" {
			return nil, opts, fmt.Errorf("buffer shader given twice: %q and --buffer %q", args[1], f.buffer)
		}
		opts.BufferShader = args[1]
	}

	cfg, err := config.Load(f.cfgFile)
	if err != nil {
		return nil, opts, fmt.Errorf("failed to load configuration: %w", err)
	}

	o := config.Overrides{
		AutoReload:       f.autoReload,
		Width:            f.width,
		Height:           f.height,
		ScreenshotDir:    f.screenshotDir,
		ScreenshotFormat: f.screenshotFormat,
	}
	// Silent wins when both are given.
	switch {
	case f.silent:
		o.LogLevel = string(logging.LevelError)
	case f.verbose:
		o.LogLevel = string(logging.LevelDebug)
	}
	cfg.Apply(o)

	if err := cfg.Validate(); err != nil {
		return nil, opts, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, opts, nil
}

func run(ctx context.Context, cfg *config.Config, opts app.Options) error {
	logger, err := logging.New(&logging.Config{
		File:  cfg.Log.File,
		Level: logging.LogLevel(cfg.Log.Level),
	})
	if err != nil {
		return err
	}
	defer logger.Close()

	win, err := window.New(window.Config{
		Title:  cfg.Window.Title,
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
		VSync:  cfg.Window.VSync,
	}, logger.Component("window"))
	if err != nil {
		logger.Error("main", "Failed to create window", err, nil)
		return &renderer.SetupError{Op: "window", Err: err}
	}
	defer win.Close()

	dev, err := renderer.NewGLDevice()
	if err != nil {
		logger.Error("main", "Failed to initialize OpenGL", err, nil)
		return &renderer.SetupError{Op: "context", Err: err}
	}
	logger.Info("main", "OpenGL ready", map[string]interface{}{"version": renderer.Version()})

	a, err := app.New(cfg, opts, win, dev, logger)
	if err != nil {
		logger.Error("main", "Setup failed", err, nil)
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

func main() {
	if err := newRootCmd(run).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
