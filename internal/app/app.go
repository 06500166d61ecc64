// Package app wires the window, renderer, reload triggers and screenshot
// exporter into the preview loop.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/RedClaus/cortex-shadertool/internal/config"
	"github.com/RedClaus/cortex-shadertool/internal/input"
	"github.com/RedClaus/cortex-shadertool/internal/logging"
	"github.com/RedClaus/cortex-shadertool/internal/renderer"
	"github.com/RedClaus/cortex-shadertool/internal/screenshot"
	"github.com/RedClaus/cortex-shadertool/internal/trigger"
	"github.com/RedClaus/cortex-shadertool/internal/watch"
)

// Window is what the loop needs from the windowing layer. Its clock is the
// time source for shader animation.
type Window interface {
	renderer.Clock

	Pressed(k input.Key) bool
	CursorPos() (x, y float64)
	FramebufferSize() (width, height int)
	ShouldClose() bool
	SetShouldClose(v bool)
	SwapBuffers()
	PollEvents()
}

// Options selects the shaders to preview.
type Options struct {
	ScreenShader string
	// BufferShader is optional; when set its output feeds the screen shader.
	BufferShader string
}

// App is one running preview.
type App struct {
	cfg    *config.Config
	win    Window
	dev    renderer.Device
	logger *logging.Logger
	log    zerolog.Logger

	quad     renderer.Mesh
	shaders  []*renderer.Shader
	state    *renderer.State
	watcher  *watch.Watcher
	trigger  *trigger.Aggregator
	exporter *screenshot.Exporter

	viewWidth, viewHeight int
}

// New compiles the shaders and builds the pipeline. Any failure here is a
// *renderer.SetupError; everything created so far is released.
func New(cfg *config.Config, opts Options, win Window, dev renderer.Device, logger *logging.Logger) (*App, error) {
	if opts.ScreenShader == "" {
		return nil, &renderer.SetupError{Op: "args", Err: fmt.Errorf("no screen shader given")}
	}

	format, err := screenshot.ParseFormat(cfg.Screenshot.Format)
	if err != nil {
		return nil, &renderer.SetupError{Op: "config", Err: err}
	}

	a := &App{
		cfg:      cfg,
		win:      win,
		dev:      dev,
		logger:   logger,
		log:      logger.Component("app"),
		exporter: screenshot.NewExporter(cfg.Screenshot.Dir, format, logger.Component("screenshot")),
	}

	if err := a.init(opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(opts Options) error {
	quad, err := renderer.NewQuad(a.dev)
	if err != nil {
		return &renderer.SetupError{Op: "geometry", Err: err}
	}
	a.quad = quad

	screen, err := a.compile(opts.ScreenShader)
	if err != nil {
		return err
	}
	var buffer *renderer.Shader
	if opts.BufferShader != "" {
		if buffer, err = a.compile(opts.BufferShader); err != nil {
			return err
		}
	}

	a.viewWidth, a.viewHeight = a.win.FramebufferSize()
	a.dev.SetViewport(a.viewWidth, a.viewHeight)

	pipeline, err := renderer.NewPipeline(a.dev, a.quad, screen, buffer, a.viewWidth, a.viewHeight)
	if err != nil {
		return err
	}
	a.shaders = nil
	a.state = renderer.NewState(pipeline, a.win, a.logger.Component("renderer"))

	a.trigger = trigger.New(trigger.PollerFunc(a.reloadPressed), a.fileTrigger(pipeline.Shaders()))

	a.logger.Info("app", "Preview ready", map[string]interface{}{
		"screen":      opts.ScreenShader,
		"buffer":      opts.BufferShader,
		"auto_reload": a.trigger.FileEnabled(),
		"watching":    a.watchTokens(),
		"viewport":    []int{a.viewWidth, a.viewHeight},
	})
	return nil
}

// compile builds a shader for startup. Without a first program there is
// nothing to show, so failure is fatal.
func (a *App) compile(path string) (*renderer.Shader, error) {
	sh := renderer.NewShader(a.dev, path, a.logger.Component("shader"))
	if err := sh.Compile(); err != nil {
		return nil, &renderer.SetupError{Op: "shader", Err: err}
	}
	a.shaders = append(a.shaders, sh)
	return sh, nil
}

func (a *App) reloadPressed() bool {
	return a.win.Pressed(input.KeyReload)
}

// fileTrigger watches the shader sources when auto-reload is on. Watch
// failures only disable auto-reload.
func (a *App) fileTrigger(shaders []*renderer.Shader) trigger.Poller {
	if !a.cfg.Reload.Auto {
		return nil
	}

	w, err := watch.New(a.logger.Component("watch"))
	if err != nil {
		a.log.Warn().Err(err).Msg("Auto-reload disabled")
		return nil
	}
	for _, sh := range shaders {
		tok, err := w.Watch(sh.Path())
		if err != nil {
			a.log.Warn().Err(err).Msg("Auto-reload disabled")
			_ = w.Close()
			for _, other := range shaders {
				other.SetWatchToken("")
			}
			return nil
		}
		sh.SetWatchToken(string(tok))
	}
	a.watcher = w
	return w
}

func (a *App) watchTokens() []string {
	var toks []string
	for _, sh := range a.state.Pipeline().Shaders() {
		if tok := sh.WatchToken(); tok != "" {
			toks = append(toks, tok)
		}
	}
	return toks
}

// checkWatcher turns file-triggered reloads off once the watcher has
// stopped delivering changes.
func (a *App) checkWatcher() {
	if a.watcher == nil || a.watcher.Alive() {
		return
	}
	a.log.Warn().Msg("File watcher stopped, auto-reload disabled")
	a.trigger.DisableFile()
	_ = a.watcher.Close()
	a.watcher = nil
	for _, sh := range a.state.Pipeline().Shaders() {
		sh.SetWatchToken("")
	}
}

// State exposes the render state.
func (a *App) State() *renderer.State {
	return a.state
}

// AutoReload reports whether file changes trigger reloads.
func (a *App) AutoReload() bool {
	return a.trigger.FileEnabled()
}

// Run drives frames until the window is closed or ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.log.Info().Msg("Entering render loop")
	for !a.win.ShouldClose() {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("Shutdown signal received")
			return nil
		default:
		}
		a.Frame()
	}
	a.log.Info().Msg("Render loop ended")
	return nil
}

// Frame runs one iteration: handle input, reload if asked, draw, present.
func (a *App) Frame() {
	if a.win.Pressed(input.KeyClose) {
		a.log.Info().Msg("Quitting")
		a.win.SetShouldClose(true)
		return
	}

	a.checkWatcher()
	if src := a.trigger.Poll(); src != 0 {
		a.reload(src)
	}

	width, height := a.win.FramebufferSize()
	if width != a.viewWidth || height != a.viewHeight {
		a.dev.SetViewport(width, height)
		a.viewWidth, a.viewHeight = width, height
	}

	mx, my := a.win.CursorPos()
	if err := a.state.Draw(renderer.FrameInput{
		Width:  width,
		Height: height,
		MouseX: mx,
		MouseY: my,
	}); err != nil {
		a.log.Error().Err(err).Msg("Draw failed")
	}

	if a.win.Pressed(input.KeyScreenshot) {
		a.screenshot()
	}

	a.win.SwapBuffers()
	a.state.EndFrame()
	a.win.PollEvents()
}

func (a *App) reload(src trigger.Source) {
	if src&trigger.SourceFile != 0 {
		a.log.Info().Str("trigger", src.String()).Msg("File changed on disk, reloading shaders")
	} else {
		a.log.Info().Str("trigger", src.String()).Msg("Reloading shaders")
	}
	if err := a.state.Reload(); err != nil {
		a.log.Warn().Err(err).Msg("Reload incomplete, keeping previous programs")
	}
}

// screenshot is best effort; failures are logged only.
func (a *App) screenshot() {
	screen := a.state.Pipeline().Screen()
	width, height := a.dev.Viewport()

	a.dev.BindTarget(renderer.DefaultTarget)
	path, err := a.exporter.Capture(a.dev, screen.Path(), a.state.FrameCount(), width, height)
	if err != nil {
		a.log.Error().Err(err).Msg("Screenshot failed")
		return
	}
	a.log.Info().Str("file", path).Msg("Screenshot saved")
}

// Close releases the watcher, programs, target and quad, newest first.
// The window belongs to the caller.
func (a *App) Close() {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Closing watcher")
		}
		a.watcher = nil
	}
	if a.state != nil {
		a.state.Close()
		a.state = nil
	}
	for i := len(a.shaders) - 1; i >= 0; i-- {
		a.shaders[i].Delete()
	}
	a.shaders = nil
	if a.quad.VAO != 0 {
		a.dev.DeleteMesh(a.quad)
		a.quad = renderer.Mesh{}
	}
}
