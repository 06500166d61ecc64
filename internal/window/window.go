// Package window owns the GLFW window and its OpenGL context.
//
// Everything here must run on the main OS thread.
package window

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/rs/zerolog"

	"github.com/RedClaus/cortex-shadertool/internal/input"
)

// Config describes the window to open.
type Config struct {
	Title  string
	Width  int
	Height int
	VSync  bool
}

var glfwKeys = map[input.Key]glfw.Key{
	input.KeyClose:      glfw.KeyEscape,
	input.KeyReload:     glfw.KeyR,
	input.KeyScreenshot: glfw.KeyS,
}

// Window is a resizable window with a current OpenGL 4.1 core context.
type Window struct {
	win   *glfw.Window
	log   zerolog.Logger
	edges input.EdgeDetector

	fbWidth, fbHeight int
}

// New initializes GLFW, opens the window and makes its context current.
// Close terminates GLFW.
func New(cfg Config, log zerolog.Logger) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("init glfw: %w", err)
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}
	win.MakeContextCurrent()

	if cfg.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	w := &Window{win: win, log: log}
	w.fbWidth, w.fbHeight = win.GetFramebufferSize()

	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.fbWidth, w.fbHeight = width, height
		w.log.Debug().Int("width", width).Int("height", height).Msg("Framebuffer resized")
	})

	log.Info().
		Str("title", cfg.Title).
		Int("width", w.fbWidth).
		Int("height", w.fbHeight).
		Bool("vsync", cfg.VSync).
		Msg("Window created")

	return w, nil
}

// Pressed reports a key once per press. Call it once per frame per key.
func (w *Window) Pressed(k input.Key) bool {
	gk, ok := glfwKeys[k]
	if !ok {
		return false
	}
	return w.edges.Update(k, w.win.GetKey(gk) == glfw.Press)
}

// CursorPos is the pointer position in window coordinates, origin top-left.
func (w *Window) CursorPos() (float64, float64) {
	return w.win.GetCursorPos()
}

// FramebufferSize is the drawable size in pixels.
func (w *Window) FramebufferSize() (int, int) {
	return w.fbWidth, w.fbHeight
}

func (w *Window) ShouldClose() bool {
	return w.win.ShouldClose()
}

func (w *Window) SetShouldClose(v bool) {
	w.win.SetShouldClose(v)
}

func (w *Window) SwapBuffers() {
	w.win.SwapBuffers()
}

func (w *Window) PollEvents() {
	glfw.PollEvents()
}

// Time is the GLFW clock in seconds.
func (w *Window) Time() float64 {
	return glfw.GetTime()
}

func (w *Window) SetTime(t float64) {
	glfw.SetTime(t)
}

// Close destroys the window and terminates GLFW.
func (w *Window) Close() {
	w.win.Destroy()
	glfw.Terminate()
}
