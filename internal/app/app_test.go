package app

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RedClaus/cortex-shadertool/internal/config"
	"github.com/RedClaus/cortex-shadertool/internal/input"
	"github.com/RedClaus/cortex-shadertool/internal/logging"
	"github.com/RedClaus/cortex-shadertool/internal/renderer"
	"github.com/RedClaus/cortex-shadertool/internal/renderer/gltest"
)

const (
	redFrag = `#version 330 core
out vec4 FragColor;
// out: 1,0,0
void main() { FragColor = vec4(1.0, 0.0, 0.0, 1.0); }
`
	greenFrag = `#version 330 core
out vec4 FragColor;
// out: 0,1,0
void main() { FragColor = vec4(0.0, 1.0, 0.0, 1.0); }
`
	passthroughFrag = `#version 330 core
in vec2 TexCoord;
out vec4 FragColor;
uniform sampler2D u_texture;
void main() { FragColor = texture(u_texture, TexCoord); }
`
	brokenFrag = `#version 330 core
#error unterminated
void main() {
`
)

// fakeWindow is a scripted Window. Presses are one-shot and the clock
// advances by dt on every PollEvents.
type fakeWindow struct {
	gltest.Clock

	width, height  int
	mouseX, mouseY float64
	dt             float64

	pressed    map[input.Key]bool
	closed     bool
	closeAfter int

	swaps, polls int
}

func newFakeWindow(width, height int) *fakeWindow {
	return &fakeWindow{
		width:   width,
		height:  height,
		dt:      1.0 / 60,
		pressed: make(map[input.Key]bool),
	}
}

func (w *fakeWindow) press(k input.Key) { w.pressed[k] = true }

func (w *fakeWindow) Pressed(k input.Key) bool {
	p := w.pressed[k]
	delete(w.pressed, k)
	return p
}

func (w *fakeWindow) CursorPos() (float64, float64) { return w.mouseX, w.mouseY }
func (w *fakeWindow) FramebufferSize() (int, int) { return w.width, w.height }
func (w *fakeWindow) SetShouldClose(v bool) { w.closed = v }
func (w *fakeWindow) SwapBuffers() { w.swaps++ }

func (w *fakeWindow) ShouldClose() bool {
	return w.closed || (w.closeAfter > 0 && w.swaps >= w.closeAfter)
}

func (w *fakeWindow) PollEvents() {
	w.polls++
	w.Advance(w.dt)
}

type harness struct {
	dir string
	cfg *config.Config
	win *fakeWindow
	dev *gltest.Device
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Screenshot.Dir = t.TempDir()
	return &harness{
		dir: t.TempDir(),
		cfg: cfg,
		win: newFakeWindow(64, 48),
		dev: gltest.New(),
	}
}

func (h *harness) write(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func (h *harness) start(t *testing.T, opts Options) *App {
	t.Helper()
	return h.startWithLogger(t, opts, logging.Nop())
}

func (h *harness) startWithLogger(t *testing.T, opts Options, logger *logging.Logger) *App {
	t.Helper()
	a, err := New(h.cfg, opts, h.win, h.dev, logger)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

// pixel returns the color of the last presented frame.
func (h *harness) pixel(t *testing.T) []byte {
	t.Helper()
	h.dev.BindTarget(renderer.DefaultTarget)
	px, err := h.dev.ReadPixels(1, 1)
	require.NoError(t, err)
	return px
}

var (
	red   = []byte{255, 0, 0}
	green = []byte{0, 255, 0}
)

func TestSinglePassFrame(t *testing.T) {
	h := newHarness(t)
	a := h.start(t, Options{ScreenShader: h.write(t, "screen.frag", redFrag)})

	assert.False(t, a.AutoReload())
	w, ht := h.dev.Viewport()
	assert.Equal(t, []int{64, 48}, []int{w, ht})

	a.Frame()
	assert.Len(t, h.dev.Draws, 1)
	assert.Equal(t, red, h.pixel(t))
	assert.Equal(t, 1, h.win.swaps)
	assert.Equal(t, 1, h.win.polls)
	assert.Equal(t, uint64(1), a.State().FrameCount())
}

func TestDualPassFrame(t *testing.T) {
	h := newHarness(t)
	a := h.start(t, Options{
		ScreenShader: h.write(t, "screen.frag", passthroughFrag),
		BufferShader: h.write(t, "buffer.frag", greenFrag),
	})

	a.Frame()
	require.Len(t, h.dev.Draws, 2)
	assert.Equal(t, green, h.pixel(t))
}

func TestUniformsFollowWindow(t *testing.T) {
	h := newHarness(t)
	a := h.start(t, Options{ScreenShader: h.write(t, "screen.frag", redFrag)})

	h.win.mouseX, h.win.mouseY = 12, 34
	a.Frame()
	a.Frame()

	u := h.dev.Uniforms[a.State().Pipeline().Screen().Program()]
	assert.Equal(t, uint32(1), u.Frame)
	assert.InDelta(t, 1.0/60, float64(u.Time), 1e-6)
	assert.Equal(t, float32(64), u.Resolution.X())
	assert.Equal(t, float32(48), u.Resolution.Y())
	assert.Equal(t, float32(12), u.Mouse.X())
	assert.Equal(t, float32(34), u.Mouse.Y())
}

func TestResizeUpdatesViewport(t *testing.T) {
	h := newHarness(t)
	a := h.start(t, Options{
		ScreenShader: h.write(t, "screen.frag", passthroughFrag),
		BufferShader: h.write(t, "buffer.frag", greenFrag),
	})

	h.win.width, h.win.height = 320, 200
	a.Frame()

	w, ht := h.dev.Viewport()
	assert.Equal(t, []int{320, 200}, []int{w, ht})
	u := h.dev.Uniforms[a.State().Pipeline().Screen().Program()]
	assert.Equal(t, float32(320), u.Resolution.X())
	assert.Equal(t, green, h.pixel(t))
}

func TestEscapeClosesWindow(t *testing.T) {
	h := newHarness(t)
	a := h.start(t, Options{ScreenShader: h.write(t, "screen.frag", redFrag)})

	h.win.press(input.KeyClose)
	a.Frame()
	assert.True(t, h.win.ShouldClose())
	assert.Empty(t, h.dev.Draws)
	assert.Zero(t, h.win.swaps)
}

func TestEscapeLogsQuitting(t *testing.T) {
	h := newHarness(t)
	var out bytes.Buffer
	logger, err := logging.New(&logging.Config{Level: logging.LevelInfo, Console: &out})
	require.NoError(t, err)
	a := h.startWithLogger(t, Options{ScreenShader: h.write(t, "screen.frag", redFrag)}, logger)

	h.win.press(input.KeyClose)
	a.Frame()
	assert.Contains(t, out.String(), "Quitting")
}

func TestReloadKey(t *testing.T) {
	h := newHarness(t)
	path := h.write(t, "screen.frag", redFrag)
	a := h.start(t, Options{ScreenShader: path})

	for i := 0; i < 5; i++ {
		a.Frame()
	}
	assert.Equal(t, red, h.pixel(t))

	h.write(t, "screen.frag", greenFrag)
	// Not picked up without a trigger.
	a.Frame()
	assert.Equal(t, red, h.pixel(t))

	h.win.press(input.KeyReload)
	a.Frame()
	assert.Equal(t, green, h.pixel(t))
	assert.Equal(t, uint64(1), a.State().FrameCount())
	assert.False(t, h.dev.UsedDeleted)
}

func TestFailedReloadKeepsRunning(t *testing.T) {
	h := newHarness(t)
	a := h.start(t, Options{ScreenShader: h.write(t, "screen.frag", redFrag)})
	a.Frame()
	a.Frame()

	h.write(t, "screen.frag", brokenFrag)
	h.win.press(input.KeyReload)
	a.Frame()

	assert.Equal(t, red, h.pixel(t))
	assert.Equal(t, uint64(1), a.State().FrameCount())
	assert.Equal(t, 3, h.win.swaps)
}

func TestAutoReload(t *testing.T) {
	h := newHarness(t)
	h.cfg.Reload.Auto = true
	a := h.start(t, Options{
		ScreenShader: h.write(t, "screen.frag", passthroughFrag),
		BufferShader: h.write(t, "buffer.frag", redFrag),
	})
	require.True(t, a.AutoReload())

	a.Frame()
	assert.Equal(t, red, h.pixel(t))

	// Editing either file reloads both.
	h.write(t, "buffer.frag", greenFrag)
	require.Eventually(t, func() bool {
		a.Frame()
		h.dev.BindTarget(renderer.DefaultTarget)
		px, err := h.dev.ReadPixels(1, 1)
		return err == nil && string(px) == string(green)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchTokens(t *testing.T) {
	h := newHarness(t)
	h.cfg.Reload.Auto = true
	screen := h.write(t, "screen.frag", passthroughFrag)
	buffer := h.write(t, "buffer.frag", redFrag)
	a := h.start(t, Options{ScreenShader: screen, BufferShader: buffer})

	shaders := a.State().Pipeline().Shaders()
	require.Len(t, shaders, 2)
	for _, sh := range shaders {
		assert.NotEmpty(t, sh.WatchToken(), sh.Path())
	}
	assert.Len(t, a.watchTokens(), 2)
}

func TestNoWatchTokensWithoutAutoReload(t *testing.T) {
	h := newHarness(t)
	a := h.start(t, Options{ScreenShader: h.write(t, "screen.frag", redFrag)})
	assert.Empty(t, a.State().Pipeline().Screen().WatchToken())
	assert.Empty(t, a.watchTokens())
}

func TestStoppedWatcherDisablesAutoReload(t *testing.T) {
	h := newHarness(t)
	h.cfg.Reload.Auto = true
	a := h.start(t, Options{ScreenShader: h.write(t, "screen.frag", redFrag)})
	require.True(t, a.AutoReload())

	require.NoError(t, a.watcher.Close())
	a.Frame()

	assert.False(t, a.AutoReload())
	assert.Nil(t, a.watcher)
	assert.Empty(t, a.State().Pipeline().Screen().WatchToken())

	// The reload key still works.
	h.write(t, "screen.frag", greenFrag)
	h.win.press(input.KeyReload)
	a.Frame()
	assert.Equal(t, green, h.pixel(t))
}

func TestScreenshot(t *testing.T) {
	h := newHarness(t)
	a := h.start(t, Options{ScreenShader: h.write(t, "screen.frag", redFrag)})

	for i := 0; i < 3; i++ {
		a.Frame()
	}
	h.win.press(input.KeyScreenshot)
	a.Frame()

	matches, err := filepath.Glob(filepath.Join(h.cfg.Screenshot.Dir, "screen_3_*.png"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	f, err := os.Open(matches[0])
	require.NoError(t, err)
	defer f.Close()
	im, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 64, im.Bounds().Dx())
	assert.Equal(t, 48, im.Bounds().Dy())

	r, g, b, _ := im.At(10, 10).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0}, []uint32{r, g, b})
}

func TestScreenshotFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.cfg.Screenshot.Dir = filepath.Join(h.dir, "missing")
	a := h.start(t, Options{ScreenShader: h.write(t, "screen.frag", redFrag)})

	h.win.press(input.KeyScreenshot)
	a.Frame()
	a.Frame()
	assert.Equal(t, 2, h.win.swaps)
}

func TestNewBrokenShader(t *testing.T) {
	h := newHarness(t)
	_, err := New(h.cfg, Options{ScreenShader: h.write(t, "screen.frag", brokenFrag)}, h.win, h.dev, logging.Nop())
	require.Error(t, err)

	var setupErr *renderer.SetupError
	require.True(t, errors.As(err, &setupErr))
	assert.Equal(t, "shader", setupErr.Op)

	var compileErr *renderer.CompileError
	assert.True(t, errors.As(err, &compileErr))
	assert.Equal(t, 0, h.dev.LiveMeshes())
}

func TestNewBrokenBufferReleasesScreen(t *testing.T) {
	h := newHarness(t)
	_, err := New(h.cfg, Options{
		ScreenShader: h.write(t, "screen.frag", passthroughFrag),
		BufferShader: h.write(t, "buffer.frag", brokenFrag),
	}, h.win, h.dev, logging.Nop())
	require.Error(t, err)
	assert.Equal(t, 0, h.dev.LivePrograms())
	assert.Equal(t, 0, h.dev.LiveMeshes())
}

func TestNewMissingShader(t *testing.T) {
	h := newHarness(t)
	_, err := New(h.cfg, Options{ScreenShader: filepath.Join(h.dir, "nope.frag")}, h.win, h.dev, logging.Nop())

	var fileErr *renderer.FileError
	assert.True(t, errors.As(err, &fileErr))
}

func TestNewFramebufferIncomplete(t *testing.T) {
	h := newHarness(t)
	h.dev.FailTarget = true
	_, err := New(h.cfg, Options{
		ScreenShader: h.write(t, "screen.frag", passthroughFrag),
		BufferShader: h.write(t, "buffer.frag", greenFrag),
	}, h.win, h.dev, logging.Nop())

	var setupErr *renderer.SetupError
	require.True(t, errors.As(err, &setupErr))
	assert.Equal(t, "framebuffer", setupErr.Op)
	assert.ErrorIs(t, err, renderer.ErrFramebufferIncomplete)
	assert.Equal(t, 0, h.dev.LivePrograms())
	assert.Equal(t, 0, h.dev.LiveMeshes())
}

func TestNewRequiresScreenShader(t *testing.T) {
	h := newHarness(t)
	_, err := New(h.cfg, Options{}, h.win, h.dev, logging.Nop())
	var setupErr *renderer.SetupError
	assert.True(t, errors.As(err, &setupErr))
}

func TestRunUntilWindowCloses(t *testing.T) {
	h := newHarness(t)
	h.win.closeAfter = 4
	a := h.start(t, Options{ScreenShader: h.write(t, "screen.frag", redFrag)})

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, 4, h.win.swaps)
	assert.Equal(t, uint64(4), a.State().FrameCount())
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	a := h.start(t, Options{ScreenShader: h.write(t, "screen.frag", redFrag)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Run(ctx))
	assert.Zero(t, h.win.swaps)
}

func TestCloseReleasesResources(t *testing.T) {
	h := newHarness(t)
	h.cfg.Reload.Auto = true
	a, err := New(h.cfg, Options{
		ScreenShader: h.write(t, "screen.frag", passthroughFrag),
		BufferShader: h.write(t, "buffer.frag", greenFrag),
	}, h.win, h.dev, logging.Nop())
	require.NoError(t, err)
	a.Frame()

	a.Close()
	assert.Equal(t, 0, h.dev.LivePrograms())
	assert.Equal(t, 0, h.dev.LiveTargets())
	assert.Equal(t, 0, h.dev.LiveMeshes())

	// Idempotent
	a.Close()
}
