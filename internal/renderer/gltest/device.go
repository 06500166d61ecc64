// Package gltest provides an in-memory renderer.Device for tests that
// cannot create a GL context.
//
// Fragment sources are interpreted just enough to produce deterministic
// pixels: a line "// out: r,g,b" makes the shader write that constant
// color, and a source sampling u_texture without an out line passes the
// bound texture's color through. "#error" fails compilation and
// "// link-fail" fails linking.
package gltest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RedClaus/cortex-shadertool/internal/renderer"
)

// DrawCall records one DrawMesh.
type DrawCall struct {
	Target  uint32
	Program uint32
	Texture uint32
	Output  string
}

type shaderObj struct {
	stage  renderer.Stage
	source string
}

// Device is a recording, single-threaded fake of renderer.Device.
type Device struct {
	nextID uint32

	shaders  map[uint32]shaderObj
	programs map[uint32]string // program -> fragment source
	deleted  map[uint32]bool
	meshes   map[uint32]renderer.Mesh
	targets  map[uint32]renderer.Target // fbo -> target
	contents map[uint32]string          // fbo -> color

	boundTarget  uint32
	boundTexture uint32
	program      uint32

	viewportW, viewportH int

	// FailTarget makes CreateTarget report an incomplete framebuffer.
	FailTarget bool

	Draws    []DrawCall
	Uniforms map[uint32]renderer.Uniforms
	// UsedDeleted is set if a deleted program was ever activated.
	UsedDeleted bool
}

// New returns a fake with a 800x800 viewport.
func New() *Device {
	return &Device{
		shaders:   make(map[uint32]shaderObj),
		programs:  make(map[uint32]string),
		deleted:   make(map[uint32]bool),
		meshes:    make(map[uint32]renderer.Mesh),
		targets:   make(map[uint32]renderer.Target),
		contents:  make(map[uint32]string),
		Uniforms:  make(map[uint32]renderer.Uniforms),
		viewportW: 800,
		viewportH: 800,
	}
}

var _ renderer.Device = (*Device)(nil)

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

func (d *Device) CompileShader(stage renderer.Stage, source string) (uint32, error) {
	if strings.Contains(source, "#error") {
		return 0, &renderer.CompileError{Stage: stage, Log: "0:1(1): error: syntax error"}
	}
	id := d.id()
	d.shaders[id] = shaderObj{stage: stage, source: source}
	return id, nil
}

func (d *Device) LinkProgram(vertex, fragment uint32) (uint32, error) {
	v, okV := d.shaders[vertex]
	f, okF := d.shaders[fragment]
	if !okV || !okF || v.stage != renderer.StageVertex || f.stage != renderer.StageFragment {
		return 0, &renderer.LinkError{Log: "invalid shader objects"}
	}
	if strings.Contains(f.source, "// link-fail") {
		return 0, &renderer.LinkError{Log: "error: main() not defined"}
	}
	id := d.id()
	d.programs[id] = f.source
	return id, nil
}

func (d *Device) DeleteShader(id uint32) {
	delete(d.shaders, id)
}

func (d *Device) DeleteProgram(id uint32) {
	if _, ok := d.programs[id]; ok {
		delete(d.programs, id)
		d.deleted[id] = true
	}
	if d.program == id {
		d.program = 0
	}
}

func (d *Device) UseProgram(id uint32) {
	if d.deleted[id] {
		d.UsedDeleted = true
	}
	d.program = id
}

func (d *Device) SetUniforms(program uint32, u renderer.Uniforms) {
	d.Uniforms[program] = u
}

func (d *Device) CreateMesh(vertices []float32, indices []uint32, layout []int) (renderer.Mesh, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return renderer.Mesh{}, fmt.Errorf("empty mesh")
	}
	m := renderer.Mesh{VAO: d.id(), VBO: d.id(), EBO: d.id(), Count: int32(len(indices))}
	d.meshes[m.VAO] = m
	return m, nil
}

func (d *Device) DeleteMesh(m renderer.Mesh) {
	delete(d.meshes, m.VAO)
}

func (d *Device) DrawMesh(m renderer.Mesh) {
	out := d.shade(d.programs[d.program], d.textureColor(d.boundTexture))
	d.contents[d.boundTarget] = out
	d.Draws = append(d.Draws, DrawCall{
		Target:  d.boundTarget,
		Program: d.program,
		Texture: d.boundTexture,
		Output:  out,
	})
}

func (d *Device) shade(source, input string) string {
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if c, ok := strings.CutPrefix(line, "// out:"); ok {
			return strings.TrimSpace(c)
		}
	}
	if strings.Contains(source, "u_texture") {
		return input
	}
	return ""
}

func (d *Device) textureColor(tex uint32) string {
	if tex == 0 {
		return "0,0,0"
	}
	for fbo, t := range d.targets {
		if t.Texture == tex {
			return d.contents[fbo]
		}
	}
	return "0,0,0"
}

func (d *Device) CreateTarget(width, height int) (renderer.Target, error) {
	if d.FailTarget {
		return renderer.Target{}, renderer.ErrFramebufferIncomplete
	}
	t := renderer.Target{FBO: d.id(), Texture: d.id(), Width: width, Height: height}
	d.targets[t.FBO] = t
	return t, nil
}

func (d *Device) DeleteTarget(t renderer.Target) {
	delete(d.targets, t.FBO)
	delete(d.contents, t.FBO)
}

func (d *Device) BindTarget(fbo uint32) {
	d.boundTarget = fbo
}

func (d *Device) BindTexture(texture uint32) {
	d.boundTexture = texture
}

func (d *Device) Clear(r, g, b, a float32) {
	d.contents[d.boundTarget] = fmt.Sprintf("%g,%g,%g", r, g, b)
}

func (d *Device) SetViewport(width, height int) {
	d.viewportW, d.viewportH = width, height
}

func (d *Device) Viewport() (int, int) {
	return d.viewportW, d.viewportH
}

// ReadPixels fills the region with the bound target's color.
func (d *Device) ReadPixels(width, height int) ([]byte, error) {
	rgb := parseColor(d.contents[d.boundTarget])
	pixels := make([]byte, 0, width*height*3)
	for i := 0; i < width*height; i++ {
		pixels = append(pixels, rgb[:]...)
	}
	return pixels, nil
}

func parseColor(s string) [3]byte {
	var rgb [3]byte
	parts := strings.Split(s, ",")
	for i := 0; i < len(parts) && i < 3; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			continue
		}
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		rgb[i] = byte(f*255 + 0.5)
	}
	return rgb
}

// IsProgram reports whether id names a live program.
func (d *Device) IsProgram(id uint32) bool {
	_, ok := d.programs[id]
	return ok
}

// LiveShaders is the number of undeleted shader objects.
func (d *Device) LiveShaders() int { return len(d.shaders) }

// LivePrograms is the number of undeleted programs.
func (d *Device) LivePrograms() int { return len(d.programs) }

// LiveTargets is the number of undeleted framebuffers.
func (d *Device) LiveTargets() int { return len(d.targets) }

// LiveMeshes is the number of undeleted meshes.
func (d *Device) LiveMeshes() int { return len(d.meshes) }

// Content returns the color last written to fbo.
func (d *Device) Content(fbo uint32) string { return d.contents[fbo] }

// TextureOf returns the color texture attached to fbo.
func (d *Device) TextureOf(fbo uint32) uint32 { return d.targets[fbo].Texture }

// BoundTarget returns the framebuffer currently bound.
func (d *Device) BoundTarget() uint32 { return d.boundTarget }

// ResetDraws forgets recorded draw calls.
func (d *Device) ResetDraws() { d.Draws = nil }
