package renderer

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// glDevice implements Device on the current OpenGL context.
type glDevice struct {
	// Uniform location cache per program
	uniformCache map[uint32]map[string]int32
}

// NewGLDevice loads the OpenGL function pointers for the context current
// on the calling thread.
func NewGLDevice() (Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl init: %w", err)
	}
	return &glDevice{
		uniformCache: make(map[uint32]map[string]int32),
	}, nil
}

// Version reports the driver's GL version string.
func Version() string {
	return gl.GoStr(gl.GetString(gl.VERSION))
}

func glStage(stage Stage) uint32 {
	if stage == StageVertex {
		return gl.VERTEX_SHADER
	}
	return gl.FRAGMENT_SHADER
}

func (d *glDevice) CompileShader(stage Stage, source string) (uint32, error) {
	shader := gl.CreateShader(glStage(stage))

	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)

		return 0, &CompileError{Stage: stage, Log: strings.TrimRight(log, "\x00\n")}
	}

	return shader, nil
}

func (d *glDevice) LinkProgram(vertex, fragment uint32) (uint32, error) {
	program := gl.CreateProgram()
	gl.AttachShader(program, vertex)
	gl.AttachShader(program, fragment)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)

		return 0, &LinkError{Log: strings.TrimRight(log, "\x00\n")}
	}

	// Shaders stay owned by the caller; detach so deleting them frees them.
	gl.DetachShader(program, vertex)
	gl.DetachShader(program, fragment)

	return program, nil
}

func (d *glDevice) DeleteShader(id uint32) {
	gl.DeleteShader(id)
}

func (d *glDevice) DeleteProgram(id uint32) {
	delete(d.uniformCache, id)
	gl.DeleteProgram(id)
}

func (d *glDevice) UseProgram(id uint32) {
	gl.UseProgram(id)
}

func (d *glDevice) uniformLocation(program uint32, name string) int32 {
	cache, ok := d.uniformCache[program]
	if !ok {
		cache = make(map[string]int32)
		d.uniformCache[program] = cache
	}
	if loc, ok := cache[name]; ok {
		return loc
	}
	loc := gl.GetUniformLocation(program, gl.Str(name+"\x00"))
	cache[name] = loc
	return loc
}

// SetUniforms expects program to be in use. Inactive uniforms have
// location -1, which GL ignores.
func (d *glDevice) SetUniforms(program uint32, u Uniforms) {
	gl.Uniform1f(d.uniformLocation(program, UniformTime), u.Time)
	gl.Uniform1ui(d.uniformLocation(program, UniformFrame), u.Frame)
	gl.Uniform2fv(d.uniformLocation(program, UniformResolution), 1, &u.Resolution[0])
	gl.Uniform2fv(d.uniformLocation(program, UniformMouse), 1, &u.Mouse[0])
	gl.Uniform1i(d.uniformLocation(program, UniformTexture), 0)
}

func (d *glDevice) CreateMesh(vertices []float32, indices []uint32, layout []int) (Mesh, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return Mesh{}, fmt.Errorf("empty mesh")
	}

	var m Mesh
	gl.GenVertexArrays(1, &m.VAO)
	gl.GenBuffers(1, &m.VBO)
	gl.GenBuffers(1, &m.EBO)

	gl.BindVertexArray(m.VAO)

	gl.BindBuffer(gl.ARRAY_BUFFER, m.VBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.EBO)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)

	stride := 0
	for _, n := range layout {
		stride += n
	}
	offset := 0
	for loc, n := range layout {
		gl.VertexAttribPointerWithOffset(uint32(loc), int32(n), gl.FLOAT, false, int32(stride*4), uintptr(offset*4))
		gl.EnableVertexAttribArray(uint32(loc))
		offset += n
	}

	gl.BindVertexArray(0)

	m.Count = int32(len(indices))
	return m, nil
}

func (d *glDevice) DeleteMesh(m Mesh) {
	gl.DeleteVertexArrays(1, &m.VAO)
	gl.DeleteBuffers(1, &m.VBO)
	gl.DeleteBuffers(1, &m.EBO)
}

func (d *glDevice) DrawMesh(m Mesh) {
	gl.BindVertexArray(m.VAO)
	gl.DrawElements(gl.TRIANGLES, m.Count, gl.UNSIGNED_INT, nil)
	gl.BindVertexArray(0)
}

func (d *glDevice) CreateTarget(width, height int) (Target, error) {
	t := Target{Width: width, Height: height}

	gl.GenFramebuffers(1, &t.FBO)
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.FBO)

	gl.GenTextures(1, &t.Texture)
	gl.BindTexture(gl.TEXTURE_2D, t.Texture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGB8,
		int32(width), int32(height),
		0, gl.RGB, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.Texture, 0)

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if status != gl.FRAMEBUFFER_COMPLETE {
		d.DeleteTarget(t)
		return Target{}, fmt.Errorf("status 0x%x: %w", status, ErrFramebufferIncomplete)
	}
	return t, nil
}

func (d *glDevice) DeleteTarget(t Target) {
	gl.DeleteFramebuffers(1, &t.FBO)
	gl.DeleteTextures(1, &t.Texture)
}

func (d *glDevice) BindTarget(fbo uint32) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
}

func (d *glDevice) BindTexture(texture uint32) {
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, texture)
}

func (d *glDevice) Clear(r, g, b, a float32) {
	gl.ClearColor(r, g, b, a)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

func (d *glDevice) SetViewport(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
}

func (d *glDevice) Viewport() (int, int) {
	var vp [4]int32
	gl.GetIntegerv(gl.VIEWPORT, &vp[0])
	return int(vp[2]), int(vp[3])
}

// ReadPixels reads RGB rows from the bound framebuffer, bottom row first.
func (d *glDevice) ReadPixels(width, height int) ([]byte, error) {
	pixels := make([]byte, width*height*3)
	errCode := checkedCall(gl.GetError, func() {
		gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
		gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGB, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	})
	if errCode != gl.NO_ERROR {
		return nil, fmt.Errorf("glReadPixels: error 0x%x", errCode)
	}
	return pixels, nil
}

// maxStaleErrors bounds the drain loop; a lost context can report an
// error on every query.
const maxStaleErrors = 32

// checkedCall clears error flags left by earlier calls, runs fn, and
// returns the first error fn raised, or NO_ERROR.
func checkedCall(getError func() uint32, fn func()) uint32 {
	for i := 0; i < maxStaleErrors && getError() != gl.NO_ERROR; i++ {
	}
	fn()
	return getError()
}
