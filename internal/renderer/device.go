package renderer

import "github.com/go-gl/mathgl/mgl32"

// Stage is a programmable pipeline stage.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	}
	return "unknown"
}

// Mesh holds the GPU objects backing an indexed vertex array.
type Mesh struct {
	VAO   uint32
	VBO   uint32
	EBO   uint32
	Count int32
}

// Target is a framebuffer with a single color texture attachment.
type Target struct {
	FBO     uint32
	Texture uint32
	Width   int
	Height  int
}

// Uniforms is the per-frame value set supplied to every pass.
type Uniforms struct {
	Time       float32
	Frame      uint32
	Resolution mgl32.Vec2
	Mouse      mgl32.Vec2
}

// Uniform names bound on every program.
const (
	UniformTime       = "u_time"
	UniformFrame      = "u_frame"
	UniformResolution = "u_resolution"
	UniformMouse      = "u_mouse"
	UniformTexture    = "u_texture"
)

// DefaultTarget is the window's framebuffer.
const DefaultTarget uint32 = 0

// Device is the subset of the graphics API the renderer drives. All calls
// happen on the thread that owns the context.
type Device interface {
	// CompileShader compiles one stage. On failure no shader object is
	// left behind and the error carries the driver's info log.
	CompileShader(stage Stage, source string) (uint32, error)
	// LinkProgram links a new program from two compiled stages. On
	// failure the program object is deleted; the shaders are not.
	LinkProgram(vertex, fragment uint32) (uint32, error)
	DeleteShader(id uint32)
	DeleteProgram(id uint32)
	UseProgram(id uint32)
	SetUniforms(program uint32, u Uniforms)

	CreateMesh(vertices []float32, indices []uint32, layout []int) (Mesh, error)
	DeleteMesh(m Mesh)
	DrawMesh(m Mesh)

	// CreateTarget allocates a framebuffer and color texture of the given
	// size. It fails with ErrFramebufferIncomplete if validation fails.
	CreateTarget(width, height int) (Target, error)
	DeleteTarget(t Target)
	BindTarget(fbo uint32)
	BindTexture(texture uint32)

	Clear(r, g, b, a float32)
	SetViewport(width, height int)
	Viewport() (width, height int)
	ReadPixels(width, height int) ([]byte, error)
}
