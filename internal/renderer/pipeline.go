package renderer

// Pipeline draws one frame. It is either a single screen pass or a buffer
// pass into an offscreen target followed by the screen pass sampling it.
type Pipeline interface {
	// Draw renders every pass of one frame into the default framebuffer.
	Draw(u Uniforms) error
	// Shaders lists the shaders recompiled on reload, buffer pass first.
	Shaders() []*Shader
	// Screen returns the shader producing the final image.
	Screen() *Shader
	// Close releases the shaders and any offscreen target.
	Close()
}

// NewPipeline builds the single-pass variant when buffer is nil and the
// dual-pass variant otherwise. The offscreen target is sized width x height.
func NewPipeline(dev Device, quad Mesh, screen, buffer *Shader, width, height int) (Pipeline, error) {
	if buffer == nil {
		return &singlePass{dev: dev, quad: quad, screen: screen}, nil
	}

	target, err := NewOffscreenTarget(dev, width, height)
	if err != nil {
		return nil, &SetupError{Op: "framebuffer", Err: err}
	}
	return &dualPass{
		singlePass: singlePass{dev: dev, quad: quad, screen: screen},
		buffer:     buffer,
		target:     target,
	}, nil
}

type singlePass struct {
	dev    Device
	quad   Mesh
	screen *Shader
}

func (p *singlePass) Draw(u Uniforms) error {
	return p.drawScreen(u, 0)
}

// drawScreen renders the screen shader into the default framebuffer with
// input bound as its texture.
func (p *singlePass) drawScreen(u Uniforms, input uint32) error {
	p.dev.BindTarget(DefaultTarget)
	p.dev.Clear(1, 1, 1, 1)

	if err := p.screen.Use(); err != nil {
		return err
	}
	p.dev.SetUniforms(p.screen.Program(), u)
	p.dev.BindTexture(input)
	p.dev.DrawMesh(p.quad)
	return nil
}

func (p *singlePass) Shaders() []*Shader {
	return []*Shader{p.screen}
}

func (p *singlePass) Screen() *Shader {
	return p.screen
}

func (p *singlePass) Close() {
	p.screen.Delete()
}

type dualPass struct {
	singlePass

	buffer *Shader
	target Target
}

func (p *dualPass) Draw(u Uniforms) error {
	p.dev.BindTarget(p.target.FBO)
	p.dev.Clear(0, 0, 0, 1)

	if err := p.buffer.Use(); err != nil {
		p.dev.BindTarget(DefaultTarget)
		return err
	}
	p.dev.SetUniforms(p.buffer.Program(), u)
	// The target's own texture is attached for writing; sample nothing.
	p.dev.BindTexture(0)
	p.dev.DrawMesh(p.quad)

	return p.drawScreen(u, p.target.Texture)
}

func (p *dualPass) Shaders() []*Shader {
	return []*Shader{p.buffer, p.screen}
}

func (p *dualPass) Close() {
	p.buffer.Delete()
	p.singlePass.Close()
	p.dev.DeleteTarget(p.target)
}
