// internal/renderer/shader.go
//
// Shader compilation and hot-swap of the live program
package renderer

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// vertexSrc is the fixed vertex stage shared by every program: it passes
// positions through and forwards texture coordinates.
const vertexSrc = `#version 330 core
layout (location = 0) in vec3 aPos;
layout (location = 1) in vec2 aTexCoord;
out vec2 TexCoord;
void main()
{
  gl_Position = vec4(aPos, 1.0);
  TexCoord = aTexCoord;
}
`

// Shader owns the program built from the fixed vertex stage and one
// user-supplied fragment source file.
//
// The program is either zero or a fully linked program; a failed
// compile leaves it untouched.
type Shader struct {
	dev  Device
	log  zerolog.Logger
	path string

	program    uint32
	watchToken string
}

// NewShader creates a shader for the fragment source at path. Nothing is
// compiled until Compile is called.
func NewShader(dev Device, path string, log zerolog.Logger) *Shader {
	return &Shader{
		dev:  dev,
		log:  log.With().Str("shader", path).Logger(),
		path: path,
	}
}

// Path returns the fragment source path.
func (s *Shader) Path() string {
	return s.path
}

// WatchToken identifies the file watch registered for this shader's
// source, empty when the file is not watched.
func (s *Shader) WatchToken() string {
	return s.watchToken
}

// SetWatchToken records the file watch registered for the source.
func (s *Shader) SetWatchToken(tok string) {
	s.watchToken = tok
}

// Program returns the live program, zero if none compiled yet.
func (s *Shader) Program() uint32 {
	return s.program
}

// Compile reads the fragment source, builds a new program, and swaps it in
// for the current one. On any failure the current program stays live.
func (s *Shader) Compile() error {
	s.log.Debug().Msg("Compiling")

	fragSrc, err := os.ReadFile(s.path)
	if err != nil {
		err = &FileError{Path: s.path, Err: err}
		s.log.Error().Err(err).Msg("Could not load fragment shader")
		return err
	}

	program, err := s.build(string(fragSrc))
	if err != nil {
		var compileErr *CompileError
		var linkErr *LinkError
		switch {
		case errors.As(err, &compileErr):
			s.log.Error().Str("stage", compileErr.Stage.String()).Str("log", compileErr.Log).Msg("Shader compilation failed")
		case errors.As(err, &linkErr):
			s.log.Error().Str("log", linkErr.Log).Msg("Shader program linking failed")
		default:
			s.log.Error().Err(err).Msg("Shader build failed")
		}
		return err
	}

	// Swap program ID
	old := s.program
	s.program = program
	if old != 0 {
		s.dev.DeleteProgram(old)
	}

	s.log.Info().Uint32("program", program).Msg("Shaders compiled successfully")
	return nil
}

// build compiles both stages and links them into a new program object.
// Stage objects never outlive the call.
func (s *Shader) build(fragSrc string) (uint32, error) {
	vert, err := s.dev.CompileShader(StageVertex, vertexSrc)
	if err != nil {
		return 0, s.stageError(StageVertex, err)
	}
	defer s.dev.DeleteShader(vert)

	frag, err := s.dev.CompileShader(StageFragment, fragSrc)
	if err != nil {
		return 0, s.stageError(StageFragment, err)
	}
	defer s.dev.DeleteShader(frag)

	program, err := s.dev.LinkProgram(vert, frag)
	if err != nil {
		var linkErr *LinkError
		if errors.As(err, &linkErr) {
			return 0, &LinkError{Path: s.path, Log: linkErr.Log}
		}
		return 0, &LinkError{Path: s.path, Log: err.Error()}
	}
	return program, nil
}

func (s *Shader) stageError(stage Stage, err error) error {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &CompileError{Path: s.path, Stage: stage, Log: compileErr.Log}
	}
	return &CompileError{Path: s.path, Stage: stage, Log: err.Error()}
}

// Use activates the live program.
func (s *Shader) Use() error {
	if s.program == 0 {
		return fmt.Errorf("%s: %w", s.path, ErrNoProgram)
	}
	s.dev.UseProgram(s.program)
	return nil
}

// Delete releases the live program.
func (s *Shader) Delete() {
	if s.program != 0 {
		s.dev.DeleteProgram(s.program)
		s.program = 0
	}
}
