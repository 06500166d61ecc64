package renderer

import (
	"errors"
	"fmt"
)

var (
	ErrFramebufferIncomplete = errors.New("renderer: framebuffer incomplete")
	ErrNoProgram             = errors.New("renderer: no program compiled")
)

// FileError reports a shader source that could not be read.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("read shader %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// CompileError carries the compiler diagnostic for one stage.
type CompileError struct {
	Path  string
	Stage Stage
	Log   string
}

func (e *CompileError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s compile error: %s", e.Stage, e.Log)
	}
	return fmt.Sprintf("%s: %s compile error: %s", e.Path, e.Stage, e.Log)
}

// LinkError carries the linker diagnostic.
type LinkError struct {
	Path string
	Log  string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("%s: link failed: %s", e.Path, e.Log)
}

// SetupError is a fatal startup failure.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }
