package renderer

import "fmt"

// NewOffscreenTarget allocates the framebuffer the buffer pass renders
// into. The texture keeps this size for the lifetime of the target; window
// resizes only change the viewport.
func NewOffscreenTarget(dev Device, width, height int) (Target, error) {
	if width <= 0 || height <= 0 {
		return Target{}, fmt.Errorf("offscreen target %dx%d: %w", width, height, ErrFramebufferIncomplete)
	}
	t, err := dev.CreateTarget(width, height)
	if err != nil {
		return Target{}, fmt.Errorf("offscreen target %dx%d: %w", width, height, err)
	}
	return t, nil
}
