package renderer

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog"
)

// statsInterval is how often, in seconds of elapsed time, frame stats are logged.
const statsInterval = 1.0

// Clock is the time source shaders animate against. It restarts at zero
// on every reload.
type Clock interface {
	Time() float64
	SetTime(t float64)
}

// FrameInput is sampled from the window once per frame.
type FrameInput struct {
	Width, Height  int
	MouseX, MouseY float64
}

// State owns the pipeline and the frame/time counters. It is the only
// thing that mutates GPU handles once the loop is running.
type State struct {
	pipeline Pipeline
	clock    Clock
	log      zerolog.Logger

	frameCount uint64
	elapsed    float64

	prevLoggedFrame uint64
	prevLoggedTime  float64
}

// NewState takes ownership of pipeline and restarts the clock.
func NewState(pipeline Pipeline, clock Clock, log zerolog.Logger) *State {
	clock.SetTime(0)
	return &State{
		pipeline: pipeline,
		clock:    clock,
		log:      log,
	}
}

// FrameCount is the number of frames presented since start or the last reload.
func (s *State) FrameCount() uint64 {
	return s.frameCount
}

// Elapsed is the time sampled for the current frame.
func (s *State) Elapsed() float64 {
	return s.elapsed
}

// Pipeline returns the active pipeline.
func (s *State) Pipeline() Pipeline {
	return s.pipeline
}

// Reload resets the counters and clock, then recompiles every shader.
// Shaders are compiled independently; a failure leaves that shader's
// previous program live. The returned error joins every failure.
func (s *State) Reload() error {
	s.frameCount = 0
	s.prevLoggedFrame = 0
	s.elapsed = 0
	s.prevLoggedTime = 0
	s.clock.SetTime(0)

	var errs []error
	for _, sh := range s.pipeline.Shaders() {
		if err := sh.Compile(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Draw samples the clock, logs stats when due, and renders every pass of
// the frame. Call EndFrame after presenting.
func (s *State) Draw(in FrameInput) error {
	s.elapsed = s.clock.Time()
	s.logStats(in)

	u := Uniforms{
		Time:       float32(s.elapsed),
		Frame:      uint32(s.frameCount),
		Resolution: mgl32.Vec2{float32(in.Width), float32(in.Height)},
		Mouse:      mgl32.Vec2{float32(in.MouseX), float32(in.MouseY)},
	}
	if err := s.pipeline.Draw(u); err != nil {
		return fmt.Errorf("draw frame %d: %w", s.frameCount, err)
	}
	return nil
}

// EndFrame advances the frame counter after the frame was presented.
func (s *State) EndFrame() {
	s.frameCount++
}

func (s *State) logStats(in FrameInput) {
	dt := s.elapsed - s.prevLoggedTime
	if dt < statsInterval {
		return
	}
	fps := float64(s.frameCount-s.prevLoggedFrame) / dt
	s.log.Info().
		Uint64("frame", s.frameCount).
		Float64("time", s.elapsed).
		Float64("fps", fps).
		Ints("viewport", []int{in.Width, in.Height}).
		Msg("Frame stats")
	s.prevLoggedFrame = s.frameCount
	s.prevLoggedTime = s.elapsed
}

// Close releases the pipeline's GPU resources.
func (s *State) Close() {
	s.pipeline.Close()
}
