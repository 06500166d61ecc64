package gltest

// Clock is a manually advanced renderer.Clock.
type Clock struct {
	T      float64
	Resets int
}

func (c *Clock) Time() float64 { return c.T }

func (c *Clock) SetTime(t float64) {
	c.T = t
	c.Resets++
}

// Advance moves the clock forward by dt seconds.
func (c *Clock) Advance(dt float64) { c.T += dt }
