// Package input names the keys the preview loop reacts to and turns held
// key state into one-shot presses.
package input

// Key is a logical key, independent of the windowing backend.
type Key int

const (
	KeyClose Key = iota
	KeyReload
	KeyScreenshot
	numKeys
)

func (k Key) String() string {
	switch k {
	case KeyClose:
		return "close"
	case KeyReload:
		return "reload"
	case KeyScreenshot:
		return "screenshot"
	}
	return "unknown"
}

// Keys lists every logical key.
func Keys() []Key {
	return []Key{KeyClose, KeyReload, KeyScreenshot}
}

// EdgeDetector reports a key once per press, however many frames it is held.
type EdgeDetector struct {
	down [numKeys]bool
}

// Update records the current state of k and reports whether it went from
// released to pressed since the previous update.
func (e *EdgeDetector) Update(k Key, down bool) bool {
	if k < 0 || k >= numKeys {
		return false
	}
	pressed := down && !e.down[k]
	e.down[k] = down
	return pressed
}
