// Package trigger merges the manual reload key and file-change
// notifications into one reload decision per frame.
package trigger

import "strings"

// Source identifies what requested a reload.
type Source uint8

const (
	SourceKey Source = 1 << iota
	SourceFile
)

func (s Source) String() string {
	var parts []string
	if s&SourceKey != 0 {
		parts = append(parts, "key")
	}
	if s&SourceFile != 0 {
		parts = append(parts, "file")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Poller is a non-blocking change check. Poll consumes whatever it reports.
type Poller interface {
	Poll() bool
}

// PollerFunc adapts a function to Poller.
type PollerFunc func() bool

func (f PollerFunc) Poll() bool { return f() }

// Aggregator combines the reload sources.
type Aggregator struct {
	key  Poller
	file Poller
}

// New returns an aggregator over key and file. A nil file poller disables
// file-triggered reloads; a nil key poller disables the key.
func New(key, file Poller) *Aggregator {
	return &Aggregator{key: key, file: file}
}

// FileEnabled reports whether file changes can trigger a reload.
func (a *Aggregator) FileEnabled() bool {
	return a.file != nil
}

// DisableFile turns off file-triggered reloads for the rest of the run.
func (a *Aggregator) DisableFile() {
	a.file = nil
}

// Poll checks every source once and reports which fired. Both sources are
// always consulted so no signal carries over into the next frame.
func (a *Aggregator) Poll() Source {
	var s Source
	if a.key != nil && a.key.Poll() {
		s |= SourceKey
	}
	if a.file != nil && a.file.Poll() {
		s |= SourceFile
	}
	return s
}
