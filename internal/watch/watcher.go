// Package watch reports on-disk changes to shader source files.
package watch

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ErrUnavailable is returned when the platform watcher cannot be created.
var ErrUnavailable = errors.New("watch: file watching unavailable")

// WatchError reports a path that could not be watched.
type WatchError struct {
	Path string
	Err  error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("watch %s: %v", e.Path, e.Err)
}

func (e *WatchError) Unwrap() error { return e.Err }

// Token identifies a watched file.
type Token string

// Watcher watches the directories holding shader files and latches a
// pending flag when one of the files is written or replaced. Editors that
// save by rename are covered because the parent directory is watched
// rather than the file itself.
type Watcher struct {
	watcher *fsnotify.Watcher
	log     zerolog.Logger

	mu    sync.RWMutex
	files map[string]Token // absolute path -> token
	dirs  map[string]bool

	pending   atomic.Bool
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New starts a watcher with no watched files.
func New(log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	w := &Watcher{
		watcher: fw,
		log:     log,
		files:   make(map[string]Token),
		dirs:    make(map[string]bool),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go w.watchLoop()

	return w, nil
}

// Watch adds path to the watched set.
func (w *Watcher) Watch(path string) (Token, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &WatchError{Path: path, Err: err}
	}
	abs = filepath.Clean(abs)
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if tok, ok := w.files[abs]; ok {
		return tok, nil
	}
	if !w.dirs[dir] {
		if err := w.watcher.Add(dir); err != nil {
			return "", &WatchError{Path: path, Err: err}
		}
		w.dirs[dir] = true
	}

	tok := Token(abs)
	w.files[abs] = tok
	w.log.Debug().Str("path", abs).Msg("Watching shader file")
	return tok, nil
}

// Poll reports whether any watched file changed since the last call. It
// never blocks.
func (w *Watcher) Poll() bool {
	return w.pending.Swap(false)
}

// Alive reports whether changes are still being delivered. It turns false
// for good once the underlying notifier shuts down or Close is called.
func (w *Watcher) Alive() bool {
	select {
	case <-w.stopped:
		return false
	default:
		return true
	}
}

func (w *Watcher) watchLoop() {
	defer close(w.stopped)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.mu.RLock()
			_, watched := w.files[filepath.Clean(event.Name)]
			w.mu.RUnlock()
			if watched {
				w.log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Shader file changed")
				w.pending.Store(true)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("Shader watcher error")
		}
	}
}

// Close stops the watcher. Further calls are no-ops.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.watcher.Close()
		<-w.stopped
	})
	return w.closeErr
}
