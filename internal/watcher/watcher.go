package watcher

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rjeczalik/notify"
)

const defaultBuffer = 1024

// Options tunes the subscription.
type Options struct {
	// Buffer sizes the channel the notify backend writes into. The backend
	// drops notifications instead of blocking when it is full.
	Buffer int
}

// Watcher is a recursive subscription on a root directory.
type Watcher struct {
	root string
	raw  chan notify.EventInfo
	out  chan Notification
	done chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New subscribes once, recursively, to root. An error here means nothing will
// ever be delivered and callers treat it as fatal.
func New(root string, opts Options) (*Watcher, error) {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}

	w := &Watcher{
		root: abs,
		raw:  make(chan notify.EventInfo, buffer),
		out:  make(chan Notification),
		done: make(chan struct{}),
	}
	if err := notify.Watch(filepath.Join(abs, "..."), w.raw, subscribedEvents...); err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", abs, err)
	}

	w.wg.Add(1)
	go w.forward()
	return w, nil
}

// Root returns the absolute watched root.
func (w *Watcher) Root() string {
	return w.root
}

// Notifications returns the stream. It is closed by Close.
func (w *Watcher) Notifications() <-chan Notification {
	return w.out
}

// Close stops the subscription and closes the stream. It is safe to call more
// than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		notify.Stop(w.raw)
		close(w.done)
		w.wg.Wait()
		close(w.out)
	})
	return nil
}

func (w *Watcher) forward() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case info := <-w.raw:
			n := w.translate(info)
			select {
			case w.out <- n:
			case <-w.done:
				return
			}
		}
	}
}

func (w *Watcher) translate(info notify.EventInfo) Notification {
	path := info.Path()
	if isSelfRemoval(info.Event()) && filepath.Clean(path) == w.root {
		return Notification{Err: fmt.Errorf("%w: %s (%s)", ErrRootRemoved, path, info.Event())}
	}
	return Notification{Event: Event{
		Kind:  classify(info.Event(), path),
		Op:    info.Event().String(),
		Paths: []string{path},
	}}
}
