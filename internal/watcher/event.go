package watcher

import (
	"errors"
	"os"
)

// ErrRootRemoved is delivered when the watched root is deleted or moved away.
// Notifications for paths below it stop until the directory is recreated and
// the process restarted.
var ErrRootRemoved = errors.New("watch root removed")

// Kind classifies a notification.
type Kind int

const (
	// KindOther covers every notification that does not signal a finished file.
	KindOther Kind = iota
	// KindCloseWrite means a file opened for writing has been closed.
	KindCloseWrite
	// KindRenamedTo means a file was renamed or moved and the path is its new name.
	KindRenamedTo
)

func (k Kind) String() string {
	switch k {
	case KindCloseWrite:
		return "close-write"
	case KindRenamedTo:
		return "renamed-to"
	default:
		return "other"
	}
}

// renameKind classifies a rename notification from a backend that reports
// both halves of a move the same way. Only the destination still exists.
func renameKind(path string) Kind {
	if _, err := os.Lstat(path); err != nil {
		return KindOther
	}
	return KindRenamedTo
}

// Event is a single filesystem notification.
type Event struct {
	Kind Kind
	// Op is the platform name of the notification, kept for logging.
	Op    string
	Paths []string
}

// Notification is one item of the watch stream: either an Event or an error.
type Notification struct {
	Event Event
	Err   error
}

// Source delivers notifications until closed.
type Source interface {
	Notifications() <-chan Notification
	Close() error
}
