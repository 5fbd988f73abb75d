//go:build !linux

package watcher

import "github.com/rjeczalik/notify"

// Portable backends (FSEvents, kqueue, ReadDirectoryChangesW) do not report
// close-after-write or rename direction. Write stands in for close-write, and
// a Rename counts only when its path still exists afterwards.
var subscribedEvents = []notify.Event{
	notify.Create,
	notify.Write,
	notify.Rename,
	notify.Remove,
}

func classify(e notify.Event, path string) Kind {
	switch {
	case e&notify.Write != 0:
		return KindCloseWrite
	case e&notify.Rename != 0:
		return renameKind(path)
	default:
		return KindOther
	}
}

func isSelfRemoval(e notify.Event) bool {
	return e&(notify.Remove|notify.Rename) != 0
}
