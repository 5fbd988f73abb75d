//go:build linux

package watcher

import "github.com/rjeczalik/notify"

// inotify reports close-after-write and the destination half of a rename
// directly, so no heuristics are needed here.
var subscribedEvents = []notify.Event{
	notify.InCloseWrite,
	notify.InMovedTo,
	notify.InMovedFrom,
	notify.InCreate,
	notify.InDelete,
	notify.InDeleteSelf,
	notify.InMoveSelf,
}

func classify(e notify.Event, _ string) Kind {
	switch {
	case e&notify.InCloseWrite != 0:
		return KindCloseWrite
	case e&notify.InMovedTo != 0:
		return KindRenamedTo
	default:
		return KindOther
	}
}

func isSelfRemoval(e notify.Event) bool {
	return e&(notify.InDeleteSelf|notify.InMoveSelf) != 0
}
