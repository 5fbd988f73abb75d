// Package watcher subscribes to recursive filesystem notifications under a
// root directory and republishes them as a single ordered stream.
//
// It does no filtering: every notification the subscription delivers becomes
// a Notification, and removal of the root itself is reported on the same
// stream as ErrRootRemoved. Deciding which events mean "file ready" is the
// filter package's job.
package watcher
