// Package transcode executes queued jobs one at a time: it maps each input
// onto its staging and completion paths, runs the external transcoder into
// the staging tree, and then either commits the output (move and re-own) or
// discards it.
//
// The Worker is the only consumer of the job queue. Outcomes are two-state;
// the error attached to a failed outcome is for logs and the history ledger
// only.
package transcode
