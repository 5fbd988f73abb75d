// Package history keeps an append-only SQLite ledger of finished transcode
// jobs. The ledger is an audit trail for operators; nothing reads it back to
// rebuild queue state.
package history
