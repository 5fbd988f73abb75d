// Package preflight provides readiness checks for the transcoder binary and
// the directory roots ffwatch depends on.
//
// These checks run in two contexts:
//   - The daemon runtime calls RunAll at startup and logs every failure as a
//     warning; nothing is halted.
//   - The CLI "ffwatch check" command renders the same results as a table and
//     exits non-zero when a required check fails.
package preflight
