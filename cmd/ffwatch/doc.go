// Package main hosts the ffwatch CLI entrypoint and command graph.
//
// "ffwatch run" starts the watcher daemon in the foreground; the remaining
// commands inspect its environment (check), its job ledger (history), and its
// configuration (config init, config validate). Configuration resolution is
// centralized in commandContext so subcommands only apply their own flags.
package main
