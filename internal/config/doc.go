// Package config loads, normalizes, and validates ffwatch configuration data.
//
// It supplies defaults matching the container layout (/data/watch,
// /data/transcoding, /data/complete), reads TOML files, applies environment
// overrides such as WATCH_DIR and PUID, and expands user paths. The Config
// value is built once at startup and handed to every component; nothing else
// in the tree reads the environment.
package config
