package config

const (
	defaultWatchDir       = "/data/watch"
	defaultCompletionDir  = "/data/complete"
	defaultStagingDir     = "/data/transcoding"
	defaultStateDir       = "~/.local/share/ffwatch"
	defaultTranscoder     = "ffmpeg"
	defaultHWAccel        = "auto"
	defaultOwnerID        = 1000
	defaultWatcherBuffer  = 1024
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultConfigLocation = "~/.config/ffwatch/config.toml"
	projectConfigName     = "ffwatch.toml"
)

// DefaultExtensions is the allow-list used when none is configured.
var DefaultExtensions = []string{"mkv", "mp4", "avi", "mov", "flv"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir:      defaultWatchDir,
			CompletionDir: defaultCompletionDir,
			StagingDir:    defaultStagingDir,
			StateDir:      defaultStateDir,
		},
		Filter: Filter{
			AllowedExtensions: append([]string(nil), DefaultExtensions...),
		},
		Transcoder: Transcoder{
			Binary:  defaultTranscoder,
			HWAccel: defaultHWAccel,
		},
		Ownership: Ownership{
			UID: defaultOwnerID,
			GID: defaultOwnerID,
		},
		Commit: Commit{
			OnFailure: CommitAbort,
		},
		Watcher: Watcher{
			Buffer: defaultWatcherBuffer,
		},
		Staging: Staging{
			CleanupOnStart: true,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
