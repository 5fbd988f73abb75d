package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arbezerra/ffwatch/internal/config"
	"github.com/arbezerra/ffwatch/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		logLevel    string
		development bool
	)

	cmd := &cobra.Command{
		Use:   "run [flags] [-- transcoder args...]",
		Short: "Watch for new files and transcode them until interrupted",
		Long: `Run ffwatch in the foreground.

Transcoder arguments must follow a literal -- separator. Everything after it
is passed to the transcoder verbatim, between the input and the output path.
Without the separator, ffmpeg options such as -c:v are parsed as ffwatch
flags and rejected:

  ffwatch run --hwaccel vaapi -- -c:v hevc_vaapi -c:a copy`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && cmd.ArgsLenAtDash() != 0 {
				return fmt.Errorf("transcoder arguments must follow --, got %q", args)
			}
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := applyRunFlags(cmd, *base, args)
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().SetInterspersed(false)

	cmd.Flags().String("watch-dir", "", "Directory to watch (overrides paths.watch_dir)")
	cmd.Flags().String("staging-dir", "", "Directory for in-progress output (overrides paths.staging_dir)")
	cmd.Flags().String("completion-dir", "", "Directory for finished output (overrides paths.completion_dir)")
	cmd.Flags().String("extensions", "", "Comma-separated extensions to transcode (overrides filter.allowed_extensions)")
	cmd.Flags().String("hwaccel", "", "Value passed to -hwaccel (overrides transcoder.hwaccel)")
	cmd.Flags().Int("uid", 0, "Owner uid for finished files, -1 to keep (overrides ownership.uid)")
	cmd.Flags().Int("gid", 0, "Owner gid for finished files, -1 to keep (overrides ownership.gid)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log lines")
	return cmd
}

// applyRunFlags layers explicitly set flags and pass-through arguments over
// the loaded configuration and revalidates the result.
func applyRunFlags(cmd *cobra.Command, cfg config.Config, args []string) (*config.Config, error) {
	flags := cmd.Flags()
	stringFlags := []struct {
		name   string
		target *string
	}{
		{"watch-dir", &cfg.Paths.WatchDir},
		{"staging-dir", &cfg.Paths.StagingDir},
		{"completion-dir", &cfg.Paths.CompletionDir},
		{"hwaccel", &cfg.Transcoder.HWAccel},
		{"log-level", &cfg.Logging.Level},
	}
	for _, f := range stringFlags {
		if !flags.Changed(f.name) {
			continue
		}
		value, err := flags.GetString(f.name)
		if err != nil {
			return nil, err
		}
		*f.target = value
	}
	intFlags := []struct {
		name   string
		target *int
	}{
		{"uid", &cfg.Ownership.UID},
		{"gid", &cfg.Ownership.GID},
	}
	for _, f := range intFlags {
		if !flags.Changed(f.name) {
			continue
		}
		value, err := flags.GetInt(f.name)
		if err != nil {
			return nil, err
		}
		*f.target = value
	}
	if flags.Changed("extensions") {
		value, err := flags.GetString("extensions")
		if err != nil {
			return nil, err
		}
		cfg.Filter.AllowedExtensions = config.SplitList(value)
	}
	if len(args) > 0 {
		cfg.Transcoder.Args = append([]string(nil), args...)
	}

	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("apply flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
