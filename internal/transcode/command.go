package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultGracePeriod is how long an interrupted transcoder may take to exit
// before it is killed.
const DefaultGracePeriod = 10 * time.Second

// Invocation carries everything the transcoder is told about a job.
type Invocation struct {
	HWAccel string
	Input   string
	Args    []string
	Output  string
}

// Transcoder runs a single transcode and reports its outcome.
type Transcoder interface {
	Transcode(ctx context.Context, inv Invocation) Outcome
}

// CommandTranscoder runs an external ffmpeg-compatible binary.
type CommandTranscoder struct {
	Binary      string
	Stdout      io.Writer
	Stderr      io.Writer
	GracePeriod time.Duration
}

// NewCommandTranscoder returns a transcoder for binary whose output streams
// pass through to the current process.
func NewCommandTranscoder(binary string) *CommandTranscoder {
	return &CommandTranscoder{
		Binary:      binary,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		GracePeriod: DefaultGracePeriod,
	}
}

// BuildArgs returns the argument vector: -hwaccel <sel> -i <input> <args...>
// <output>. The -hwaccel pair is omitted when no selector is configured.
func BuildArgs(inv Invocation) []string {
	args := make([]string, 0, len(inv.Args)+5)
	if hw := strings.TrimSpace(inv.HWAccel); hw != "" {
		args = append(args, "-hwaccel", hw)
	}
	args = append(args, "-i", inv.Input)
	args = append(args, inv.Args...)
	args = append(args, inv.Output)
	return args
}

// Transcode blocks until the process exits. Only the exit status is
// interpreted. Cancelling ctx interrupts the process and kills it once the
// grace period elapses.
func (c *CommandTranscoder) Transcode(ctx context.Context, inv Invocation) Outcome {
	cmd := exec.CommandContext(ctx, c.Binary, BuildArgs(inv)...) //nolint:gosec
	cmd.Stdin = nil
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = c.GracePeriod
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultGracePeriod
	}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Failure(fmt.Errorf("%s interrupted: %w", c.Binary, errors.Join(ctxErr, err)))
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Failure(fmt.Errorf("%s exited with status %d: %w", c.Binary, exitErr.ExitCode(), err))
		}
		return Failure(fmt.Errorf("run %s: %w", c.Binary, err))
	}
	return Success()
}
