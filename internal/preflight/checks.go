package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/arbezerra/ffwatch/internal/config"
	"github.com/arbezerra/ffwatch/internal/fileutil"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Required bool
	Detail   string
}

// RunAll executes every check for cfg.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		required(CheckBinary("Transcoder", cfg.Transcoder.Binary)),
		required(CheckDirectoryAccess("Watch directory", cfg.Paths.WatchDir, unix.R_OK|unix.X_OK)),
		required(CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir, unix.R_OK|unix.W_OK|unix.X_OK)),
		required(CheckDirectoryAccess("Completion directory", cfg.Paths.CompletionDir, unix.R_OK|unix.W_OK|unix.X_OK)),
		required(CheckDirectoryAccess("State directory", cfg.Paths.StateDir, unix.R_OK|unix.W_OK|unix.X_OK)),
		CheckSameFilesystem("Staging/completion filesystem", cfg.Paths.StagingDir, cfg.Paths.CompletionDir),
	}
	return results
}

// RequiredFailures returns the required checks that did not pass.
func RequiredFailures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Required && !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func required(r Result) Result {
	r.Required = true
	return r
}

// CheckBinary verifies that command resolves to an executable.
func CheckBinary(name, command string) Result {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return Result{Name: name, Detail: "command not configured"}
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("binary %q not found", cmd)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}

// CheckDirectoryAccess verifies that the directory exists and grants mode
// (a combination of unix.R_OK, unix.W_OK and unix.X_OK).
func CheckDirectoryAccess(name, path string, mode uint32) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s ok)", path, describeMode(mode))}
}

// CheckSameFilesystem reports whether commits from staging to completion are
// a plain rename. Different filesystems still work through a verified copy.
func CheckSameFilesystem(name, staging, completion string) Result {
	same, err := fileutil.SameFilesystem(staging, completion)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("error: %v", err)}
	}
	if !same {
		return Result{Name: name, Detail: "different filesystems; completed files are copied, not renamed"}
	}
	return Result{Name: name, Passed: true, Detail: "same filesystem; commits are atomic renames"}
}

func describeMode(mode uint32) string {
	var parts []string
	if mode&unix.R_OK != 0 {
		parts = append(parts, "read")
	}
	if mode&unix.W_OK != 0 {
		parts = append(parts, "write")
	}
	if mode&unix.X_OK != 0 {
		parts = append(parts, "search")
	}
	return strings.Join(parts, "/")
}
