package transcode

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Job is a single detected file waiting to be transcoded. Jobs are consumed
// exactly once and never retried.
type Job struct {
	ID       string
	Input    string
	Detected time.Time
}

// NewJob stamps a job for input with a fresh correlation id.
func NewJob(input string, detected time.Time) Job {
	return Job{ID: uuid.NewString(), Input: input, Detected: detected}
}

// Layout holds the three directory roots, fixed for the process lifetime.
type Layout struct {
	WatchDir      string
	StagingDir    string
	CompletionDir string
}

// Paths mirrors input's position under the watch root into the staging and
// completion roots. An input outside the watch root keeps its full path as the
// relative part.
func (l Layout) Paths(input string) (staged, final string) {
	rel := relativeTo(l.WatchDir, input)
	return filepath.Join(l.StagingDir, rel), filepath.Join(l.CompletionDir, rel)
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// Status is the terminal state of a job.
type Status int

const (
	Failed Status = iota
	Succeeded
)

func (s Status) String() string {
	if s == Succeeded {
		return "succeeded"
	}
	return "failed"
}

// Outcome is the result of a transcode attempt. Err is detail only.
type Outcome struct {
	Status Status
	Err    error
}

// Success returns a succeeded outcome.
func Success() Outcome { return Outcome{Status: Succeeded} }

// Failure returns a failed outcome carrying err as detail.
func Failure(err error) Outcome { return Outcome{Status: Failed, Err: err} }

// Succeeded reports whether the outcome is a success.
func (o Outcome) Succeeded() bool { return o.Status == Succeeded }
