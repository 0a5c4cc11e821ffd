package process

import (
	"fmt"
	"strings"
	"time"
)

// Result holds the output and status of a completed subprocess.
type Result struct {
	// Stdout is the captured standard output.
	Stdout []byte
	// Stderr is the captured standard error.
	Stderr []byte
	// ExitCode is the process exit code. -1 if the process was killed.
	ExitCode int
	// Duration is how long the process ran.
	Duration time.Duration
}

// Output returns stdout with surrounding whitespace removed.
func (r *Result) Output() string {
	return strings.TrimSpace(string(r.Stdout))
}

// maxStderrInError caps how much stderr an ExitError message carries.
const maxStderrInError = 512

// ExitError reports a process that ran but exited non-zero.
type ExitError struct {
	Binary   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("process: %s exited with code %d", e.Binary, e.ExitCode)
	if e.Stderr == "" {
		return msg
	}
	stderr := e.Stderr
	if len(stderr) > maxStderrInError {
		stderr = "..." + stderr[len(stderr)-maxStderrInError:]
	}
	return msg + ": " + stderr
}

func (e *ExitError) Unwrap() error { return e.Err }
