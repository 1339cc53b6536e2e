package cmd

import "errors"

// Exit codes per spec.md §6: 0 success, 1 recoverable error (bad
// arguments, config/workflow parse failures, lock contention, a stale
// cache), 2 a submitted command's own script failed (only observable
// synchronously, via the shell scheduler), 3 the scheduler subprocess
// itself (sbatch/squeue) rejected the request.
const (
	ExitOK             = 0
	ExitError          = 1
	ExitScriptError    = 2
	ExitSchedulerError = 3
)

// codedError tags err with the process exit code Execute should return
// for it.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

// exitError wraps err with code. It returns nil when err is nil, so
// callers can write `return exitError(ExitError, doThing())` without an
// intervening if.
func exitError(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

// exitCodeOf inspects err, as returned by rootCmd.Execute(), for a tagged
// exit code, defaulting untagged errors to ExitError and nil to ExitOK.
func exitCodeOf(err error) int {
	if err == nil {
		return ExitOK
	}
	var tagged *codedError
	if errors.As(err, &tagged) {
		return tagged.code
	}
	return ExitError
}
