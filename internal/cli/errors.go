package cli

import "fmt"

// ExitError carries a process exit code out of a cobra RunE function.
//
// Commands return NewExitError(code) instead of calling os.Exit directly, so
// the code propagates up to [Execute] where it becomes the process status.
// Tests can assert on exit codes without terminating the test process.
type ExitError struct {
	// Code is the exit code to return to the shell. The release pipeline's
	// phase codes pass through here unchanged.
	Code int
}

// Error returns "exit status N", matching the os/exec format.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError reports whether err is an [ExitError], extracting its code.
func IsExitError(err error) (int, bool) {
	if exitErr, ok := err.(*ExitError); ok {
		return exitErr.Code, true
	}
	return 0, false
}
