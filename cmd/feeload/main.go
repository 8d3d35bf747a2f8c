package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/gyeh/feeschedule/internal/exitcode"
)

// exitError carries the process exit code of a failed command. Commands
// return it instead of calling os.Exit so deferred cleanup always runs.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func fail(code int, err error) error {
	return &exitError{code: code, err: err}
}

func main() {
	os.Exit(exitCode(rootCmd.Execute()))
}

func exitCode(err error) int {
	if err == nil {
		return exitcode.Success
	}
	var ee *exitError
	if errors.As(err, &ee) {
		log.Error().Err(ee.err).Int("exit_code", ee.code).Msg("feeload failed")
		return ee.code
	}
	// Flag and argument errors from cobra.
	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitcode.UsageError
}
