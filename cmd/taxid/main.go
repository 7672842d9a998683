package main

import (
	"errors"
	"fmt"
	"os"

	"taxid/internal/runner"
	"taxid/internal/tabular"
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(exitCode(err))
}

// exitCode maps failure classes onto distinct statuses: 130 for external
// interruption, 2 for input-contract violations caught before any remote
// call, 1 for everything else.
func exitCode(err error) int {
	switch {
	case errors.Is(err, runner.ErrInterrupted):
		return 130
	case errors.Is(err, tabular.ErrMissingColumn), errors.Is(err, tabular.ErrEmptyTable):
		return 2
	default:
		return 1
	}
}
