package main

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ToolRunner runs external command-line tools. Media tools report results through exit
// codes, so a non-zero exit is a value, not an error; err is only set when the process
// could not be started.
type ToolRunner interface {
	// Output runs the tool and returns its stdout whatever the exit status.
	Output(name string, args ...string) ([]byte, error)
	// Run runs the tool and returns its exit code.
	Run(name string, args ...string) (int, error)
}

// execRunner runs tools as child processes with no console window.
type execRunner struct{}

func (execRunner) Output(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	hideWindow(cmd)

	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return out, nil
}

func (execRunner) Run(name string, args ...string) (int, error) {
	cmd := exec.Command(name, args...)
	hideWindow(cmd)

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return 0, fmt.Errorf("run %s %s: %w", name, strings.Join(args, " "), err)
	}
	return 0, nil
}
