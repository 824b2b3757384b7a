// Package shim implements the wake job-launch protocol: a small helper
// process that chdir's into a job's directory, wires up stdin/stdout/stderr,
// and either execve's the real command or hashes a file for the `<hash>`
// pseudo-command.
//
// The protocol is an argv convention for a separate `shim-wake` binary
// (cmd/shim-wake, built on the same Args/Run). The normal in-process path
// (internal/job.Launcher) calls Run directly via os/exec without a second
// process of its own.
package shim

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/wake-build/wake/internal/wakehash"
)

const HashCommand = "<hash>"

// Args is the parsed form of `shim-wake stdin_path stdout_fd stderr_fd
// directory cmd arg0 arg1 …`.
type Args struct {
	StdinPath string
	StdoutFD  int
	StderrFD  int
	Directory string
	Cmd       []string
}

// ParseArgs decodes a shim-wake argv (as it would be received by the
// standalone binary); used only by cmd/shim-wake, not by the in-process
// launcher.
func ParseArgs(argv []string) (Args, error) {
	if len(argv) < 5 {
		return Args{}, fmt.Errorf("shim: expected at least 5 arguments, got %d", len(argv))
	}
	outFD, err := strconv.Atoi(argv[1])
	if err != nil {
		return Args{}, fmt.Errorf("shim: bad stdout fd %q: %w", argv[1], err)
	}
	errFD, err := strconv.Atoi(argv[2])
	if err != nil {
		return Args{}, fmt.Errorf("shim: bad stderr fd %q: %w", argv[2], err)
	}
	return Args{
		StdinPath: argv[0],
		StdoutFD:  outFD,
		StderrFD:  errFD,
		Directory: argv[3],
		Cmd:       argv[4:],
	}, nil
}

// Run executes the shim protocol: chdir, bind fd0/fd1/fd2, then either
// hash a file (cmd[0] == "<hash>") or exec the real command. stdout/stderr
// are io.Writers rather than raw fds so the in-process launcher can bind
// them directly to the pipes internal/job.capture reads from, without
// going through the filesystem the way a real fd handoff would.
func Run(dir, stdinPath string, stdout, stderr io.Writer, cmd []string) (int, error) {
	if len(cmd) == 0 {
		return -1, fmt.Errorf("shim: empty command")
	}
	if cmd[0] == HashCommand {
		if len(cmd) < 2 {
			return -1, fmt.Errorf("shim: %s requires a path argument", HashCommand)
		}
		sum, err := wakehash.HashPath(cmd[1])
		if err != nil {
			return 1, err
		}
		fmt.Fprintf(stdout, "%s\n", sum)
		return 0, nil
	}

	c := exec.Command(cmd[0], cmd[1:]...)
	c.Dir = dir
	c.Stdout = stdout
	c.Stderr = stderr

	if stdinPath != "" {
		f, err := os.Open(stdinPath)
		if err != nil {
			return -1, fmt.Errorf("shim: opening stdin %q: %w", stdinPath, err)
		}
		defer f.Close()
		c.Stdin = f
	}

	if err := c.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("shim: launching %v: %w", cmd, err)
	}
	return 0, nil
}
