// Command shim-wake is the standalone job-launch helper: it receives
// `stdin_path stdout_fd stderr_fd directory cmd arg0 …`, wires the
// descriptors, and runs the command (or the <hash> pseudo-command) via
// internal/shim. The in-process launcher calls shim.Run directly; this
// binary exists for callers that need the process boundary, e.g. running
// jobs under a different supervision regime than the wake process itself.
package main

import (
	"fmt"
	"os"

	"github.com/wake-build/wake/internal/shim"
)

func main() {
	args, err := shim.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	stdout := os.NewFile(uintptr(args.StdoutFD), "stdout-pipe")
	stderr := os.NewFile(uintptr(args.StderrFD), "stderr-pipe")
	if stdout == nil || stderr == nil {
		fmt.Fprintln(os.Stderr, "shim: bad pipe descriptors")
		os.Exit(1)
	}
	defer stdout.Close()
	defer stderr.Close()

	status, err := shim.Run(args.Directory, args.StdinPath, stdout, stderr, args.Cmd)
	if err != nil {
		fmt.Fprintln(stderr, err)
		if status < 0 {
			status = 1
		}
	}
	os.Exit(status)
}
