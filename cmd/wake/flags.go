package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/wake-build/wake/internal/wakeutil"
)

// version is stamped by the release build; "dev" otherwise.
var version = "dev"

// parseFlags turns argv into the driver's two config structs plus the
// --init directory (empty when not initializing) and the remaining
// positional arguments (target expressions, or file paths in script
// mode). Usage errors return an error rather than calling os.Exit so
// main owns the exit code; --version is the one short-circuit.
func parseFlags(argv []string) (wakeutil.RuntimeConfig, wakeutil.JobConfig, string, []string, error) {
	var cfg wakeutil.RuntimeConfig
	jobCfg := wakeutil.DefaultJobConfig(runtime.NumCPU())

	fs := flag.NewFlagSet("wake", flag.ContinueOnError)
	fs.IntVar(&jobCfg.Jobs, "j", jobCfg.Jobs, "maximum simultaneous jobs in the CPU-bound pool")
	fs.BoolVar(&cfg.Check, "c", false, "rerun cached jobs and audit their output for reproducibility")
	fs.BoolVar(&cfg.Check, "check", false, "alias for -c")
	fs.BoolVar(&cfg.Verbose, "v", false, "report progress per job")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "alias for -v")
	fs.BoolVar(&cfg.Debug, "d", false, "report everything, including evaluator internals")
	fs.BoolVar(&cfg.Debug, "debug", false, "alias for -d")
	fs.BoolVar(&cfg.Quiet, "q", false, "report errors only")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "alias for -q")
	fs.BoolVar(&cfg.NoWait, "no-wait", false, "fail instead of waiting when wake.db is locked by another wake")
	fs.BoolVar(&cfg.NoWorkspace, "no-workspace", false, "scan the directory tree instead of asking git for tracked files")
	fs.BoolVar(&cfg.NoTTY, "no-tty", false, "plain output, no color")
	fs.StringVar(&cfg.InputPath, "i", "", "explain which jobs read `PATH`")
	fs.StringVar(&cfg.InputPath, "input", "", "alias for -i")
	fs.StringVar(&cfg.OutputPath, "o", "", "explain which jobs wrote `PATH`")
	fs.StringVar(&cfg.OutputPath, "output", "", "alias for -o")
	fs.BoolVar(&cfg.ScriptMode, "s", false, "treat positional arguments as script files")
	fs.BoolVar(&cfg.ScriptMode, "script", false, "alias for -s")
	fs.BoolVar(&cfg.Globals, "g", false, "list global definitions and their types")
	fs.BoolVar(&cfg.Globals, "globals", false, "alias for -g")
	fs.BoolVar(&cfg.DebugDB, "debug-db", false, "trace every catalog statement")
	fs.BoolVar(&cfg.StopAfterParse, "stop-after-parse", false, "stop once every file parses")
	fs.BoolVar(&cfg.StopAfterType, "stop-after-type-check", false, "stop once the program typechecks")
	initDir := fs.String("init", "", "scaffold a new workspace in `DIR` and exit")
	showVersion := fs.Bool("version", false, "print the version and exit")

	if err := fs.Parse(argv); err != nil {
		return cfg, jobCfg, "", nil, err
	}
	if *showVersion {
		fmt.Println("wake", version)
		os.Exit(0)
	}
	if jobCfg.Jobs <= 0 {
		return cfg, jobCfg, "", nil, fmt.Errorf("-j must be positive, got %d", jobCfg.Jobs)
	}
	modes := 0
	for _, b := range []bool{cfg.Verbose, cfg.Debug, cfg.Quiet} {
		if b {
			modes++
		}
	}
	if modes > 1 {
		return cfg, jobCfg, "", nil, fmt.Errorf("-v, -d and -q are mutually exclusive")
	}
	return cfg, jobCfg, *initDir, fs.Args(), nil
}
