package wakeutil

// RuntimeConfig and JobConfig are explicit structs built by the driver
// from CLI flags; config is threaded as plain values, not loaded through a
// config-file library.

type RuntimeConfig struct {
	Verbose         bool
	Debug           bool
	Quiet           bool
	NoWait          bool
	NoWorkspace     bool
	NoTTY           bool
	Check           bool
	StopAfterParse  bool
	StopAfterType   bool
	InputPath       string // -i/--input, explain readers
	OutputPath      string // -o/--output, explain writers
	ScriptMode      bool
	Globals         bool
	DebugDB         bool
}

type JobConfig struct {
	Jobs      int // -j N, default parallelism for the CPU-bound pool
	PoolCount int // POOLS, default 2
}

func DefaultJobConfig(njobs int) JobConfig {
	if njobs <= 0 {
		njobs = 1
	}
	return JobConfig{Jobs: njobs, PoolCount: 2}
}
