package catalog

// SchemaVersion is stamped into the `schema` table on creation; opening a
// wake.db written by a different version aborts unambiguously rather than
// risk silently misinterpreting rows.
const SchemaVersion = "wake-catalog-1"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema (
	version TEXT NOT NULL,
	sipkey  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	run_id INTEGER PRIMARY KEY,
	time   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	job_id      INTEGER PRIMARY KEY,
	run_id      INTEGER NOT NULL REFERENCES runs(run_id),
	use_id      INTEGER NOT NULL,
	directory   TEXT NOT NULL,
	commandline TEXT NOT NULL,
	environment TEXT NOT NULL,
	stdin       TEXT NOT NULL,
	signature   BLOB NOT NULL,
	label       TEXT,
	stack       TEXT,
	stat_id     INTEGER,
	endtime     INTEGER,
	keep        INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS jobs_identity ON jobs(directory, commandline, environment, stdin);
CREATE INDEX IF NOT EXISTS jobs_signature ON jobs(signature);

CREATE TABLE IF NOT EXISTS files (
	file_id  INTEGER PRIMARY KEY,
	path     TEXT NOT NULL UNIQUE,
	hash     TEXT,
	modified INTEGER
);

CREATE TABLE IF NOT EXISTS filetree (
	job_id  INTEGER NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
	access  INTEGER NOT NULL,
	file_id INTEGER NOT NULL REFERENCES files(file_id),
	UNIQUE(job_id, access, file_id) ON CONFLICT IGNORE
);

CREATE TABLE IF NOT EXISTS stats (
	stat_id  INTEGER PRIMARY KEY,
	hashcode BLOB NOT NULL,
	status   INTEGER NOT NULL,
	runtime  REAL NOT NULL,
	cputime  REAL NOT NULL,
	membytes INTEGER NOT NULL,
	ibytes   INTEGER NOT NULL,
	obytes   INTEGER NOT NULL,
	pathtime REAL
);
CREATE INDEX IF NOT EXISTS stats_hashcode ON stats(hashcode, stat_id DESC);

CREATE TABLE IF NOT EXISTS log (
	log_id     INTEGER PRIMARY KEY,
	job_id     INTEGER NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
	descriptor INTEGER NOT NULL,
	seconds    REAL NOT NULL,
	output     BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS log_job ON log(job_id);
`

// Access enumerates filetree.access values.
type Access int

const (
	AccessVisible Access = iota
	AccessInput
	AccessOutput
)

// Descriptor enumerates log.descriptor values.
type Descriptor int

const (
	DescriptorStdout Descriptor = 1
	DescriptorStderr Descriptor = 2
)
