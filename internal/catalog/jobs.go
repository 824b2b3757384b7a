package catalog

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/wake-build/wake/internal/wakehash"
)

// Signature distinguishes jobs with identical directory/commandline/env/
// stdin but different declared FnInputs/FnOutputs/Resources/Keep. They are
// different cache entries.
type Signature struct {
	FnInputs  []string
	FnOutputs []string
	Resources []string
	Keep      bool
}

// Encode produces a fixed field-order binary encoding of a Signature.
// The field order is part of the cache format: changing it changes every
// stored signature, which is equivalent to invalidating the whole cache.
func (s Signature) Encode() []byte {
	var buf bytes.Buffer
	writeStrings := func(ss []string) {
		sorted := append([]string{}, ss...)
		sort.Strings(sorted)
		binary.Write(&buf, binary.LittleEndian, uint32(len(sorted)))
		for _, v := range sorted {
			binary.Write(&buf, binary.LittleEndian, uint32(len(v)))
			buf.WriteString(v)
		}
	}
	writeStrings(s.FnInputs)
	writeStrings(s.FnOutputs)
	writeStrings(s.Resources)
	if s.Keep {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// Identity is the (directory, commandline, environment, stdin) tuple: a
// job's fingerprint minus its declared-dependency signature.
type Identity struct {
	Directory   string
	Commandline string
	Environment string
	Stdin       string
}

func (id Identity) key() string {
	return id.Directory + "\x00" + id.Commandline + "\x00" + id.Environment + "\x00" + id.Stdin
}

// Row is one `jobs` table entry, loaded back out for a cache hit.
type Row struct {
	JobID   int64
	RunID   int64
	UseID   int64
	Identity
	Signature []byte
	Label     string
	Stack     string
	EndTime   sql.NullInt64
	Keep      bool
}

// ReuseJob implements prim_job_cache's DB half. A prior job with matching
// identity+signature whose declared inputs are all in visible (the caller
// hashed them before asking) is a cache hit: use_id is advanced to the
// current run and the row is returned.
func (c *Catalog) ReuseJob(id Identity, sig Signature, visible map[string]bool) (*Row, error) {
	if !c.seen.MightHaveJob(id.key()) {
		return nil, nil
	}

	encSig := sig.Encode()
	var row Row
	var label, stack sql.NullString
	err := c.db.QueryRow(`
		SELECT job_id, run_id, use_id, directory, commandline, environment, stdin, signature, label, stack, endtime, keep
		FROM jobs
		WHERE directory=? AND commandline=? AND environment=? AND stdin=? AND signature=?
		ORDER BY job_id DESC LIMIT 1`,
		id.Directory, id.Commandline, id.Environment, id.Stdin, encSig,
	).Scan(&row.JobID, &row.RunID, &row.UseID, &row.Directory, &row.Commandline, &row.Environment, &row.Stdin, &row.Signature, &label, &stack, &row.EndTime, &row.Keep)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: reuse_job: %w", err)
	}
	if !row.Keep {
		// keep=0 means remember this job ran but never reuse it. The
		// row still exists so delete_prior/delete_overlap see it, but a
		// cache lookup always treats it as a miss.
		return nil, nil
	}
	if !row.EndTime.Valid {
		// A row that never finished isn't reusable.
		return nil, nil
	}
	row.Label = label.String
	row.Stack = stack.String

	inputs, err := c.filesFor(row.JobID, AccessInput)
	if err != nil {
		return nil, err
	}
	for _, path := range inputs {
		if !visible[path] {
			return nil, nil
		}
	}

	if err := c.withTxn(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE jobs SET use_id=? WHERE job_id=?`, c.RunID, row.JobID)
		return err
	}); err != nil {
		return nil, fmt.Errorf("catalog: advancing use_id: %w", err)
	}
	row.UseID = c.RunID
	return &row, nil
}

func (c *Catalog) filesFor(jobID int64, access Access) ([]string, error) {
	rows, err := c.db.Query(`
		SELECT f.path FROM filetree t JOIN files f ON f.file_id = t.file_id
		WHERE t.job_id=? AND t.access=?`, jobID, access)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateJob implements prim_job_create: inserts a new row under the
// current run, returning its job_id.
func (c *Catalog) CreateJob(id Identity, sig Signature, label, stack string, keep bool) (int64, error) {
	var jobID int64
	err := c.withTxn(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO jobs(run_id, use_id, directory, commandline, environment, stdin, signature, label, stack, keep)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.RunID, c.RunID, id.Directory, id.Commandline, id.Environment, id.Stdin, sig.Encode(), label, stack, boolInt(keep))
		if err != nil {
			return err
		}
		jobID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("catalog: job_create: %w", err)
	}
	c.seen.AddJob(id.key())
	return jobID, nil
}

// AddHash implements add_hash: first invalidates any job whose declared
// input at this path had a different hash (the path's content changed
// since that job ran, so its cached result is no longer trustworthy),
// then records the new (path, hash, modified) triple.
func (c *Catalog) AddHash(path string, hash wakehash.Sum, modified int64) error {
	return c.withTxn(func(tx *sql.Tx) error {
		var oldHash sql.NullString
		err := tx.QueryRow(`SELECT hash FROM files WHERE path=?`, path).Scan(&oldHash)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		if err == nil && oldHash.Valid && oldHash.String != string(hash) {
			if _, err := tx.Exec(`
				DELETE FROM jobs WHERE job_id IN (
					SELECT t.job_id FROM filetree t JOIN files f ON f.file_id = t.file_id
					WHERE f.path = ? AND t.access = ?
				)`, path, AccessInput); err != nil {
				return err
			}
		}
		_, err = tx.Exec(`
			INSERT INTO files(path, hash, modified) VALUES (?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET hash=excluded.hash, modified=excluded.modified`,
			path, string(hash), modified)
		return err
	})
}

func (c *Catalog) fileID(tx *sql.Tx, path string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT file_id FROM files WHERE path=?`, path).Scan(&id)
	if err == sql.ErrNoRows {
		res, err := tx.Exec(`INSERT INTO files(path) VALUES (?)`, path)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
	return id, err
}

// FinishJob implements prim_job_finish: marks the job row complete and
// records its declared input/output files and a stats row. A Stat without
// a Hashcode gets the BLAKE2b-256 digest of the job's identity. The
// conflict checks (DeletePrior, DeleteOverlap, DetectOverlap) are separate
// calls the caller makes afterwards.
func (c *Catalog) FinishJob(jobID int64, visible, inputs, outputs []string, stat Stat) error {
	return c.withTxn(func(tx *sql.Tx) error {
		if len(stat.Hashcode) == 0 {
			var id Identity
			if err := tx.QueryRow(`SELECT directory, commandline, environment, stdin FROM jobs WHERE job_id=?`, jobID).
				Scan(&id.Directory, &id.Commandline, &id.Environment, &id.Stdin); err != nil {
				return err
			}
			stat.Hashcode = []byte(wakehash.HashBytes([]byte(id.key())))
		}
		if err := recordFiles(tx, jobID, AccessVisible, visible); err != nil {
			return err
		}
		if err := recordFiles(tx, jobID, AccessInput, inputs); err != nil {
			return err
		}
		if err := recordFiles(tx, jobID, AccessOutput, outputs); err != nil {
			return err
		}

		res, err := tx.Exec(`
			INSERT INTO stats(hashcode, status, runtime, cputime, membytes, ibytes, obytes, pathtime)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			stat.Hashcode, stat.Status, stat.Runtime, stat.CPUTime, stat.MemBytes, stat.IBytes, stat.OBytes, stat.PathTime)
		if err != nil {
			return err
		}
		statID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`UPDATE jobs SET stat_id=?, endtime=? WHERE job_id=?`, statID, stat.EndTime, jobID); err != nil {
			return err
		}

		return nil
	})
}

func recordFiles(tx *sql.Tx, jobID int64, access Access, paths []string) error {
	for _, p := range paths {
		var id int64
		err := tx.QueryRow(`SELECT file_id FROM files WHERE path=?`, p).Scan(&id)
		if err == sql.ErrNoRows {
			res, err := tx.Exec(`INSERT INTO files(path) VALUES (?)`, p)
			if err != nil {
				return err
			}
			id, err = res.LastInsertId()
			if err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO filetree(job_id, access, file_id) VALUES (?, ?, ?)`, jobID, access, id); err != nil {
			return err
		}
	}
	return nil
}

// Stat is the per-finish row written to `stats`.
type Stat struct {
	Hashcode []byte
	Status   int
	Runtime  float64
	CPUTime  float64
	MemBytes int64
	IBytes   int64
	OBytes   int64
	PathTime sql.NullFloat64
	EndTime  int64
}

// DeletePrior removes older rows with the same identity whose run differs
// from jobID's. An identity is only worth keeping once per build.
func (c *Catalog) DeletePrior(jobID int64) error {
	return c.withTxn(func(tx *sql.Tx) error {
		var id Identity
		var runID int64
		if err := tx.QueryRow(`SELECT directory, commandline, environment, stdin, run_id FROM jobs WHERE job_id=?`, jobID).
			Scan(&id.Directory, &id.Commandline, &id.Environment, &id.Stdin, &runID); err != nil {
			return err
		}
		_, err := tx.Exec(`
			DELETE FROM jobs
			WHERE directory=? AND commandline=? AND environment=? AND stdin=?
			  AND run_id <> ? AND job_id <> ?`,
			id.Directory, id.Commandline, id.Environment, id.Stdin, runID, jobID)
		return err
	})
}

// DeleteOverlap removes any older job that produced a file this job also
// produced, except this job itself. A job used by the current run
// (use_id equal to RunID) is not removed; DetectOverlap reports it.
func (c *Catalog) DeleteOverlap(jobID int64) error {
	return c.withTxn(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			DELETE FROM jobs WHERE use_id <> ? AND job_id IN (
				SELECT DISTINCT t2.job_id
				FROM filetree t1
				JOIN filetree t2 ON t1.file_id = t2.file_id AND t2.access = ?
				WHERE t1.job_id = ? AND t1.access = ? AND t2.job_id <> ?
			)`, c.RunID, AccessOutput, jobID, AccessOutput, jobID)
		return err
	})
}

// DetectOverlap scans for peers that still share an output after
// DeleteOverlap has run; if any remain, the build must abort with a clear
// error rather than silently let two jobs race on the same output file.
func (c *Catalog) DetectOverlap(jobID int64) error {
	rows, err := c.db.Query(`
		SELECT DISTINCT f.path, t2.job_id
		FROM filetree t1
		JOIN filetree t2 ON t1.file_id = t2.file_id AND t2.access = ?
		JOIN files f ON f.file_id = t1.file_id
		WHERE t1.job_id = ? AND t1.access = ? AND t2.job_id <> ?`,
		AccessOutput, jobID, AccessOutput, jobID)
	if err != nil {
		return fmt.Errorf("catalog: detect_overlap: %w", err)
	}
	defer rows.Close()

	var conflicts []string
	for rows.Next() {
		var path string
		var peer int64
		if err := rows.Scan(&path, &peer); err != nil {
			return err
		}
		conflicts = append(conflicts, fmt.Sprintf("%s (also produced by job %d)", path, peer))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return fmt.Errorf("catalog: job %d conflicts with prior output(s): %s", jobID, strings.Join(conflicts, ", "))
	}
	return nil
}

// SetCriticalPath computes each job's critical-path runtime in reverse
// topological order over the jobs/filetree output->input dependency edges.
func (c *Catalog) SetCriticalPath() error {
	rows, err := c.db.Query(`
		SELECT j.job_id, s.runtime
		FROM jobs j LEFT JOIN stats s ON s.stat_id = j.stat_id
		ORDER BY j.job_id ASC`)
	if err != nil {
		return fmt.Errorf("catalog: setcrit_path: loading jobs: %w", err)
	}
	runtimes := map[int64]float64{}
	var order []int64
	for rows.Next() {
		var id int64
		var rt sql.NullFloat64
		if err := rows.Scan(&id, &rt); err != nil {
			rows.Close()
			return err
		}
		runtimes[id] = rt.Float64
		order = append(order, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	deps, err := c.dependencyEdges()
	if err != nil {
		return err
	}

	critical := map[int64]float64{}
	for i := len(order) - 1; i >= 0; i-- {
		job := order[i]
		best := 0.0
		for _, dep := range deps[job] {
			if critical[dep] > best {
				best = critical[dep]
			}
		}
		critical[job] = runtimes[job] + best
	}

	return c.withTxn(func(tx *sql.Tx) error {
		for job, pathtime := range critical {
			if _, err := tx.Exec(`UPDATE stats SET pathtime=? WHERE stat_id = (SELECT stat_id FROM jobs WHERE job_id=?)`, pathtime, job); err != nil {
				return err
			}
		}
		return nil
	})
}

// dependencyEdges maps a job to the jobs whose outputs it reads as inputs
// (an edge toward its dependencies, the direction setcrit_path walks in
// reverse topological order).
func (c *Catalog) dependencyEdges() (map[int64][]int64, error) {
	rows, err := c.db.Query(`
		SELECT t_in.job_id, t_out.job_id
		FROM filetree t_in
		JOIN filetree t_out ON t_out.file_id = t_in.file_id AND t_out.access = ?
		WHERE t_in.access = ?`, AccessOutput, AccessInput)
	if err != nil {
		return nil, fmt.Errorf("catalog: setcrit_path: loading edges: %w", err)
	}
	defer rows.Close()
	edges := map[int64][]int64{}
	for rows.Next() {
		var consumer, producer int64
		if err := rows.Scan(&consumer, &producer); err != nil {
			return nil, err
		}
		if consumer != producer {
			edges[consumer] = append(edges[consumer], producer)
		}
	}
	return edges, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
