package catalog

import (
	"database/sql"
	"fmt"
)

// SaveOutput appends one captured chunk of a job's stdout or stderr to the
// log table. output arrives already compressed (internal/job.CompressOutput);
// the catalog stores bytes without interpreting them. seconds is the
// job-relative capture time of the chunk, preserving interleaving order
// for replay.
func (c *Catalog) SaveOutput(jobID int64, desc Descriptor, output []byte, seconds float64) error {
	return c.withTxn(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO log(job_id, descriptor, seconds, output) VALUES (?, ?, ?, ?)`,
			jobID, desc, seconds, output)
		return err
	})
}

// ReadOutput loads a job's logged chunks for one descriptor in capture
// order, still compressed. Replaying a cache hit concatenates the
// decompressed chunks to reproduce the original stream.
func (c *Catalog) ReadOutput(jobID int64, desc Descriptor) ([][]byte, error) {
	rows, err := c.db.Query(`SELECT output FROM log WHERE job_id=? AND descriptor=? ORDER BY log_id ASC`,
		jobID, desc)
	if err != nil {
		return nil, fmt.Errorf("catalog: reading log for job %d: %w", jobID, err)
	}
	defer rows.Close()
	var chunks [][]byte
	for rows.Next() {
		var chunk []byte
		if err := rows.Scan(&chunk); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
