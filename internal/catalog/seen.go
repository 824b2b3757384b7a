package catalog

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// SeenFilter is a Bloom prefilter in front of reuse_job's job-identity
// lookup. A negative is authoritative and skips the SQLite round trip; a
// positive falls through to the real query. The file filter is primed from
// the files table on open, but add_hash does not consult it.
type SeenFilter struct {
	mu       sync.RWMutex
	jobs     *bloom.BloomFilter
	files    *bloom.BloomFilter
}

const (
	expectedElements  = 100000
	falsePositiveRate = 0.01
)

func NewSeenFilter() *SeenFilter {
	return &SeenFilter{
		jobs:  bloom.NewWithEstimates(expectedElements, falsePositiveRate),
		files: bloom.NewWithEstimates(expectedElements, falsePositiveRate),
	}
}

// MightHaveJob reports whether a job with this identity key may already
// be in the catalog. false is authoritative.
func (s *SeenFilter) MightHaveJob(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs.Test([]byte(key))
}

func (s *SeenFilter) AddJob(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs.Add([]byte(key))
}

func (s *SeenFilter) MightHaveFile(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files.Test([]byte(path))
}

func (s *SeenFilter) AddFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files.Add([]byte(path))
}

// loadSeenFilter primes both filters from the existing catalog on open,
// so a reopened wake.db doesn't report false negatives for rows it
// already has.
func (c *Catalog) loadSeenFilter() error {
	rows, err := c.db.Query(`SELECT directory || char(0) || commandline || char(0) || environment || char(0) || stdin FROM jobs`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		c.seen.AddJob(key)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	fileRows, err := c.db.Query(`SELECT path FROM files`)
	if err != nil {
		return err
	}
	defer fileRows.Close()
	for fileRows.Next() {
		var path string
		if err := fileRows.Scan(&path); err != nil {
			return err
		}
		c.seen.AddFile(path)
	}
	return fileRows.Err()
}
