package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wake-build/wake/internal/wakehash"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wake.db")
	cat, err := Open(path, false)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

// TestIdentityJobReuse: a finished job with
// identical identity+signature, whose inputs are still visible, is
// returned as a cache hit without rerunning.
func TestIdentityJobReuse(t *testing.T) {
	cat := openTestCatalog(t)

	id := Identity{Directory: ".", Commandline: "echo\x00hi", Environment: "A=1", Stdin: ""}
	sig := Signature{FnInputs: []string{"f.txt"}, Keep: true}

	jobID, err := cat.CreateJob(id, sig, "echo hi", "", true)
	require.NoError(t, err)

	require.NoError(t, cat.AddHash("f.txt", wakehash.Sum("deadbeef"), 1000))
	require.NoError(t, cat.FinishJob(jobID, []string{"f.txt"}, []string{"f.txt"}, nil, Stat{EndTime: 42}))

	row, err := cat.ReuseJob(id, sig, map[string]bool{"f.txt": true})
	require.NoError(t, err)
	require.NotNil(t, row, "identical identity+signature with all inputs visible must be a cache hit")
	require.Equal(t, jobID, row.JobID)

	again, err := cat.ReuseJob(id, sig, map[string]bool{"f.txt": true})
	require.NoError(t, err)
	require.NotNil(t, again)
	require.Equal(t, jobID, again.JobID, "repeated reuse_job must return the same job_id without rerunning")
}

// TestInputInvalidation: a changed input hash
// invalidates the cached job, so a subsequent build sees no reusable row.
func TestInputInvalidation(t *testing.T) {
	cat := openTestCatalog(t)

	id := Identity{Directory: ".", Commandline: "echo\x00hi", Environment: "", Stdin: ""}
	sig := Signature{FnInputs: []string{"f.txt"}, Keep: true}

	jobID, err := cat.CreateJob(id, sig, "echo hi", "", true)
	require.NoError(t, err)
	require.NoError(t, cat.AddHash("f.txt", wakehash.Sum("hash-v1"), 1000))
	require.NoError(t, cat.FinishJob(jobID, []string{"f.txt"}, []string{"f.txt"}, nil, Stat{EndTime: 42}))

	row, err := cat.ReuseJob(id, sig, map[string]bool{"f.txt": true})
	require.NoError(t, err)
	require.NotNil(t, row)

	// f.txt's content changes: add_hash must invalidate the job that
	// declared it as an input.
	require.NoError(t, cat.AddHash("f.txt", wakehash.Sum("hash-v2"), 2000))

	row2, err := cat.ReuseJob(id, sig, map[string]bool{"f.txt": true})
	require.NoError(t, err)
	require.Nil(t, row2, "a job whose declared input hash changed must not be reused")
}

// TestKeepFalseNeverReused: a keep=false job must never come back as a
// cache hit, even when otherwise identical, finished, and fully visible.
func TestKeepFalseNeverReused(t *testing.T) {
	cat := openTestCatalog(t)

	id := Identity{Directory: ".", Commandline: "echo\x00hi", Environment: "", Stdin: ""}
	sig := Signature{FnInputs: []string{"f.txt"}, Keep: false}

	jobID, err := cat.CreateJob(id, sig, "echo hi", "", false)
	require.NoError(t, err)

	require.NoError(t, cat.AddHash("f.txt", wakehash.Sum("deadbeef"), 1000))
	require.NoError(t, cat.FinishJob(jobID, []string{"f.txt"}, []string{"f.txt"}, nil, Stat{EndTime: 42}))

	row, err := cat.ReuseJob(id, sig, map[string]bool{"f.txt": true})
	require.NoError(t, err)
	require.Nil(t, row, "a job recorded with keep=false must never be returned as a cache hit")
}

// TestOverlapDetection: two jobs declaring the
// same output path must be flagged by DetectOverlap once the second
// finishes (after DeleteOverlap has reconciled older rows).
func TestOverlapDetection(t *testing.T) {
	cat := openTestCatalog(t)

	id1 := Identity{Directory: ".", Commandline: "gen1", Environment: "", Stdin: ""}
	id2 := Identity{Directory: ".", Commandline: "gen2", Environment: "", Stdin: ""}
	sig := Signature{Keep: true}

	job1, err := cat.CreateJob(id1, sig, "gen1", "", true)
	require.NoError(t, err)
	require.NoError(t, cat.FinishJob(job1, []string{"out.txt"}, nil, []string{"out.txt"}, Stat{EndTime: 1}))

	job2, err := cat.CreateJob(id2, sig, "gen2", "", true)
	require.NoError(t, err)
	require.NoError(t, cat.FinishJob(job2, []string{"out.txt"}, nil, []string{"out.txt"}, Stat{EndTime: 2}))
	require.NoError(t, cat.DeleteOverlap(job2))

	err = cat.DetectOverlap(job2)
	require.Error(t, err, "two jobs producing the same output must be reported as a conflict")
}
