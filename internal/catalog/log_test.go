package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOutputRoundTrip: chunks come back per descriptor, in capture order,
// byte for byte.
func TestOutputRoundTrip(t *testing.T) {
	cat := openTestCatalog(t)

	id := Identity{Directory: ".", Commandline: "echo\x00hi", Environment: "", Stdin: ""}
	jobID, err := cat.CreateJob(id, Signature{Keep: true}, "echo hi", "", true)
	require.NoError(t, err)

	require.NoError(t, cat.SaveOutput(jobID, DescriptorStdout, []byte("chunk-1"), 0.1))
	require.NoError(t, cat.SaveOutput(jobID, DescriptorStdout, []byte("chunk-2"), 0.2))
	require.NoError(t, cat.SaveOutput(jobID, DescriptorStderr, []byte("warning"), 0.15))

	stdout, err := cat.ReadOutput(jobID, DescriptorStdout)
	require.NoError(t, err)
	require.Len(t, stdout, 2)
	assert.Equal(t, []byte("chunk-1"), stdout[0])
	assert.Equal(t, []byte("chunk-2"), stdout[1])

	stderr, err := cat.ReadOutput(jobID, DescriptorStderr)
	require.NoError(t, err)
	require.Len(t, stderr, 1)
	assert.Equal(t, []byte("warning"), stderr[0])

	none, err := cat.ReadOutput(jobID+1, DescriptorStdout)
	require.NoError(t, err)
	assert.Empty(t, none)
}
