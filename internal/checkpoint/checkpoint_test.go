package checkpoint_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitport/internal/checkpoint"
)

func newCheckpoint(t *testing.T) (*checkpoint.Checkpoint, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".export_checkpoint.json")

	cp, err := checkpoint.Load(path)
	require.NoError(t, err)

	return cp, path
}

func TestFreshCheckpointIsEmpty(t *testing.T) {
	t.Parallel()

	cp, _ := newCheckpoint(t)

	assert.False(t, cp.IsCompleted("issues"))
	assert.False(t, cp.ShouldResume("issues"))
	assert.EqualValues(t, 0, cp.LastProcessedItem("issues"))
}

func TestLifecycleAndReload(t *testing.T) {
	t.Parallel()

	cp, path := newCheckpoint(t)

	require.NoError(t, cp.MarkStarted("issues"))
	require.NoError(t, cp.UpdateProgress("issues", 10, 42))
	require.NoError(t, cp.MarkCompleted("issues", true, ""))

	require.NoError(t, cp.MarkStarted("merge_requests"))
	require.NoError(t, cp.UpdateProgress("merge_requests", 3, 17))

	// A reloaded checkpoint sees identical state.
	reloaded, err := checkpoint.Load(path)
	require.NoError(t, err)

	assert.True(t, reloaded.IsCompleted("issues"))
	assert.False(t, reloaded.ShouldResume("issues"))

	assert.True(t, reloaded.ShouldResume("merge_requests"))
	assert.EqualValues(t, 17, reloaded.LastProcessedItem("merge_requests"))
}

func TestLastItemIDIsMonotonic(t *testing.T) {
	t.Parallel()

	cp, _ := newCheckpoint(t)

	require.NoError(t, cp.MarkStarted("issues"))
	require.NoError(t, cp.UpdateProgress("issues", 5, 50))
	require.NoError(t, cp.UpdateProgress("issues", 6, 30))

	assert.EqualValues(t, 50, cp.LastProcessedItem("issues"))
}

func TestFailedComponentResumes(t *testing.T) {
	t.Parallel()

	cp, _ := newCheckpoint(t)

	require.NoError(t, cp.MarkStarted("releases"))
	require.NoError(t, cp.MarkCompleted("releases", false, "asset download failed"))

	assert.True(t, cp.ShouldResume("releases"))
	assert.False(t, cp.IsCompleted("releases"))
	assert.Equal(t, "asset download failed", cp.Entry("releases").Error)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	cp, _ := newCheckpoint(t)

	require.NoError(t, cp.MarkStarted("a"))
	require.NoError(t, cp.MarkCompleted("a", true, ""))
	require.NoError(t, cp.MarkStarted("b"))
	require.NoError(t, cp.MarkCompleted("b", false, "boom"))

	summary := cp.Summarize([]string{"a", "b", "c"})

	assert.Equal(t, 3, summary.TotalComponents)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Pending)
}
