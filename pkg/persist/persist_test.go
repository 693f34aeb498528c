package persist_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

type sampleState struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	codec := persist.NewJSONCodec()

	saveErr := persist.SaveState(dir, "state", codec, &sampleState{Name: "export", Count: 7})
	require.NoError(t, saveErr)

	var loaded sampleState

	loadErr := persist.LoadState(dir, "state", codec, &loaded)
	require.NoError(t, loadErr)

	assert.Equal(t, "export", loaded.Name)
	assert.Equal(t, 7, loaded.Count)
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	err := persist.WriteJSON(filepath.Join(dir, "report.json"), map[string]int{"ok": 1})
	require.NoError(t, err)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	assert.Equal(t, "report.json", entries[0].Name())
}

func TestAtomicWriteReplacesExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, persist.WriteJSON(path, map[string]string{"v": "old"}))
	require.NoError(t, persist.WriteJSON(path, map[string]string{"v": "new"}))

	var got map[string]string

	require.NoError(t, persist.ReadJSON(path, &got))
	assert.Equal(t, "new", got["v"])
}

func TestLoadStateMissingFile(t *testing.T) {
	t.Parallel()

	var state sampleState

	err := persist.LoadState(t.TempDir(), "absent", persist.NewJSONCodec(), &state)
	assert.Error(t, err)
}

func TestWriteJSONCreatesParentDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "out.json")

	require.NoError(t, persist.WriteJSON(path, []int{1, 2, 3}))

	var got []int

	require.NoError(t, persist.ReadJSON(path, &got))
	assert.Equal(t, []int{1, 2, 3}, got)
}
