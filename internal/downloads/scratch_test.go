package downloads

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScratch_DirCreatesPerEpisode(t *testing.T) {
	scratch := NewScratch(t.TempDir())

	dir, err := scratch.Dir(7)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(scratch.Root(), "episode_7"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	again, err := scratch.Dir(7)
	require.NoError(t, err)
	assert.Equal(t, dir, again, "second call returns the same directory")
}

func TestScratch_ReleaseRemovesEverything(t *testing.T) {
	scratch := NewScratch(t.TempDir())

	dir, err := scratch.Dir(12)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stazeno.mp3"), []byte("zvuk"), 0o644))

	require.NoError(t, scratch.Release(12))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, scratch.Release(12), "releasing twice is a no-op")
}

func TestScratch_SweepRemovesOnlyStaleDirs(t *testing.T) {
	scratch := NewScratch(t.TempDir())

	stale, err := scratch.Dir(1)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(stale, "zbytek.part"), []byte("x"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh, err := scratch.Dir(2)
	require.NoError(t, err)

	removed, err := scratch.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale dir is reclaimed")
	_, err = os.Stat(fresh)
	assert.NoError(t, err, "fresh dir survives the sweep")
}

func TestScratch_SweepSkipsForeignEntries(t *testing.T) {
	root := t.TempDir()
	scratch := NewScratch(root)

	// A plain file that happens to match the prefix and a directory
	// that does not are both left alone.
	file := filepath.Join(root, "episode_9")
	require.NoError(t, os.WriteFile(file, []byte("ne adresar"), 0o644))
	other := filepath.Join(root, "jine")
	require.NoError(t, os.MkdirAll(other, 0o755))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(file, old, old))
	require.NoError(t, os.Chtimes(other, old, old))

	removed, err := scratch.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	_, err = os.Stat(file)
	assert.NoError(t, err)
	_, err = os.Stat(other)
	assert.NoError(t, err)
}
