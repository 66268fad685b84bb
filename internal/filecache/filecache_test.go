package filecache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeSourceFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestGetOnUnknownSourceSchedulesStagingAndReturnsSourceUnchanged(t *testing.T) {
	srcDir := t.TempDir()
	cacheDir := t.TempDir()
	src := writeSourceFile(t, srcDir, "AAA.jpg", 100)

	c, err := Open(cacheDir, 10, zap.NewNop())
	require.NoError(t, err)

	got := c.Get(src)
	assert.Equal(t, src, got)
}

func TestAddThenGetReturnsStagedPath(t *testing.T) {
	srcDir := t.TempDir()
	cacheDir := t.TempDir()
	src := writeSourceFile(t, srcDir, "AAA.jpg", 100)

	c, err := Open(cacheDir, 10, zap.NewNop())
	require.NoError(t, err)

	c.Add(context.Background(), src)

	got := c.Get(src)
	assert.NotEqual(t, src, got)
	assert.FileExists(t, got)
}

func TestRemoveDeletesStagedFileAndUpdatesOccupancy(t *testing.T) {
	srcDir := t.TempDir()
	cacheDir := t.TempDir()
	src := writeSourceFile(t, srcDir, "AAA.jpg", 100)

	c, err := Open(cacheDir, 10, zap.NewNop())
	require.NoError(t, err)
	c.Add(context.Background(), src)
	staged := c.Get(src)
	require.NotEqual(t, src, staged)

	require.NoError(t, c.Remove(src))

	_, err = os.Stat(staged)
	assert.True(t, os.IsNotExist(err))

	c.mu.Lock()
	assert.Equal(t, int64(0), c.occupied)
	c.mu.Unlock()
}

// TestEvictionRemovesOldestEntryWhenBudgetExceeded pins spec.md §8 scenario
// 6: with a zero budget every add triggers eviction, so F1 is no longer
// cached once F2 has been added and Get(F1) returns the source path.
func TestEvictionRemovesOldestEntryWhenBudgetExceeded(t *testing.T) {
	srcDir := t.TempDir()
	cacheDir := t.TempDir()
	f1 := writeSourceFile(t, srcDir, "F1.jpg", 50)
	f2 := writeSourceFile(t, srcDir, "F2.jpg", 50)

	c, err := Open(cacheDir, 0, zap.NewNop()) // budget 0 forces eviction after any add
	require.NoError(t, err)

	c.Add(context.Background(), f1)
	time.Sleep(10 * time.Millisecond)
	c.Add(context.Background(), f2)
	time.Sleep(10 * time.Millisecond)

	c.mu.Lock()
	_, f1Present := c.entries[f1]
	c.mu.Unlock()
	assert.False(t, f1Present)

	got := c.Get(f1)
	assert.Equal(t, f1, got)
}

func TestIndexPersistsAcrossReopen(t *testing.T) {
	srcDir := t.TempDir()
	cacheDir := t.TempDir()
	src := writeSourceFile(t, srcDir, "AAA.jpg", 100)

	c1, err := Open(cacheDir, 10, zap.NewNop())
	require.NoError(t, err)
	c1.Add(context.Background(), src)
	staged1 := c1.Get(src)

	c2, err := Open(cacheDir, 10, zap.NewNop())
	require.NoError(t, err)
	staged2 := c2.Get(src)

	assert.Equal(t, staged1, staged2)
}
