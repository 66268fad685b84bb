package discovery

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileChecksumMatchesMD5(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AAA.ORF")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	want := md5.Sum([]byte("hello world"))

	got, err := FileChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(want[:]), got)
}

func TestFileChecksumMissingFile(t *testing.T) {
	_, err := FileChecksum("/nonexistent/path/AAA.ORF")
	assert.Error(t, err)
}

// TestDiveChecksumUsesFilenameNotFullPath pins spec.md §8 scenario 1: two
// dive directories each containing AAA.ORF/BBB.ORF must hash to
// MD5("AAA.ORF:<hA>\nBBB.ORF:<hB>\n"), not the full relative path.
func TestDiveChecksumUsesFilenameNotFullPath(t *testing.T) {
	images := []catalog.Image{
		{Path: "dive1/BBB.ORF", Checksum: "hB"},
		{Path: "dive1/AAA.ORF", Checksum: "hA"},
	}

	want := md5.Sum([]byte(fmt.Sprintf("AAA.ORF:%s\nBBB.ORF:%s\n", "hA", "hB")))

	got := DiveChecksum(images)
	assert.Equal(t, hex.EncodeToString(want[:]), got)
}

func TestDiveChecksumIsOrderIndependentOnInput(t *testing.T) {
	a := []catalog.Image{{Path: "d/AAA.ORF", Checksum: "hA"}, {Path: "d/BBB.ORF", Checksum: "hB"}}
	b := []catalog.Image{{Path: "d/BBB.ORF", Checksum: "hB"}, {Path: "d/AAA.ORF", Checksum: "hA"}}

	assert.Equal(t, DiveChecksum(a), DiveChecksum(b))
}
