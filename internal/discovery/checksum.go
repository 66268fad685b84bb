package discovery

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/catalog"
	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
)

const checksumChunkSize = 8 * 1024

// FileChecksum returns the MD5 hex digest of path's contents, read in 8 KiB
// chunks, per spec.md §4.1 Stage A / §8 invariant 1.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.TypeTransient, "opening file for checksum")
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, checksumChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", apperrors.Wrap(err, apperrors.TypeTransient, "reading file for checksum")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DiveChecksum computes the consolidated dive checksum: sort member images
// by path, concatenate "filename:checksum\n", and MD5 the result (spec.md
// §4.1 Stage B / §8 invariant 2 / GLOSSARY "Checksum").
func DiveChecksum(images []catalog.Image) string {
	sorted := make([]catalog.Image, len(images))
	copy(sorted, images)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := md5.New()
	for _, img := range sorted {
		fmt.Fprintf(h, "%s:%s\n", filepath.Base(img.Path), img.Checksum)
	}
	return hex.EncodeToString(h.Sum(nil))
}
