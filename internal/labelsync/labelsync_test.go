package labelsync

import (
	"testing"

	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/catalog"
	"github.com/stretchr/testify/assert"
)

func TestSplitByPriorityOnResolvedCamera(t *testing.T) {
	cam := 7
	images := []catalog.Image{
		{Checksum: "a", CameraID: &cam},
		{Checksum: "b", CameraID: nil},
		{Checksum: "c", CameraID: &cam},
	}

	high, low := splitByPriority(images)

	assert.Len(t, high, 2)
	assert.Len(t, low, 1)
	assert.Equal(t, "b", low[0].Checksum)
}

func TestArtifactURLLaserVsHeadTail(t *testing.T) {
	s := &Syncer{rootURL: "https://spider.example.org"}
	img := catalog.Image{Checksum: "abc123"}

	assert.Equal(t, "https://spider.example.org/api/v1/data/laser_jpeg/abc123", s.artifactURL(img, "laser_jpeg"))
	assert.Equal(t, "https://spider.example.org/api/v1/data/preprocess_jpeg/abc123", s.artifactURL(img, "preprocess_jpeg"))
}
