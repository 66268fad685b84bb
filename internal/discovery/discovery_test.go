package discovery

import (
	"testing"
	"time"

	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/catalog"
	"github.com/stretchr/testify/assert"
)

func TestIsRawImageCaseInsensitive(t *testing.T) {
	assert.True(t, isRawImage("AAA.ORF"))
	assert.True(t, isRawImage("aaa.orf"))
	assert.False(t, isRawImage("AAA.JPG"))
}

func TestAggregateDatesMeanAndFlags(t *testing.T) {
	d1 := time.Unix(1000, 0).UTC()
	d2 := time.Unix(1000+2*86400, 0).UTC()

	nominal, invalid, multiple := aggregateDates([]catalog.Image{
		{Checksum: "a", CaptureDate: &d1},
		{Checksum: "b", CaptureDate: &d2},
	})

	assert.False(t, invalid)
	assert.True(t, multiple)
	assert.Equal(t, int64(87400), nominal.Unix())
}

func TestAggregateDatesSingleDateNoMultipleFlag(t *testing.T) {
	d1 := time.Unix(1000, 0).UTC()

	nominal, invalid, multiple := aggregateDates([]catalog.Image{
		{Checksum: "a", CaptureDate: &d1},
		{Checksum: "b", CaptureDate: &d1},
	})

	assert.False(t, invalid)
	assert.False(t, multiple)
	assert.Equal(t, int64(1000), nominal.Unix())
}

func TestAggregateDatesMissingMarksInvalid(t *testing.T) {
	d1 := time.Unix(1000, 0).UTC()

	nominal, invalid, multiple := aggregateDates([]catalog.Image{
		{Checksum: "a", CaptureDate: &d1},
		{Checksum: "b", CaptureDate: nil},
	})

	assert.True(t, invalid)
	assert.False(t, multiple)
	assert.Equal(t, int64(1000), nominal.Unix())
}

func TestAggregateDatesAllMissingReturnsNilNominal(t *testing.T) {
	nominal, invalid, _ := aggregateDates([]catalog.Image{
		{Checksum: "a", CaptureDate: nil},
	})

	assert.True(t, invalid)
	assert.Nil(t, nominal)
}
