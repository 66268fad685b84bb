// Package discovery implements the five-stage catalog-enrichment crawler
// (spec.md §4.1): image discovery, dive consolidation, camera serial
// resolution, image date extraction, and canonical-dive camera assignment.
package discovery

import (
	"context"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/catalog"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/metrics"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	discoveryBatchSize    = 128
	cameraSerialBatchSize = 1024
	imageDateBatchSize    = 128
)

// Crawler runs the five discovery stages in sequence against one or more
// data roots, each pass isolated so a failing stage aborts only that pass
// (spec.md §4.1 Failure policy, §5 Ordering).
type Crawler struct {
	cat       *catalog.Catalog
	meta      MetadataReader
	log       *zap.Logger
	dataRoots []string

	failedImagesLogPath string
	multiCameraLogPath  string
}

func NewCrawler(cat *catalog.Catalog, meta MetadataReader, log *zap.Logger, dataRoots []string, logDir string) *Crawler {
	return &Crawler{
		cat:                 cat,
		meta:                meta,
		log:                 log,
		dataRoots:           dataRoots,
		failedImagesLogPath: filepath.Join(logDir, "failed_images.log"),
		multiCameraLogPath:  filepath.Join(logDir, "multiple_camera_dives.log"),
	}
}

// RunPass executes stages A through E once, in order. The first stage that
// fails is logged and ends the pass; the stages after it run on the next
// pass.
func (c *Crawler) RunPass(ctx context.Context) {
	for _, root := range c.dataRoots {
		if err := c.stageA(ctx, root); err != nil {
			c.log.Error("stage A failed", zap.String("root", root), zap.Error(err))
			return
		}
	}
	if err := c.stageB(ctx); err != nil {
		c.log.Error("stage B failed", zap.Error(err))
		return
	}
	if err := c.stageC(ctx); err != nil {
		c.log.Error("stage C failed", zap.Error(err))
		return
	}
	if err := c.stageD(ctx); err != nil {
		c.log.Error("stage D failed", zap.Error(err))
		return
	}
	if err := c.stageE(ctx); err != nil {
		c.log.Error("stage E failed", zap.Error(err))
	}
}

func isRawImage(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".orf")
}

// stageA walks root for raw images, batches unknown paths, and inserts new
// image/dive rows (spec.md §4.1 Stage A).
func (c *Crawler) stageA(ctx context.Context, root string) error {
	var batch []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		defer func() { batch = batch[:0] }()
		return c.processImageBatch(ctx, root, batch)
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isRawImage(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		batch = append(batch, rel)
		if len(batch) >= discoveryBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

// processImageBatch groups relPaths by dive (parent directory), probes the
// catalog once per batch for already-known paths, and inserts the rest.
func (c *Crawler) processImageBatch(ctx context.Context, root string, relPaths []string) error {
	byDive := make(map[string][]string)
	for _, rel := range relPaths {
		dive := filepath.Dir(rel)
		byDive[dive] = append(byDive[dive], rel)
	}

	for dive, paths := range byDive {
		known, err := c.cat.KnownImagePaths(ctx, dive, paths)
		if err != nil {
			return err
		}
		diveInserted := false
		for _, rel := range paths {
			if known[rel] {
				continue
			}
			if !diveInserted {
				if err := c.cat.UpsertDive(ctx, dive); err != nil {
					return err
				}
				diveInserted = true
			}
			checksum, err := FileChecksum(filepath.Join(root, rel))
			if err != nil {
				c.log.Error("checksum failed, skipping image", zap.String("path", rel), zap.Error(err))
				continue
			}
			if err := c.cat.InsertImage(ctx, checksum, rel, dive); err != nil {
				return err
			}
		}
	}
	return nil
}

// stageB consolidates every known dive into a checksum and promotes newly
// distinct checksums to canonical_dives (spec.md §4.1 Stage B, §9 resolved
// Open Question 1: executed transactionally, not written to a sideband file).
func (c *Crawler) stageB(ctx context.Context) error {
	dives, err := c.cat.AllDives(ctx)
	if err != nil {
		return err
	}
	for _, d := range dives {
		images, err := c.cat.ImagesForDive(ctx, d.Path)
		if err != nil {
			c.log.Error("loading dive images failed", zap.String("dive", d.Path), zap.Error(err))
			continue
		}
		if len(images) == 0 {
			continue
		}
		checksum := DiveChecksum(images)
		if d.Checksum != nil && *d.Checksum == checksum {
			continue
		}
		if err := c.cat.UpdateDiveChecksum(ctx, d.Path, checksum); err != nil {
			c.log.Error("updating dive checksum failed", zap.String("dive", d.Path), zap.Error(err))
		}
	}

	pending, err := c.cat.DiveChecksumsPendingPromotion(ctx)
	if err != nil {
		return err
	}
	for _, checksum := range pending {
		divePath, err := c.cat.CandidateDiveForChecksum(ctx, checksum)
		if err != nil {
			c.log.Error("selecting candidate dive failed", zap.String("checksum", checksum), zap.Error(err))
			continue
		}
		if err := c.cat.WithTx(ctx, func(tx *sqlx.Tx) error {
			return c.cat.InsertCanonicalDive(ctx, tx, checksum, divePath)
		}); err != nil {
			c.log.Error("promoting canonical dive failed", zap.String("checksum", checksum), zap.Error(err))
			continue
		}
		metrics.DiscoveryNewCanonicalDives.Inc()
	}
	return nil
}

// resolveDataRoot joins rel against whichever configured data root actually
// holds the file, since a batch of images discovered across multiple roots
// (c.dataRoots) carries only the root-relative path (spec.md §4.1 Stage A).
func (c *Crawler) resolveDataRoot(rel string) (string, bool) {
	for _, root := range c.dataRoots {
		candidate := filepath.Join(root, rel)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// stageC resolves camera serial numbers for images lacking one (spec.md
// §4.1 Stage C).
func (c *Crawler) stageC(ctx context.Context) error {
	for {
		images, err := c.cat.ImagesWithoutCameraSerial(ctx, cameraSerialBatchSize)
		if err != nil {
			return err
		}
		if len(images) == 0 {
			return nil
		}
		for _, img := range images {
			abs, ok := c.resolveDataRoot(img.Path)
			if !ok {
				c.log.Warn("camera serial extraction failed: no data root contains image", zap.String("checksum", img.Checksum), zap.String("path", img.Path))
				continue
			}
			serial, err := c.meta.CameraSerial(ctx, abs)
			if err != nil {
				c.log.Warn("camera serial extraction failed", zap.String("checksum", img.Checksum), zap.Error(err))
				continue
			}
			if err := c.cat.UpdateImageCameraSerial(ctx, img.Checksum, serial); err != nil {
				c.log.Error("persisting camera serial failed", zap.String("checksum", img.Checksum), zap.Error(err))
			}
		}
	}
}

// stageD extracts capture dates and aggregates per-dive date quality
// (spec.md §4.1 Stage D).
func (c *Crawler) stageD(ctx context.Context) error {
	var failed []string
	for {
		images, err := c.cat.ImagesWithoutDate(ctx, imageDateBatchSize, failed)
		if err != nil {
			return err
		}
		if len(images) == 0 {
			break
		}
		for _, img := range images {
			abs, ok := c.resolveDataRoot(img.Path)
			if !ok {
				c.log.Warn("capture date extraction failed: no data root contains image", zap.String("checksum", img.Checksum), zap.String("path", img.Path))
				failed = append(failed, img.Checksum)
				continue
			}
			date, err := c.meta.CaptureDate(ctx, abs)
			if err != nil {
				c.log.Warn("capture date extraction failed", zap.String("checksum", img.Checksum), zap.Error(err))
				failed = append(failed, img.Checksum)
				continue
			}
			if err := c.cat.UpdateImageDate(ctx, img.Checksum, date); err != nil {
				c.log.Error("persisting capture date failed", zap.String("checksum", img.Checksum), zap.Error(err))
			}
		}
	}
	if len(failed) > 0 {
		c.appendLog(c.failedImagesLogPath, failed)
	}

	dives, err := c.cat.AllDives(ctx)
	if err != nil {
		return err
	}
	for _, d := range dives {
		images, err := c.cat.ImagesForDive(ctx, d.Path)
		if err != nil {
			c.log.Error("loading dive images for date aggregation failed", zap.String("dive", d.Path), zap.Error(err))
			continue
		}
		nominal, invalidImage, multipleDate := aggregateDates(images)
		if err := c.cat.UpdateDiveDates(ctx, d.Path, nominal, invalidImage, multipleDate); err != nil {
			c.log.Error("persisting dive date aggregate failed", zap.String("dive", d.Path), zap.Error(err))
		}
	}
	return nil
}

// aggregateDates computes the mean-UNIX-timestamp nominal date across a
// dive's member images and the invalid/multiple-date flags (spec.md §4.1
// Stage D, second pass). multipleDate is set when the member images fall on
// more than one calendar day (UTC).
func aggregateDates(images []catalog.Image) (nominal *time.Time, invalidImage, multipleDate bool) {
	var sum float64
	distinct := make(map[string]bool)
	count := 0
	for _, img := range images {
		if img.CaptureDate == nil {
			invalidImage = true
			continue
		}
		unix := img.CaptureDate.Unix()
		sum += float64(unix)
		distinct[img.CaptureDate.UTC().Format("2006-01-02")] = true
		count++
	}
	if len(distinct) > 1 {
		multipleDate = true
	}
	if count == 0 {
		return nil, invalidImage, multipleDate
	}
	mean := int64(math.Round(sum / float64(count)))
	t := time.Unix(mean, 0).UTC()
	return &t, invalidImage, multipleDate
}

// stageE assigns a single resolved camera to each canonical dive when its
// member images agree on exactly one camera (spec.md §4.1 Stage E).
func (c *Crawler) stageE(ctx context.Context) error {
	dives, err := c.cat.AllCanonicalDives(ctx)
	if err != nil {
		return err
	}
	var multiCamera []string
	for _, d := range dives {
		if d.CameraID != nil {
			continue
		}
		ids, err := c.cat.DistinctCameraIDsForDive(ctx, d.DivePath)
		if err != nil {
			c.log.Error("resolving dive cameras failed", zap.String("dive", d.DivePath), zap.Error(err))
			continue
		}
		switch len(ids) {
		case 0:
			continue
		case 1:
			if err := c.cat.UpdateCanonicalDiveCamera(ctx, d.Checksum, ids[0]); err != nil {
				c.log.Error("persisting canonical dive camera failed", zap.String("dive", d.DivePath), zap.Error(err))
			}
		default:
			multiCamera = append(multiCamera, d.DivePath)
		}
	}
	if len(multiCamera) > 0 {
		c.appendLog(c.multiCameraLogPath, multiCamera)
	}
	return nil
}

func (c *Crawler) appendLog(path string, lines []string) {
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		c.log.Error("opening operator log failed", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()
	for _, l := range lines {
		if _, err := f.WriteString(l + "\n"); err != nil {
			c.log.Error("writing operator log failed", zap.String("path", path), zap.Error(err))
			return
		}
	}
}
