package catalog

import (
	"context"
	"time"
)

// Dive mirrors the dives table (spec.md §3).
type Dive struct {
	Path          string     `db:"path"`
	Checksum      *string    `db:"checksum"`
	NominalDate   *time.Time `db:"nominal_date"`
	InvalidImage  bool       `db:"invalid_image"`
	MultipleDate  bool       `db:"multiple_date"`
}

// UpsertDive ensures a dive row exists for path, inserted when its first
// image is discovered (spec.md §3 Dive lifecycle).
func (c *Catalog) UpsertDive(ctx context.Context, path string) error {
	_, err := c.timedExec(ctx, "insert_dive_path",
		`INSERT INTO dives (path) VALUES ($1) ON CONFLICT (path) DO NOTHING`, path)
	return err
}

func (c *Catalog) AllDives(ctx context.Context) ([]Dive, error) {
	var dives []Dive
	err := c.timedSelect(ctx, "select_all_dives", &dives,
		`SELECT path, checksum, nominal_date, invalid_image, multiple_date FROM dives`)
	return dives, err
}

// UpdateDiveChecksum stores the consolidated checksum computed in Go from
// ImagesForDive (spec.md §4.1 Stage B, §8 invariant 2).
func (c *Catalog) UpdateDiveChecksum(ctx context.Context, path, checksum string) error {
	_, err := c.timedExec(ctx, "update_dive_cksum",
		`UPDATE dives SET checksum = $1 WHERE path = $2`, checksum, path)
	return err
}

// DiveChecksumsPendingPromotion returns distinct non-null dive checksums
// that have no canonical_dives row yet.
func (c *Catalog) DiveChecksumsPendingPromotion(ctx context.Context) ([]string, error) {
	var checksums []string
	err := c.timedSelect(ctx, "select_pending_canonical_checksums", &checksums,
		`SELECT DISTINCT d.checksum FROM dives d
		 LEFT JOIN canonical_dives cd ON cd.checksum = d.checksum
		 WHERE d.checksum IS NOT NULL AND cd.checksum IS NULL`)
	return checksums, err
}

// CandidateDiveForChecksum selects one representative dive path sharing
// checksum, arbitrary but stable (lowest path, lexicographically).
func (c *Catalog) CandidateDiveForChecksum(ctx context.Context, checksum string) (string, error) {
	var path string
	err := c.timedGet(ctx, "select_candidate_dive_by_checksum", &path,
		`SELECT path FROM dives WHERE checksum = $1 ORDER BY path ASC LIMIT 1`, checksum)
	return path, err
}

// UpdateDiveDates sets the aggregated nominal date and date-quality flags
// computed in Go from each dive's member image dates (Stage D, second pass).
func (c *Catalog) UpdateDiveDates(ctx context.Context, path string, nominalDate *time.Time, invalidImage, multipleDate bool) error {
	_, err := c.timedExec(ctx, "update_dive_dates",
		`UPDATE dives SET nominal_date = $1, invalid_image = $2, multiple_date = $3 WHERE path = $4`,
		nominalDate, invalidImage, multipleDate, path)
	return err
}

// DistinctCameraIDsForDive returns the distinct non-null camera ids across a
// canonical dive's member images (Stage E).
func (c *Catalog) DistinctCameraIDsForDive(ctx context.Context, divePath string) ([]int, error) {
	var ids []int
	err := c.timedSelect(ctx, "select_cameras_per_dive", &ids,
		`SELECT DISTINCT camera_id FROM images WHERE dive_path = $1 AND camera_id IS NOT NULL`,
		divePath)
	return ids, err
}
