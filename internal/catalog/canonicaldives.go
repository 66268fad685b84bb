package catalog

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// CanonicalDive mirrors the canonical_dives table (spec.md §3).
type CanonicalDive struct {
	Checksum    string     `db:"checksum" json:"checksum"`
	DivePath    string     `db:"dive_path" json:"divePath"`
	NominalDate *time.Time `db:"nominal_date" json:"nominalDate,omitempty"`
	CameraID    *int       `db:"camera_id" json:"cameraId,omitempty"`
}

// InsertCanonicalDive is spec.md §9's resolved Open Question: the
// candidate-dive insert executes transactionally here, rather than being
// appended to a sideband SQL file as the original source did.
func (c *Catalog) InsertCanonicalDive(ctx context.Context, tx *sqlx.Tx, checksum, divePath string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO canonical_dives (checksum, dive_path) VALUES ($1, $2)
		 ON CONFLICT (checksum) DO NOTHING`,
		checksum, divePath,
	)
	return err
}

func (c *Catalog) AllCanonicalDives(ctx context.Context) ([]CanonicalDive, error) {
	var dives []CanonicalDive
	err := c.timedSelect(ctx, "select_canonical_dives", &dives,
		`SELECT checksum, dive_path, nominal_date, camera_id FROM canonical_dives`)
	return dives, err
}

func (c *Catalog) UpdateCanonicalDiveCamera(ctx context.Context, checksum string, cameraID int) error {
	_, err := c.timedExec(ctx, "update_cdive_camera",
		`UPDATE canonical_dives SET camera_id = $1 WHERE checksum = $2`, cameraID, checksum)
	return err
}

// ImagesForDiveChecksum returns every image belonging to any dive sharing
// checksum, the member-frame listing behind /api/v1/metadata/dive/{c} where
// {c} names a canonical (consolidated) dive rather than a single raw dive
// path.
func (c *Catalog) ImagesForDiveChecksum(ctx context.Context, checksum string) ([]Image, error) {
	var images []Image
	err := c.timedSelect(ctx, "select_images_for_dive_checksum", &images,
		`SELECT i.checksum, i.path, i.dive_path, i.camera_serial, i.camera_id, i.capture_date,
		        i.preprocess_state, i.preprocess_laser_state, i.preprocess_jpeg_path, i.preprocess_laser_jpeg_path
		 FROM images i
		 JOIN dives d ON d.path = i.dive_path
		 WHERE d.checksum = $1
		 ORDER BY i.path ASC`, checksum)
	return images, err
}
