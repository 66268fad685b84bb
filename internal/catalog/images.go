package catalog

import (
	"context"
	"time"
)

// Image mirrors the images table (spec.md §3).
type Image struct {
	Checksum                string     `db:"checksum" json:"checksum"`
	Path                    string     `db:"path" json:"path"`
	DivePath                string     `db:"dive_path" json:"divePath"`
	CameraSerial            *string    `db:"camera_serial" json:"cameraSerial,omitempty"`
	CameraID                *int       `db:"camera_id" json:"cameraId,omitempty"`
	CaptureDate             *time.Time `db:"capture_date" json:"captureDate,omitempty"`
	PreprocessState         int        `db:"preprocess_state" json:"preprocessState"`
	PreprocessLaserState    int        `db:"preprocess_laser_state" json:"preprocessLaserState"`
	PreprocessJPEGPath      *string    `db:"preprocess_jpeg_path" json:"preprocessJpegPath,omitempty"`
	PreprocessLaserJPEGPath *string    `db:"preprocess_laser_jpeg_path" json:"preprocessLaserJpegPath,omitempty"`
}

// KnownImagePaths returns the subset of relPaths already registered under
// divePath, a single round trip per batch as required by Stage A.
func (c *Catalog) KnownImagePaths(ctx context.Context, divePath string, relPaths []string) (map[string]bool, error) {
	known := make(map[string]bool, len(relPaths))
	if len(relPaths) == 0 {
		return known, nil
	}
	query, args, err := sqlxIn(
		`SELECT path FROM images WHERE dive_path = ? AND path IN (?)`,
		divePath, relPaths,
	)
	if err != nil {
		return nil, err
	}
	var rows []string
	if err := c.timedSelect(ctx, "select_known_image_paths", &rows, query, args...); err != nil {
		return nil, err
	}
	for _, p := range rows {
		known[p] = true
	}
	return known, nil
}

// InsertImage registers a newly discovered file, one row per unknown path in
// Stage A.
func (c *Catalog) InsertImage(ctx context.Context, checksum, path, divePath string) error {
	_, err := c.timedExec(ctx,
		"insert_image",
		`INSERT INTO images (checksum, path, dive_path) VALUES ($1, $2, $3)
		 ON CONFLICT (checksum) DO NOTHING`,
		checksum, path, divePath,
	)
	return err
}

// ImagesForDive returns a dive's member images sorted by path, the exact
// ordering spec.md §4.1's dive checksum requires.
func (c *Catalog) ImagesForDive(ctx context.Context, divePath string) ([]Image, error) {
	var images []Image
	err := c.timedSelect(ctx, "select_images_for_dive", &images,
		`SELECT checksum, path, dive_path, camera_serial, camera_id, capture_date,
		        preprocess_state, preprocess_laser_state, preprocess_jpeg_path, preprocess_laser_jpeg_path
		 FROM images WHERE dive_path = $1 ORDER BY path ASC`,
		divePath,
	)
	return images, err
}

// ImagesWithoutCameraSerial selects up to limit images whose camera serial
// is unresolved (Stage C).
func (c *Catalog) ImagesWithoutCameraSerial(ctx context.Context, limit int) ([]Image, error) {
	var images []Image
	err := c.timedSelect(ctx, "select_images_without_camerasn", &images,
		`SELECT checksum, path, dive_path, camera_serial, camera_id, capture_date,
		        preprocess_state, preprocess_laser_state, preprocess_jpeg_path, preprocess_laser_jpeg_path
		 FROM images WHERE camera_serial IS NULL LIMIT $1`,
		limit,
	)
	return images, err
}

// UpdateImageCameraSerial records the extracted serial and, if a camera row
// with that serial already exists, resolves camera_id in the same
// statement.
func (c *Catalog) UpdateImageCameraSerial(ctx context.Context, checksum, serial string) error {
	_, err := c.timedExec(ctx,
		"update_image_camerasn",
		`UPDATE images SET camera_serial = $1,
		        camera_id = (SELECT id FROM cameras WHERE serial_number = $1)
		 WHERE checksum = $2`,
		serial, checksum,
	)
	return err
}

// ImagesWithoutDate selects up to limit images without a capture date,
// excluding the supplied failed set so Stage D never re-attempts a checksum
// within the same pass.
func (c *Catalog) ImagesWithoutDate(ctx context.Context, limit int, excludeChecksums []string) ([]Image, error) {
	var images []Image
	if len(excludeChecksums) == 0 {
		err := c.timedSelect(ctx, "select_next_image_for_date", &images,
			`SELECT checksum, path, dive_path, camera_serial, camera_id, capture_date,
			        preprocess_state, preprocess_laser_state, preprocess_jpeg_path, preprocess_laser_jpeg_path
			 FROM images WHERE capture_date IS NULL LIMIT $1`,
			limit,
		)
		return images, err
	}
	query, args, err := sqlxIn(
		`SELECT checksum, path, dive_path, camera_serial, camera_id, capture_date,
		        preprocess_state, preprocess_laser_state, preprocess_jpeg_path, preprocess_laser_jpeg_path
		 FROM images WHERE capture_date IS NULL AND checksum NOT IN (?) LIMIT ?`,
		excludeChecksums, limit,
	)
	if err != nil {
		return nil, err
	}
	err = c.timedSelect(ctx, "select_next_image_for_date", &images, query, args...)
	return images, err
}

func (c *Catalog) UpdateImageDate(ctx context.Context, checksum string, date time.Time) error {
	_, err := c.timedExec(ctx, "update_image_date",
		`UPDATE images SET capture_date = $1 WHERE checksum = $2`, date, checksum)
	return err
}

func (c *Catalog) UpdateImagePreprocessJPEGPath(ctx context.Context, checksum, path string) error {
	_, err := c.timedExec(ctx, "update_image_preprocess_jpeg",
		`UPDATE images SET preprocess_jpeg_path = $1 WHERE checksum = $2`, path, checksum)
	return err
}

func (c *Catalog) UpdateImageLaserJPEGPath(ctx context.Context, checksum, path string) error {
	_, err := c.timedExec(ctx, "update_image_laser_jpeg",
		`UPDATE images SET preprocess_laser_jpeg_path = $1 WHERE checksum = $2`, path, checksum)
	return err
}

// ClearImageLaserJPEGPath nulls out a laser JPEG path, the DELETE side of
// /api/v1/data/laser_jpeg/{c}.
func (c *Catalog) ClearImageLaserJPEGPath(ctx context.Context, checksum string) error {
	_, err := c.timedExec(ctx, "clear_image_laser_jpeg",
		`UPDATE images SET preprocess_laser_jpeg_path = NULL WHERE checksum = $1`, checksum)
	return err
}

func (c *Catalog) ImageByChecksum(ctx context.Context, checksum string) (*Image, error) {
	var img Image
	err := c.timedGet(ctx, "select_image_by_checksum", &img,
		`SELECT checksum, path, dive_path, camera_serial, camera_id, capture_date,
		        preprocess_state, preprocess_laser_state, preprocess_jpeg_path, preprocess_laser_jpeg_path
		 FROM images WHERE checksum = $1`,
		checksum,
	)
	if err != nil {
		return nil, err
	}
	return &img, nil
}
