package catalog

import "context"

// LaserLabel mirrors the laser_labels table (spec.md §3).
type LaserLabel struct {
	Checksum string   `db:"checksum"`
	TaskID   *int64   `db:"task_id"`
	X        *float64 `db:"x"`
	Y        *float64 `db:"y"`
	Complete bool     `db:"complete"`
}

// HeadTailLabel mirrors the headtail_labels table (spec.md §3).
type HeadTailLabel struct {
	Checksum string   `db:"checksum"`
	TaskID   *int64   `db:"task_id"`
	HeadX    *float64 `db:"head_x"`
	HeadY    *float64 `db:"head_y"`
	TailX    *float64 `db:"tail_x"`
	TailY    *float64 `db:"tail_y"`
	Complete bool     `db:"complete"`
}

// ImagesReadyForLaserLabel returns preprocessed images with no laser_labels
// row yet (spec.md §4.6).
func (c *Catalog) ImagesReadyForLaserLabel(ctx context.Context, limit int) ([]Image, error) {
	var images []Image
	err := c.timedSelect(ctx, "select_images_ready_for_laser_label", &images,
		`SELECT i.checksum, i.path, i.dive_path, i.camera_serial, i.camera_id, i.capture_date,
		        i.preprocess_state, i.preprocess_laser_state, i.preprocess_jpeg_path, i.preprocess_laser_jpeg_path
		 FROM images i
		 LEFT JOIN laser_labels l ON l.checksum = i.checksum
		 WHERE i.preprocess_laser_jpeg_path IS NOT NULL AND l.checksum IS NULL
		 LIMIT $1`, limit)
	return images, err
}

func (c *Catalog) ImagesReadyForHeadTailLabel(ctx context.Context, limit int) ([]Image, error) {
	var images []Image
	err := c.timedSelect(ctx, "select_images_ready_for_headtail_label", &images,
		`SELECT i.checksum, i.path, i.dive_path, i.camera_serial, i.camera_id, i.capture_date,
		        i.preprocess_state, i.preprocess_laser_state, i.preprocess_jpeg_path, i.preprocess_laser_jpeg_path
		 FROM images i
		 LEFT JOIN headtail_labels h ON h.checksum = i.checksum
		 WHERE i.preprocess_jpeg_path IS NOT NULL AND h.checksum IS NULL
		 LIMIT $1`, limit)
	return images, err
}

func (c *Catalog) InsertLaserLabel(ctx context.Context, checksum string, taskID int64) error {
	_, err := c.timedExec(ctx, "insert_laser_label",
		`INSERT INTO laser_labels (checksum, task_id) VALUES ($1, $2)
		 ON CONFLICT (checksum) DO UPDATE SET task_id = EXCLUDED.task_id`, checksum, taskID)
	return err
}

func (c *Catalog) InsertHeadTailLabel(ctx context.Context, checksum string, taskID int64) error {
	_, err := c.timedExec(ctx, "insert_headtaillabels",
		`INSERT INTO headtail_labels (checksum, task_id) VALUES ($1, $2)
		 ON CONFLICT (checksum) DO UPDATE SET task_id = EXCLUDED.task_id`, checksum, taskID)
	return err
}

func (c *Catalog) UpdateLaserLabel(ctx context.Context, checksum string, x, y float64) error {
	_, err := c.timedExec(ctx, "update_laser_by_cksum",
		`UPDATE laser_labels SET x = $1, y = $2, complete = TRUE WHERE checksum = $3`, x, y, checksum)
	return err
}

func (c *Catalog) UpdateHeadTailLabel(ctx context.Context, checksum string, headX, headY, tailX, tailY float64) error {
	_, err := c.timedExec(ctx, "update_headtail_labels",
		`UPDATE headtail_labels SET head_x = $1, head_y = $2, tail_x = $3, tail_y = $4, complete = TRUE
		 WHERE checksum = $5`, headX, headY, tailX, tailY, checksum)
	return err
}

func (c *Catalog) LaserLabelByChecksum(ctx context.Context, checksum string) (*LaserLabel, error) {
	var l LaserLabel
	err := c.timedGet(ctx, "select_laser_label", &l,
		`SELECT checksum, task_id, x, y, complete FROM laser_labels WHERE checksum = $1`, checksum)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Catalog) DeleteHeadTailLabel(ctx context.Context, checksum string) error {
	_, err := c.timedExec(ctx, "delete_headtail_label",
		`DELETE FROM headtail_labels WHERE checksum = $1`, checksum)
	return err
}
