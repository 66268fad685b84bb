package catalog

import "context"

// Camera mirrors the cameras table (spec.md §3); rows are created
// externally, this package only reads them.
type Camera struct {
	ID            int    `db:"id"`
	SerialNumber  string `db:"serial_number"`
	LensCalPath   string `db:"lens_cal_path"`
}

func (c *Catalog) CameraByID(ctx context.Context, id int) (*Camera, error) {
	var cam Camera
	err := c.timedGet(ctx, "select_camera_by_id", &cam,
		`SELECT id, serial_number, lens_cal_path FROM cameras WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &cam, nil
}
