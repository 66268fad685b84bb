package discovery

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
)

// MetadataReader extracts the EXIF fields Stage C/D need. The default
// implementation shells out to exiftool, the same metadata tool
// config.py's exiftool.path configured for the original.
type MetadataReader interface {
	CameraSerial(ctx context.Context, path string) (string, error)
	CaptureDate(ctx context.Context, path string) (time.Time, error)
}

type exiftoolReader struct {
	binPath string
	timeout time.Duration
}

func NewExiftoolReader(binPath string) MetadataReader {
	return &exiftoolReader{binPath: binPath, timeout: 10 * time.Second}
}

type exiftoolRow struct {
	CameraSerialNumber string `json:"CameraSerialNumber"`
	DateTimeOriginal   string `json:"DateTimeOriginal"`
}

func (r *exiftoolReader) run(ctx context.Context, path string) (*exiftoolRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binPath, "-j", "-CameraSerialNumber", "-DateTimeOriginal", path)
	out, err := cmd.Output()
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.TypeTransient, "exiftool failed for %s", path)
	}

	var rows []exiftoolRow
	if err := json.Unmarshal(out, &rows); err != nil || len(rows) == 0 {
		return nil, apperrors.Wrapf(err, apperrors.TypeTransient, "exiftool produced unparsable output for %s", path)
	}
	return &rows[0], nil
}

func (r *exiftoolReader) CameraSerial(ctx context.Context, path string) (string, error) {
	row, err := r.run(ctx, path)
	if err != nil {
		return "", err
	}
	if row.CameraSerialNumber == "" {
		return "", apperrors.NotFound("camera serial number tag")
	}
	return row.CameraSerialNumber, nil
}

// exifDateLayout matches exiftool's default "YYYY:MM:DD HH:MM:SS" format.
const exifDateLayout = "2006:01:02 15:04:05"

func (r *exiftoolReader) CaptureDate(ctx context.Context, path string) (time.Time, error) {
	row, err := r.run(ctx, path)
	if err != nil {
		return time.Time{}, err
	}
	raw := strings.TrimSpace(row.DateTimeOriginal)
	if raw == "" {
		return time.Time{}, apperrors.NotFound("capture date tag")
	}
	t, err := time.Parse(exifDateLayout, raw)
	if err != nil {
		return time.Time{}, apperrors.Wrapf(err, apperrors.TypeTransient, "unparsable capture date %q", raw)
	}
	return t, nil
}
