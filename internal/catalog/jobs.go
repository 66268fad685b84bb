package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Job mirrors the jobs table (spec.md §3).
type Job struct {
	ID         uuid.UUID `db:"id"`
	Worker     string    `db:"worker"`
	Origin     string    `db:"origin"`
	JobType    string    `db:"job_type"`
	CameraID   *int      `db:"camera_id"`
	Expiration time.Time `db:"expiration"`
	Status     int       `db:"status"`
	Progress   int       `db:"progress"`
}

// Preprocess-state column values, one per preprocess_state/
// preprocess_laser_state column, kept as plain ints so the values are
// stable on-disk constants, not Go-side enum identity.
const (
	FrameUnclaimed         = 0
	FrameClaimedPending    = 1
	FrameClaimedInProgress = 2
)

// FrameGroup is one row of a candidate pool query: the set of checksums
// sharing a camera id and dive that are eligible for a given job type. Dive
// is included in the grouping key (not named by spec.md's pool-query
// description) so each returned job record can carry the diveId its output
// contract requires without a job→frames join table.
type FrameGroup struct {
	CameraID  *int     `db:"camera_id"`
	DivePath  string   `db:"dive_path"`
	Checksums []string `db:"checksums"`
}

const headTailStateColumn = "preprocess_state"
const laserStateColumn = "preprocess_laser_state"

func stateColumnFor(jobType string) string {
	if jobType == "preprocess_with_laser" {
		return laserStateColumn
	}
	return headTailStateColumn
}

func pathColumnFor(jobType string) string {
	if jobType == "preprocess_with_laser" {
		return "preprocess_laser_jpeg_path"
	}
	return "preprocess_jpeg_path"
}

// CandidateFrames selects one row per camera id and dive holding the checksums still
// eligible for jobType, split by priority: highPriority selects frames whose
// camera id is already resolved (ready for camera-aware preprocessing);
// !highPriority selects the remaining unclaimed frames of that type. This is
// the priority criterion spec.md §4.2 leaves unspecified beyond pool
// ordering; see DESIGN.md.
func (c *Catalog) CandidateFrames(ctx context.Context, tx *sqlx.Tx, jobType string, highPriority bool, remaining int) ([]FrameGroup, error) {
	stateCol := stateColumnFor(jobType)
	pathCol := pathColumnFor(jobType)

	cameraPredicate := "camera_id IS NOT NULL"
	if !highPriority {
		cameraPredicate = "camera_id IS NULL"
	}

	query := `
		SELECT camera_id, dive_path, array_agg(checksum ORDER BY checksum) AS checksums
		FROM (
			SELECT checksum, camera_id, dive_path
			FROM images
			WHERE ` + stateCol + ` = $1 AND ` + pathCol + ` IS NULL AND ` + cameraPredicate + `
			ORDER BY checksum
			LIMIT $2
		) eligible
		GROUP BY camera_id, dive_path`

	var groups []FrameGroup
	rows, err := tx.QueryxContext(ctx, query, FrameUnclaimed, remaining)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var g FrameGroup
		if err := rows.StructScan(&g); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// InsertJob records a new lease row (spec.md §4.2 get-next-batch). camera_id
// is recorded so cancellation and the reaper can resolve exactly the frame
// group this job claimed without a separate job→frames join table (spec.md
// §1 Non-goals: no independent job-queue persistence).
func (c *Catalog) InsertJob(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, worker, origin, jobType string, cameraID *int, expiration time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO jobs (id, worker, origin, job_type, camera_id, expiration, status, progress)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, 0)`,
		id, worker, origin, jobType, cameraID, expiration,
	)
	return err
}

// ClaimFrames marks checksums as claimed-pending for jobType, the
// update_preprocess_job / update_headtail_preprocess_job statements from
// spec.md §4.2.
func (c *Catalog) ClaimFrames(ctx context.Context, tx *sqlx.Tx, jobType string, checksums []string) error {
	if len(checksums) == 0 {
		return nil
	}
	stateCol := stateColumnFor(jobType)
	query, args, err := sqlxInTx(`UPDATE images SET `+stateCol+` = ? WHERE checksum IN (?)`, FrameClaimedPending, checksums)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// UnclaimFrames resets checksums back to unclaimed, used on cancellation and
// by the reaper.
func (c *Catalog) UnclaimFrames(ctx context.Context, tx *sqlx.Tx, jobType string, checksums []string) error {
	if len(checksums) == 0 {
		return nil
	}
	stateCol := stateColumnFor(jobType)
	query, args, err := sqlxInTx(`UPDATE images SET `+stateCol+` = ? WHERE checksum IN (?)`, FrameUnclaimed, checksums)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// FramesForJob returns the checksums a job's row claimed, resolved via the
// shared state columns filtered to claimed-pending/in-progress for that
// job's type. Jobs do not persist their own frame list (spec.md §1
// Non-goals: no independent job-queue persistence); instead frames carry
// their claiming job's type, recovered here for cancel/reap.
func (c *Catalog) FramesForJob(ctx context.Context, tx *sqlx.Tx, jobType string, cameraID *int) ([]string, error) {
	stateCol := stateColumnFor(jobType)
	var checksums []string
	var err error
	if cameraID == nil {
		err = sqlxSelectTx(ctx, tx, &checksums,
			`SELECT checksum FROM images WHERE `+stateCol+` != $1 AND camera_id IS NULL`, FrameUnclaimed)
	} else {
		err = sqlxSelectTx(ctx, tx, &checksums,
			`SELECT checksum FROM images WHERE `+stateCol+` != $1 AND camera_id = $2`, FrameUnclaimed, *cameraID)
	}
	return checksums, err
}

func (c *Catalog) SetJobStatus(ctx context.Context, id uuid.UUID, status int, progress *int) error {
	if progress != nil {
		_, err := c.timedExec(ctx, "update_job_progress",
			`UPDATE jobs SET status = $1, progress = $2 WHERE id = $3`, status, *progress, id)
		return err
	}
	_, err := c.timedExec(ctx, "update_job_status",
		`UPDATE jobs SET status = $1 WHERE id = $2`, status, id)
	return err
}

func (c *Catalog) JobByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	var j Job
	err := c.timedGet(ctx, "select_job_by_id", &j,
		`SELECT id, worker, origin, job_type, camera_id, expiration, status, progress FROM jobs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// ExpiredJobs returns pending/in_progress jobs whose lease has elapsed, for
// the reaper to process (spec.md §4.2).
func (c *Catalog) ExpiredJobs(ctx context.Context, pendingStatus, inProgressStatus int) ([]Job, error) {
	var jobs []Job
	err := c.timedSelect(ctx, "select_expired_jobs", &jobs,
		`SELECT id, worker, origin, job_type, camera_id, expiration, status, progress
		 FROM jobs WHERE status IN ($1, $2) AND expiration < now()`,
		pendingStatus, inProgressStatus)
	return jobs, err
}

func sqlxInTx(query string, args ...any) (string, []any, error) {
	return sqlxIn(query, args...)
}

func sqlxSelectTx(ctx context.Context, tx *sqlx.Tx, dest any, query string, args ...any) error {
	return tx.SelectContext(ctx, dest, query, args...)
}
