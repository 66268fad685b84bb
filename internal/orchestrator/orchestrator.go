package orchestrator

import (
	"context"
	"time"

	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/catalog"
	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/metrics"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	// OperationHeadTail and OperationLaser are the two job types
	// retrieve_batch can emit (spec.md §4.2).
	OperationHeadTail = "preprocess"
	OperationLaser    = "preprocess_with_laser"

	DefaultMaxImages    = 1000
	DefaultLeaseSeconds = 3600
)

// pool is one of the four candidate pools iterated in strict priority order.
type pool struct {
	jobType      string
	highPriority bool
}

var pools = []pool{
	{OperationHeadTail, true},
	{OperationLaser, true},
	{OperationHeadTail, false},
	{OperationLaser, false},
}

// JobRecord is one entry of a retrieve_batch response (spec.md §4.2).
type JobRecord struct {
	JobID     uuid.UUID `json:"jobId"`
	FrameIDs  []string  `json:"frameIds"`
	CameraID  *int      `json:"cameraId"`
	Operation string    `json:"operation"`
	DiveID    string    `json:"diveId"`
}

// Orchestrator issues bounded job batches, tracks status, and reaps expired
// leases (spec.md §4.2).
type Orchestrator struct {
	cat *catalog.Catalog
	log *zap.Logger
}

func New(cat *catalog.Catalog, log *zap.Logger) *Orchestrator {
	return &Orchestrator{cat: cat, log: log}
}

// GetNextBatch walks the four priority pools, accumulating frames toward
// nImages, issuing one jobs row and one claim update per returned group, all
// within a single transaction so concurrent callers never see partially
// claimed frame sets (spec.md §4.2 Ordering guarantees).
func (o *Orchestrator) GetNextBatch(ctx context.Context, worker, origin string, nImages int, leaseSeconds int) ([]JobRecord, error) {
	if nImages <= 0 {
		return nil, nil
	}
	if leaseSeconds <= 0 {
		leaseSeconds = DefaultLeaseSeconds
	}
	expiration := time.Now().Add(time.Duration(leaseSeconds) * time.Second)

	var records []JobRecord
	err := o.cat.WithTx(ctx, func(tx *sqlx.Tx) error {
		remaining := nImages
		for _, p := range pools {
			if remaining <= 0 {
				break
			}
			groups, err := o.cat.CandidateFrames(ctx, tx, p.jobType, p.highPriority, remaining)
			if err != nil {
				return err
			}
			for _, g := range groups {
				if remaining <= 0 {
					break
				}
				checksums := g.Checksums
				if len(checksums) > remaining {
					checksums = checksums[:remaining]
				}
				id := uuid.New()
				if err := o.cat.InsertJob(ctx, tx, id, worker, origin, p.jobType, g.CameraID, expiration); err != nil {
					return err
				}
				if err := o.cat.ClaimFrames(ctx, tx, p.jobType, checksums); err != nil {
					return err
				}
				records = append(records, JobRecord{
					JobID:     id,
					FrameIDs:  checksums,
					CameraID:  g.CameraID,
					Operation: p.jobType,
					DiveID:    g.DivePath,
				})
				remaining -= len(checksums)
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeTransient, "allocating job batch")
	}
	return records, nil
}

// SetJobStatus validates progress bounds and, on cancellation, returns the
// job's claimed frames to the pending pool (spec.md §4.2 set job status).
func (o *Orchestrator) SetJobStatus(ctx context.Context, id uuid.UUID, status int, progress *int) error {
	if _, ok := statusNames[status]; !ok {
		return apperrors.BadRequest("unknown job status")
	}
	if progress != nil && (*progress < 0 || *progress > 100) {
		return apperrors.BadRequest("progress must be between 0 and 100")
	}

	job, err := o.cat.JobByID(ctx, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeNotFound, "job not found")
	}

	// A terminal job never transitions again, except an expired job may
	// still settle into completed (spec.md §8 boundary property 3).
	if Terminal(job.Status) && !(job.Status == StatusExpired && status == StatusCompleted) {
		return apperrors.BadRequest("job is in a terminal status and cannot be transitioned")
	}

	if status == StatusCancelled {
		return o.cat.WithTx(ctx, func(tx *sqlx.Tx) error {
			frames, err := o.cat.FramesForJob(ctx, tx, job.JobType, job.CameraID)
			if err != nil {
				return err
			}
			if err := o.cat.UnclaimFrames(ctx, tx, job.JobType, frames); err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `UPDATE jobs SET status = $1 WHERE id = $2`, status, id)
			return err
		})
	}

	return o.cat.SetJobStatus(ctx, id, status, progress)
}

// Valid reports whether id names a known job, regardless of status
// (spec.md §4.2 Validity check).
func (o *Orchestrator) Valid(ctx context.Context, id uuid.UUID) bool {
	_, err := o.cat.JobByID(ctx, id)
	return err == nil
}

// Reap transitions every expired pending/in_progress job to expired and
// returns its claimed frames to the pending pool (spec.md §4.2 Reaper).
func (o *Orchestrator) Reap(ctx context.Context) error {
	expired, err := o.cat.ExpiredJobs(ctx, StatusPending, StatusInProgress)
	if err != nil {
		return err
	}

	for _, job := range expired {
		err := o.cat.WithTx(ctx, func(tx *sqlx.Tx) error {
			frames, err := o.cat.FramesForJob(ctx, tx, job.JobType, job.CameraID)
			if err != nil {
				return err
			}
			if err := o.cat.UnclaimFrames(ctx, tx, job.JobType, frames); err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `UPDATE jobs SET status = $1 WHERE id = $2`, StatusExpired, job.ID)
			return err
		})
		if err != nil {
			o.log.Error("reaping job failed", zap.String("job_id", job.ID.String()), zap.Error(err))
			continue
		}
		metrics.OrchestratorJobsReaped.WithLabelValues(job.JobType).Inc()
	}
	return nil
}
