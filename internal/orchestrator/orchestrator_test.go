package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/catalog"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newMockOrchestrator wires an Orchestrator against go-sqlmock. Coverage here
// is limited to paths that don't round-trip a Postgres array column
// (array_agg checksums): CandidateFrames' StructScan depends on pgx's native
// array decoding, which sqlmock's generic driver doesn't reproduce, so the
// happy-path batch-allocation query has no test in this file.
func newMockOrchestrator(t *testing.T) (*Orchestrator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat := catalog.NewWithDB(sqlx.NewDb(db, "pgx"), zap.NewNop())
	return New(cat, zap.NewNop()), mock
}

func TestGetNextBatchZeroImagesReturnsEmpty(t *testing.T) {
	o, _ := newMockOrchestrator(t)
	records, err := o.GetNextBatch(context.Background(), "worker1", "key1", 0, 3600)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSetJobStatusRejectsOutOfRangeProgress(t *testing.T) {
	o, _ := newMockOrchestrator(t)
	bad := 150
	err := o.SetJobStatus(context.Background(), uuid.New(), StatusInProgress, &bad)
	assert.Error(t, err)
}

func TestSetJobStatusRejectsUnknownStatus(t *testing.T) {
	o, _ := newMockOrchestrator(t)
	err := o.SetJobStatus(context.Background(), uuid.New(), 99, nil)
	assert.Error(t, err)
}

func TestSetJobStatusRejectsTransitionOutOfTerminalStatus(t *testing.T) {
	o, mock := newMockOrchestrator(t)
	id := uuid.New()
	cols := []string{"id", "worker", "origin", "job_type", "camera_id", "expiration", "status", "progress"}
	mock.ExpectQuery(`SELECT id, worker, origin, job_type, camera_id, expiration, status, progress FROM jobs`).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(id, "worker1", "key1", OperationHeadTail, nil, time.Now(), StatusCompleted, 0))

	err := o.SetJobStatus(context.Background(), id, StatusInProgress, nil)
	assert.Error(t, err)
}

func TestSetJobStatusAllowsExpiredToCompleted(t *testing.T) {
	o, mock := newMockOrchestrator(t)
	id := uuid.New()
	cols := []string{"id", "worker", "origin", "job_type", "camera_id", "expiration", "status", "progress"}
	mock.ExpectQuery(`SELECT id, worker, origin, job_type, camera_id, expiration, status, progress FROM jobs`).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(id, "worker1", "key1", OperationHeadTail, nil, time.Now(), StatusExpired, 0))
	mock.ExpectExec(`UPDATE jobs SET status`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := o.SetJobStatus(context.Background(), id, StatusCompleted, nil)
	assert.NoError(t, err)
}

func TestValidReturnsFalseWhenJobMissing(t *testing.T) {
	o, mock := newMockOrchestrator(t)
	mock.ExpectQuery(`SELECT id, worker, origin, job_type, camera_id, expiration, status, progress FROM jobs`).
		WillReturnError(sqlmock.ErrCancelled)

	assert.False(t, o.Valid(context.Background(), uuid.New()))
}

func TestReapWithNoExpiredJobsIsNoop(t *testing.T) {
	o, mock := newMockOrchestrator(t)
	cols := []string{"id", "worker", "origin", "job_type", "camera_id", "expiration", "status", "progress"}
	mock.ExpectQuery(`SELECT id, worker, origin, job_type, camera_id, expiration, status, progress`).
		WillReturnRows(sqlmock.NewRows(cols))

	err := o.Reap(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
