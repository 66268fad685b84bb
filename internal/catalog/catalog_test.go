package catalog

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockCatalog(t *testing.T) (*Catalog, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Catalog{db: sqlx.NewDb(db, "pgx"), log: zap.NewNop()}, mock
}

func TestInsertImageIgnoresDuplicateChecksum(t *testing.T) {
	c, mock := newMockCatalog(t)
	mock.ExpectExec(`INSERT INTO images[\s\S]*ON CONFLICT \(checksum\) DO NOTHING`).
		WithArgs("abc123", "dive1/AAA.ORF", "dive1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := c.InsertImage(context.Background(), "abc123", "dive1/AAA.ORF", "dive1")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDiveIsIdempotent(t *testing.T) {
	c, mock := newMockCatalog(t)
	mock.ExpectExec(`INSERT INTO dives`).
		WithArgs("dive1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := c.UpsertDive(context.Background(), "dive1")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetJobStatusWithProgress(t *testing.T) {
	c, mock := newMockCatalog(t)
	mock.ExpectExec(`UPDATE jobs SET status = \$1, progress = \$2 WHERE id = \$3`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	progress := 50
	err := c.SetJobStatus(context.Background(), uuid.Nil, 1, &progress)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableCountRejectsUnknownTable(t *testing.T) {
	c, _ := newMockCatalog(t)
	_, err := c.TableCount(context.Background(), "pg_shadow")
	require.Error(t, err)
}
