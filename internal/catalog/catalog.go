// Package catalog is the persistent relational store (spec.md §2/§3). All
// other components interact with it exclusively through the named,
// parameterized operations in this package, the same discipline the
// original enforced through sql_utils.py's do_query/do_many_query helpers.
package catalog

import (
	"context"
	"database/sql"
	"embed"

	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Catalog wraps the shared connection pool and the structured logger every
// operation logs through.
type Catalog struct {
	db  *sqlx.DB
	log *zap.Logger
}

// Connect opens the pgx-backed pool used for all application queries.
// Goose migrations are applied separately by Migrate, through lib/pq's
// classic database/sql driver.
func Connect(ctx context.Context, dsn string, maxOpenConns, maxIdleConns int, log *zap.Logger) (*Catalog, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeFatal, "opening catalog connection pool")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeFatal, "pinging catalog database")
	}

	return &Catalog{db: db, log: log}, nil
}

// Migrate applies all forward migrations embedded in this package.
func (c *Catalog) Migrate(dsn string) error {
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return apperrors.Wrap(err, apperrors.TypeFatal, "setting goose dialect")
	}

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeFatal, "opening migration connection")
	}
	defer sqlDB.Close()

	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return apperrors.Wrap(err, apperrors.TypeFatal, "applying catalog migrations")
	}
	return nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// NewWithDB wraps an already-open *sqlx.DB, used by other packages' tests to
// drive a Catalog against go-sqlmock without a live Postgres instance.
func NewWithDB(db *sqlx.DB, log *zap.Logger) *Catalog {
	return &Catalog{db: db, log: log}
}
