package catalog

import (
	"context"

	appmetrics "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/metrics"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// timedExec wraps a named SQL write in the same query-duration Summary and
// error logging that sql_utils.py's do_query applied around cur.execute.
func (c *Catalog) timedExec(ctx context.Context, name, query string, args ...any) (int64, error) {
	defer appmetrics.TimeQuery(name)()
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		c.log.Error("catalog exec failed", zap.String("query", name), zap.Error(err))
		return 0, err
	}
	return res.RowsAffected()
}

// timedNamedExec is timedExec's struct/map-bound counterpart, matching the
// original's do_many_query for batched parameter sequences.
func (c *Catalog) timedNamedExec(ctx context.Context, name, query string, arg any) (int64, error) {
	defer appmetrics.TimeQuery(name)()
	res, err := c.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		c.log.Error("catalog named exec failed", zap.String("query", name), zap.Error(err))
		return 0, err
	}
	return res.RowsAffected()
}

func (c *Catalog) timedSelect(ctx context.Context, name string, dest any, query string, args ...any) error {
	defer appmetrics.TimeQuery(name)()
	if err := c.db.SelectContext(ctx, dest, query, args...); err != nil {
		c.log.Error("catalog select failed", zap.String("query", name), zap.Error(err))
		return err
	}
	return nil
}

func (c *Catalog) timedGet(ctx context.Context, name string, dest any, query string, args ...any) error {
	defer appmetrics.TimeQuery(name)()
	if err := c.db.GetContext(ctx, dest, query, args...); err != nil {
		c.log.Error("catalog get failed", zap.String("query", name), zap.Error(err))
		return err
	}
	return nil
}

// sqlxIn expands a `?`-style IN clause and rebinds it to the catalog's
// placeholder style ($1, $2, ...), used for the batch existence checks
// Stage A and Stage D need.
func sqlxIn(query string, args ...any) (string, []any, error) {
	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return sqlx.Rebind(sqlx.DOLLAR, expanded), expandedArgs, nil
}

// withTx runs fn inside a single transaction, matching spec.md §4.2's
// requirement that a batch call's writes are issued within one transaction.
func (c *Catalog) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// WithTx is withTx's exported form, for callers outside this package
// (Stage B's canonical-dive promotion, the orchestrator's batch claim) that
// need one transaction spanning several Catalog operations.
func (c *Catalog) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return c.withTx(ctx, fn)
}
