package catalog

import (
	"context"

	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
)

// summaryTables is the fixed allowlist the Summary worker iterates; table
// never comes from request input, only from this list, so building the
// query by concatenation below is safe.
var summaryTables = map[string]bool{
	"images": true, "dives": true, "canonical_dives": true,
	"jobs": true, "laser_labels": true, "headtail_labels": true,
}

// TableCount returns the row count of one of this catalog's fixed tables,
// for the Summary worker (spec.md §4.7).
func (c *Catalog) TableCount(ctx context.Context, table string) (int64, error) {
	if !summaryTables[table] {
		return 0, apperrors.BadRequest("unknown summary table: " + table)
	}
	var n int64
	err := c.timedGet(ctx, "select_table_count", &n, `SELECT count(*) FROM `+table)
	return n, err
}

// JobCountByStatus returns counts grouped by status, for the Summary
// worker's catalog_jobs_by_status gauge.
type jobStatusCount struct {
	Status int   `db:"status"`
	Count  int64 `db:"count"`
}

func (c *Catalog) JobCountByStatus(ctx context.Context) (map[int]int64, error) {
	var rows []jobStatusCount
	if err := c.timedSelect(ctx, "select_job_counts_by_status", &rows,
		`SELECT status, count(*) AS count FROM jobs GROUP BY status`); err != nil {
		return nil, err
	}
	counts := make(map[int]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
