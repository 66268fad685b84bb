// Package summary periodically refreshes the catalog-wide Prometheus gauges
// (spec.md §4.7): row counts per table and job counts per status. It is a
// thin adapter between internal/catalog's count queries and
// internal/worker.Runner's interval loop.
package summary

import (
	"context"

	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/catalog"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/metrics"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/orchestrator"
	"go.uber.org/zap"
)

var tables = []string{"images", "dives", "canonical_dives", "jobs", "laser_labels", "headtail_labels"}

// Worker refreshes metrics.CatalogRowCount and metrics.CatalogJobsByStatus
// on each pass.
type Worker struct {
	cat *catalog.Catalog
	log *zap.Logger
}

func New(cat *catalog.Catalog, log *zap.Logger) *Worker {
	return &Worker{cat: cat, log: log}
}

// RunPass refreshes every gauge, logging and continuing past individual
// table failures so one bad query doesn't blank out the rest of the pass.
func (w *Worker) RunPass(ctx context.Context) {
	for _, table := range tables {
		n, err := w.cat.TableCount(ctx, table)
		if err != nil {
			w.log.Error("summary: table count failed", zap.String("table", table), zap.Error(err))
			continue
		}
		metrics.CatalogRowCount.WithLabelValues(table).Set(float64(n))
	}

	counts, err := w.cat.JobCountByStatus(ctx)
	if err != nil {
		w.log.Error("summary: job counts by status failed", zap.Error(err))
		return
	}
	for status, n := range counts {
		metrics.CatalogJobsByStatus.WithLabelValues(orchestrator.StatusName(status)).Set(float64(n))
	}
}
