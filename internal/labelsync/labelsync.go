// Package labelsync periodically imports preprocessed, unlabeled images
// into the external annotation service as new tasks (spec.md §4.6).
package labelsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/catalog"
	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Project pairs, spec.md §9 resolved Open Question 2: only these four
// projects are wired; the original's commented-out 10/19/39/40 paths are
// dropped.
const (
	projectLaserHigh    = 42
	projectLaserLow     = 43
	projectHeadTailHigh = 44
	projectHeadTailLow  = 45
)

const batchSize = 256

// Syncer imports ready images into the label studio projects over HTTP,
// protected by a circuit breaker per spec.md §4.6's "failures to import one
// project are logged and do not abort the others."
type Syncer struct {
	cat    *catalog.Catalog
	log    *zap.Logger
	client *http.Client
	cb     *gobreaker.CircuitBreaker

	host        string
	apiKey      string
	rootURL     string
	badTaskPath string
}

func New(cat *catalog.Catalog, log *zap.Logger, host, apiKey, rootURL, logDir string) *Syncer {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "label_studio",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
	})
	return &Syncer{
		cat:         cat,
		log:         log,
		client:      &http.Client{Timeout: 30 * time.Second},
		cb:          cb,
		host:        host,
		apiKey:      apiKey,
		rootURL:     rootURL,
		badTaskPath: filepath.Join(logDir, "bad_task_links.txt"),
	}
}

// RunPass syncs both project pairs, isolating each pair's failure from the
// other (spec.md §4.6).
func (s *Syncer) RunPass(ctx context.Context) {
	os.Remove(s.badTaskPath)

	if err := s.syncLaser(ctx); err != nil {
		s.log.Error("laser label sync failed", zap.Error(err))
	}
	if err := s.syncHeadTail(ctx); err != nil {
		s.log.Error("head/tail label sync failed", zap.Error(err))
	}
}

func (s *Syncer) syncLaser(ctx context.Context) error {
	images, err := s.cat.ImagesReadyForLaserLabel(ctx, batchSize)
	if err != nil {
		return err
	}
	high, low := splitByPriority(images)

	s.importBatch(ctx, "laser", projectLaserHigh, high, func(checksum string, taskID int64) error {
		return s.cat.InsertLaserLabel(ctx, checksum, taskID)
	})
	s.importBatch(ctx, "laser", projectLaserLow, low, func(checksum string, taskID int64) error {
		return s.cat.InsertLaserLabel(ctx, checksum, taskID)
	})
	return nil
}

func (s *Syncer) syncHeadTail(ctx context.Context) error {
	images, err := s.cat.ImagesReadyForHeadTailLabel(ctx, batchSize)
	if err != nil {
		return err
	}
	high, low := splitByPriority(images)

	s.importBatch(ctx, "headtail", projectHeadTailHigh, high, func(checksum string, taskID int64) error {
		return s.cat.InsertHeadTailLabel(ctx, checksum, taskID)
	})
	s.importBatch(ctx, "headtail", projectHeadTailLow, low, func(checksum string, taskID int64) error {
		return s.cat.InsertHeadTailLabel(ctx, checksum, taskID)
	})
	return nil
}

// splitByPriority mirrors the orchestrator's HIGH/LOW criterion: images with
// a resolved camera id go to the HIGH-priority project.
func splitByPriority(images []catalog.Image) (high, low []catalog.Image) {
	for _, img := range images {
		if img.CameraID != nil {
			high = append(high, img)
		} else {
			low = append(low, img)
		}
	}
	return high, low
}

func (s *Syncer) artifactURL(img catalog.Image, kind string) string {
	return fmt.Sprintf("%s/api/v1/data/%s/%s", s.rootURL, kind, img.Checksum)
}

func (s *Syncer) importBatch(ctx context.Context, kind string, projectID int, images []catalog.Image, record func(checksum string, taskID int64) error) {
	artifactKind := "laser_jpeg"
	if kind == "headtail" {
		artifactKind = "preprocess_jpeg"
	}
	for _, img := range images {
		taskID, err := s.createTask(ctx, projectID, s.artifactURL(img, artifactKind))
		if err != nil {
			s.log.Warn("creating label studio task failed",
				zap.Int("project", projectID), zap.String("checksum", img.Checksum), zap.Error(err))
			s.logBadTask(projectID, img.Checksum)
			continue
		}
		if err := record(img.Checksum, taskID); err != nil {
			s.log.Error("recording label row failed", zap.String("checksum", img.Checksum), zap.Error(err))
		}
	}
	metrics.LabelSyncLastSuccess.WithLabelValues(fmt.Sprintf("%d", projectID)).SetToCurrentTime()
}

type importTaskRequest struct {
	Data struct {
		Img string `json:"img"`
	} `json:"data"`
}

type importTaskResponse struct {
	TaskIDs []int64 `json:"task_ids"`
}

// createTask POSTs a new import task to the label studio project,
// referencing imageURL as the task's source data, and returns the created
// task id.
func (s *Syncer) createTask(ctx context.Context, projectID int, imageURL string) (int64, error) {
	body := []importTaskRequest{{}}
	body[0].Data.Img = imageURL
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.TypeFatal, "encoding import task request")
	}

	result, err := s.cb.Execute(func() (any, error) {
		url := fmt.Sprintf("https://%s/api/projects/%d/import", s.host, projectID)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Token "+s.apiKey)

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("label studio import returned status %d", resp.StatusCode)
		}
		var parsed importTaskResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, err
		}
		if len(parsed.TaskIDs) == 0 {
			return nil, fmt.Errorf("label studio import response carried no task ids")
		}
		return parsed.TaskIDs[0], nil
	})
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.TypeTransient, "importing label studio task")
	}
	return result.(int64), nil
}

func (s *Syncer) logBadTask(projectID int, checksum string) {
	f, err := os.OpenFile(s.badTaskPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Error("opening bad task log failed", zap.Error(err))
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "https://%s/projects/%d/data?checksum=%s\n", s.host, projectID, checksum)
}
