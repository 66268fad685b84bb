package httpapi

import (
	"net/http"
	"strconv"

	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/orchestrator"
	"github.com/google/uuid"
)

// retrieveBatch is POST /api/v1/jobs/retrieve_batch?worker=&nImages=&expiration=
// (spec.md §4.2, §6).
func (h *handlers) retrieveBatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := retrieveBatchParams{Worker: q.Get("worker")}
	nImagesGiven := q.Get("nImages") != ""

	if nImagesGiven {
		n, err := strconv.Atoi(q.Get("nImages"))
		if err != nil {
			writeError(w, apperrors.BadRequest("nImages must be an integer"))
			return
		}
		params.NImages = n
	}
	if v := q.Get("expiration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, apperrors.BadRequest("expiration must be an integer of seconds"))
			return
		}
		params.Expiration = n
	}
	if err := validate.Struct(params); err != nil {
		writeError(w, apperrors.BadRequest(err.Error()))
		return
	}

	// An absent nImages defaults to DefaultMaxImages; an explicit nImages=0
	// is passed through as-is, so GetNextBatch's nImages<=0 short-circuit
	// returns an empty batch rather than silently falling back to the
	// default (spec.md §8 boundary property 1).
	nImages := params.NImages
	if !nImagesGiven {
		nImages = orchestrator.DefaultMaxImages
	}
	leaseSeconds := params.Expiration
	if leaseSeconds == 0 {
		leaseSeconds = orchestrator.DefaultLeaseSeconds
	}

	records, err := h.deps.Orchestrator.GetNextBatch(r.Context(), params.Worker, keyIdentity(r), nImages, leaseSeconds)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []orchestrator.JobRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": records})
}

// setJobStatus is PUT /api/v1/jobs/status?jobId=&status=&progress= (spec.md
// §4.2, §6).
func (h *handlers) setJobStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := setJobStatusParams{JobID: q.Get("jobId")}

	status, err := strconv.Atoi(q.Get("status"))
	if err != nil {
		writeError(w, apperrors.BadRequest("status must be an integer"))
		return
	}
	params.Status = status

	if v := q.Get("progress"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 0 || p > 100 {
			writeError(w, apperrors.BadRequest("progress must be an integer between 0 and 100"))
			return
		}
		params.Progress = &p
	}

	if err := validate.Struct(params); err != nil {
		writeError(w, apperrors.BadRequest(err.Error()))
		return
	}

	jobID, err := uuid.Parse(params.JobID)
	if err != nil {
		writeError(w, apperrors.BadRequest("jobId must be a valid UUID"))
		return
	}

	if err := h.deps.Orchestrator.SetJobStatus(r.Context(), jobID, params.Status, params.Progress); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
