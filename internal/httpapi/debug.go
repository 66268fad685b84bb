package httpapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// putDebugBlob is PUT /api/v1/debug/{id} (spec.md §6): a worker uploads a
// ZIP of diagnostic artifacts for a failed job, stored by id under
// data_model.debug_data_store for operator retrieval outside this service.
func (h *handlers) putDebugBlob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperrors.BadRequest("id must be a valid UUID"))
		return
	}

	store := h.deps.Config.DataModel.DebugDataStore
	if err := os.MkdirAll(store, 0o755); err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.TypeFatal, "creating debug store"))
		return
	}

	dest := filepath.Join(store, id.String()+".zip")
	f, err := os.Create(dest)
	if err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.TypeTransient, "creating debug blob"))
		return
	}
	limited := io.LimitReader(r.Body, h.deps.Config.DataModel.MaxLoadSize)
	_, copyErr := io.Copy(f, limited)
	closeErr := f.Close()
	if copyErr != nil {
		writeError(w, apperrors.Wrap(copyErr, apperrors.TypeTransient, "writing debug blob"))
		return
	}
	if closeErr != nil {
		writeError(w, apperrors.Wrap(closeErr, apperrors.TypeTransient, "closing debug blob"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
