package httpapi

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
	"github.com/go-chi/chi/v5"
)

// resolveRawPath tries every configured data mount in turn, returning the
// first local path at which relPath actually exists under that mount.
// Multiple mounts can each host similarly-named dive directories; spec.md
// leaves the raw-artifact resolution mechanism to the implementation beyond
// "maps a stored path to the file it names" (see DESIGN.md).
func (h *handlers) resolveRawPath(relPath string) (string, error) {
	for _, m := range h.deps.Config.DataPaths {
		candidate := filepath.Join(m.Mount, relPath)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", apperrors.ConflictMount(relPath)
}

func serveFromCache(h *handlers, w http.ResponseWriter, r *http.Request, localPath, contentType string) {
	staged := h.deps.Cache.Get(localPath)
	f, err := os.Open(staged)
	if err != nil {
		writeError(w, apperrors.NotFound("file"))
		return
	}
	defer f.Close()
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	modTime := time.Time{}
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}
	http.ServeContent(w, r, filepath.Base(localPath), modTime, f)
}

// getRawFile is GET /api/v1/data/raw/{c} (spec.md §6): the original raw
// image file for a known checksum.
func (h *handlers) getRawFile(w http.ResponseWriter, r *http.Request) {
	checksum := chi.URLParam(r, "checksum")
	img, err := h.deps.Catalog.ImageByChecksum(r.Context(), checksum)
	if err != nil {
		writeError(w, apperrors.NotFound("image"))
		return
	}
	local, err := h.resolveRawPath(img.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	serveFromCache(h, w, r, local, "application/octet-stream")
}

// getLensCal is GET /api/v1/data/lens_cal/{cameraId} (spec.md §6). The
// camera's lens_cal_path is a UNC path, mapped to a local mount via
// config.ResolveLocalPath the same way data_model.py's map_local_path does
// (SPEC_FULL.md's resolved ambiguity).
func (h *handlers) getLensCal(w http.ResponseWriter, r *http.Request) {
	cameraID, err := strconv.Atoi(chi.URLParam(r, "cameraId"))
	if err != nil {
		writeError(w, apperrors.BadRequest("cameraId must be an integer"))
		return
	}
	cam, err := h.deps.Catalog.CameraByID(r.Context(), cameraID)
	if err != nil {
		writeError(w, apperrors.NotFound("camera"))
		return
	}
	local, err := h.deps.Config.ResolveLocalPath(cam.LensCalPath)
	if err != nil {
		writeError(w, err)
		return
	}
	serveFromCache(h, w, r, local, "application/octet-stream")
}

func (h *handlers) getPreprocessJPEG(w http.ResponseWriter, r *http.Request) {
	checksum := chi.URLParam(r, "checksum")
	img, err := h.deps.Catalog.ImageByChecksum(r.Context(), checksum)
	if err != nil || img.PreprocessJPEGPath == nil {
		writeError(w, apperrors.NotFound("preprocessed jpeg"))
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	serveFromCache(h, w, r, *img.PreprocessJPEGPath, "image/jpeg")
}

// putPreprocessJPEG is PUT /api/v1/data/preprocess_jpeg/{c}: a worker
// uploads the produced JPEG, stored under data_model.preprocess_jpg_store
// and recorded against the image row.
func (h *handlers) putPreprocessJPEG(w http.ResponseWriter, r *http.Request) {
	h.putJPEGArtifact(w, r, h.deps.Config.DataModel.PreprocessJPGStore, h.deps.Catalog.UpdateImagePreprocessJPEGPath)
}

func (h *handlers) getLaserJPEG(w http.ResponseWriter, r *http.Request) {
	checksum := chi.URLParam(r, "checksum")
	img, err := h.deps.Catalog.ImageByChecksum(r.Context(), checksum)
	if err != nil || img.PreprocessLaserJPEGPath == nil {
		writeError(w, apperrors.NotFound("laser jpeg"))
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	serveFromCache(h, w, r, *img.PreprocessLaserJPEGPath, "image/jpeg")
}

func (h *handlers) putLaserJPEG(w http.ResponseWriter, r *http.Request) {
	h.putJPEGArtifact(w, r, h.deps.Config.DataModel.PreprocessLaserJPGStore, h.deps.Catalog.UpdateImageLaserJPEGPath)
}

// putJPEGArtifact writes the request body to store/{checksum}.jpg, bounded
// by data_model.max_load_size, then records its path against the image row
// via record.
func (h *handlers) putJPEGArtifact(w http.ResponseWriter, r *http.Request, store string, record func(ctx context.Context, checksum, path string) error) {
	checksum := chi.URLParam(r, "checksum")
	if _, err := h.deps.Catalog.ImageByChecksum(r.Context(), checksum); err != nil {
		writeError(w, apperrors.NotFound("image"))
		return
	}
	if err := os.MkdirAll(store, 0o755); err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.TypeFatal, "creating artifact store"))
		return
	}
	dest := filepath.Join(store, checksum+".jpg")
	f, err := os.Create(dest)
	if err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.TypeTransient, "creating artifact file"))
		return
	}
	limited := io.LimitReader(r.Body, h.deps.Config.DataModel.MaxLoadSize)
	_, copyErr := io.Copy(f, limited)
	closeErr := f.Close()
	if copyErr != nil {
		writeError(w, apperrors.Wrap(copyErr, apperrors.TypeTransient, "writing artifact file"))
		return
	}
	if closeErr != nil {
		writeError(w, apperrors.Wrap(closeErr, apperrors.TypeTransient, "closing artifact file"))
		return
	}
	if err := record(r.Context(), checksum, dest); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteLaserJPEG(w http.ResponseWriter, r *http.Request) {
	checksum := chi.URLParam(r, "checksum")
	if err := h.deps.Catalog.ClearImageLaserJPEGPath(r.Context(), checksum); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getLaserLabel is GET /api/v1/data/laser/{c}: the laser label coordinates,
// 404 if no label row exists yet (spec.md §6).
func (h *handlers) getLaserLabel(w http.ResponseWriter, r *http.Request) {
	checksum := chi.URLParam(r, "checksum")
	label, err := h.deps.Catalog.LaserLabelByChecksum(r.Context(), checksum)
	if err != nil {
		writeError(w, apperrors.NotFound("laser label"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id": label.TaskID,
		"x":       label.X,
		"y":       label.Y,
	})
}

func (h *handlers) deleteHeadTailLabel(w http.ResponseWriter, r *http.Request) {
	checksum := chi.URLParam(r, "checksum")
	if err := h.deps.Catalog.DeleteHeadTailLabel(r.Context(), checksum); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
