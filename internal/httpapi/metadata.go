package httpapi

import (
	"net/http"

	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
	"github.com/go-chi/chi/v5"
)

// metadataFrame is GET /api/v1/metadata/frame/{c} (spec.md §6): the raw
// catalog row for one image.
func (h *handlers) metadataFrame(w http.ResponseWriter, r *http.Request) {
	checksum := chi.URLParam(r, "checksum")
	img, err := h.deps.Catalog.ImageByChecksum(r.Context(), checksum)
	if err != nil {
		writeError(w, apperrors.NotFound("image"))
		return
	}
	writeJSON(w, http.StatusOK, img)
}

// metadataDive is GET /api/v1/metadata/dive/{c} (spec.md §6). {c} names a
// canonical (consolidated) dive checksum, not a single raw dive path
// (SPEC_FULL.md's resolved ambiguity); the response lists every member
// image across every raw dive sharing that checksum.
func (h *handlers) metadataDive(w http.ResponseWriter, r *http.Request) {
	checksum := chi.URLParam(r, "checksum")
	images, err := h.deps.Catalog.ImagesForDiveChecksum(r.Context(), checksum)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"frames": images})
}

// metadataDives is GET /api/v1/metadata/dives (spec.md §6): every canonical
// dive known to the catalog.
func (h *handlers) metadataDives(w http.ResponseWriter, r *http.Request) {
	dives, err := h.deps.Catalog.AllCanonicalDives(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dives": dives})
}
