package httpapi

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
)

// getScopes is GET /api/v1/admin/scope?key= (spec.md §6).
func (h *handlers) getScopes(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, apperrors.BadRequest("key is required"))
		return
	}
	scopes, err := h.deps.KeyStore.Scopes(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scopes": scopes})
}

// putScope is PUT /api/v1/admin/scope?key=&scope= (spec.md §6): grants scope
// on key.
func (h *handlers) putScope(w http.ResponseWriter, r *http.Request) {
	h.setScope(w, r, true)
}

// deleteScope is DELETE /api/v1/admin/scope?key=&scope= (spec.md §6):
// revokes scope on key.
func (h *handlers) deleteScope(w http.ResponseWriter, r *http.Request) {
	h.setScope(w, r, false)
}

func (h *handlers) setScope(w http.ResponseWriter, r *http.Request, value bool) {
	q := r.URL.Query()
	params := scopeParams{Key: q.Get("key"), Scope: q.Get("scope")}
	if err := validate.Struct(params); err != nil {
		writeError(w, apperrors.BadRequest(err.Error()))
		return
	}
	if err := h.deps.KeyStore.SetScope(r.Context(), params.Key, params.Scope, value); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// newKey is POST /api/v1/admin/new_key?comment=&expiration=&scopes=
// (spec.md §6): mints a new API key, optionally granting the
// comma-separated scopes query parameter.
func (h *handlers) newKey(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	comment := q.Get("comment")

	var expires time.Time
	if v := q.Get("expiration"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, apperrors.BadRequest("expiration must be RFC3339"))
			return
		}
		expires = parsed
	}

	key, actualExpires, err := h.deps.KeyStore.NewKey(r.Context(), comment, expires)
	if err != nil {
		writeError(w, err)
		return
	}

	if raw := q.Get("scopes"); raw != "" {
		for _, scope := range strings.Split(raw, ",") {
			scope = strings.TrimSpace(scope)
			if scope == "" {
				continue
			}
			if err := h.deps.KeyStore.SetScope(r.Context(), key, scope, true); err != nil {
				writeError(w, err)
				return
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"key": key, "expires": actualExpires})
}
