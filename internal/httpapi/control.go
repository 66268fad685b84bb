package httpapi

import "net/http"

// triggerDiscover is POST /api/v1/control/discover (spec.md §6): sets the
// discovery worker's trigger, waking it immediately rather than waiting out
// its interval.
func (h *handlers) triggerDiscover(w http.ResponseWriter, r *http.Request) {
	h.deps.Discovery.Trigger()
	w.WriteHeader(http.StatusNoContent)
}

// triggerLabelSync is POST /api/v1/control/label_studio_sync (spec.md §6).
func (h *handlers) triggerLabelSync(w http.ResponseWriter, r *http.Request) {
	h.deps.LabelSync.Trigger()
	w.WriteHeader(http.StatusNoContent)
}
