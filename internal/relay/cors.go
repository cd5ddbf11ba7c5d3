package relay

import "net/http"

// The relay is called from the editor page, possibly on another origin, so
// every response allows any origin for POST with a JSON body.
func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

// HandlePreflight answers OPTIONS /ai.
func (h *Handler) HandlePreflight(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w.Header())
	w.WriteHeader(http.StatusNoContent)
}
