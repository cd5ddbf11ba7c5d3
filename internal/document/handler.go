package document

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/deepdive-md/deepdive/internal/requestid"
)

// maxContentBytes bounds a single PUT body.
const maxContentBytes = 5 << 20

type Handler struct {
	store  Store
	logger logrus.FieldLogger
}

func NewHandler(store Store, logger logrus.FieldLogger) *Handler {
	return &Handler{store: store, logger: logger}
}

type putRequest struct {
	Content *string `json:"content"`
}

// HandleGet answers GET /documents/{key}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !ValidKey(key) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ErrInvalidKey.Error()})
		return
	}

	doc, err := h.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": ErrNotFound.Error()})
			return
		}
		h.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": requestid.FromContext(r.Context()),
			"key":        key,
		}).Error("document lookup failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// HandlePut answers PUT /documents/{key}.
func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !ValidKey(key) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ErrInvalidKey.Error()})
		return
	}

	var req putRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxContentBytes)).Decode(&req); err != nil || req.Content == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	doc := &Document{Key: key, Content: *req.Content}
	if err := h.store.Put(r.Context(), doc); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": requestid.FromContext(r.Context()),
			"key":        key,
		}).Error("document save failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
