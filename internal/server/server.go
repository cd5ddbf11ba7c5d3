// Package server assembles the HTTP routes.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/deepdive-md/deepdive/internal/document"
	"github.com/deepdive-md/deepdive/internal/logging"
	"github.com/deepdive-md/deepdive/internal/preview"
	"github.com/deepdive-md/deepdive/internal/relay"
	"github.com/deepdive-md/deepdive/internal/requestid"
	"github.com/deepdive-md/deepdive/internal/rulebook"
)

const serviceName = "deepdive"

type Deps struct {
	Book      *rulebook.RuleBook
	Relay     *relay.Handler
	Documents *document.Handler
	Preview   *preview.Handler
	Logger    logrus.FieldLogger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(logging.RequestLogger(d.Logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"` + serviceName + `"}`))
	})

	r.Post("/ai", d.Relay.HandleChat)
	r.Options("/ai", d.Relay.HandlePreflight)

	r.Get("/rulebook", handleRulebook(d.Book, d.Logger))

	r.Route("/documents", func(r chi.Router) {
		r.Get("/{key}", d.Documents.HandleGet)
		r.Put("/{key}", d.Documents.HandlePut)
	})

	r.Post("/preview", d.Preview.HandlePreview)

	return r
}

func handleRulebook(book *rulebook.RuleBook, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := json.Marshal(book)
		if err != nil {
			logger.WithError(err).Error("rulebook encode failed")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"internal server error"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}
