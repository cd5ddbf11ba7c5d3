package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/deepdive-md/deepdive/internal/document"
	"github.com/deepdive-md/deepdive/internal/preview"
	"github.com/deepdive-md/deepdive/internal/relay"
	"github.com/deepdive-md/deepdive/internal/requestid"
	"github.com/deepdive-md/deepdive/internal/rulebook"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`))
	}))
	t.Cleanup(upstream.Close)

	book := &rulebook.RuleBook{
		Providers: []rulebook.Provider{
			{Key: "groq", Name: "Groq", Model: "llama-3.1-8b-instant", MaxTokens: 1000, Temperature: 0.7, BaseURL: upstream.URL},
		},
		DefaultProvider: "groq",
		Prompts:         rulebook.Prompts{SystemPrompt: "You are helpful.", UserInput: "Explain."},
	}

	logger, _ := test.NewNullLogger()
	return NewRouter(Deps{
		Book:      book,
		Relay:     relay.NewHandler(book, upstream.Client(), noop.NewTracerProvider().Tracer("test"), logger),
		Documents: document.NewHandler(document.NewMemoryStore(), logger),
		Preview:   preview.NewHandler(preview.NewRenderer(), logger),
		Logger:    logger,
	})
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	w := do(setupRouter(t), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"deepdive"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestid.Header))
}

func TestRequestIDPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestid.Header, "abc-123")
	w := httptest.NewRecorder()
	setupRouter(t).ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(requestid.Header))
}

func TestRelayRoutes(t *testing.T) {
	router := setupRouter(t)

	w := do(router, http.MethodPost, "/ai", `{"apiKey":"k","model":"llama-3.1-8b-instant","messages":[{"role":"user","content":"ping"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", gjson.Get(w.Body.String(), "choices.0.message.content").String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(router, http.MethodOptions, "/ai", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(router, http.MethodPost, "/ai", `{"model":"x","messages":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRulebookRoute(t *testing.T) {
	w := do(setupRouter(t), http.MethodGet, "/rulebook", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, "groq", gjson.Get(body, "ai.defaultProvider").String())
	assert.Equal(t, "llama-3.1-8b-instant", gjson.Get(body, "ai.providers.groq.model").String())
	assert.Equal(t, "You are helpful.", gjson.Get(body, "prompts.systemPrompt").String())
}

func TestDocumentRoutes(t *testing.T) {
	router := setupRouter(t)

	w := do(router, http.MethodPut, "/documents/editor-data", `{"content":"# hi"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/documents/editor-data", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# hi", gjson.Get(w.Body.String(), "content").String())
}

func TestPreviewRoute(t *testing.T) {
	w := do(setupRouter(t), http.MethodPost, "/preview", `{"markdown":"**bold**"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, gjson.Get(w.Body.String(), "html").String(), "<strong>bold</strong>")
}

func TestRecoverer(t *testing.T) {
	logger, _ := test.NewNullLogger()
	router := NewRouter(Deps{
		Book:      &rulebook.RuleBook{},
		Relay:     relay.NewHandler(&rulebook.RuleBook{}, nil, noop.NewTracerProvider().Tracer("test"), logger),
		Documents: document.NewHandler(nil, logger),
		Preview:   preview.NewHandler(preview.NewRenderer(), logger),
		Logger:    logger,
	})

	w := do(router, http.MethodGet, "/documents/editor-data", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
