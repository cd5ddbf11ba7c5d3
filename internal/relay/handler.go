// Package relay implements the same-origin /ai endpoint that forwards chat
// completions to the provider chosen by the rulebook.
package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/deepdive-md/deepdive/internal/requestid"
	"github.com/deepdive-md/deepdive/internal/rulebook"
)

const (
	MsgAPIKeyRequired = "API key is required"
	MsgInvalidRequest = "Invalid request format"
	MsgUpstreamFailed = "AI API call failed"
	MsgInternal       = "Internal server error"
)

// Fields copied from the inbound request into the upstream body, verbatim.
var forwardedFields = []string{"model", "messages", "max_tokens", "temperature"}

type errorResponse struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
	Message string          `json:"message,omitempty"`
}

type Handler struct {
	book   *rulebook.RuleBook
	client *http.Client
	tracer trace.Tracer
	logger logrus.FieldLogger
}

// NewHandler builds the relay. A nil client means http.DefaultClient, which
// has no timeout.
func NewHandler(book *rulebook.RuleBook, client *http.Client, tracer trace.Tracer, logger logrus.FieldLogger) *Handler {
	if client == nil {
		client = http.DefaultClient
	}
	return &Handler{
		book:   book,
		client: client,
		tracer: tracer,
		logger: logger,
	}
}

// HandleChat answers POST /ai.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w.Header())

	ctx, span := h.tracer.Start(r.Context(), "relay.chat")
	defer span.End()

	log := h.logger.WithField("request_id", requestid.FromContext(ctx))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.internalError(w, span, log, fmt.Errorf("failed to read request body: %w", err))
		return
	}
	if !gjson.ValidBytes(body) {
		h.internalError(w, span, log, errors.New("request body is not valid JSON"))
		return
	}
	req := gjson.ParseBytes(body)
	if req.Type == gjson.Null {
		h.internalError(w, span, log, errors.New("request body is null"))
		return
	}

	apiKey := field(req, "apiKey")
	if apiKey.Type != gjson.String || apiKey.Str == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: MsgAPIKeyRequired})
		return
	}

	model := field(req, "model")
	if !truthy(model) || !field(req, "messages").IsArray() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: MsgInvalidRequest})
		return
	}

	var modelName string
	if model.Type == gjson.String {
		modelName = model.Str
	}

	baseURL := h.book.ResolveBaseURL(modelName)
	span.SetAttributes(
		attribute.String("model", modelName),
		attribute.String("base_url", baseURL),
	)
	log = log.WithFields(logrus.Fields{"model": modelName, "base_url": baseURL})
	if baseURL == "" {
		h.internalError(w, span, log, errors.New("no base URL configured for model"))
		return
	}

	payload, err := upstreamPayload(req)
	if err != nil {
		h.internalError(w, span, log, err)
		return
	}

	url := strings.TrimRight(baseURL, "/") + "/chat/completions"
	upReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		h.internalError(w, span, log, err)
		return
	}
	upReq.Header.Set("Content-Type", "application/json")
	upReq.Header.Set("Authorization", "Bearer "+apiKey.Str)

	resp, err := h.client.Do(upReq)
	if err != nil {
		h.internalError(w, span, log, err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		h.internalError(w, span, log, fmt.Errorf("failed to read upstream response: %w", err))
		return
	}
	span.SetAttributes(attribute.Int("upstream.status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		details := json.RawMessage(`{}`)
		if gjson.ValidBytes(respBody) {
			details = json.RawMessage(respBody)
		}
		span.SetStatus(codes.Error, MsgUpstreamFailed)
		log.WithField("status", resp.StatusCode).Warn("upstream AI API call failed")
		writeJSON(w, resp.StatusCode, errorResponse{Error: MsgUpstreamFailed, Details: details})
		return
	}

	if !gjson.ValidBytes(respBody) {
		h.internalError(w, span, log, errors.New("upstream response is not valid JSON"))
		return
	}

	log.WithField("status", resp.StatusCode).Debug("relayed completion")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(respBody)
}

func (h *Handler) internalError(w http.ResponseWriter, span trace.Span, log logrus.FieldLogger, err error) {
	message := "Unknown error"
	if err != nil && err.Error() != "" {
		message = err.Error()
		span.RecordError(err)
	}
	span.SetStatus(codes.Error, message)
	log.WithError(err).Error("relay failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: MsgInternal, Message: message})
}

func upstreamPayload(req gjson.Result) ([]byte, error) {
	payload := []byte(`{}`)
	for _, name := range forwardedFields {
		v := field(req, name)
		if !v.Exists() {
			continue
		}
		var err error
		payload, err = sjson.SetRawBytes(payload, name, []byte(v.Raw))
		if err != nil {
			return nil, fmt.Errorf("failed to build upstream payload: %w", err)
		}
	}
	return payload, nil
}

// field returns the last top-level member called name, so duplicated keys
// resolve the way JSON.parse resolves them.
func field(obj gjson.Result, name string) gjson.Result {
	var last gjson.Result
	obj.ForEach(func(key, value gjson.Result) bool {
		if key.Str == name {
			last = value
		}
		return true
	})
	return last
}

// truthy reports whether v counts as present under JavaScript truthiness.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	default:
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
