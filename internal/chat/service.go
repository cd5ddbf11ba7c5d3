// Package chat is the typed client the chat panel uses to talk to the relay.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/deepdive-md/deepdive/internal/rulebook"
)

var (
	ErrAPIKeyNotSet    = errors.New("API key is not set")
	ErrInvalidResponse = errors.New("invalid response format from AI API")
)

// RelayError is returned when the relay answers with a non-2xx status.
type RelayError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("AI model call failed: %s - %s", e.Status, e.Body)
}

type Option func(*Service)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.client = c
	}
}

// Service sends chat prompts through the relay using the rulebook's default
// provider. It is not safe to call SetAPIKey concurrently with
// GenerateResponse.
type Service struct {
	book     *rulebook.RuleBook
	provider rulebook.Provider
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewService resolves the default provider up front; a rulebook whose
// default provider is missing is rejected.
func NewService(book *rulebook.RuleBook, endpoint, apiKey string, opts ...Option) (*Service, error) {
	p, err := book.Default()
	if err != nil {
		return nil, err
	}

	s := &Service{
		book:     book,
		provider: p,
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) SetAPIKey(apiKey string) {
	s.apiKey = apiKey
}

func (s *Service) APIKey() string {
	return s.apiKey
}

// Providers returns a copy of the provider catalog in rulebook order.
func (s *Service) Providers() []rulebook.Provider {
	out := make([]rulebook.Provider, len(s.book.Providers))
	copy(out, s.book.Providers)
	return out
}

func (s *Service) ProviderDetails() rulebook.Provider {
	return s.provider
}

func (s *Service) RuleBook() *rulebook.RuleBook {
	return s.book
}

// GenerateResponse sends the system prompt and userInput to the relay and
// returns the assistant's reply.
func (s *Service) GenerateResponse(ctx context.Context, userInput string) (string, error) {
	if s.apiKey == "" {
		return "", ErrAPIKeyNotSet
	}

	body, err := json.Marshal(s.buildRequest(userInput))
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("AI model call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read relay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		details := "{}"
		if gjson.ValidBytes(respBody) {
			details = string(respBody)
		}
		return "", &RelayError{StatusCode: resp.StatusCode, Status: resp.Status, Body: details}
	}

	if !gjson.ValidBytes(respBody) {
		return "", fmt.Errorf("%w: body is not JSON", ErrInvalidResponse)
	}

	message := gjson.GetBytes(respBody, "choices.0.message")
	if !message.IsObject() {
		return "", ErrInvalidResponse
	}
	return message.Get("content").String(), nil
}

func (s *Service) buildRequest(userInput string) ChatRequest {
	return ChatRequest{
		APIKey: s.apiKey,
		Model:  s.provider.Model,
		Messages: []Message{
			{Role: RoleSystem, Content: s.book.Prompts.SystemPrompt},
			{Role: RoleUser, Content: userInput},
		},
		MaxTokens:   s.provider.MaxTokens,
		Temperature: s.provider.Temperature,
	}
}
