package chat

// Roles accepted by OpenAI-compatible chat completion APIs.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body POSTed to the relay.
type ChatRequest struct {
	APIKey      string    `json:"apiKey"`
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// Completion is the upstream completion payload the relay passes through.
type Completion struct {
	Choices []Choice `json:"choices"`
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Created int64    `json:"created"`
}

type Choice struct {
	Message      Message `json:"message"`
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason"`
}
