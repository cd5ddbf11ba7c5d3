// Package rulebook loads the static provider catalog and prompt text that the
// relay and the chat service share.
package rulebook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

var ErrProviderNotFound = errors.New("provider not found in rulebook")

type Provider struct {
	Key         string  `json:"-" yaml:"-"`
	Name        string  `json:"name" yaml:"name"`
	Model       string  `json:"model" yaml:"model"` // upstream model identifier
	MaxTokens   int     `json:"maxTokens" yaml:"maxTokens"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	BaseURL     string  `json:"baseUrl" yaml:"baseUrl"`
	Free        bool    `json:"free" yaml:"free"`
	Description string  `json:"description" yaml:"description"`
}

type Prompts struct {
	SystemPrompt string `json:"systemPrompt" yaml:"systemPrompt"`
	UserInput    string `json:"userInput" yaml:"userInput"`
}

// RuleBook is read-only after loading. Providers keep the order in which
// they appear in the source document.
type RuleBook struct {
	Providers       []Provider
	DefaultProvider string
	Prompts         Prompts
}

// Load reads a rulebook from path. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON.
func Load(path string) (*RuleBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rulebook: %w", err)
	}

	var rb *RuleBook
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		rb, err = ParseYAML(data)
	default:
		rb, err = Parse(data)
	}
	if err != nil {
		return nil, err
	}

	if err := rb.Validate(); err != nil {
		return nil, err
	}
	return rb, nil
}

// Parse decodes a JSON rulebook. Providers are walked with gjson so the
// mapping order of the document is preserved.
func Parse(data []byte) (*RuleBook, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid rulebook: malformed JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, errors.New("invalid rulebook: top level must be an object")
	}

	rb := &RuleBook{
		DefaultProvider: root.Get("ai.defaultProvider").String(),
		Prompts: Prompts{
			SystemPrompt: root.Get("prompts.systemPrompt").String(),
			UserInput:    root.Get("prompts.userInput").String(),
		},
	}

	providers := root.Get("ai.providers")
	if providers.Exists() && !providers.IsObject() {
		return nil, errors.New("invalid rulebook: ai.providers must be an object")
	}

	var perr error
	providers.ForEach(func(key, value gjson.Result) bool {
		var p Provider
		if err := json.Unmarshal([]byte(value.Raw), &p); err != nil {
			perr = fmt.Errorf("invalid rulebook: provider %q: %w", key.String(), err)
			return false
		}
		p.Key = key.String()
		rb.Providers = append(rb.Providers, p)
		return true
	})
	if perr != nil {
		return nil, perr
	}

	return rb, nil
}

type yamlRuleBook struct {
	AI struct {
		Providers       yaml.Node `yaml:"providers"`
		DefaultProvider string    `yaml:"defaultProvider"`
	} `yaml:"ai"`
	Prompts Prompts `yaml:"prompts"`
}

// ParseYAML decodes the YAML form of a rulebook, keeping mapping order.
func ParseYAML(data []byte) (*RuleBook, error) {
	var doc yamlRuleBook
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid rulebook: %w", err)
	}

	rb := &RuleBook{
		DefaultProvider: doc.AI.DefaultProvider,
		Prompts:         doc.Prompts,
	}

	node := doc.AI.Providers
	if node.Kind == 0 {
		return rb, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.New("invalid rulebook: ai.providers must be a mapping")
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var p Provider
		if err := node.Content[i+1].Decode(&p); err != nil {
			return nil, fmt.Errorf("invalid rulebook: provider %q: %w", key, err)
		}
		p.Key = key
		rb.Providers = append(rb.Providers, p)
	}

	return rb, nil
}

// Validate checks that the default provider names a configured provider.
func (rb *RuleBook) Validate() error {
	if _, err := rb.Default(); err != nil {
		return err
	}
	return nil
}

func (rb *RuleBook) Provider(key string) (Provider, bool) {
	for _, p := range rb.Providers {
		if p.Key == key {
			return p, true
		}
	}
	return Provider{}, false
}

func (rb *RuleBook) Default() (Provider, error) {
	p, ok := rb.Provider(rb.DefaultProvider)
	if !ok {
		return Provider{}, fmt.Errorf("AI Provider %q not found in rulebook: %w", rb.DefaultProvider, ErrProviderNotFound)
	}
	return p, nil
}

// ResolveBaseURL returns the base URL of the first provider whose model is
// exactly model. Unknown models fall back to the default provider's base URL
// without an error. The result is empty only if the default provider is
// missing.
func (rb *RuleBook) ResolveBaseURL(model string) string {
	for _, p := range rb.Providers {
		if p.Model == model {
			return p.BaseURL
		}
	}

	def, err := rb.Default()
	if err != nil {
		return ""
	}
	return def.BaseURL
}

// MarshalJSON writes the rulebook back in its file shape with providers in
// their original order.
func (rb *RuleBook) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"ai":{"providers":{`)
	for i, p := range rb.Providers {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString(`},"defaultProvider":`)

	def, err := json.Marshal(rb.DefaultProvider)
	if err != nil {
		return nil, err
	}
	buf.Write(def)

	prompts, err := json.Marshal(rb.Prompts)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`},"prompts":`)
	buf.Write(prompts)
	buf.WriteByte('}')

	return buf.Bytes(), nil
}
