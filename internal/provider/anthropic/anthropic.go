// Package anthropic implements the Provider contract for the Anthropic
// Messages API, which differs from the OpenAI shape in auth headers, request
// body, and response envelope.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/knight1008610000/codegen-server/internal/models"
	"github.com/knight1008610000/codegen-server/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	apiVersion      = "2023-06-01"
)

// Provider is the Anthropic adapter.
type Provider struct {
	name   string
	apiKey string
	url    string
	client *http.Client
}

// New constructs the adapter. url is the full /v1/messages endpoint.
func New(name, apiKey, url string, client *http.Client) (*Provider, error) {
	if name == "" {
		return nil, errors.New("provider name must not be empty")
	}
	if url == "" {
		return nil, errors.New("messages url must not be empty")
	}
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	return &Provider{name: name, apiKey: apiKey, url: url, client: client}, nil
}

func (p *Provider) Name() string {
	return p.name
}

type messagePayload struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []wireMessage `json:"messages"`
	System    string        `json:"system,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Chat lowers the canonical messages into Anthropic's wire shape: the first
// system message becomes the top-level system field and the first user
// message becomes a single-element messages array. The wire format rejects a
// system-role entry inside messages.
func (p *Provider) Chat(ctx context.Context, messages []models.ChatMessage, model string, maxTokens int) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("%s: %w", p.name, provider.ErrMissingCredential)
	}

	var system, user string
	var haveSystem, haveUser bool
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			if !haveSystem {
				system = msg.Content
				haveSystem = true
			}
		case models.RoleUser:
			if !haveUser {
				user = msg.Content
				haveUser = true
			}
		}
	}

	payload := messagePayload{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []wireMessage{{Role: models.RoleUser, Content: user}},
		System:    system,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", provider.ClassifyTransport(p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", provider.ParseUpstreamError(p.name, resp)
	}

	var providerResp messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&providerResp); err != nil {
		return "", &provider.UpstreamError{
			Provider:   p.name,
			StatusCode: resp.StatusCode,
			Message:    "response body is not valid JSON",
		}
	}

	if len(providerResp.Content) == 0 {
		return "", nil
	}
	return providerResp.Content[0].Text, nil
}

// FIM is not part of the Anthropic API surface.
func (p *Provider) FIM(ctx context.Context, prompt models.BudgetedPrompt, model string, maxTokens int) (string, error) {
	return "", fmt.Errorf("fill-in-middle is not supported by provider %s: %w", p.name, provider.ErrUnsupportedOperation)
}
