// Package openaicompat implements the Provider contract for upstreams that
// speak the OpenAI wire protocol: DeepSeek, OpenAI itself, and Zhipu.
//
// The three differ only in endpoint, credential, and two quirks handled by
// options: DeepSeek exposes a beta fill-in-middle endpoint, and Zhipu's
// reasoning models put the answer in reasoning_content when content is empty.
package openaicompat

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

const contentTypeJSON = "application/json"

// Options configures one OpenAI-compatible upstream.
type Options struct {
	// Name is the provider key, e.g. "deepseek".
	Name string
	// APIKey may be empty; calls then fail with ErrMissingCredential.
	APIKey string
	// ChatURL is the full chat/completions endpoint URL.
	ChatURL string
	// FIMURL is the fill-in-middle endpoint; empty means unsupported.
	FIMURL string
	// ReasoningFallback reads choices[0].message.reasoning_content when
	// content comes back empty.
	ReasoningFallback bool
}

// Provider is an adapter for one OpenAI-compatible upstream.
type Provider struct {
	opts       Options
	chatClient *http.Client
	fimClient  *http.Client
}

// New constructs the adapter. Separate clients carry the chat and
// fill-in-middle timeouts.
func New(opts Options, chatClient, fimClient *http.Client) (*Provider, error) {
	if opts.Name == "" {
		return nil, errors.New("provider name must not be empty")
	}
	if opts.ChatURL == "" {
		return nil, errors.New("chat url must not be empty")
	}
	if chatClient == nil {
		return nil, errors.New("http client must not be nil")
	}
	if opts.FIMURL != "" && fimClient == nil {
		return nil, errors.New("fim client required when a fim url is configured")
	}
	return &Provider{opts: opts, chatClient: chatClient, fimClient: fimClient}, nil
}

func (p *Provider) Name() string {
	return p.opts.Name
}

type chatPayload struct {
	Model     string               `json:"model"`
	Messages  []models.ChatMessage `json:"messages"`
	MaxTokens int                  `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat posts the canonical messages unchanged; the wire shape is already
// OpenAI's.
func (p *Provider) Chat(ctx context.Context, messages []models.ChatMessage, model string, maxTokens int) (string, error) {
	if p.opts.APIKey == "" {
		return "", fmt.Errorf("%s: %w", p.opts.Name, provider.ErrMissingCredential)
	}

	payload := chatPayload{Model: model, Messages: messages, MaxTokens: maxTokens}

	var resp chatResponse
	if err := p.post(ctx, p.chatClient, p.opts.ChatURL, payload, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}

	content := resp.Choices[0].Message.Content
	if content == "" && p.opts.ReasoningFallback {
		content = resp.Choices[0].Message.ReasoningContent
	}
	return content, nil
}

type fimPayload struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	Suffix    string `json:"suffix"`
	MaxTokens int    `json:"max_tokens"`
}

type fimResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

// FIM posts a prompt/suffix pair to the fill-in-middle endpoint.
func (p *Provider) FIM(ctx context.Context, prompt models.BudgetedPrompt, model string, maxTokens int) (string, error) {
	if p.opts.FIMURL == "" {
		return "", fmt.Errorf("fill-in-middle is not supported by provider %s: %w", p.opts.Name, provider.ErrUnsupportedOperation)
	}
	if p.opts.APIKey == "" {
		return "", fmt.Errorf("%s: %w", p.opts.Name, provider.ErrMissingCredential)
	}

	payload := fimPayload{
		Model:     model,
		Prompt:    prompt.FullPrompt,
		Suffix:    prompt.Suffix,
		MaxTokens: maxTokens,
	}

	var resp fimResponse
	if err := p.post(ctx, p.fimClient, p.opts.FIMURL, payload, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Text, nil
}

func (p *Provider) post(ctx context.Context, client *http.Client, url string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("Authorization", "Bearer "+p.opts.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return provider.ClassifyTransport(p.opts.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return provider.ParseUpstreamError(p.opts.Name, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &provider.UpstreamError{
			Provider:   p.opts.Name,
			StatusCode: resp.StatusCode,
			Message:    "response body is not valid JSON",
		}
	}
	return nil
}
