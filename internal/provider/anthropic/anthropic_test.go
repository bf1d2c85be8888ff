package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/knight1008610000/codegen-server/internal/models"
	"github.com/knight1008610000/codegen-server/internal/provider"
)

func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New("anthropic", "test-key", srv.URL+"/v1/messages", srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestChatLowersSystemMessage(t *testing.T) {
	var gotBody messagePayload
	var gotKey, gotVersion string

	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"done"}]}`))
	}))

	messages := []models.ChatMessage{
		{Role: models.RoleSystem, Content: "be brief"},
		{Role: models.RoleUser, Content: "complete this"},
		{Role: models.RoleSystem, Content: "ignored second system"},
		{Role: models.RoleUser, Content: "ignored second user"},
	}
	got, err := p.Chat(context.Background(), messages, "claude-3-haiku-20240307", 64)
	if err != nil {
		t.Fatal(err)
	}

	if got != "done" {
		t.Errorf("text = %q", got)
	}
	if gotKey != "test-key" {
		t.Errorf("x-api-key = %q", gotKey)
	}
	if gotVersion != apiVersion {
		t.Errorf("anthropic-version = %q, want %q", gotVersion, apiVersion)
	}
	if gotBody.System != "be brief" {
		t.Errorf("system = %q, want first system message hoisted", gotBody.System)
	}
	if len(gotBody.Messages) != 1 {
		t.Fatalf("messages = %+v, want exactly one user entry", gotBody.Messages)
	}
	if gotBody.Messages[0].Role != "user" || gotBody.Messages[0].Content != "complete this" {
		t.Errorf("messages[0] = %+v, want the first user message", gotBody.Messages[0])
	}
	if gotBody.MaxTokens != 64 {
		t.Errorf("max_tokens = %d, want 64", gotBody.MaxTokens)
	}
}

func TestChatOmitsSystemFieldWhenAbsent(t *testing.T) {
	var raw map[string]any

	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))

	_, err := p.Chat(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, "claude-3-haiku-20240307", 64)
	if err != nil {
		t.Fatal(err)
	}
	if _, present := raw["system"]; present {
		t.Error("system field sent despite no system message")
	}
}

func TestChatEmptyContentIsNotAnError(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))

	got, err := p.Chat(context.Background(), nil, "claude-3-haiku-20240307", 64)
	if err != nil {
		t.Fatalf("empty content must not error: %v", err)
	}
	if got != "" {
		t.Errorf("text = %q, want empty", got)
	}
}

func TestChatMissingCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request was sent despite missing credential")
	}))
	defer srv.Close()

	p, err := New("anthropic", "", srv.URL, srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Chat(context.Background(), nil, "claude-3-haiku-20240307", 64)
	if !errors.Is(err, provider.ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
}

func TestChatUpstreamError(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))

	_, err := p.Chat(context.Background(), nil, "claude-3-haiku-20240307", 64)

	var upErr *provider.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if upErr.StatusCode != http.StatusUnauthorized || upErr.Message != "invalid x-api-key" {
		t.Errorf("UpstreamError = %+v", upErr)
	}
}

func TestFIMUnsupported(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := p.FIM(context.Background(), models.BudgetedPrompt{}, "claude-3-haiku-20240307", 64)
	if !errors.Is(err, provider.ErrUnsupportedOperation) {
		t.Fatalf("err = %v, want ErrUnsupportedOperation", err)
	}
}
