// Package factory constructs the four provider adapters from configuration
// and credentials and registers them.
package factory

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/knight1008610000/codegen-server/internal/config"
	"github.com/knight1008610000/codegen-server/internal/provider"
	anthropicProvider "github.com/knight1008610000/codegen-server/internal/provider/anthropic"
	"github.com/knight1008610000/codegen-server/internal/provider/openaicompat"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// Upstream endpoints, overridable per provider via config base_url.
const (
	deepseekBaseURL  = "https://api.deepseek.com"
	openaiBaseURL    = "https://api.openai.com"
	anthropicBaseURL = "https://api.anthropic.com"
	zhipuBaseURL     = "https://open.bigmodel.cn"

	deepseekChatPath = "/v1/chat/completions"
	deepseekFIMPath  = "/beta/completions"
	openaiChatPath   = "/v1/chat/completions"
	anthropicPath    = "/v1/messages"
	zhipuChatPath    = "/api/coding/paas/v4/chat/completions"
)

// RegisterConfiguredProviders builds all four adapters and stores them in the
// registry. Adapters with missing credentials are still registered; they fail
// with ErrMissingCredential on first use so the root cause stays visible.
func RegisterConfiguredProviders(cfg config.Config, creds config.Credentials, registry *provider.Registry) error {
	deepseekCfg := cfg.Provider("deepseek")
	deepseek, err := openaicompat.New(openaicompat.Options{
		Name:    "deepseek",
		APIKey:  creds.DeepSeek,
		ChatURL: baseURL(deepseekCfg, deepseekBaseURL) + deepseekChatPath,
		FIMURL:  baseURL(deepseekCfg, deepseekBaseURL) + deepseekFIMPath,
	}, newHTTPClient(deepseekCfg.ChatTimeoutOr()), newHTTPClient(deepseekCfg.FIMTimeoutOr()))
	if err != nil {
		return fmt.Errorf("initialise deepseek provider: %w", err)
	}
	if err := registry.Register(deepseek); err != nil {
		return fmt.Errorf("register deepseek provider: %w", err)
	}

	openaiCfg := cfg.Provider("openai")
	openai, err := openaicompat.New(openaicompat.Options{
		Name:    "openai",
		APIKey:  creds.OpenAI,
		ChatURL: baseURL(openaiCfg, openaiBaseURL) + openaiChatPath,
	}, newHTTPClient(openaiCfg.ChatTimeoutOr()), nil)
	if err != nil {
		return fmt.Errorf("initialise openai provider: %w", err)
	}
	if err := registry.Register(openai); err != nil {
		return fmt.Errorf("register openai provider: %w", err)
	}

	anthropicCfg := cfg.Provider("anthropic")
	anthropic, err := anthropicProvider.New(
		"anthropic",
		creds.Anthropic,
		baseURL(anthropicCfg, anthropicBaseURL)+anthropicPath,
		newHTTPClient(anthropicCfg.ChatTimeoutOr()),
	)
	if err != nil {
		return fmt.Errorf("initialise anthropic provider: %w", err)
	}
	if err := registry.Register(anthropic); err != nil {
		return fmt.Errorf("register anthropic provider: %w", err)
	}

	zhipuCfg := cfg.Provider("zhipu")
	zhipu, err := openaicompat.New(openaicompat.Options{
		Name:              "zhipu",
		APIKey:            creds.Zhipu,
		ChatURL:           baseURL(zhipuCfg, zhipuBaseURL) + zhipuChatPath,
		ReasoningFallback: true,
	}, newHTTPClient(zhipuCfg.ChatTimeoutOr()), nil)
	if err != nil {
		return fmt.Errorf("initialise zhipu provider: %w", err)
	}
	if err := registry.Register(zhipu); err != nil {
		return fmt.Errorf("register zhipu provider: %w", err)
	}

	return nil
}

func baseURL(pc config.ProviderConfig, fallback string) string {
	if pc.BaseURL != "" {
		return strings.TrimRight(pc.BaseURL, "/")
	}
	return fallback
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
