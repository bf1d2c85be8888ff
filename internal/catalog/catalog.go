// Package catalog is the static registry of supported providers and models.
// The table is fixed at compile time and safe for unsynchronised concurrent
// reads.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProvider indicates the provider key is not in the registry.
var ErrUnknownProvider = errors.New("unknown provider")

// ErrUnsupportedModel indicates the model is not offered by the provider.
var ErrUnsupportedModel = errors.New("unsupported model")

// Entry describes the models a provider offers.
type Entry struct {
	Models      []string          `json:"models"`
	Default     string            `json:"default"`
	Description map[string]string `json:"description"`
}

// providerOrder keeps discovery output stable; Go map iteration is not.
var providerOrder = []string{"deepseek", "openai", "anthropic", "zhipu"}

var registry = map[string]Entry{
	"deepseek": {
		Models:  []string{"deepseek-chat", "deepseek-reasoner"},
		Default: "deepseek-chat",
		Description: map[string]string{
			"deepseek-chat":     "DeepSeek-V3.2 通用对话模型，适合代码补全和日常对话",
			"deepseek-reasoner": "DeepSeek-V3.2 推理模型，支持深度思考模式",
		},
	},
	"openai": {
		Models: []string{
			"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4",
			"gpt-3.5-turbo", "o1", "o1-mini", "o1-preview",
		},
		Default: "gpt-4o",
		Description: map[string]string{
			"gpt-4o":        "GPT-4 优化版，速度快、成本低，推荐使用",
			"gpt-4o-mini":   "轻量版 GPT-4o，更快更便宜",
			"gpt-4-turbo":   "GPT-4 Turbo，支持 128K 上下文",
			"gpt-4":         "GPT-4 原版，稳定可靠",
			"gpt-3.5-turbo": "GPT-3.5，速度快成本低",
			"o1":            "OpenAI o1 推理模型，适合复杂任务",
			"o1-mini":       "轻量版 o1，平衡速度和推理能力",
			"o1-preview":    "o1 预览版",
		},
	},
	"anthropic": {
		Models: []string{
			"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022",
			"claude-3-opus-20240229", "claude-3-sonnet-20240229",
			"claude-3-haiku-20240307",
		},
		Default: "claude-3-5-sonnet-20241022",
		Description: map[string]string{
			"claude-3-5-sonnet-20241022": "Claude 3.5 Sonnet，最新版，性能优异",
			"claude-3-5-haiku-20241022":  "Claude 3.5 Haiku，轻量快速",
			"claude-3-opus-20240229":     "Claude 3 Opus，最强能力",
			"claude-3-sonnet-20240229":   "Claude 3 Sonnet，平衡性能",
			"claude-3-haiku-20240307":    "Claude 3 Haiku，快速响应",
		},
	},
	"zhipu": {
		Models: []string{
			"glm-4.7", "glm-4.6", "glm-4.5", "glm-4.5-air",
			"glm-4-plus", "glm-4-flash", "glm-4",
		},
		Default: "glm-4-flash",
		Description: map[string]string{
			"glm-4.7":     "GLM-4.7 最新版，专注于代码生成和 Agent 任务（推理模型，输出包含思考过程）",
			"glm-4.6":     "GLM-4.6，增强推理和代码能力（推理模型）",
			"glm-4.5":     "GLM-4.5 旗舰版，355B 参数 MoE 架构（推理模型）",
			"glm-4.5-air": "GLM-4.5-Air 轻量版，106B 参数",
			"glm-4-plus":  "GLM-4 Plus，增强版通用模型，推荐用于代码补全",
			"glm-4-flash": "GLM-4 Flash，快速响应版本，推荐用于代码补全",
			"glm-4":       "GLM-4 基础版",
		},
	},
}

// Providers returns the registered provider keys in stable order.
func Providers() []string {
	out := make([]string, len(providerOrder))
	copy(out, providerOrder)
	return out
}

// DefaultModel returns the default model for a provider. The provider key is
// matched case-insensitively.
func DefaultModel(provider string) (string, error) {
	entry, ok := registry[strings.ToLower(provider)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return entry.Default, nil
}

// Validate checks a provider/model pair and returns the model on success.
// Provider keys are case-insensitive; model names are matched exactly.
func Validate(provider, model string) (string, error) {
	entry, ok := registry[strings.ToLower(provider)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	for _, m := range entry.Models {
		if m == model {
			return model, nil
		}
	}
	return "", fmt.Errorf("%w: provider %s does not offer %q", ErrUnsupportedModel, strings.ToLower(provider), model)
}

// All returns a snapshot of the full registry for discovery endpoints.
func All() map[string]Entry {
	out := make(map[string]Entry, len(registry))
	for key, entry := range registry {
		modelsCopy := make([]string, len(entry.Models))
		copy(modelsCopy, entry.Models)
		descCopy := make(map[string]string, len(entry.Description))
		for k, v := range entry.Description {
			descCopy[k] = v
		}
		out[key] = Entry{
			Models:      modelsCopy,
			Default:     entry.Default,
			Description: descCopy,
		}
	}
	return out
}
