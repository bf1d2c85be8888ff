// Package provider defines the capability contract every upstream LLM
// service is hidden behind, plus the registry that maps provider keys to
// implementations.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/knight1008610000/codegen-server/internal/catalog"
	"github.com/knight1008610000/codegen-server/internal/models"
)

// ErrUnsupportedOperation indicates the provider cannot fulfil the requested
// call style (only DeepSeek speaks the fill-in-middle protocol).
var ErrUnsupportedOperation = errors.New("unsupported provider operation")

// Provider is the single contract all four upstreams are lowered to.
//
// Chat sends the canonical message sequence and returns the raw completion
// text. FIM sends an already-budgeted prompt/suffix pair to a fill-in-middle
// endpoint. An empty return with a nil error is a valid outcome: the model
// had nothing to suggest.
type Provider interface {
	Name() string
	Chat(ctx context.Context, messages []models.ChatMessage, model string, maxTokens int) (string, error)
	FIM(ctx context.Context, prompt models.BudgetedPrompt, model string, maxTokens int) (string, error)
}

// Registry maps provider keys to adapters. Registration happens once at
// startup; lookups are concurrent.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Provider
}

// NewRegistry constructs an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Provider)}
}

// Register adds a provider under its own name.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return errors.New("provider must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[p.Name()]; exists {
		return fmt.Errorf("provider %q already registered", p.Name())
	}
	r.byName[p.Name()] = p
	return nil
}

// Get returns the adapter for a provider key.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", catalog.ErrUnknownProvider, name)
	}
	return p, nil
}
