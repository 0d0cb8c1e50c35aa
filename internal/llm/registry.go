package llm

import (
	"fmt"
	"slices"
	"sync"

	"github.com/soyeahso/ghagent/internal/config"
	"github.com/soyeahso/ghagent/internal/logging"
)

// ProviderError is returned when a model provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (404, 429, 500, etc.), 0 when unknown
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Registry manages provider clients and resolves provider names to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Debug().Str("provider", name).Msg("registered model provider")
}

// Alias maps an alternative name to a provider.
// e.g., Alias("vllm", "openai") means "vllm" resolves to the "openai" provider.
func (r *Registry) Alias(alias, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = provider
}

// SetFallback sets the provider used when no name or alias matches.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for the given provider reference.
// Resolution order: exact provider name → alias → fallback.
func (r *Registry) Resolve(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[name]; ok {
		return c, nil
	}
	if provider, ok := r.aliases[name]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}
	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no model provider %q", name)
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// NewRegistryFromConfig registers both built-in providers against the
// configured endpoint and makes the configured provider the fallback.
func NewRegistryFromConfig(cfg config.ModelConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	reg.Register("ollama", NewOllamaAPIClient(cfg.BaseURL(), cfg.Name))
	reg.Register("openai", NewOpenAIClient(cfg.BaseURL()+"/v1", cfg.APIKey, cfg.Name))
	for _, alias := range []string{"openai-compatible", "vllm", "lmstudio", "llamacpp"} {
		reg.Alias(alias, "openai")
	}
	reg.SetFallback(cfg.Provider)
	return reg
}
