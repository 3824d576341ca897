package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Registry is the shared tool surface over all connected providers. Tool
// names are published as "<prefix>_<name>"; dispatch resolves the owning
// provider from a lookup table built once at construction. The registry is
// read-only after Build and safe for concurrent use.
type Registry struct {
	providers []*Provider
	byPrefix  map[string]*Provider
	logger    *slog.Logger
}

// NewRegistry builds the dispatch table over already-loaded providers.
func NewRegistry(providers []*Provider, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	byPrefix := make(map[string]*Provider, len(providers))
	for _, p := range providers {
		byPrefix[p.Prefix()] = p
	}
	return &Registry{
		providers: providers,
		byPrefix:  byPrefix,
		logger:    logger.With("component", "provider-registry"),
	}
}

// ConnectAll starts every provider subprocess. Any failure closes the
// providers already started so no subprocess leaks past a failed startup.
func (r *Registry) ConnectAll(ctx context.Context) error {
	for i, p := range r.providers {
		if err := p.Connect(ctx); err != nil {
			for _, started := range r.providers[:i] {
				started.Close()
			}
			return fmt.Errorf("connect provider %q: %w", p.Name(), err)
		}
	}
	return nil
}

// CloseAll stops every provider subprocess. Providers stay connected for the
// process lifetime; this runs only at shutdown.
func (r *Registry) CloseAll() {
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			r.logger.Warn("failed to close provider", "provider", p.Name(), "error", err)
		}
	}
}

// Providers returns the registered providers.
func (r *Registry) Providers() []*Provider {
	return r.providers
}

// Tools returns every tool across all providers under its namespaced name.
func (r *Registry) Tools() []*Tool {
	var tools []*Tool
	for _, p := range r.providers {
		for _, t := range p.Tools() {
			tools = append(tools, &Tool{
				Name:        p.Prefix() + "_" + t.Name,
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
		}
	}
	return tools
}

// Call dispatches a namespaced tool call to the owning provider, which
// applies its interception hook before the call leaves the process.
func (r *Registry) Call(ctx context.Context, namespacedName string, args map[string]any) (*CallResult, error) {
	p, localName, err := r.resolve(namespacedName)
	if err != nil {
		return nil, err
	}
	return p.Call(ctx, localName, args)
}

// resolve finds the provider owning a namespaced tool name. Longest-prefix
// match guards against one prefix being a prefix of another.
func (r *Registry) resolve(namespacedName string) (*Provider, string, error) {
	var (
		best      *Provider
		bestLocal string
	)
	for prefix, p := range r.byPrefix {
		if rest, ok := strings.CutPrefix(namespacedName, prefix+"_"); ok {
			if best == nil || len(prefix) > len(best.Prefix()) {
				best = p
				bestLocal = rest
			}
		}
	}
	if best == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrToolNotFound, namespacedName)
	}
	return best, bestLocal, nil
}
