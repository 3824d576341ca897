package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const protocolVersion = "2024-11-05"

// Provider is one connected tool provider: a subprocess transport, the
// namespace prefix its tools are published under, and the optional
// interception hook applied to every outbound call.
type Provider struct {
	config    *Config
	prefix    string
	hook      Hook
	transport *stdioTransport
	logger    *slog.Logger

	mu    sync.RWMutex
	tools []*Tool

	serverInfo serverInfo
}

// NewProvider builds an unconnected provider. prefix is the normalized
// namespace prefix (see NormalizePrefix); hook may be nil for pass-through.
func NewProvider(cfg *Config, prefix string, hook Hook, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("provider", cfg.Name)
	return &Provider{
		config:    cfg,
		prefix:    prefix,
		hook:      hook,
		transport: newStdioTransport(cfg, logger),
		logger:    logger,
	}
}

// Name returns the provider's configured name.
func (p *Provider) Name() string { return p.config.Name }

// SetCallTimeout overrides the per-call timeout for this provider. Zero
// keeps the transport default. Must be called before Connect.
func (p *Provider) SetCallTimeout(d time.Duration) {
	p.config.Timeout = d
}

// Prefix returns the namespace prefix tools are published under.
func (p *Provider) Prefix() string { return p.prefix }

// Connect starts the subprocess, performs the session handshake and caches
// the provider's tool list.
func (p *Provider) Connect(ctx context.Context) error {
	if err := p.transport.connect(ctx); err != nil {
		return fmt.Errorf("transport connect: %w", err)
	}

	result, err := p.transport.call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "deskpilot",
			"version": "1.0.0",
		},
	})
	if err != nil {
		p.transport.close()
		return fmt.Errorf("initialize: %w", err)
	}

	var initResult initializeResult
	if err := json.Unmarshal(result, &initResult); err != nil {
		p.transport.close()
		return fmt.Errorf("parse initialize result: %w", err)
	}
	p.serverInfo = initResult.ServerInfo
	p.logger.Info("connected to provider",
		"name", p.serverInfo.Name,
		"version", p.serverInfo.Version,
		"protocol", initResult.ProtocolVersion)

	if err := p.transport.notify("notifications/initialized", nil); err != nil {
		p.logger.Warn("failed to send initialized notification", "error", err)
	}

	if err := p.refreshTools(ctx); err != nil {
		p.transport.close()
		return fmt.Errorf("list tools: %w", err)
	}
	return nil
}

// Close kills the subprocess.
func (p *Provider) Close() error {
	return p.transport.close()
}

// Connected reports whether the transport is up.
func (p *Provider) Connected() bool {
	return p.transport.connected.Load()
}

func (p *Provider) refreshTools(ctx context.Context) error {
	result, err := p.transport.call(ctx, "tools/list", nil)
	if err != nil {
		return err
	}
	var resp listToolsResult
	if err := json.Unmarshal(result, &resp); err != nil {
		return fmt.Errorf("parse tools list: %w", err)
	}

	p.mu.Lock()
	p.tools = resp.Tools
	p.mu.Unlock()
	p.logger.Debug("refreshed tools", "count", len(resp.Tools))
	return nil
}

// Tools returns the cached tool list, names unprefixed.
func (p *Provider) Tools() []*Tool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tools
}

// Call invokes a tool on the provider, routing through the interception
// hook when one is bound. name is the provider-local tool name; the hook
// sees the namespaced form, which is the name the model requested and the
// name injection rules suffix-match against.
func (p *Provider) Call(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	namespaced := p.prefix + "_" + name
	if p.hook == nil {
		return p.forward(ctx, namespaced, args, nil)
	}
	return p.hook(ctx, p.forward, namespaced, args)
}

// forward performs the raw provider call. It is handed to hooks as their
// next stage. The namespace prefix is stripped before the name goes over
// the wire; the subprocess knows its tools unprefixed.
func (p *Provider) forward(ctx context.Context, name string, args, meta map[string]any) (*CallResult, error) {
	params := callToolParams{Name: strings.TrimPrefix(name, p.prefix+"_")}
	if args != nil {
		argsJSON, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshal arguments: %w", err)
		}
		params.Arguments = argsJSON
	}
	if len(meta) > 0 {
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("marshal meta: %w", err)
		}
		params.Meta = metaJSON
	}

	result, err := p.transport.call(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}

	var callResult CallResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		return nil, fmt.Errorf("parse tool result: %w", err)
	}
	return &callResult, nil
}
