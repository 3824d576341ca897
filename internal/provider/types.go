// Package provider manages the external tool providers: long-lived
// subprocesses speaking line-delimited JSON-RPC over stdio, each exposing a
// namespaced set of callable tools. Providers are started once at process
// startup and shared across all concurrent requests; the per-call protocol
// is stateless.
package provider

import (
	"context"
	"encoding/json"
	"time"
)

// Config describes one tool provider subprocess.
type Config struct {
	Name    string            `json:"-"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	CWD     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Timeout time.Duration     `json:"-"`
}

// configFile is the on-disk registry document shape.
type configFile struct {
	Providers map[string]*Config `json:"providers"`
}

// Tool describes one callable tool as reported by a provider.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// CallResult is the outcome of a tool call.
type CallResult struct {
	Content []ResultContent `json:"content"`
	IsError bool            `json:"isError,omitempty"`
}

// ResultContent is one content item in a tool call result.
type ResultContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Text concatenates the textual content of the result.
func (r *CallResult) Text() string {
	var out string
	for _, c := range r.Content {
		out += c.Text
	}
	return out
}

// CallFunc forwards a tool call to the owning provider. Hooks call it
// exactly once per intercepted call; meta is reserved for transport
// extensions and is normally empty.
type CallFunc func(ctx context.Context, name string, args, meta map[string]any) (*CallResult, error)

// Hook intercepts an outbound tool call before it reaches the provider,
// typically to inject per-request credentials into args, then forwards via
// next. Hooks must be additive: they may add argument keys but never remove
// or overwrite pre-existing ones.
type Hook func(ctx context.Context, next CallFunc, name string, args map[string]any) (*CallResult, error)

// JSON-RPC 2.0 wire types.

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// initializeResult is the provider's half of the session handshake.
type initializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      serverInfo `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type listToolsResult struct {
	Tools []*Tool `json:"tools"`
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Meta      json.RawMessage `json:"_meta,omitempty"`
}
