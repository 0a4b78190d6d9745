package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrToolNotFound is returned by Invoke when the provider is unreachable or
// does not expose the requested tool. Callers are expected to guard Invoke
// with Has, so hitting this error is a contract violation on their side.
var ErrToolNotFound = errors.New("mcp: tool not found")

// ProviderConfig describes one tool provider the registry connects to.
type ProviderConfig struct {
	Name     string
	Enabled  bool
	Protocol Protocol
	Command  string // stdio protocol
	BaseURL  string // http protocol
	Timeout  time.Duration
}

// providerConn holds the connection state for a single provider.
type providerConn struct {
	config    ProviderConfig
	transport Transport
	tools     map[string]Tool
	status    ProviderStatus
}

// Registry connects to a configured set of tool providers and exposes their
// tools in a flat provider/tool namespace. A provider that cannot be reached
// or enumerated degrades to an empty tool set instead of failing Connect, so
// one dead provider never blocks the others.
type Registry struct {
	mu sync.RWMutex

	logger    *zap.Logger
	configs   []ProviderConfig
	providers map[string]*providerConn
	connected bool

	// newTransport builds a transport for a provider config. Tests replace it.
	newTransport func(ProviderConfig) Transport
}

// NewRegistry creates a registry for the given provider configs.
func NewRegistry(configs []ProviderConfig, logger *zap.Logger) *Registry {
	r := &Registry{
		logger:    logger,
		configs:   configs,
		providers: make(map[string]*providerConn),
	}
	r.newTransport = r.defaultTransport
	return r
}

func (r *Registry) defaultTransport(cfg ProviderConfig) Transport {
	switch cfg.Protocol {
	case ProtocolHTTP:
		return NewHTTPTransport(cfg.BaseURL, cfg.Timeout)
	default:
		return NewStdioTransport(cfg.Command, r.logger.Named(cfg.Name))
	}
}

// Connect connects to every enabled provider and enumerates its tools.
// Idempotent: a second call is a no-op. Individual provider failures are
// logged and leave that provider with an empty tool set.
func (r *Registry) Connect(ctx context.Context) {
	r.mu.Lock()
	if r.connected {
		r.mu.Unlock()
		return
	}
	r.connected = true
	configs := r.configs
	r.mu.Unlock()

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		conn := &providerConn{
			config: cfg,
			tools:  make(map[string]Tool),
			status: ProviderStatusConnecting,
		}
		r.mu.Lock()
		r.providers[cfg.Name] = conn
		r.mu.Unlock()

		transport := r.newTransport(cfg)
		if err := transport.Connect(ctx); err != nil {
			r.logger.Warn("could not connect to tool provider",
				zap.String("provider", cfg.Name),
				zap.Error(err))
			r.setStatus(cfg.Name, ProviderStatusError)
			continue
		}

		tools, err := transport.ListTools(ctx)
		if err != nil {
			r.logger.Warn("could not list tools from provider",
				zap.String("provider", cfg.Name),
				zap.Error(err))
			_ = transport.Disconnect()
			r.setStatus(cfg.Name, ProviderStatusError)
			continue
		}

		r.mu.Lock()
		conn.transport = transport
		conn.status = ProviderStatusConnected
		for _, tool := range tools {
			conn.tools[tool.Name] = tool
		}
		r.mu.Unlock()

		names := make([]string, 0, len(tools))
		for _, tool := range tools {
			names = append(names, tool.Name)
		}
		r.logger.Info("loaded tools from provider",
			zap.String("provider", cfg.Name),
			zap.Strings("tools", names))
	}
}

func (r *Registry) setStatus(provider string, status ProviderStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.providers[provider]; ok {
		conn.status = status
	}
}

// Status reports the connection status of a named provider. Providers never
// configured (or not yet connected) report unknown.
func (r *Registry) Status(provider string) ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.providers[provider]
	if !ok {
		return ProviderStatusUnknown
	}
	return conn.status
}

// Has reports whether the given provider exposes the given tool.
func (r *Registry) Has(provider, tool string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.providers[provider]
	if !ok {
		return false
	}
	_, ok = conn.tools[tool]
	return ok
}

// Invoke calls a tool on a provider and returns its text payload.
// Returns ErrToolNotFound when the provider/tool pair is not registered.
func (r *Registry) Invoke(ctx context.Context, provider, tool string, args map[string]interface{}) (string, error) {
	r.mu.RLock()
	conn, ok := r.providers[provider]
	var transport Transport
	if ok {
		_, ok = conn.tools[tool]
		transport = conn.transport
	}
	r.mu.RUnlock()

	if !ok || transport == nil {
		return "", fmt.Errorf("%w: %s/%s", ErrToolNotFound, provider, tool)
	}

	result, err := transport.CallTool(ctx, tool, args)
	if err != nil {
		return "", fmt.Errorf("call %s/%s: %w", provider, tool, err)
	}
	if !result.Success {
		return "", fmt.Errorf("call %s/%s: %s", provider, tool, result.Error)
	}

	text, isErr := unwrapContent(result.Output)
	if isErr {
		return "", fmt.Errorf("call %s/%s: %s", provider, tool, text)
	}
	return text, nil
}

// Tools returns the tools registered under a provider.
func (r *Registry) Tools(provider string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.providers[provider]
	if !ok {
		return nil
	}
	tools := make([]Tool, 0, len(conn.tools))
	for _, tool := range conn.tools {
		tools = append(tools, tool)
	}
	return tools
}

// ConnectedProviders returns the names of providers with a live transport,
// in configuration order.
func (r *Registry) ConnectedProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for _, cfg := range r.configs {
		conn, ok := r.providers[cfg.Name]
		if ok && conn.transport != nil && conn.transport.IsConnected() {
			names = append(names, cfg.Name)
		}
	}
	return names
}

// Close disconnects all providers.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, conn := range r.providers {
		if conn.transport != nil {
			if err := conn.transport.Disconnect(); err != nil {
				r.logger.Warn("error disconnecting provider",
					zap.String("provider", name),
					zap.Error(err))
			}
			conn.transport = nil
		}
		conn.tools = make(map[string]Tool)
		conn.status = ProviderStatusDisconnected
	}
	r.connected = false
}

// unwrapContent extracts the text payload from an MCP tools/call result.
// The result wraps one or more content blocks; text blocks are joined.
// Output that does not match the envelope is returned verbatim so callers
// can still use it as an opaque blob.
func unwrapContent(output json.RawMessage) (text string, isError bool) {
	if len(output) == 0 {
		return "", false
	}

	var envelope struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(output, &envelope); err != nil || len(envelope.Content) == 0 {
		return string(output), false
	}

	var parts []string
	for _, block := range envelope.Content {
		if block.Type == "" || block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n"), envelope.IsError
}
