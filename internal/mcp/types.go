// Package mcp provides the MCP (Model Context Protocol) client layer for
// VentureLens tool providers: JSON-RPC transports and the provider registry
// the research pipeline calls tools through.
package mcp

import (
	"context"
	"encoding/json"
)

// ProviderStatus represents the connection status of a tool provider.
type ProviderStatus string

const (
	ProviderStatusUnknown      ProviderStatus = "unknown"
	ProviderStatusConnecting   ProviderStatus = "connecting"
	ProviderStatusConnected    ProviderStatus = "connected"
	ProviderStatusDisconnected ProviderStatus = "disconnected"
	ProviderStatusError        ProviderStatus = "error"
)

// Protocol represents the MCP transport protocol.
type Protocol string

const (
	ProtocolStdio Protocol = "stdio"
	ProtocolHTTP  Protocol = "http"
)

// Tool describes a tool discovered from a provider.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// CallResult represents the result of calling a provider tool.
type CallResult struct {
	Success   bool            `json:"success"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

// Transport defines the interface for MCP protocol transports.
type Transport interface {
	// Connect establishes connection to the provider.
	Connect(ctx context.Context) error

	// Disconnect closes the connection.
	Disconnect() error

	// ListTools retrieves available tools from the provider.
	ListTools(ctx context.Context) ([]Tool, error)

	// CallTool invokes a tool on the provider.
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallResult, error)

	// IsConnected returns current connection status.
	IsConnected() bool
}

// rpcRequest is a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is a JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
