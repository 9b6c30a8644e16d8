package mcp

import (
	"context"
	"encoding/json"
)

// ToolHandler executes a tool call with already-validated arguments. Handlers
// are pure functions: they may fail with a *Error carrying an application
// error code, but must not retain state between calls.
type ToolHandler func(ctx context.Context, params CallToolParams) (CallToolResult, error)

// Tool describes a named, schema-described operation exposed for invocation.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Handler     ToolHandler     `json:"-"`
}

// CallToolParams represents parameters for calling a tool.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResultContent represents the content returned by a tool.
type ToolResultContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallToolResult represents the result of calling a tool.
type CallToolResult struct {
	Content []ToolResultContent `json:"content"`
	IsError bool                `json:"isError,omitempty"`
}

// ListToolsResult represents the result of listing available tools.
type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// ListParams carries the pagination cursor shared by the list methods.
type ListParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// ResourceHandler produces the current text content of a resource.
type ResourceHandler func(ctx context.Context) (string, error)

// Resource describes a readable resource.
type Resource struct {
	URI         string          `json:"uri"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	MimeType    string          `json:"mimeType,omitempty"`
	Handler     ResourceHandler `json:"-"`
}

// ReadResourceParams represents parameters for reading a resource.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ResourceContent is a single content entry of a read resource.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

// ReadResourceResult represents the result of reading a resource.
type ReadResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}

// ListResourcesResult represents the result of listing resources.
type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// PromptHandler renders a prompt for the given arguments.
type PromptHandler func(ctx context.Context, args map[string]string) (PromptGetResponse, error)

// Prompt describes a parameterized prompt template.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
	Handler     PromptHandler    `json:"-"`
}

// PromptArgument describes a single prompt argument.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// PromptMessage is one message of a rendered prompt.
type PromptMessage struct {
	Role    string        `json:"role"`
	Content PromptContent `json:"content"`
}

// PromptContent holds prompt message content. Only text is supported.
type PromptContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// GetPromptParams represents parameters for fetching a prompt.
type GetPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// PromptGetResponse is the rendered prompt returned by prompts/get.
type PromptGetResponse struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// ListPromptsResult represents the result of listing prompts.
type ListPromptsResult struct {
	Prompts    []Prompt `json:"prompts"`
	NextCursor string   `json:"nextCursor,omitempty"`
}

// ServerInfo identifies the server implementation.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsCapability advertises tool support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ResourcesCapability advertises resource support.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe"`
	ListChanged bool `json:"listChanged"`
}

// PromptsCapability advertises prompt support.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// Capabilities describes which categories the server advertises. The value
// is derived from the registry contents on demand, never stored.
type Capabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
}

// InitializeParams are the client-supplied initialize parameters.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

// InitializeResult is the server's answer to initialize.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// LogLevel represents the severity of a log message notification.
type LogLevel string

// Log levels in decreasing order of severity.
const (
	LogLevelEmergency LogLevel = "emergency"
	LogLevelAlert     LogLevel = "alert"
	LogLevelCritical  LogLevel = "critical"
	LogLevelError     LogLevel = "error"
	LogLevelWarning   LogLevel = "warning"
	LogLevelNotice    LogLevel = "notice"
	LogLevelInfo      LogLevel = "info"
	LogLevelDebug     LogLevel = "debug"
)

var logLevelSeverity = map[LogLevel]int{
	LogLevelEmergency: 0,
	LogLevelAlert:     1,
	LogLevelCritical:  2,
	LogLevelError:     3,
	LogLevelWarning:   4,
	LogLevelNotice:    5,
	LogLevelInfo:      6,
	LogLevelDebug:     7,
}

// SetLogLevelParams are the parameters of logging/setLevel.
type SetLogLevelParams struct {
	Level LogLevel `json:"level"`
}

// LogMessageParams are the parameters of notifications/message.
type LogMessageParams struct {
	Level  LogLevel    `json:"level"`
	Logger string      `json:"logger,omitempty"`
	Data   interface{} `json:"data"`
}
