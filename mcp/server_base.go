package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/shaharia-lab/timemcp/observability"
)

const (
	// ProtocolVersion is the protocol revision answered by default.
	ProtocolVersion = "2025-03-26"
	// FallbackProtocolVersion is also accepted and echoed when requested.
	FallbackProtocolVersion = "2025-06-18"

	defaultServerName = "time-mcp-server"
	serverVersion     = "1.0.0"
)

// ServerConfig holds all configuration for BaseServer
type ServerConfig struct {
	logger          observability.Logger
	protocolVersion string
	serverName      string
	serverVersion   string
	minLogLevel     LogLevel
}

// ServerConfigOption is a function that modifies ServerConfig
type ServerConfigOption func(*ServerConfig)

// UseLogger sets a custom logger
func UseLogger(logger observability.Logger) ServerConfigOption {
	return func(c *ServerConfig) {
		c.logger = logger
	}
}

// UseServerInfo sets server name and version
func UseServerInfo(name, version string) ServerConfigOption {
	return func(c *ServerConfig) {
		c.serverName = name
		c.serverVersion = version
	}
}

// UseLogLevel sets minimum log level
func UseLogLevel(level LogLevel) ServerConfigOption {
	return func(c *ServerConfig) {
		c.minLogLevel = level
	}
}

// BaseServer contains the registry and dispatcher shared by all transports.
// Tools, resources and prompts are registered before a transport starts and
// the maps are read-only afterwards, so concurrent request handlers read
// them without synchronization.
type BaseServer struct {
	protocolVersion    string
	clientCapabilities map[string]any
	logger             observability.Logger
	ServerInfo         ServerInfo
	minLogLevel        atomic.Value // LogLevel, mutable via logging/setLevel

	tools     map[string]Tool
	resources map[string]Resource
	prompts   map[string]Prompt
	started   atomic.Bool

	sendResp func(clientID string, id *json.RawMessage, result interface{}, err *Error)
	sendErr  func(clientID string, id *json.RawMessage, code int, message string, data interface{})
	sendNoti func(clientID string, method string, params interface{})
}

// NewBaseServer creates a new BaseServer instance with the given options
func NewBaseServer(opts ...ServerConfigOption) (*BaseServer, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &BaseServer{
		protocolVersion: cfg.protocolVersion,
		logger:          cfg.logger,
		ServerInfo: ServerInfo{
			Name:    cfg.serverName,
			Version: cfg.serverVersion,
		},
		tools:       make(map[string]Tool),
		resources:   make(map[string]Resource),
		prompts:     make(map[string]Prompt),
		sendResp:    func(clientID string, id *json.RawMessage, result interface{}, err *Error) {},
		sendErr:     func(clientID string, id *json.RawMessage, code int, message string, data interface{}) {},
		sendNoti:    func(clientID string, method string, params interface{}) {},
	}
	s.minLogLevel.Store(cfg.minLogLevel)

	return s, nil
}

func defaultConfig() *ServerConfig {
	return &ServerConfig{
		logger:          observability.NewDefaultLogger(),
		protocolVersion: ProtocolVersion,
		serverName:      defaultServerName,
		serverVersion:   serverVersion,
		minLogLevel:     LogLevelInfo,
	}
}

// AddTools registers tools. It must be called before any transport starts;
// duplicate names and invalid definitions are rejected.
func (s *BaseServer) AddTools(tools ...Tool) error {
	if s.started.Load() {
		return fmt.Errorf("registry is immutable once a transport has started")
	}
	for _, tool := range tools {
		if tool.Name == "" {
			return fmt.Errorf("tool name cannot be empty")
		}
		if tool.Handler == nil {
			return fmt.Errorf("tool %s has no handler", tool.Name)
		}
		if _, exists := s.tools[tool.Name]; exists {
			return fmt.Errorf("duplicate tool: %s", tool.Name)
		}
		if tool.InputSchema != nil {
			loader := gojsonschema.NewStringLoader(string(tool.InputSchema))
			if _, err := gojsonschema.NewSchema(loader); err != nil {
				return fmt.Errorf("tool %s has an invalid input schema: %w", tool.Name, err)
			}
		}
		s.tools[tool.Name] = tool
	}
	return nil
}

// AddResources registers resources. Same startup-only rules as AddTools.
func (s *BaseServer) AddResources(resources ...Resource) error {
	if s.started.Load() {
		return fmt.Errorf("registry is immutable once a transport has started")
	}
	for _, resource := range resources {
		if resource.URI == "" {
			return fmt.Errorf("resource URI cannot be empty")
		}
		if resource.Handler == nil {
			return fmt.Errorf("resource %s has no handler", resource.URI)
		}
		if _, exists := s.resources[resource.URI]; exists {
			return fmt.Errorf("duplicate resource: %s", resource.URI)
		}
		s.resources[resource.URI] = resource
	}
	return nil
}

// AddPrompts registers prompts. Same startup-only rules as AddTools.
func (s *BaseServer) AddPrompts(prompts ...Prompt) error {
	if s.started.Load() {
		return fmt.Errorf("registry is immutable once a transport has started")
	}
	for _, prompt := range prompts {
		if prompt.Name == "" {
			return fmt.Errorf("prompt name cannot be empty")
		}
		if prompt.Handler == nil {
			return fmt.Errorf("prompt %s has no handler", prompt.Name)
		}
		if _, exists := s.prompts[prompt.Name]; exists {
			return fmt.Errorf("duplicate prompt: %s", prompt.Name)
		}
		s.prompts[prompt.Name] = prompt
	}
	return nil
}

// markStarted freezes the registry. Transports call this before accepting
// the first message.
func (s *BaseServer) markStarted() {
	s.started.Store(true)
}

// CapabilitiesSnapshot derives the advertised capabilities from the registry
// contents. It is recomputed on demand and never stored.
func (s *BaseServer) CapabilitiesSnapshot() Capabilities {
	var caps Capabilities
	if len(s.tools) > 0 {
		caps.Tools = &ToolsCapability{ListChanged: false}
	}
	if len(s.resources) > 0 {
		caps.Resources = &ResourcesCapability{Subscribe: false, ListChanged: false}
	}
	if len(s.prompts) > 0 {
		caps.Prompts = &PromptsCapability{ListChanged: false}
	}
	return caps
}

// LogMessage emits a notifications/message to the connected client when the
// level passes the configured threshold.
func (s *BaseServer) LogMessage(level LogLevel, loggerName string, data interface{}) {
	minLevel, _ := s.minLogLevel.Load().(LogLevel)
	if logLevelSeverity[level] > logLevelSeverity[minLevel] {
		return
	}

	params := LogMessageParams{
		Level:  level,
		Logger: loggerName,
		Data:   data,
	}
	s.sendNoti("", "notifications/message", params)
}

// HandleMessage decodes one raw message and routes it: requests are
// dispatched and answered, notifications are handled without a response,
// and malformed input is answered with the corresponding protocol error.
func (s *BaseServer) HandleMessage(ctx context.Context, clientID string, raw []byte) {
	request, decodeErr := DecodeRequest(raw)
	if decodeErr != nil {
		s.logger.WithFields(map[string]interface{}{
			"clientID": clientID,
			"code":     decodeErr.Code,
		}).Warn("Rejecting malformed message")

		s.sendErr(clientID, nil, decodeErr.Code, decodeErr.Message, decodeErr.Data)
		return
	}

	if request.IsNotification() {
		s.handleNotification(ctx, clientID, &Notification{
			JSONRPC: request.JSONRPC,
			Method:  request.Method,
			Params:  request.Params,
		})
		return
	}

	s.handleRequest(ctx, clientID, request)
}

// handleRequest dispatches a validated request. Panics inside handlers are
// contained here so a single bad request can never take the serving loop
// down; the client sees a generic -32603 without internal details.
func (s *BaseServer) handleRequest(ctx context.Context, clientID string, request *Request) {
	ctx, span := observability.StartSpan(ctx, "BaseServer.handleRequest")
	defer span.End()
	span.SetAttributes(attribute.String("method", request.Method))

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(map[string]interface{}{
				"clientID": clientID,
				"method":   request.Method,
				"panic":    fmt.Sprint(r),
			}).Error("Recovered panic while handling request")

			span.SetStatus(codes.Error, "panic")
			s.sendErr(clientID, request.ID, ErrorCodeInternal, "Internal error", nil)
		}
	}()

	s.logger.WithFields(map[string]interface{}{
		"clientID": clientID,
		"method":   request.Method,
	}).Debug("Received request")

	switch request.Method {
	case "initialize":
		s.handleInitialize(ctx, clientID, request)
	case "ping":
		s.handlePing(clientID, request)
	case "tools/list":
		s.handleToolsList(ctx, clientID, request)
	case "tools/call":
		s.handleToolsCall(ctx, clientID, request)
	case "resources/list":
		s.handleResourcesList(ctx, clientID, request)
	case "resources/read":
		s.handleResourcesRead(ctx, clientID, request)
	case "prompts/list":
		s.handlePromptsList(ctx, clientID, request)
	case "prompts/get":
		s.handlePromptGet(ctx, clientID, request)
	case "logging/setLevel":
		s.handleLoggingSetLevel(clientID, request)
	default:
		s.sendErr(clientID, request.ID, ErrorCodeMethodNotFound, "Method not found", nil)
	}
}

func (s *BaseServer) handleInitialize(ctx context.Context, clientID string, request *Request) {
	_, span := observability.StartSpan(ctx, "BaseServer.handleInitialize")
	defer span.End()

	var params InitializeParams
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid params", nil)
			return
		}
	}

	protocolVersion := s.protocolVersion
	if params.ProtocolVersion == FallbackProtocolVersion {
		protocolVersion = FallbackProtocolVersion
	}

	s.clientCapabilities = params.Capabilities
	result := InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    s.CapabilitiesSnapshot(),
		ServerInfo:      s.ServerInfo,
	}

	span.SetAttributes(attribute.String("protocol_version", protocolVersion))
	s.sendResp(clientID, request.ID, result, nil)
}

func (s *BaseServer) handlePing(clientID string, request *Request) {
	s.sendResp(clientID, request.ID, map[string]interface{}{}, nil)
}

func (s *BaseServer) handleToolsList(ctx context.Context, clientID string, request *Request) {
	var params ListParams
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid params", nil)
			return
		}
	}

	s.sendResp(clientID, request.ID, s.ListTools(ctx, params.Cursor, 100), nil)
}

func (s *BaseServer) handleToolsCall(ctx context.Context, clientID string, request *Request) {
	var params CallToolParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid params", nil)
		return
	}
	if params.Name == "" {
		s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid params: name is required", nil)
		return
	}

	result, callErr := s.CallTool(ctx, params)
	if callErr != nil {
		s.sendErr(clientID, request.ID, callErr.Code, callErr.Message, callErr.Data)
		return
	}

	s.sendResp(clientID, request.ID, result, nil)
}

func (s *BaseServer) handleResourcesList(ctx context.Context, clientID string, request *Request) {
	var params ListParams
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid params", nil)
			return
		}
	}

	s.sendResp(clientID, request.ID, s.ListResources(ctx, params.Cursor, 100), nil)
}

func (s *BaseServer) handleResourcesRead(ctx context.Context, clientID string, request *Request) {
	var params ReadResourceParams
	if err := json.Unmarshal(request.Params, &params); err != nil || params.URI == "" {
		s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid params: uri is required", nil)
		return
	}

	result, readErr := s.ReadResource(ctx, params)
	if readErr != nil {
		s.sendErr(clientID, request.ID, readErr.Code, readErr.Message, readErr.Data)
		return
	}

	s.sendResp(clientID, request.ID, result, nil)
}

func (s *BaseServer) handlePromptsList(ctx context.Context, clientID string, request *Request) {
	var params ListParams
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid params", nil)
			return
		}
	}

	s.sendResp(clientID, request.ID, s.ListPrompts(ctx, params.Cursor, 100), nil)
}

func (s *BaseServer) handlePromptGet(ctx context.Context, clientID string, request *Request) {
	var params GetPromptParams
	if err := json.Unmarshal(request.Params, &params); err != nil || params.Name == "" {
		s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid params: name is required", nil)
		return
	}

	response, getErr := s.GetPrompt(ctx, params)
	if getErr != nil {
		s.sendErr(clientID, request.ID, getErr.Code, getErr.Message, getErr.Data)
		return
	}

	s.sendResp(clientID, request.ID, response, nil)
}

func (s *BaseServer) handleLoggingSetLevel(clientID string, request *Request) {
	var params SetLogLevelParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid params", nil)
		return
	}
	if _, ok := logLevelSeverity[params.Level]; !ok {
		s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid log level", nil)
		return
	}

	s.minLogLevel.Store(params.Level)
	s.sendResp(clientID, request.ID, struct{}{}, nil)
}

// handleNotification handles incoming notifications. Common to all transports.
func (s *BaseServer) handleNotification(ctx context.Context, clientID string, notification *Notification) {
	_, span := observability.StartSpan(ctx, "BaseServer.handleNotification")
	defer span.End()

	s.logger.WithFields(map[string]interface{}{
		"clientID": clientID,
		"method":   notification.Method,
	}).Debug("Received notification from client")

	switch notification.Method {
	case "notifications/initialized":
		s.logger.WithFields(map[string]interface{}{
			"clientID": clientID,
		}).Debug("Client initialized")
	case "notifications/cancelled":
		var cancelParams struct {
			RequestID json.RawMessage `json:"requestId"`
			Reason    string          `json:"reason"`
		}
		if err := json.Unmarshal(notification.Params, &cancelParams); err == nil {
			s.logger.WithFields(map[string]interface{}{
				"clientID":  clientID,
				"requestID": string(cancelParams.RequestID),
				"reason":    cancelParams.Reason,
			}).Debug("Cancellation requested")
		}
	default:
		s.logger.WithFields(map[string]interface{}{
			"clientID": clientID,
			"method":   notification.Method,
		}).Warn("Unhandled notification from client")
	}
}

// ListTools returns a page of registered tools sorted by name.
func (s *BaseServer) ListTools(ctx context.Context, cursor string, limit int) ListToolsResult {
	_, span := observability.StartSpan(ctx, "BaseServer.ListTools")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}

	var names []string
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	startIdx := 0
	if cursor != "" {
		for i, name := range names {
			if name == cursor {
				startIdx = i + 1
				break
			}
		}
	}

	endIdx := startIdx + limit
	if endIdx > len(names) {
		endIdx = len(names)
	}

	pageTools := make([]Tool, 0)
	for i := startIdx; i < endIdx; i++ {
		tool := s.tools[names[i]]
		pageTools = append(pageTools, Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}

	var nextCursor string
	if endIdx < len(names) {
		nextCursor = names[endIdx-1]
	}

	span.SetAttributes(
		attribute.Int("limit", limit),
		attribute.String("cursor", cursor),
		attribute.Int("num_tools", len(pageTools)),
	)

	return ListToolsResult{
		Tools:      pageTools,
		NextCursor: nextCursor,
	}
}

// CallTool resolves a tool call against the registry, validates the argument
// payload against the tool's input schema and invokes the handler. Failures
// come back as protocol errors: -32003 for an unknown tool, -32602 for
// arguments failing schema validation (naming the offending field), the
// handler's own application code for domain failures, and -32603 for
// anything unexpected.
func (s *BaseServer) CallTool(ctx context.Context, params CallToolParams) (CallToolResult, *Error) {
	ctx, span := observability.StartSpan(ctx, "BaseServer.CallTool")
	defer span.End()
	span.SetAttributes(attribute.String("tool", params.Name))

	tool, exists := s.tools[params.Name]
	if !exists {
		s.logger.WithFields(map[string]interface{}{
			"tool": params.Name,
		}).Warn("Tool not found")

		return CallToolResult{}, &Error{
			Code:    ErrorCodeUnknownTool,
			Message: fmt.Sprintf("Unknown tool: %s", params.Name),
			Data:    map[string]string{"tool": params.Name},
		}
	}

	if tool.InputSchema != nil {
		arguments := params.Arguments
		if len(arguments) == 0 {
			// An absent payload still has to satisfy the schema's
			// required fields.
			arguments = json.RawMessage(`{}`)
		}
		schemaLoader := gojsonschema.NewStringLoader(string(tool.InputSchema))
		documentLoader := gojsonschema.NewStringLoader(string(arguments))

		result, err := gojsonschema.Validate(schemaLoader, documentLoader)
		if err != nil {
			s.logger.WithErr(err).Error("Schema validation error")
			return CallToolResult{}, &Error{
				Code:    ErrorCodeInvalidParams,
				Message: "Invalid params",
			}
		}

		if !result.Valid() {
			var errorMessages []string
			for _, desc := range result.Errors() {
				errorMessages = append(errorMessages, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
			}

			s.logger.WithFields(map[string]interface{}{
				"tool":   params.Name,
				"errors": errorMessages,
			}).Warn("Schema validation failed")

			return CallToolResult{}, &Error{
				Code:    ErrorCodeInvalidParams,
				Message: fmt.Sprintf("Invalid params: %s", strings.Join(errorMessages, "; ")),
				Data:    map[string]interface{}{"tool": params.Name, "errors": errorMessages},
			}
		}
	}

	result, err := tool.Handler(ctx, params)
	if err != nil {
		var protocolErr *Error
		if pe, ok := err.(*Error); ok {
			protocolErr = pe
		} else {
			// Unexpected handler failure; keep the diagnostic in the log,
			// not on the wire.
			protocolErr = &Error{Code: ErrorCodeInternal, Message: "Internal error"}
		}

		s.logger.WithFields(map[string]interface{}{
			"tool": params.Name,
			"code": protocolErr.Code,
		}).WithErr(err).Warn("Tool handler failed")

		span.SetStatus(codes.Error, err.Error())
		return CallToolResult{}, protocolErr
	}

	s.logger.WithFields(map[string]interface{}{
		"tool": params.Name,
	}).Debug("Tool handler executed successfully")

	return result, nil
}

// ListResources returns a page of registered resources sorted by URI.
func (s *BaseServer) ListResources(ctx context.Context, cursor string, limit int) ListResourcesResult {
	_, span := observability.StartSpan(ctx, "BaseServer.ListResources")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}

	var uris []string
	for uri := range s.resources {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	startIdx := 0
	if cursor != "" {
		for i, uri := range uris {
			if uri == cursor {
				startIdx = i + 1
				break
			}
		}
	}

	endIdx := startIdx + limit
	if endIdx > len(uris) {
		endIdx = len(uris)
	}

	pageResources := make([]Resource, 0)
	for i := startIdx; i < endIdx; i++ {
		resource := s.resources[uris[i]]
		pageResources = append(pageResources, Resource{
			URI:         resource.URI,
			Name:        resource.Name,
			Description: resource.Description,
			MimeType:    resource.MimeType,
		})
	}

	var nextCursor string
	if endIdx < len(uris) {
		nextCursor = uris[endIdx-1]
	}

	span.SetAttributes(attribute.Int("num_resources", len(pageResources)))

	return ListResourcesResult{
		Resources:  pageResources,
		NextCursor: nextCursor,
	}
}

// ReadResource resolves a resource URI and materializes its content.
func (s *BaseServer) ReadResource(ctx context.Context, params ReadResourceParams) (ReadResourceResult, *Error) {
	ctx, span := observability.StartSpan(ctx, "BaseServer.ReadResource")
	defer span.End()
	span.SetAttributes(attribute.String("uri", params.URI))

	resource, exists := s.resources[params.URI]
	if !exists {
		return ReadResourceResult{}, &Error{
			Code:    ErrorCodeResourceNotFound,
			Message: fmt.Sprintf("Unknown resource: %s", params.URI),
			Data:    map[string]string{"uri": params.URI},
		}
	}

	text, err := resource.Handler(ctx)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"uri": params.URI,
		}).WithErr(err).Error("Failed to read resource")

		span.SetStatus(codes.Error, err.Error())
		return ReadResourceResult{}, &Error{Code: ErrorCodeInternal, Message: "Internal error"}
	}

	return ReadResourceResult{
		Contents: []ResourceContent{{
			URI:      resource.URI,
			MimeType: resource.MimeType,
			Text:     text,
		}},
	}, nil
}

// ListPrompts returns a page of registered prompts sorted by name.
func (s *BaseServer) ListPrompts(ctx context.Context, cursor string, limit int) ListPromptsResult {
	_, span := observability.StartSpan(ctx, "BaseServer.ListPrompts")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}

	var names []string
	for name := range s.prompts {
		names = append(names, name)
	}
	sort.Strings(names)

	startIdx := 0
	if cursor != "" {
		for i, name := range names {
			if name == cursor {
				startIdx = i + 1
				break
			}
		}
	}

	endIdx := startIdx + limit
	if endIdx > len(names) {
		endIdx = len(names)
	}

	pagePrompts := make([]Prompt, 0)
	for i := startIdx; i < endIdx; i++ {
		prompt := s.prompts[names[i]]
		pagePrompts = append(pagePrompts, Prompt{
			Name:        prompt.Name,
			Description: prompt.Description,
			Arguments:   prompt.Arguments,
		})
	}

	var nextCursor string
	if endIdx < len(names) {
		nextCursor = names[endIdx-1]
	}

	span.SetAttributes(attribute.Int("num_prompts", len(pagePrompts)))

	return ListPromptsResult{
		Prompts:    pagePrompts,
		NextCursor: nextCursor,
	}
}

// GetPrompt resolves a prompt by name, checks its required arguments and
// renders it.
func (s *BaseServer) GetPrompt(ctx context.Context, params GetPromptParams) (PromptGetResponse, *Error) {
	ctx, span := observability.StartSpan(ctx, "BaseServer.GetPrompt")
	defer span.End()
	span.SetAttributes(attribute.String("prompt", params.Name))

	prompt, exists := s.prompts[params.Name]
	if !exists {
		return PromptGetResponse{}, &Error{
			Code:    ErrorCodeUnknownPrompt,
			Message: fmt.Sprintf("Unknown prompt: %s", params.Name),
			Data:    map[string]string{"prompt": params.Name},
		}
	}

	for _, arg := range prompt.Arguments {
		if !arg.Required {
			continue
		}
		if _, ok := params.Arguments[arg.Name]; !ok {
			return PromptGetResponse{}, &Error{
				Code:    ErrorCodeInvalidParams,
				Message: fmt.Sprintf("Invalid params: missing required argument %q", arg.Name),
				Data:    map[string]string{"argument": arg.Name},
			}
		}
	}

	response, err := prompt.Handler(ctx, params.Arguments)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"prompt": params.Name,
		}).WithErr(err).Error("Failed to render prompt")

		span.SetStatus(codes.Error, err.Error())
		return PromptGetResponse{}, &Error{Code: ErrorCodeInternal, Message: "Internal error"}
	}

	return response, nil
}
