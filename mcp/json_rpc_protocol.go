// Package mcp implements the Model Context Protocol server: the JSON-RPC 2.0
// protocol engine, the startup-built capability registry, request dispatch,
// bearer-token authorization, and the stdio and HTTP transports.
package mcp

import (
	"bytes"
	"encoding/json"
)

// JSON-RPC 2.0 reserved error codes.
const (
	ErrorCodeParseError     = -32700
	ErrorCodeInvalidRequest = -32600
	ErrorCodeMethodNotFound = -32601
	ErrorCodeInvalidParams  = -32602
	ErrorCodeInternal       = -32603
)

// Application error codes, outside the reserved range, so clients can tell
// input mistakes apart from protocol mistakes.
const (
	ErrorCodeInvalidTimezone    = -32000
	ErrorCodeInvalidTimestamp   = -32001
	ErrorCodeConversionFailed   = -32002
	ErrorCodeUnknownTool        = -32003
	ErrorCodeResourceNotFound   = -32004
	ErrorCodeUnknownPrompt      = -32005
)

// JSONRPCVersion is the only protocol version marker accepted in envelopes.
const JSONRPCVersion = "2.0"

// Request represents a JSON-RPC request message. A request without an ID is
// a notification and never produces a response.
type Request struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no identifier.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Response represents a JSON-RPC response message. Exactly one of Result and
// Error is populated; the constructors below enforce that.
type Response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id"`
	Result  interface{}      `json:"result,omitempty"`
	Error   *Error           `json:"error,omitempty"`
}

// Notification represents a JSON-RPC notification message.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewResponse creates a success response echoing the request identifier.
func NewResponse(id *json.RawMessage, result interface{}) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error response echoing the request identifier.
// A nil id serializes as a JSON null, which is what parse failures require.
func NewErrorResponse(id *json.RawMessage, code int, message string, data interface{}) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// DecodeRequest parses raw bytes into a Request and validates the protocol
// envelope. On failure it returns a nil request and the protocol error that
// the caller must turn into an error response: -32700 when no envelope could
// be extracted at all, -32600 when the envelope is structurally invalid.
func DecodeRequest(data []byte) (*Request, *Error) {
	var request Request
	if err := json.Unmarshal(data, &request); err != nil {
		return nil, &Error{Code: ErrorCodeParseError, Message: "Parse error"}
	}

	if request.JSONRPC != JSONRPCVersion {
		return nil, &Error{Code: ErrorCodeInvalidRequest, Message: "Invalid Request",
			Data: map[string]string{"expected": JSONRPCVersion}}
	}
	if request.Method == "" {
		return nil, &Error{Code: ErrorCodeInvalidRequest, Message: "Invalid Request",
			Data: map[string]string{"reason": "method is required"}}
	}
	if request.ID != nil {
		switch kind := jsonKind(*request.ID); kind {
		case "string", "number":
			// valid identifier
		case "null":
			// a null id carries no identity; treat the message as a notification
			request.ID = nil
		default:
			return nil, &Error{Code: ErrorCodeInvalidRequest, Message: "Invalid Request",
				Data: map[string]string{"reason": "id must be a string or a number"}}
		}
	}
	if len(request.Params) > 0 {
		switch jsonKind(request.Params) {
		case "object", "array", "null":
			// structured or absent
		default:
			return nil, &Error{Code: ErrorCodeInvalidRequest, Message: "Invalid Request",
				Data: map[string]string{"reason": "params must be structured"}}
		}
	}

	return &request, nil
}

// EncodeResponse serializes a response to its wire form. Encoding is total:
// if the response value itself cannot be marshalled, a -32603 envelope with
// the same identifier is produced instead.
func EncodeResponse(response *Response) []byte {
	data, err := json.Marshal(response)
	if err != nil {
		fallback := NewErrorResponse(response.ID, ErrorCodeInternal, "Internal error", nil)
		data, _ = json.Marshal(fallback)
	}
	return data
}

// jsonKind classifies a raw JSON value by its first significant byte.
func jsonKind(raw json.RawMessage) string {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return "empty"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "bool"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
