// Package timetools implements the time domain: current-time queries,
// timezone conversion, duration arithmetic, formatting, and the timezone
// reference data exposed as resources and prompts.
package timetools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/shaharia-lab/timemcp/mcp"
)

// humanLayout matches the strftime pattern "%A, %B %d, %Y at %I:%M %p %Z".
const humanLayout = "Monday, January 02, 2006 at 03:04 PM MST"

// Handler owns the time tool implementations. The clock is injectable so
// tests can pin "now".
type Handler struct {
	defaultTimezone string
	now             func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithDefaultTimezone overrides the timezone assumed when a call omits one.
func WithDefaultTimezone(tz string) Option {
	return func(h *Handler) {
		if tz != "" {
			h.defaultTimezone = tz
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler creates a Handler with the given options.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		defaultTimezone: "UTC",
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds every tool, resource and prompt of the time domain to the
// given server.
func (h *Handler) Register(server *mcp.BaseServer) error {
	if err := server.AddTools(h.Tools()...); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	if err := server.AddResources(h.Resources()...); err != nil {
		return fmt.Errorf("failed to register resources: %w", err)
	}
	if err := server.AddPrompts(h.Prompts()...); err != nil {
		return fmt.Errorf("failed to register prompts: %w", err)
	}
	return nil
}

// Tools returns the six time tools.
func (h *Handler) Tools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "get_current_time",
			Description: "Get the current time in various formats and timezones",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"timezone": {
						"type": "string",
						"description": "Target timezone (default: UTC)",
						"default": "UTC"
					},
					"format": {
						"type": "string",
						"enum": ["iso", "unix", "human", "custom"],
						"description": "Output format",
						"default": "iso"
					},
					"custom_format": {
						"type": "string",
						"description": "Custom strftime format string (required if format is 'custom')"
					}
				}
			}`),
			Handler: h.getCurrentTime,
		},
		{
			Name:        "convert_timezone",
			Description: "Convert time between different timezones",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"timestamp": {
						"type": "string",
						"description": "Input timestamp (ISO 8601 or Unix)"
					},
					"from_timezone": {
						"type": "string",
						"description": "Source timezone"
					},
					"to_timezone": {
						"type": "string",
						"description": "Target timezone"
					},
					"format": {
						"type": "string",
						"enum": ["iso", "unix", "human"],
						"description": "Output format",
						"default": "iso"
					}
				},
				"required": ["timestamp", "from_timezone", "to_timezone"]
			}`),
			Handler: h.convertTimezone,
		},
		{
			Name:        "calculate_duration",
			Description: "Calculate time difference between two timestamps",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"start_time": {
						"type": "string",
						"description": "Start timestamp"
					},
					"end_time": {
						"type": "string",
						"description": "End timestamp"
					},
					"units": {
						"type": "string",
						"enum": ["seconds", "minutes", "hours", "days"],
						"description": "Output units",
						"default": "seconds"
					}
				},
				"required": ["start_time", "end_time"]
			}`),
			Handler: h.calculateDuration,
		},
		{
			Name:        "format_time",
			Description: "Format timestamps according to various standards",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"timestamp": {
						"type": "string",
						"description": "Input timestamp"
					},
					"format": {
						"type": "string",
						"enum": ["iso8601", "rfc3339", "unix", "custom"],
						"description": "Format type"
					},
					"custom_format": {
						"type": "string",
						"description": "Custom format string (required if format is 'custom')"
					},
					"timezone": {
						"type": "string",
						"description": "Target timezone",
						"default": "UTC"
					}
				},
				"required": ["timestamp", "format"]
			}`),
			Handler: h.formatTime,
		},
		{
			Name:        "get_timezone_info",
			Description: "Get detailed information about a specific timezone",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"timezone": {
						"type": "string",
						"description": "Timezone identifier"
					}
				},
				"required": ["timezone"]
			}`),
			Handler: h.getTimezoneInfo,
		},
		{
			Name:        "list_timezones",
			Description: "List available timezone identifiers",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"region": {
						"type": "string",
						"description": "Filter by region (e.g., 'America', 'Europe')"
					}
				}
			}`),
			Handler: h.listTimezones,
		},
	}
}

func (h *Handler) getCurrentTime(ctx context.Context, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args struct {
		Timezone     string `json:"timezone"`
		Format       string `json:"format"`
		CustomFormat string `json:"custom_format"`
	}
	if err := unmarshalArguments(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, err
	}
	if args.Timezone == "" {
		args.Timezone = h.defaultTimezone
	}
	if args.Format == "" {
		args.Format = "iso"
	}

	loc, tzErr := loadTimezone(args.Timezone)
	if tzErr != nil {
		return mcp.CallToolResult{}, tzErr
	}

	nowUTC := h.now().UTC()
	nowTZ := nowUTC.In(loc)

	var result interface{}
	switch args.Format {
	case "iso":
		result = map[string]interface{}{
			"timestamp": nowTZ.Format(time.RFC3339),
			"unix":      nowUTC.Unix(),
			"timezone":  args.Timezone,
			"formatted": nowTZ.Format(humanLayout),
		}
	case "unix":
		result = map[string]interface{}{
			"timestamp": nowUTC.Unix(),
			"timezone":  args.Timezone,
		}
	case "human":
		result = map[string]interface{}{
			"formatted": nowTZ.Format(humanLayout),
			"timezone":  args.Timezone,
		}
	case "custom":
		if args.CustomFormat == "" {
			return mcp.CallToolResult{}, &mcp.Error{
				Code:    mcp.ErrorCodeInvalidParams,
				Message: "Invalid params: custom_format required when format is 'custom'",
			}
		}
		formatted, err := formatStrftime(args.CustomFormat, nowTZ)
		if err != nil {
			return mcp.CallToolResult{}, err
		}
		result = map[string]interface{}{
			"formatted": formatted,
			"timezone":  args.Timezone,
		}
	default:
		return mcp.CallToolResult{}, &mcp.Error{
			Code:    mcp.ErrorCodeInvalidParams,
			Message: fmt.Sprintf("Invalid params: unknown format %q", args.Format),
		}
	}

	return textResult(result)
}

func (h *Handler) convertTimezone(ctx context.Context, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args struct {
		Timestamp    string `json:"timestamp"`
		FromTimezone string `json:"from_timezone"`
		ToTimezone   string `json:"to_timezone"`
	}
	if err := unmarshalArguments(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, err
	}

	fromLoc, tzErr := loadTimezone(args.FromTimezone)
	if tzErr != nil {
		return mcp.CallToolResult{}, tzErr
	}
	toLoc, tzErr := loadTimezone(args.ToTimezone)
	if tzErr != nil {
		return mcp.CallToolResult{}, tzErr
	}

	t, tsErr := parseTimestamp(args.Timestamp)
	if tsErr != nil {
		return mcp.CallToolResult{}, tsErr
	}

	original := t.In(fromLoc)
	converted := original.In(toLoc)

	return textResult(map[string]interface{}{
		"original": map[string]interface{}{
			"timestamp": original.Format(time.RFC3339),
			"timezone":  args.FromTimezone,
		},
		"converted": map[string]interface{}{
			"timestamp": converted.Format(time.RFC3339),
			"timezone":  args.ToTimezone,
		},
	})
}

func (h *Handler) calculateDuration(ctx context.Context, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args struct {
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}
	if err := unmarshalArguments(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, err
	}

	start, err := time.Parse(time.RFC3339, args.StartTime)
	if err != nil {
		return mcp.CallToolResult{}, &mcp.Error{
			Code:    mcp.ErrorCodeInvalidTimestamp,
			Message: "Invalid start_time format",
		}
	}
	end, err := time.Parse(time.RFC3339, args.EndTime)
	if err != nil {
		return mcp.CallToolResult{}, &mcp.Error{
			Code:    mcp.ErrorCodeInvalidTimestamp,
			Message: "Invalid end_time format",
		}
	}

	// Durations are signed; a start after the end yields negatives.
	totalSeconds := int64(end.Sub(start) / time.Second)

	return textResult(map[string]interface{}{
		"duration": map[string]interface{}{
			"total_seconds":  totalSeconds,
			"minutes":        totalSeconds / 60,
			"hours":          totalSeconds / 3600,
			"days":           totalSeconds / 86400,
			"human_readable": fmt.Sprintf("%d seconds", totalSeconds),
		},
	})
}

func (h *Handler) formatTime(ctx context.Context, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args struct {
		Timestamp    string `json:"timestamp"`
		Format       string `json:"format"`
		CustomFormat string `json:"custom_format"`
		Timezone     string `json:"timezone"`
	}
	if err := unmarshalArguments(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, err
	}
	if args.Timezone == "" {
		args.Timezone = h.defaultTimezone
	}

	loc, tzErr := loadTimezone(args.Timezone)
	if tzErr != nil {
		return mcp.CallToolResult{}, tzErr
	}

	parsed, err := time.Parse(time.RFC3339, args.Timestamp)
	if err != nil {
		return mcp.CallToolResult{}, &mcp.Error{
			Code:    mcp.ErrorCodeInvalidTimestamp,
			Message: "Invalid timestamp format",
		}
	}
	t := parsed.In(loc)

	var formatted string
	switch args.Format {
	case "iso8601", "rfc3339":
		formatted = t.Format(time.RFC3339)
	case "unix":
		formatted = strconv.FormatInt(t.Unix(), 10)
	case "custom":
		if args.CustomFormat == "" {
			return mcp.CallToolResult{}, &mcp.Error{
				Code:    mcp.ErrorCodeInvalidParams,
				Message: "Invalid params: custom_format required when format is 'custom'",
			}
		}
		formatted, err = formatStrftime(args.CustomFormat, t)
		if err != nil {
			return mcp.CallToolResult{}, err
		}
	default:
		return mcp.CallToolResult{}, &mcp.Error{
			Code:    mcp.ErrorCodeInvalidParams,
			Message: fmt.Sprintf("Invalid params: unknown format %q", args.Format),
		}
	}

	return textResult(map[string]interface{}{
		"formatted": formatted,
		"timezone":  args.Timezone,
	})
}

func (h *Handler) getTimezoneInfo(ctx context.Context, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args struct {
		Timezone string `json:"timezone"`
	}
	if err := unmarshalArguments(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, err
	}

	loc, tzErr := loadTimezone(args.Timezone)
	if tzErr != nil {
		return mcp.CallToolResult{}, tzErr
	}

	now := h.now().In(loc)
	abbreviation, offsetSeconds := now.Zone()

	return textResult(map[string]interface{}{
		"timezone":     args.Timezone,
		"offset":       formatOffset(offsetSeconds),
		"abbreviation": abbreviation,
	})
}

func (h *Handler) listTimezones(ctx context.Context, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args struct {
		Region string `json:"region"`
	}
	if err := unmarshalArguments(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, err
	}

	timezones := ListZones(args.Region)

	return textResult(map[string]interface{}{
		"timezones": timezones,
		"count":     len(timezones),
	})
}

// unmarshalArguments decodes tool arguments, treating absent arguments as an
// empty object. Malformed arguments are an invalid-params fault.
func unmarshalArguments(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &mcp.Error{
			Code:    mcp.ErrorCodeInvalidParams,
			Message: "Invalid params",
		}
	}
	return nil
}

// loadTimezone resolves an IANA name against the embedded zone database.
func loadTimezone(name string) (*time.Location, *mcp.Error) {
	if name == "" {
		return nil, &mcp.Error{
			Code:    mcp.ErrorCodeInvalidTimezone,
			Message: "Invalid timezone: timezone is required",
		}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &mcp.Error{
			Code:    mcp.ErrorCodeInvalidTimezone,
			Message: fmt.Sprintf("Invalid timezone: %s", name),
			Data:    map[string]string{"timezone": name},
		}
	}
	return loc, nil
}

// parseTimestamp accepts either integer Unix seconds or an RFC 3339 string.
func parseTimestamp(value string) (time.Time, *mcp.Error) {
	if value == "" {
		return time.Time{}, &mcp.Error{
			Code:    mcp.ErrorCodeInvalidTimestamp,
			Message: "Invalid timestamp: timestamp is required",
		}
	}
	if unixSeconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(unixSeconds, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &mcp.Error{
			Code:    mcp.ErrorCodeInvalidTimestamp,
			Message: "Invalid timestamp format",
			Data:    map[string]string{"timestamp": value},
		}
	}
	return t, nil
}

// formatStrftime renders a strftime-style pattern. Pattern faults are
// conversion errors, not protocol errors: the envelope was fine, the value
// could not be produced.
func formatStrftime(pattern string, t time.Time) (string, error) {
	formatted, err := strftime.Format(pattern, t)
	if err != nil {
		return "", &mcp.Error{
			Code:    mcp.ErrorCodeConversionFailed,
			Message: fmt.Sprintf("Conversion failed: invalid format string %q", pattern),
		}
	}
	return formatted, nil
}

// formatOffset renders a UTC offset in seconds as "+HH:MM".
func formatOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}

// textResult serializes a value into the single-entry text content shape all
// tools share.
func textResult(v interface{}) (mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.CallToolResult{}, &mcp.Error{
			Code:    mcp.ErrorCodeInternal,
			Message: "Internal error",
		}
	}
	return mcp.CallToolResult{
		Content: []mcp.ToolResultContent{{
			Type: "text",
			Text: string(data),
		}},
	}, nil
}
