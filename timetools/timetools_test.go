package timetools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/timemcp/mcp"
	"github.com/shaharia-lab/timemcp/observability"
)

// fixedNow pins the clock to 2025-08-17T10:30:00Z.
var fixedNow = time.Date(2025, 8, 17, 10, 30, 0, 0, time.UTC)

func newFixedHandler(opts ...Option) *Handler {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewHandler(opts...)
}

// callTool invokes a registered tool directly and decodes its single text
// content entry as JSON.
func callTool(t *testing.T, h *Handler, name, arguments string) (map[string]interface{}, *mcp.Error) {
	t.Helper()

	var tool *mcp.Tool
	for _, candidate := range h.Tools() {
		if candidate.Name == name {
			tool = &candidate
			break
		}
	}
	require.NotNil(t, tool, "tool %s not registered", name)

	result, err := tool.Handler(context.Background(), mcp.CallToolParams{
		Name:      name,
		Arguments: json.RawMessage(arguments),
	})
	if err != nil {
		protocolErr, ok := err.(*mcp.Error)
		require.True(t, ok, "expected a protocol error, got %T", err)
		return nil, protocolErr
	}

	require.Len(t, result.Content, 1)
	require.Equal(t, "text", result.Content[0].Type)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &decoded))
	return decoded, nil
}

func TestGetCurrentTime(t *testing.T) {
	h := newFixedHandler()

	t.Run("iso is the default format", func(t *testing.T) {
		result, callErr := callTool(t, h, "get_current_time", `{}`)
		require.Nil(t, callErr)
		assert.Equal(t, "2025-08-17T10:30:00Z", result["timestamp"])
		assert.Equal(t, float64(fixedNow.Unix()), result["unix"])
		assert.Equal(t, "UTC", result["timezone"])
		assert.Contains(t, result["formatted"], "August 17, 2025")
	})

	t.Run("unix format", func(t *testing.T) {
		result, callErr := callTool(t, h, "get_current_time", `{"format":"unix"}`)
		require.Nil(t, callErr)
		assert.Equal(t, float64(fixedNow.Unix()), result["timestamp"])
	})

	t.Run("human format in another timezone", func(t *testing.T) {
		result, callErr := callTool(t, h, "get_current_time", `{"format":"human","timezone":"Asia/Tokyo"}`)
		require.Nil(t, callErr)
		assert.Equal(t, "Asia/Tokyo", result["timezone"])
		// 10:30 UTC is 19:30 in Tokyo.
		assert.Contains(t, result["formatted"], "07:30 PM")
	})

	t.Run("custom strftime format", func(t *testing.T) {
		result, callErr := callTool(t, h, "get_current_time", `{"format":"custom","custom_format":"%Y-%m-%d"}`)
		require.Nil(t, callErr)
		assert.Equal(t, "2025-08-17", result["formatted"])
	})

	t.Run("custom without custom_format is invalid params", func(t *testing.T) {
		_, callErr := callTool(t, h, "get_current_time", `{"format":"custom"}`)
		require.NotNil(t, callErr)
		assert.Equal(t, mcp.ErrorCodeInvalidParams, callErr.Code)
	})

	t.Run("invalid timezone", func(t *testing.T) {
		_, callErr := callTool(t, h, "get_current_time", `{"timezone":"Mars/Olympus"}`)
		require.NotNil(t, callErr)
		assert.Equal(t, mcp.ErrorCodeInvalidTimezone, callErr.Code)
		assert.Contains(t, callErr.Message, "Mars/Olympus")
	})

	t.Run("configured default timezone applies", func(t *testing.T) {
		tokyo := newFixedHandler(WithDefaultTimezone("Asia/Tokyo"))
		result, callErr := callTool(t, tokyo, "get_current_time", `{}`)
		require.Nil(t, callErr)
		assert.Equal(t, "Asia/Tokyo", result["timezone"])
		assert.Equal(t, "2025-08-17T19:30:00+09:00", result["timestamp"])
	})
}

func TestConvertTimezone(t *testing.T) {
	h := newFixedHandler()

	t.Run("RFC3339 input", func(t *testing.T) {
		result, callErr := callTool(t, h, "convert_timezone",
			`{"timestamp":"2025-08-17T10:30:00Z","from_timezone":"UTC","to_timezone":"America/New_York"}`)
		require.Nil(t, callErr)

		converted := result["converted"].(map[string]interface{})
		assert.Equal(t, "America/New_York", converted["timezone"])
		assert.Equal(t, "2025-08-17T06:30:00-04:00", converted["timestamp"])

		original := result["original"].(map[string]interface{})
		assert.Equal(t, "UTC", original["timezone"])
	})

	t.Run("unix seconds input", func(t *testing.T) {
		result, callErr := callTool(t, h, "convert_timezone",
			`{"timestamp":"1755426600","from_timezone":"UTC","to_timezone":"Asia/Tokyo"}`)
		require.Nil(t, callErr)

		converted := result["converted"].(map[string]interface{})
		assert.Equal(t, "2025-08-17T19:30:00+09:00", converted["timestamp"])
	})

	t.Run("invalid source timezone", func(t *testing.T) {
		_, callErr := callTool(t, h, "convert_timezone",
			`{"timestamp":"2025-08-17T10:30:00Z","from_timezone":"Nowhere","to_timezone":"UTC"}`)
		require.NotNil(t, callErr)
		assert.Equal(t, mcp.ErrorCodeInvalidTimezone, callErr.Code)
	})

	t.Run("invalid timestamp", func(t *testing.T) {
		_, callErr := callTool(t, h, "convert_timezone",
			`{"timestamp":"not a time","from_timezone":"UTC","to_timezone":"UTC"}`)
		require.NotNil(t, callErr)
		assert.Equal(t, mcp.ErrorCodeInvalidTimestamp, callErr.Code)
	})
}

func TestCalculateDuration(t *testing.T) {
	h := newFixedHandler()

	t.Run("positive duration", func(t *testing.T) {
		result, callErr := callTool(t, h, "calculate_duration",
			`{"start_time":"2025-08-17T10:00:00Z","end_time":"2025-08-18T12:30:00Z"}`)
		require.Nil(t, callErr)

		duration := result["duration"].(map[string]interface{})
		assert.Equal(t, float64(95400), duration["total_seconds"])
		assert.Equal(t, float64(1590), duration["minutes"])
		assert.Equal(t, float64(26), duration["hours"])
		assert.Equal(t, float64(1), duration["days"])
		assert.Equal(t, "95400 seconds", duration["human_readable"])
	})

	t.Run("negative duration when start is after end", func(t *testing.T) {
		result, callErr := callTool(t, h, "calculate_duration",
			`{"start_time":"2025-08-17T10:00:10Z","end_time":"2025-08-17T10:00:00Z"}`)
		require.Nil(t, callErr)

		duration := result["duration"].(map[string]interface{})
		assert.Equal(t, float64(-10), duration["total_seconds"])
	})

	t.Run("invalid start_time", func(t *testing.T) {
		_, callErr := callTool(t, h, "calculate_duration",
			`{"start_time":"yesterday","end_time":"2025-08-17T10:00:00Z"}`)
		require.NotNil(t, callErr)
		assert.Equal(t, mcp.ErrorCodeInvalidTimestamp, callErr.Code)
	})
}

func TestFormatTime(t *testing.T) {
	h := newFixedHandler()

	t.Run("rfc3339", func(t *testing.T) {
		result, callErr := callTool(t, h, "format_time",
			`{"timestamp":"2025-08-17T10:30:00Z","format":"rfc3339","timezone":"Europe/Berlin"}`)
		require.Nil(t, callErr)
		assert.Equal(t, "2025-08-17T12:30:00+02:00", result["formatted"])
		assert.Equal(t, "Europe/Berlin", result["timezone"])
	})

	t.Run("unix", func(t *testing.T) {
		result, callErr := callTool(t, h, "format_time",
			`{"timestamp":"2025-08-17T10:30:00Z","format":"unix"}`)
		require.Nil(t, callErr)
		assert.Equal(t, "1755426600", result["formatted"])
	})

	t.Run("custom strftime", func(t *testing.T) {
		result, callErr := callTool(t, h, "format_time",
			`{"timestamp":"2025-08-17T10:30:00Z","format":"custom","custom_format":"%B %d, %Y"}`)
		require.Nil(t, callErr)
		assert.Equal(t, "August 17, 2025", result["formatted"])
	})

	t.Run("custom without custom_format", func(t *testing.T) {
		_, callErr := callTool(t, h, "format_time",
			`{"timestamp":"2025-08-17T10:30:00Z","format":"custom"}`)
		require.NotNil(t, callErr)
		assert.Equal(t, mcp.ErrorCodeInvalidParams, callErr.Code)
	})

	t.Run("invalid timestamp", func(t *testing.T) {
		_, callErr := callTool(t, h, "format_time",
			`{"timestamp":"nope","format":"unix"}`)
		require.NotNil(t, callErr)
		assert.Equal(t, mcp.ErrorCodeInvalidTimestamp, callErr.Code)
	})
}

func TestGetTimezoneInfo(t *testing.T) {
	h := newFixedHandler()

	t.Run("UTC", func(t *testing.T) {
		result, callErr := callTool(t, h, "get_timezone_info", `{"timezone":"UTC"}`)
		require.Nil(t, callErr)
		assert.Equal(t, "UTC", result["timezone"])
		assert.Equal(t, "+00:00", result["offset"])
		assert.Equal(t, "UTC", result["abbreviation"])
	})

	t.Run("half-hour offset", func(t *testing.T) {
		result, callErr := callTool(t, h, "get_timezone_info", `{"timezone":"Asia/Kolkata"}`)
		require.Nil(t, callErr)
		assert.Equal(t, "+05:30", result["offset"])
	})

	t.Run("negative offset", func(t *testing.T) {
		// New York is on daylight time at the pinned instant.
		result, callErr := callTool(t, h, "get_timezone_info", `{"timezone":"America/New_York"}`)
		require.Nil(t, callErr)
		assert.Equal(t, "-04:00", result["offset"])
	})

	t.Run("invalid timezone", func(t *testing.T) {
		_, callErr := callTool(t, h, "get_timezone_info", `{"timezone":"Not/AZone"}`)
		require.NotNil(t, callErr)
		assert.Equal(t, mcp.ErrorCodeInvalidTimezone, callErr.Code)
	})
}

func TestListTimezones(t *testing.T) {
	h := newFixedHandler()

	t.Run("unfiltered", func(t *testing.T) {
		result, callErr := callTool(t, h, "list_timezones", `{}`)
		require.Nil(t, callErr)

		zones := result["timezones"].([]interface{})
		assert.Equal(t, float64(len(zones)), result["count"])
		assert.Contains(t, zones, "UTC")
		assert.Contains(t, zones, "Europe/London")
	})

	t.Run("region filter", func(t *testing.T) {
		result, callErr := callTool(t, h, "list_timezones", `{"region":"Europe"}`)
		require.Nil(t, callErr)

		zones := result["timezones"].([]interface{})
		require.NotEmpty(t, zones)
		for _, zone := range zones {
			assert.Contains(t, zone, "Europe/")
		}
	})

	t.Run("unknown region matches nothing", func(t *testing.T) {
		result, callErr := callTool(t, h, "list_timezones", `{"region":"Atlantis"}`)
		require.Nil(t, callErr)
		assert.Equal(t, float64(0), result["count"])
	})
}

func TestEveryZoneInTableResolves(t *testing.T) {
	for _, name := range ListZones("") {
		_, err := time.LoadLocation(name)
		assert.NoError(t, err, "zone %s must resolve", name)
	}
}

func TestResources(t *testing.T) {
	h := newFixedHandler()
	resources := h.Resources()
	require.Len(t, resources, 2)

	t.Run("timezone_database", func(t *testing.T) {
		content, err := resources[0].Handler(context.Background())
		require.NoError(t, err)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(content), &decoded))
		assert.NotEmpty(t, decoded["timezones"])
		assert.Equal(t, float64(len(decoded["timezones"].([]interface{}))), decoded["total_count"])
		assert.Len(t, decoded["regions"], 10)
	})

	t.Run("time_formats", func(t *testing.T) {
		content, err := resources[1].Handler(context.Background())
		require.NoError(t, err)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(content), &decoded))
		formats := decoded["supported_formats"].(map[string]interface{})
		assert.Contains(t, formats, "iso8601")
		assert.Contains(t, formats, "custom")
	})
}

func TestTimeQueryAssistantPrompt(t *testing.T) {
	h := newFixedHandler()
	prompts := h.Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, "time_query_assistant", prompts[0].Name)
	require.Len(t, prompts[0].Arguments, 1)
	assert.True(t, prompts[0].Arguments[0].Required)

	response, err := prompts[0].Handler(context.Background(), map[string]string{
		"user_query": "what time is it in Tokyo?",
	})
	require.NoError(t, err)
	require.Len(t, response.Messages, 1)
	assert.Equal(t, "system", response.Messages[0].Role)
	assert.Contains(t, response.Messages[0].Content.Text, "what time is it in Tokyo?")
	assert.Contains(t, response.Messages[0].Content.Text, "2025-08-17T10:30:00Z")
}

func TestRegister(t *testing.T) {
	// Registration through a real server exercises the schema compilation
	// of every tool.
	h := newFixedHandler()

	server, err := mcp.NewBaseServer(mcp.UseLogger(observability.NewNullLogger()))
	require.NoError(t, err)
	require.NoError(t, h.Register(server))

	listed := server.ListTools(context.Background(), "", 100)
	assert.Len(t, listed.Tools, 6)
}
