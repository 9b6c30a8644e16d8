package timetools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shaharia-lab/timemcp/mcp"
)

// Resources returns the reference data exposed by the time domain.
func (h *Handler) Resources() []mcp.Resource {
	return []mcp.Resource{
		{
			URI:         "timezone_database",
			Name:        "Timezone Database",
			Description: "Complete IANA timezone database with all available timezones",
			MimeType:    "application/json",
			Handler:     h.readTimezoneDatabase,
		},
		{
			URI:         "time_formats",
			Name:        "Time Formats",
			Description: "Documentation of supported time formats and examples",
			MimeType:    "application/json",
			Handler:     h.readTimeFormats,
		},
	}
}

func (h *Handler) readTimezoneDatabase(ctx context.Context) (string, error) {
	zones := ListZones("")
	return marshalResource(map[string]interface{}{
		"timezones":   zones,
		"total_count": len(zones),
		"regions":     zoneRegions,
	})
}

func (h *Handler) readTimeFormats(ctx context.Context) (string, error) {
	return marshalResource(map[string]interface{}{
		"supported_formats": map[string]string{
			"iso8601": "2025-08-17T10:30:00Z",
			"rfc3339": "2025-08-17T10:30:00Z",
			"unix":    "1723892200",
			"custom":  "Use strftime format strings like '%Y-%m-%d %H:%M:%S'",
		},
		"examples": map[string]interface{}{
			"iso8601":        "2025-08-17T10:30:00Z",
			"human_readable": "Saturday, August 17, 2025 at 10:30 AM UTC",
			"custom_formats": []string{
				"%Y-%m-%d %H:%M:%S",
				"%B %d, %Y",
				"%I:%M %p",
			},
		},
	})
}

func marshalResource(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal resource content: %w", err)
	}
	return string(data), nil
}
