package timetools

import (
	"context"
	"fmt"
	"time"

	"github.com/shaharia-lab/timemcp/mcp"
)

// Prompts returns the prompt templates of the time domain.
func (h *Handler) Prompts() []mcp.Prompt {
	return []mcp.Prompt{
		{
			Name:        "time_query_assistant",
			Description: "Template for helping users with time-related queries",
			Arguments: []mcp.PromptArgument{
				{
					Name:        "user_query",
					Description: "The user's time-related question",
					Required:    true,
				},
			},
			Handler: h.timeQueryAssistant,
		},
	}
}

func (h *Handler) timeQueryAssistant(ctx context.Context, args map[string]string) (mcp.PromptGetResponse, error) {
	userQuery := args["user_query"]
	if userQuery == "" {
		userQuery = "general time query"
	}

	currentTime := h.now().UTC().Format(time.RFC3339)

	return mcp.PromptGetResponse{
		Description: "Assistant for time-related queries",
		Messages: []mcp.PromptMessage{
			{
				Role: "system",
				Content: mcp.PromptContent{
					Type: "text",
					Text: fmt.Sprintf(
						"You are a time query assistant. Help the user with their time-related question: '%s'. Current UTC time: %s. You have access to comprehensive timezone conversion, duration calculation, and time formatting tools.",
						userQuery, currentTime),
				},
			},
		},
	}, nil
}
