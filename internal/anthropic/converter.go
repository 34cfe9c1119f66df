// Package anthropic turns stored transcripts back into Anthropic request
// parameters for the next turn of a conversation.
package anthropic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/youssefsiam38/tagstream/content"
	"github.com/youssefsiam38/tagstream/storage"
	"github.com/youssefsiam38/tagstream/tool"
)

// ConvertToAnthropicMessages converts stored messages to message parameters.
// Messages with role "user" stay user messages; every other role is replayed
// as the assistant. Consecutive messages of the same role are merged, since
// the API requires alternating roles. Messages with no text are skipped.
func ConvertToAnthropicMessages(messages []*storage.Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		text := MessageText(msg)
		if strings.TrimSpace(text) == "" {
			continue
		}

		role := anthropic.MessageParamRoleAssistant
		if msg.Role == "user" {
			role = anthropic.MessageParamRoleUser
		}

		block := anthropic.NewTextBlock(text)
		if n := len(params); n > 0 && params[n-1].Role == role {
			params[n-1].Content = append(params[n-1].Content, block)
			continue
		}
		params = append(params, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{block},
		})
	}

	return params
}

// MessageText returns the text to replay for msg. The stored raw text is
// used when present so the model sees its own tags unchanged; otherwise the
// text is rebuilt from the blocks.
func MessageText(msg *storage.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return BlocksText(msg.Blocks)
}

// BlocksText renders blocks back to tagged text. Partial tool calls are left
// unclosed.
func BlocksText(blocks []content.Block) string {
	var b strings.Builder
	for _, block := range blocks {
		switch v := block.(type) {
		case *content.TextBlock:
			b.WriteString(v.Content)
		case *content.ToolUseBlock:
			b.WriteString("<" + v.Name + ">\n")
			v.Params.Each(func(name, value string) {
				b.WriteString("<" + name + ">" + value + "</" + name + ">\n")
			})
			if !v.Partial {
				b.WriteString("</" + v.Name + ">")
			}
		}
	}
	return b.String()
}

// ToolResultMessage builds the user message reporting tool results, one text
// block per result in dispatch order.
func ToolResultMessage(results []*tool.Result) anthropic.MessageParam {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, anthropic.NewTextBlock(FormatToolResult(r)))
	}
	return anthropic.NewUserMessage(blocks...)
}

// FormatToolResult renders a single tool result as text for the model.
func FormatToolResult(r *tool.Result) string {
	if r.Error != nil {
		return fmt.Sprintf("[%s] Error: %v", r.ToolName, r.Error)
	}
	if r.Output == "" {
		return fmt.Sprintf("[%s] Result: (no output)", r.ToolName)
	}
	return fmt.Sprintf("[%s] Result:\n%s", r.ToolName, r.Output)
}

// BuildSystemPrompt creates system prompt blocks
func BuildSystemPrompt(systemPrompt string) []anthropic.TextBlockParam {
	return []anthropic.TextBlockParam{
		{Text: systemPrompt},
	}
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return false
	}

	// Retry on rate limits and server errors
	return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
}
