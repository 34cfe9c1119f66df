package hooks

import (
	"context"
	"log"
	"strings"

	"github.com/youssefsiam38/tagstream/content"
)

// LoggingHooks provides built-in logging hooks for observability
type LoggingHooks struct {
	logger *log.Logger
}

// NewLoggingHooks creates logging hooks with the provided logger
func NewLoggingHooks(logger *log.Logger) *LoggingHooks {
	return &LoggingHooks{logger: logger}
}

// DefaultLoggingHooks creates logging hooks with default logger
func DefaultLoggingHooks() *LoggingHooks {
	return &LoggingHooks{logger: log.Default()}
}

// ToolUse logs a completed tool call
func (h *LoggingHooks) ToolUse(ctx context.Context, info StreamInfo, call *content.ToolUseBlock) error {
	h.logger.Printf("[tagstream] stream %s: tool call %s (%d params)", info.StreamID, call.Name, call.Params.Len())
	return nil
}

// Finalize logs the block count of a closed stream
func (h *LoggingHooks) Finalize(ctx context.Context, info StreamInfo, blocks []content.Block) error {
	partial := ""
	if content.Truncated(blocks) {
		partial = " (truncated)"
	}
	h.logger.Printf("[tagstream] stream %s closed: %d blocks%s", info.StreamID, len(blocks), partial)
	return nil
}

// ToolResult logs tool execution
func (h *LoggingHooks) ToolResult(ctx context.Context, info StreamInfo, call *content.ToolUseBlock, output string, err error) error {
	if err != nil {
		h.logger.Printf("[tagstream] tool '%s' failed: %v", call.Name, err)
	} else {
		h.logger.Printf("[tagstream] tool '%s' succeeded: %s", call.Name, preview(output, 100))
	}
	return nil
}

// VerboseLoggingHooks provides detailed logging for debugging
type VerboseLoggingHooks struct {
	logger *log.Logger
}

// NewVerboseLoggingHooks creates verbose logging hooks
func NewVerboseLoggingHooks(logger *log.Logger) *VerboseLoggingHooks {
	return &VerboseLoggingHooks{logger: logger}
}

// BlockSealed logs every sealed block
func (h *VerboseLoggingHooks) BlockSealed(ctx context.Context, info StreamInfo, block content.Block) error {
	switch b := block.(type) {
	case *content.TextBlock:
		h.logger.Printf("[tagstream][VERBOSE] text block partial=%t: %q", b.Partial, preview(b.Content, 60))
	case *content.ToolUseBlock:
		h.logger.Printf("[tagstream][VERBOSE] tool block %s partial=%t", b.Name, b.Partial)
		b.Params.Each(func(name, value string) {
			h.logger.Printf("[tagstream][VERBOSE]   %s = %q", name, preview(value, 60))
		})
	}
	return nil
}

// Finalize logs the final block list
func (h *VerboseLoggingHooks) Finalize(ctx context.Context, info StreamInfo, blocks []content.Block) error {
	h.logger.Printf("[tagstream][VERBOSE] === Stream %s closed (session %s) ===", info.StreamID, info.SessionID)
	for i, b := range blocks {
		h.logger.Printf("[tagstream][VERBOSE] Block %d: kind=%s partial=%t", i, b.Kind(), b.IsPartial())
	}
	return nil
}

// ToolResult logs detailed tool execution information
func (h *VerboseLoggingHooks) ToolResult(ctx context.Context, info StreamInfo, call *content.ToolUseBlock, output string, err error) error {
	h.logger.Printf("[tagstream][VERBOSE] === Tool Call: %s ===", call.Name)
	if err != nil {
		h.logger.Printf("[tagstream][VERBOSE] Error: %v", err)
	} else {
		h.logger.Printf("[tagstream][VERBOSE] Output: %s", output)
	}
	return nil
}

// MetricsHooks collects metrics for monitoring
type MetricsHooks struct {
	OnMetric func(name string, value float64, tags map[string]string)
}

// NewMetricsHooks creates metrics collection hooks
func NewMetricsHooks(onMetric func(string, float64, map[string]string)) *MetricsHooks {
	return &MetricsHooks{OnMetric: onMetric}
}

// BlockSealed counts sealed blocks by kind
func (h *MetricsHooks) BlockSealed(ctx context.Context, info StreamInfo, block content.Block) error {
	h.OnMetric("tagstream.blocks", 1, map[string]string{"kind": string(block.Kind())})
	return nil
}

// Finalize records whether the stream was truncated
func (h *MetricsHooks) Finalize(ctx context.Context, info StreamInfo, blocks []content.Block) error {
	if content.Truncated(blocks) {
		h.OnMetric("tagstream.stream.truncated", 1, nil)
	}
	h.OnMetric("tagstream.stream.blocks", float64(len(blocks)), nil)
	return nil
}

// ToolResult records tool execution metrics
func (h *MetricsHooks) ToolResult(ctx context.Context, info StreamInfo, call *content.ToolUseBlock, output string, err error) error {
	tags := map[string]string{"tool": call.Name}
	if err != nil {
		h.OnMetric("tagstream.tool.error", 1, tags)
	} else {
		h.OnMetric("tagstream.tool.success", 1, tags)
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
