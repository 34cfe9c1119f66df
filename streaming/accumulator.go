// Package streaming adapts provider streaming APIs to the tag parser.
//
// Text deltas are written to a Sink (a parser.Parser or a tagstream.Stream)
// as they arrive. Native tool_use blocks, which some providers emit instead
// of inline tags, are rewritten into the same tag form once their input JSON
// is complete, so downstream code sees a single block model.
package streaming

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	"github.com/youssefsiam38/tagstream/content"
	"github.com/youssefsiam38/tagstream/parser"
)

// ErrFinished is returned when text arrives after the message ended
var ErrFinished = errors.New("message finished")

// Sink receives message text. *parser.Parser satisfies it.
type Sink interface {
	WriteString(s string) (int, error)
}

// BlockSink is implemented by sinks that can seal a block directly.
// *parser.Parser and tagstream.Stream satisfy it.
type BlockSink interface {
	Append(b content.Block) error
}

// BlockSource is implemented by sinks that can report parsed blocks
type BlockSource interface {
	Blocks() []content.Block
}

// Accumulator accumulates streaming events into a message
type Accumulator struct {
	sink Sink

	messageID    string
	model        string
	role         string
	stopReason   string
	stopSequence string
	usage        Usage
	toolIDs      []string

	transcript strings.Builder
	finished   bool

	// native tool use blocks still receiving input, by block index
	currentTools map[int]*nativeToolUse
}

type nativeToolUse struct {
	id    string
	name  string
	input strings.Builder
}

// Usage tracks token usage
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
}

// NewAccumulator creates a stream accumulator writing to sink
func NewAccumulator(sink Sink) *Accumulator {
	return &Accumulator{
		sink:         sink,
		currentTools: make(map[int]*nativeToolUse),
	}
}

// ProcessAnthropicEvent translates an event from the Anthropic streaming API
// and processes it
func (a *Accumulator) ProcessAnthropicEvent(event anthropic.MessageStreamEventUnion) error {
	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		a.usage.CacheCreationTokens = int(e.Message.Usage.CacheCreationInputTokens)
		a.usage.CacheReadTokens = int(e.Message.Usage.CacheReadInputTokens)
		return a.ProcessEvent(&MessageStartEvent{
			MessageID:   e.Message.ID,
			Model:       string(e.Message.Model),
			Role:        string(e.Message.Role),
			InputTokens: int(e.Message.Usage.InputTokens),
		})

	case anthropic.ContentBlockStartEvent:
		switch block := e.ContentBlock.AsAny().(type) {
		case anthropic.TextBlock:
			return a.ProcessEvent(&TextStartEvent{Index: int(e.Index), Text: block.Text})
		case anthropic.ToolUseBlock:
			return a.ProcessEvent(&ToolUseStartEvent{Index: int(e.Index), ToolID: block.ID, ToolName: block.Name})
		}

	case anthropic.ContentBlockDeltaEvent:
		switch delta := e.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			return a.ProcessEvent(&TextDeltaEvent{Index: int(e.Index), Delta: delta.Text})
		case anthropic.InputJSONDelta:
			return a.ProcessEvent(&ToolInputDeltaEvent{Index: int(e.Index), Delta: delta.PartialJSON})
		}

	case anthropic.ContentBlockStopEvent:
		return a.ProcessEvent(&ContentBlockStopEvent{Index: int(e.Index)})

	case anthropic.MessageDeltaEvent:
		return a.ProcessEvent(&MessageDeltaEvent{
			StopReason:   string(e.Delta.StopReason),
			StopSequence: e.Delta.StopSequence,
			OutputTokens: int(e.Usage.OutputTokens),
		})

	case anthropic.MessageStopEvent:
		return a.ProcessEvent(&MessageStopEvent{})
	}

	// Ignore thinking blocks and unknown events
	return nil
}

// ProcessEvent processes a provider-neutral event
func (a *Accumulator) ProcessEvent(event Event) error {
	switch e := event.(type) {
	case *MessageStartEvent:
		a.messageID = e.MessageID
		a.model = e.Model
		a.role = e.Role
		a.usage.InputTokens = e.InputTokens

	case *TextStartEvent:
		return a.ProcessText(e.Text)

	case *TextDeltaEvent:
		return a.ProcessText(e.Delta)

	case *ToolUseStartEvent:
		a.currentTools[e.Index] = &nativeToolUse{id: e.ToolID, name: e.ToolName}

	case *ToolInputDeltaEvent:
		if tu, ok := a.currentTools[e.Index]; ok {
			tu.input.WriteString(e.Delta)
		}

	case *ContentBlockStopEvent:
		tu, ok := a.currentTools[e.Index]
		if !ok {
			return nil
		}
		delete(a.currentTools, e.Index)
		a.toolIDs = append(a.toolIDs, tu.id)
		return a.processToolUse(tu.name, tu.input.String())

	case *MessageDeltaEvent:
		if e.StopReason != "" {
			a.stopReason = e.StopReason
		}
		a.stopSequence = e.StopSequence
		a.usage.OutputTokens = e.OutputTokens

	case *MessageStopEvent:
		return a.Finish()
	}
	return nil
}

// ProcessText writes raw message text to the sink. Use it for transports
// that deliver plain text chunks.
func (a *Accumulator) ProcessText(text string) error {
	if text == "" {
		return nil
	}
	if a.finished {
		return fmt.Errorf("write after finish: %w", ErrFinished)
	}
	a.transcript.WriteString(text)
	if _, err := a.sink.WriteString(text); err != nil {
		return fmt.Errorf("write to sink: %w", err)
	}
	return nil
}

// processToolUse writes a completed native tool use as tags. When a value
// holds a closing tag the parser would cut it short, so the call is handed
// to a BlockSink as a sealed block instead. Tools the sink does not know,
// and calls arriving inside an open tag call, stay tag text.
func (a *Accumulator) processToolUse(name, inputJSON string) error {
	tags := ToolUseTags(name, inputJSON)
	bs, ok := a.sink.(BlockSink)
	if !ok || TagSafe(name, inputJSON) {
		return a.ProcessText(tags)
	}
	if a.finished {
		return fmt.Errorf("write after finish: %w", ErrFinished)
	}

	err := bs.Append(ToolUseBlock(name, inputJSON))
	if errors.Is(err, parser.ErrUnknownTool) || errors.Is(err, parser.ErrToolCallOpen) {
		return a.ProcessText(tags)
	}
	if err != nil {
		return fmt.Errorf("append to sink: %w", err)
	}
	a.transcript.WriteString(tags)
	return nil
}

// Finish flushes native tool uses whose block never stopped as open tags,
// so the parser reports them as partial. It does not finalize the sink.
func (a *Accumulator) Finish() error {
	if a.finished {
		return nil
	}
	for _, i := range slices.Sorted(maps.Keys(a.currentTools)) {
		tu := a.currentTools[i]
		delete(a.currentTools, i)
		if err := a.ProcessText("<" + tu.name + ">"); err != nil {
			return err
		}
	}
	a.finished = true
	return nil
}

// Finished reports whether the message has ended
func (a *Accumulator) Finished() bool {
	return a.finished
}

// Message returns the accumulated message.
// This can be called at any time to get the current state.
func (a *Accumulator) Message() *Message {
	m := &Message{
		ID:           a.messageID,
		Model:        a.model,
		Role:         a.role,
		Text:         a.transcript.String(),
		ToolUseIDs:   append([]string(nil), a.toolIDs...),
		StopReason:   a.stopReason,
		StopSequence: a.stopSequence,
		Usage:        a.usage,
		CreatedAt:    time.Now(),
	}
	if src, ok := a.sink.(BlockSource); ok {
		m.Content = src.Blocks()
	}
	return m
}

// Message represents the accumulated message
type Message struct {
	ID    string
	Model string
	Role  string

	// Text is everything written to the sink, with native tool uses in tag form
	Text string

	// Content holds the parsed blocks when the sink is a BlockSource
	Content []content.Block

	// ToolUseIDs are the provider IDs of native tool uses, in stream order
	ToolUseIDs []string

	StopReason   string
	StopSequence string
	Usage        Usage
	CreatedAt    time.Time
}

// ToolUseTags renders a native tool use as tag text: one parameter tag per
// top-level input key, in the order the keys appear in the JSON. String values
// are written verbatim; other values as their raw JSON.
func ToolUseTags(name, inputJSON string) string {
	var b strings.Builder
	b.WriteString("<" + name + ">")
	eachInput(inputJSON, func(key, value string) {
		b.WriteString("<" + key + ">" + value + "</" + key + ">")
	})
	b.WriteString("</" + name + ">")
	return b.String()
}

// TagSafe reports whether ToolUseTags output parses back to the same values:
// no value may contain its own closing tag or the tool's.
func TagSafe(name, inputJSON string) bool {
	safe := true
	toolClose := "</" + name + ">"
	eachInput(inputJSON, func(key, value string) {
		if strings.Contains(value, "</"+key+">") || strings.Contains(value, toolClose) {
			safe = false
		}
	})
	return safe
}

// ToolUseBlock builds the complete block for a native tool use. Values are
// trimmed the way the parser trims tag values.
func ToolUseBlock(name, inputJSON string) *content.ToolUseBlock {
	block := content.NewToolUse(name, false)
	eachInput(inputJSON, func(key, value string) {
		block.Params.Set(key, strings.TrimSpace(value))
	})
	return block
}

// eachInput calls fn for each top-level key of a JSON object in order. String
// values are decoded; others are passed as raw JSON. Anything but a valid
// object yields nothing.
func eachInput(inputJSON string, fn func(key, value string)) {
	input := strings.TrimSpace(inputJSON)
	if input == "" || !gjson.Valid(input) {
		return
	}
	obj := gjson.Parse(input)
	if !obj.IsObject() {
		return
	}
	obj.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String {
			fn(key.String(), value.String())
		} else {
			fn(key.String(), value.Raw)
		}
		return true
	})
}
