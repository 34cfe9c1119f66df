package tagstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/tagstream/content"
	"github.com/youssefsiam38/tagstream/hooks"
	"github.com/youssefsiam38/tagstream/parser"
	"github.com/youssefsiam38/tagstream/storage"
	"github.com/youssefsiam38/tagstream/streaming"
	"github.com/youssefsiam38/tagstream/tool"
)

// Stream parses one assistant message as it arrives. Hooks fire for blocks
// as they are sealed; Close finalizes, persists and dispatches.
//
// Stream implements io.Writer, io.StringWriter and streaming.Sink. Its
// methods may be called from different goroutines, but hooks run with the
// stream locked and must not call back into it.
type Stream struct {
	client    *Client
	ctx       context.Context
	id        uuid.UUID
	sessionID string
	startedAt time.Time

	mu     sync.Mutex
	parser *parser.Parser
	text   []byte
	closed bool
	// notified counts sealed blocks whose hooks have fired
	notified int
	// vetoed holds sealed indexes of tool calls a ToolUse hook rejected
	vetoed map[int]bool

	acc      *streaming.Accumulator
	usage    *storage.MessageUsage
	metadata map[string]any
}

// Result is the outcome of closing a stream
type Result struct {
	// Message is the stored form of the stream. It is built even without a Store.
	Message *storage.Message

	// Blocks is the final block list
	Blocks []content.Block

	// ToolResults holds one result per dispatched tool call, in stream order
	ToolResults []*tool.Result

	// Duration is the time from NewStream to the end of Close
	Duration time.Duration
}

// ID returns the stream ID, which is also the stored message ID
func (s *Stream) ID() uuid.UUID {
	return s.id
}

// SessionID returns the session the stream belongs to
func (s *Stream) SessionID() string {
	return s.sessionID
}

func (s *Stream) info() hooks.StreamInfo {
	return hooks.StreamInfo{StreamID: s.id, SessionID: s.sessionID}
}

// Write appends a chunk of the message
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, NewStreamError("Write", s.id.String(), ErrStreamClosed)
	}
	n, err := s.parser.Write(p)
	if err != nil {
		return n, NewStreamError("Write", s.id.String(), err)
	}
	s.text = append(s.text, p...)
	return n, s.notify(s.ctx, "Write")
}

// WriteString appends a chunk of the message
func (s *Stream) WriteString(chunk string) (int, error) {
	return s.Write([]byte(chunk))
}

// Append seals a block that did not come through the tag stream, such as a
// native tool call the accumulator could not write as tags. Its tag form is
// added to the message text.
func (s *Stream) Append(b content.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStreamError("Append", s.id.String(), ErrStreamClosed)
	}
	if err := s.parser.Append(b); err != nil {
		return NewStreamError("Append", s.id.String(), err)
	}
	s.text = append(s.text, tagText(b)...)
	return s.notify(s.ctx, "Append")
}

// tagText writes a block back in tag form
func tagText(b content.Block) string {
	switch v := b.(type) {
	case *content.TextBlock:
		return v.Content
	case *content.ToolUseBlock:
		var sb strings.Builder
		sb.WriteString("<" + v.Name + ">")
		v.Params.Each(func(name, value string) {
			sb.WriteString("<" + name + ">" + value + "</" + name + ">")
		})
		sb.WriteString("</" + v.Name + ">")
		return sb.String()
	}
	return ""
}

// Update feeds the whole message received so far, for transports that
// resend the full text on every event.
func (s *Stream) Update(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStreamError("Update", s.id.String(), ErrStreamClosed)
	}
	if err := s.parser.Update(message); err != nil {
		return NewStreamError("Update", s.id.String(), err)
	}
	s.text = append(s.text[:0], message...)
	return s.notify(s.ctx, "Update")
}

// Blocks returns the blocks parsed so far; the last one may be partial
func (s *Stream) Blocks() []content.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parser.Blocks()
}

// Text returns the message written so far
func (s *Stream) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.text)
}

// SetUsage records token usage to store with the message
func (s *Stream) SetUsage(u storage.MessageUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = &u
}

// SetMetadata records a value to store with the message
func (s *Stream) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metadata == nil {
		s.metadata = make(map[string]any)
	}
	s.metadata[key] = value
}

// Accumulator returns an accumulator that feeds provider streaming events
// into the stream. Close picks up its usage and message metadata.
func (s *Stream) Accumulator() *streaming.Accumulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acc == nil {
		s.acc = streaming.NewAccumulator(s)
	}
	return s.acc
}

// notify fires hooks for blocks sealed since the last call. Must hold mu.
func (s *Stream) notify(ctx context.Context, op string) error {
	n := s.parser.NumSealed()
	if n < s.notified {
		// a rescan rewrote history; blocks from n on get sealed again
		for i := range s.vetoed {
			if i >= n {
				delete(s.vetoed, i)
			}
		}
		s.notified = n
	}

	h := s.client.config.hooks
	for i, block := range s.parser.SealedSince(s.notified) {
		idx := s.notified + i
		if err := h.TriggerBlockSealed(ctx, s.info(), block); err != nil {
			s.notified = idx + 1
			return s.hookError(op, "BlockSealed", err)
		}
		call, ok := block.(*content.ToolUseBlock)
		if !ok || call.Partial {
			continue
		}
		if err := h.TriggerToolUse(ctx, s.info(), call); err != nil {
			s.vetoed[idx] = true
			s.notified = idx + 1
			s.client.config.logger.Warn("tool call rejected by hook",
				"stream_id", s.id, "tool", call.Name, "error", err)
			return s.hookError(op, "ToolUse", err).WithContext("tool", call.Name)
		}
	}
	s.notified = n
	return nil
}

func (s *Stream) hookError(op, hook string, err error) *Error {
	return NewStreamError(op, s.id.String(), fmt.Errorf("%w: %s: %w", ErrHook, hook, err))
}

// Close finalizes the stream. Hooks fire for the block left open, then the
// message is stored and, with auto dispatch on, the complete tool calls that
// no hook rejected are run. A truncated trailing tool call is never run.
//
// Close returns the result even when a later step fails, along with the error.
func (s *Stream) Close(ctx context.Context) (*Result, error) {
	// the accumulator writes through s and reads its blocks, so it is
	// flushed and read before locking
	s.mu.Lock()
	acc := s.acc
	s.mu.Unlock()
	var provider *streaming.Message
	if acc != nil {
		if err := acc.Finish(); err != nil && !errors.Is(err, ErrStreamClosed) {
			return nil, NewStreamError("Close", s.id.String(), err)
		}
		provider = acc.Message()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewStreamError("Close", s.id.String(), ErrStreamClosed)
	}
	s.closed = true

	cfg := s.client.config
	blocks := s.parser.Finalize()
	result := &Result{Blocks: blocks, Message: s.message(blocks, provider)}
	defer func() { result.Duration = time.Since(s.startedAt) }()

	var errs []error
	if err := s.notify(ctx, "Close"); err != nil {
		errs = append(errs, err)
	}
	if err := cfg.hooks.TriggerFinalize(ctx, s.info(), content.CloneBlocks(blocks)); err != nil {
		errs = append(errs, s.hookError("Close", "Finalize", err))
	}

	if cfg.store != nil {
		if err := cfg.store.SaveMessage(ctx, result.Message); err != nil {
			cfg.logger.Error("failed to save message", "stream_id", s.id, "error", err)
			return result, NewStreamError("Close", s.id.String(), fmt.Errorf("%w: %w", ErrStorage, err))
		}
	}

	cfg.logger.Info("stream closed",
		"stream_id", s.id,
		"session_id", s.sessionID,
		"blocks", len(blocks),
		"partial", result.Message.Partial,
	)

	if cfg.autoDispatch && s.client.executor != nil {
		result.ToolResults = s.dispatch(ctx, blocks, &errs)
	}

	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}
	return result, nil
}

func (s *Stream) message(blocks []content.Block, m *streaming.Message) *storage.Message {
	msg := &storage.Message{
		ID:        s.id.String(),
		SessionID: s.sessionID,
		Role:      s.client.config.role,
		Blocks:    content.CloneBlocks(blocks),
		Text:      string(s.text),
		Partial:   content.Truncated(blocks),
		Usage:     s.usage,
		CreatedAt: time.Now(),
	}

	if m != nil {
		if msg.Usage == nil {
			msg.Usage = &storage.MessageUsage{
				InputTokens:         m.Usage.InputTokens,
				OutputTokens:        m.Usage.OutputTokens,
				CacheCreationTokens: m.Usage.CacheCreationTokens,
				CacheReadTokens:     m.Usage.CacheReadTokens,
			}
		}
		for k, v := range map[string]string{"provider_message_id": m.ID, "model": m.Model, "stop_reason": m.StopReason} {
			if v != "" {
				s.setMetadata(k, v)
			}
		}
		if len(m.ToolUseIDs) > 0 {
			s.setMetadata("tool_use_ids", m.ToolUseIDs)
		}
	}

	if len(s.metadata) > 0 {
		msg.Metadata = make(map[string]any, len(s.metadata))
		for k, v := range s.metadata {
			msg.Metadata[k] = v
		}
	}
	return msg
}

func (s *Stream) setMetadata(key string, value any) {
	if s.metadata == nil {
		s.metadata = make(map[string]any)
	}
	if _, ok := s.metadata[key]; !ok {
		s.metadata[key] = value
	}
}

func (s *Stream) dispatch(ctx context.Context, blocks []content.Block, errs *[]error) []*tool.Result {
	cfg := s.client.config

	var calls []*content.ToolUseBlock
	for i, b := range blocks {
		call, ok := b.(*content.ToolUseBlock)
		if !ok || call.Partial || s.vetoed[i] {
			continue
		}
		calls = append(calls, call)
	}
	if len(calls) == 0 {
		return nil
	}

	ctx = tool.WithStreamContext(ctx, tool.StreamContext{
		StreamID:  s.id,
		SessionID: s.sessionID,
		Variables: cfg.variables,
	})
	results := s.client.executor.DispatchAll(ctx, calls, cfg.parallelDispatch)

	for i, r := range results {
		if r.Error != nil {
			cfg.logger.Warn("tool call failed", "stream_id", s.id, "tool", r.ToolName, "error", r.Error)
		} else {
			cfg.logger.Debug("tool call succeeded", "stream_id", s.id, "tool", r.ToolName, "duration", r.Duration)
		}
		if err := cfg.hooks.TriggerToolResult(ctx, s.info(), calls[i], r.Output, r.Error); err != nil {
			*errs = append(*errs, s.hookError("Close", "ToolResult", err))
		}
	}
	return results
}

var (
	_ streaming.Sink      = (*Stream)(nil)
	_ streaming.BlockSink = (*Stream)(nil)
)
