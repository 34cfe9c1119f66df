package tagstream

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/tagstream/content"
	"github.com/youssefsiam38/tagstream/parser"
	"github.com/youssefsiam38/tagstream/registry"
	"github.com/youssefsiam38/tagstream/storage"
	"github.com/youssefsiam38/tagstream/tool"
)

// Version is the current tagstream version
const Version = "0.1.0"

// Client opens parse streams that share a tag vocabulary, hooks, tools and
// storage. It is safe for concurrent use; each Stream is not.
type Client struct {
	config   *internalConfig
	executor *tool.Executor
}

// NewClient creates a new client.
//
// Example:
//
//	client, err := tagstream.NewClient(tagstream.Config{Registry: registry.Default()})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stream, _ := client.NewStream(ctx, "session-1")
//	for chunk := range chunks {
//	    stream.WriteString(chunk)
//	}
//	result, err := stream.Close(ctx)
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	config, err := newInternalConfig(cfg)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	c := &Client{config: config}
	if config.tools != nil {
		c.executor = tool.NewExecutor(config.tools)
		c.executor.SetDefaultTimeout(config.toolTimeout)
	}

	config.logger.Debug("tagstream client created",
		"tools", config.registry.Len(),
		"strategy", config.strategy.String(),
		"auto_dispatch", config.autoDispatch,
	)
	return c, nil
}

// Registry returns the tag vocabulary streams parse with
func (c *Client) Registry() *registry.Registry {
	return c.config.registry
}

// Parse segments a complete message without hooks, storage or dispatch
func (c *Client) Parse(text string) []content.Block {
	return parser.Parse(c.config.registry, text, parser.WithStrategy(c.config.strategy))
}

// NewStream opens a stream for one assistant message of sessionID. ctx is
// passed to hooks fired while writing; Close takes its own context.
func (c *Client) NewStream(ctx context.Context, sessionID string) (*Stream, error) {
	if sessionID == "" {
		return nil, NewError("NewStream", ErrSessionRequired)
	}

	s := &Stream{
		client:    c,
		ctx:       ctx,
		id:        uuid.New(),
		sessionID: sessionID,
		startedAt: time.Now(),
		parser:    parser.New(c.config.registry, parser.WithStrategy(c.config.strategy)),
		vetoed:    make(map[int]bool),
	}
	c.config.logger.Debug("stream opened", "stream_id", s.id, "session_id", sessionID)
	return s, nil
}

// Messages returns the stored messages of a session, oldest first
func (c *Client) Messages(ctx context.Context, sessionID string) ([]*storage.Message, error) {
	if c.config.store == nil {
		return nil, NewError("Messages", ErrNoStore)
	}
	msgs, err := c.config.store.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, NewError("Messages", fmt.Errorf("%w: %w", ErrStorage, err)).
			WithContext("session_id", sessionID)
	}
	return msgs, nil
}

// Message returns one stored message
func (c *Client) Message(ctx context.Context, id string) (*storage.Message, error) {
	if c.config.store == nil {
		return nil, NewError("Message", ErrNoStore)
	}
	msg, err := c.config.store.GetMessage(ctx, id)
	if err != nil {
		return nil, NewStreamError("Message", id, fmt.Errorf("%w: %w", ErrStorage, err))
	}
	return msg, nil
}

// Dispatch runs the complete tool calls of a stored message, e.g. one that
// was saved without auto dispatch and approved later.
func (c *Client) Dispatch(ctx context.Context, msg *storage.Message) ([]*tool.Result, error) {
	if c.executor == nil {
		return nil, NewError("Dispatch", fmt.Errorf("%w: no tools configured", ErrInvalidConfig))
	}
	id, err := uuid.Parse(msg.ID)
	if err != nil {
		return nil, NewStreamError("Dispatch", msg.ID, err)
	}
	calls := content.ToolUses(msg.Blocks, true)
	ctx = tool.WithStreamContext(ctx, tool.StreamContext{StreamID: id, SessionID: msg.SessionID, Variables: c.config.variables})
	return c.executor.DispatchAll(ctx, calls, c.config.parallelDispatch), nil
}
