// Package parser segments a growing model output stream into content blocks.
//
// The parser is a single-pass state machine over bytes. After each byte it
// checks whether the text accumulated so far ends with a delimiter that is
// meaningful in the current state, so it never needs to look ahead and can be
// fed arbitrarily small chunks:
//
//	p := parser.New(registry.Default())
//	for chunk := range chunks {
//	    p.WriteString(chunk)
//	    render(p.Blocks()) // last block may be partial
//	}
//	blocks := p.Finalize()
//
// Only tags for tools and parameters present in the registry are recognized;
// anything else stays text. The parser does not validate, execute or reject
// anything.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/youssefsiam38/tagstream/content"
	"github.com/youssefsiam38/tagstream/registry"
)

// ErrFinalized is returned by Write after Finalize
var ErrFinalized = errors.New("parser already finalized")

// ErrToolCallOpen is returned by Append while a tool call is open
var ErrToolCallOpen = errors.New("tool call is open")

// ErrUnknownTool is returned by Append for a tool the registry does not know
var ErrUnknownTool = errors.New("tool not in registry")

// Strategy selects how new input is scanned
type Strategy int

const (
	// StrategyResumable keeps the scanner state between writes and only
	// scans new bytes. It retains only the text of the open block.
	StrategyResumable Strategy = iota

	// StrategyRescan keeps the whole message and re-scans it from the start
	// on every write. Quadratic over many small chunks, but trivially
	// consistent; useful as a reference and for debugging.
	StrategyRescan
)

// String implements fmt.Stringer
func (s Strategy) String() string {
	switch s {
	case StrategyResumable:
		return "resumable"
	case StrategyRescan:
		return "rescan"
	default:
		return "unknown"
	}
}

// Option configures a Parser
type Option func(*Parser)

// WithStrategy sets the scan strategy. The default is StrategyResumable.
func WithStrategy(s Strategy) Option {
	return func(p *Parser) {
		p.strategy = s
	}
}

// Parser is the streaming tag parser. It is not safe for concurrent use.
type Parser struct {
	reg      *registry.Registry
	strategy Strategy
	openTags []string

	cur      cursor
	sealed   []content.Block
	textOpen bool
	tool     *openTool
	param    *registry.Param
	done     bool

	// consumed counts every byte written since the last Reset
	consumed int
	// history is the full message, kept only by StrategyRescan
	history []byte
	// appended are the blocks given to Append, kept only by StrategyRescan
	appended []appendedBlock
}

// appendedBlock is a block given to Append and the history length at the time
type appendedBlock struct {
	at    int
	block content.Block
}

// New creates a parser for the tools in reg. A nil registry recognizes no
// tools, so all input becomes text.
func New(reg *registry.Registry, opts ...Option) *Parser {
	if reg == nil {
		reg = registry.MustNew()
	}
	p := &Parser{reg: reg}
	for _, t := range reg.Tools() {
		p.openTags = append(p.openTags, t.Open)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse segments a complete message in one call and finalizes it
func Parse(reg *registry.Registry, text string, opts ...Option) []content.Block {
	p := New(reg, opts...)
	_, _ = p.WriteString(text)
	return p.Finalize()
}

// Registry returns the registry the parser was built with
func (p *Parser) Registry() *registry.Registry {
	return p.reg
}

// Strategy returns the scan strategy in use
func (p *Parser) Strategy() Strategy {
	return p.strategy
}

// Write appends a chunk of the message. It implements io.Writer.
func (p *Parser) Write(chunk []byte) (int, error) {
	if p.done {
		return 0, ErrFinalized
	}
	p.consumed += len(chunk)

	if p.strategy == StrategyRescan {
		p.history = append(p.history, chunk...)
		p.rescan()
		return len(chunk), nil
	}

	for _, b := range chunk {
		p.step(b)
	}
	return len(chunk), nil
}

// WriteString appends a chunk of the message. It implements io.StringWriter.
func (p *Parser) WriteString(chunk string) (int, error) {
	return p.Write([]byte(chunk))
}

// rescan scans the history from the start, putting appended blocks back at
// the positions they were given.
func (p *Parser) rescan() {
	p.resetScan()
	next := 0
	for i, b := range p.history {
		for ; next < len(p.appended) && p.appended[next].at == i; next++ {
			p.appendBlock(p.appended[next].block)
		}
		p.step(b)
	}
	for ; next < len(p.appended); next++ {
		p.appendBlock(p.appended[next].block)
	}
}

// Append seals a block that did not come from the tag stream, such as a
// provider's native tool call whose values cannot be written as tags. Open
// text is sealed first. The block is copied and marked complete.
//
// Append fails while a tool call is open, and for tool uses the registry
// does not know.
func (p *Parser) Append(b content.Block) error {
	if p.done {
		return ErrFinalized
	}
	if p.tool != nil {
		return ErrToolCallOpen
	}
	if call, ok := b.(*content.ToolUseBlock); ok && !p.reg.Has(call.Name) {
		return fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	b = b.CloneBlock()
	if p.strategy == StrategyRescan {
		p.appended = append(p.appended, appendedBlock{at: len(p.history), block: b})
	}
	p.appendBlock(b)
	return nil
}

func (p *Parser) appendBlock(b content.Block) {
	c := &p.cur
	if p.textOpen {
		p.seal(&content.TextBlock{Content: strings.TrimSpace(c.slice(c.textStart, len(c.buf)))})
		p.textOpen = false
	}
	c.compact(len(c.buf))

	b = b.CloneBlock()
	switch v := b.(type) {
	case *content.TextBlock:
		v.Partial = false
	case *content.ToolUseBlock:
		v.Partial = false
	}
	p.seal(b)
}

// Update feeds the whole message received so far. Only the part beyond what
// was already consumed is scanned.
//
// With StrategyRescan the retained history is compared against the message;
// if it is not a prefix the parser starts over. StrategyResumable keeps no
// history and trusts that the message extends what it was given before,
// starting over only when the message got shorter.
func (p *Parser) Update(message string) error {
	if p.done {
		return ErrFinalized
	}

	if p.strategy == StrategyRescan {
		if len(message) < len(p.history) || message[:len(p.history)] != string(p.history) {
			p.Reset()
		}
	} else if len(message) < p.consumed {
		p.Reset()
	}

	if len(message) == p.consumed {
		return nil
	}
	_, err := p.WriteString(message[p.consumed:])
	return err
}

// Consumed returns the number of bytes written since the last Reset
func (p *Parser) Consumed() int {
	return p.consumed
}

// State returns the current scanner state
func (p *Parser) State() State {
	return p.state()
}

// Done reports whether Finalize has run
func (p *Parser) Done() bool {
	return p.done
}

// Retained returns the number of message bytes currently buffered
func (p *Parser) Retained() int {
	return len(p.cur.buf) + len(p.history)
}

// Reset discards all state so the parser can be reused for a new message
func (p *Parser) Reset() {
	p.resetScan()
	p.history = p.history[:0]
	p.appended = nil
	p.consumed = 0
	p.done = false
}

func (p *Parser) resetScan() {
	p.cur.reset()
	p.sealed = p.sealed[:0]
	p.textOpen = false
	p.tool = nil
	p.param = nil
}

// NumSealed returns how many blocks have been closed so far
func (p *Parser) NumSealed() int {
	return len(p.sealed)
}

// Sealed returns copies of the closed blocks
func (p *Parser) Sealed() []content.Block {
	return content.CloneBlocks(p.sealed)
}

// SealedSince returns copies of the closed blocks from index i on
func (p *Parser) SealedSince(i int) []content.Block {
	if i < 0 {
		i = 0
	}
	if i >= len(p.sealed) {
		return nil
	}
	return content.CloneBlocks(p.sealed[i:])
}

// Blocks returns the blocks parsed so far. Every block but the last is
// closed; the last one may be a partial snapshot of the open block. The
// result is a copy and is not affected by later writes.
func (p *Parser) Blocks() []content.Block {
	blocks := content.CloneBlocks(p.sealed)
	if p.done {
		return blocks
	}
	if open := p.snapshot(); open != nil {
		blocks = append(blocks, open)
	}
	return blocks
}
