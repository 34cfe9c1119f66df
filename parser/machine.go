package parser

import (
	"strings"

	"github.com/youssefsiam38/tagstream/content"
	"github.com/youssefsiam38/tagstream/registry"
)

// State is the scanner state
type State int

const (
	// ScanningText is the initial state: no tool call is open
	ScanningText State = iota

	// InsideToolCall means a tool call is open and no parameter is
	InsideToolCall

	// InsideParameter means a parameter of the open tool call is open
	InsideParameter
)

// String implements fmt.Stringer
func (s State) String() string {
	switch s {
	case ScanningText:
		return "scanning_text"
	case InsideToolCall:
		return "inside_tool_call"
	case InsideParameter:
		return "inside_parameter"
	default:
		return "unknown"
	}
}

// openTool is the slot holding the tool call being accumulated
type openTool struct {
	def   *registry.Tool
	block *content.ToolUseBlock
}

// step appends one byte and applies the transition rules in priority order:
// parameter close, tool close, parameter open, tool open.
func (p *Parser) step(b byte) {
	c := &p.cur
	c.buf = append(c.buf, b)

	// Every delimiter ends in '>', nothing else can complete one.
	if b != '>' {
		if p.tool == nil && !p.textOpen {
			p.openText(len(c.buf) - 1)
		}
		return
	}

	switch {
	case p.param != nil:
		p.stepParameter()
	case p.tool != nil:
		p.stepToolCall()
	default:
		p.stepText()
	}
}

func (p *Parser) stepParameter() {
	c := &p.cur

	if p.param.Raw {
		// A raw body may contain its own closing tag, so only the enclosing
		// tool's closing tag ends it.
		if c.endsWith(c.toolStart, p.tool.def.Close) {
			p.closeRawParameter()
		}
		return
	}

	if c.endsWith(c.paramStart, p.param.Close) {
		end := len(c.buf) - len(p.param.Close)
		p.tool.block.Params.Set(p.param.Name, strings.TrimSpace(c.slice(c.paramStart, end)))
		p.param = nil
	}
}

func (p *Parser) stepToolCall() {
	c := &p.cur

	if c.endsWith(c.toolStart, p.tool.def.Close) {
		p.sealTool()
		return
	}

	for _, param := range p.tool.def.ParamDefs() {
		if c.endsWith(c.toolStart, param.Open) {
			param := param
			p.param = &param
			c.paramStart = len(c.buf)
			return
		}
	}
}

func (p *Parser) stepText() {
	c := &p.cur

	for _, def := range p.reg.Tools() {
		if !c.endsWith(0, def.Open) {
			continue
		}

		tagStart := len(c.buf) - len(def.Open)
		if p.textOpen {
			// The text block ran over the opening tag before it was recognized.
			if c.textStart < tagStart {
				p.seal(&content.TextBlock{Content: strings.TrimSpace(c.slice(c.textStart, tagStart))})
			}
			p.textOpen = false
		}

		p.tool = &openTool{def: def, block: content.NewToolUse(def.Name, true)}
		c.toolStart = len(c.buf)
		c.compact(c.toolStart)
		return
	}

	if !p.textOpen {
		p.openText(len(c.buf) - 1)
	}
}

func (p *Parser) openText(at int) {
	p.textOpen = true
	p.cur.textStart = at
}

// closeRawParameter runs when the enclosing tool's closing tag arrives while
// a raw parameter is open. The value runs from the parameter's opening tag to
// the last closing tag for it; whatever follows that closing tag is scanned
// again as tool-call body so later parameters are still picked up.
func (p *Parser) closeRawParameter() {
	c := &p.cur
	param := p.param
	bodyEnd := len(c.buf) - len(p.tool.def.Close)

	last := c.lastIndex(c.paramStart, bodyEnd, param.Close)
	if last < 0 {
		p.tool.block.Params.Set(param.Name, strings.TrimSpace(c.slice(c.paramStart, bodyEnd)))
		p.param = nil
		p.sealTool()
		return
	}

	p.tool.block.Params.Set(param.Name, strings.TrimSpace(c.slice(c.paramStart, last)))
	p.param = nil

	resume := last + len(param.Close)
	replay := append([]byte(nil), c.buf[resume:]...)
	c.buf = c.buf[:resume]
	for _, b := range replay {
		p.step(b)
	}
}

// settleRawParameter applies the closeRawParameter cut to a raw parameter
// that is still open, for when the stream stops before the tool's closing
// tag. If the parameter's closing tag has been seen, the value ends at the
// last one and the bytes after it are scanned again as tool-call body. It
// reports whether the parameter was closed.
//
// Those bytes never hold the tool's closing tag, since that would have
// closed the body already, so the tool call stays open.
func (p *Parser) settleRawParameter() bool {
	c := &p.cur
	if p.tool == nil || p.param == nil || !p.param.Raw {
		return false
	}
	last := c.lastIndex(c.paramStart, len(c.buf), p.param.Close)
	if last < 0 {
		return false
	}

	resume := last + len(p.param.Close)
	p.tool.block.Params.Set(p.param.Name, strings.TrimSpace(c.slice(c.paramStart, last)))
	p.param = nil

	replay := append([]byte(nil), c.buf[resume:]...)
	c.buf = c.buf[:resume]
	for _, b := range replay {
		p.step(b)
	}
	return true
}

func (p *Parser) sealTool() {
	block := p.tool.block
	block.Partial = false
	p.tool = nil
	p.param = nil
	p.seal(block)
	p.cur.compact(len(p.cur.buf))
}

func (p *Parser) seal(b content.Block) {
	p.sealed = append(p.sealed, b)
}

// state derives the scanner state from the open slots
func (p *Parser) state() State {
	switch {
	case p.param != nil:
		return InsideParameter
	case p.tool != nil:
		return InsideToolCall
	default:
		return ScanningText
	}
}
