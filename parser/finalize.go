package parser

import (
	"strings"

	"github.com/youssefsiam38/tagstream/content"
)

// Finalize seals whatever block is open and returns the final block list.
// An open parameter takes everything accumulated since its opening tag, except
// a raw parameter whose closing tag was seen, which ends at the last one. The
// open block is appended with Partial set: a tool call that never saw its
// closing tag must not be executed.
//
// Finalize runs once; later calls return the same blocks.
func (p *Parser) Finalize() []content.Block {
	if p.done {
		return content.CloneBlocks(p.sealed)
	}

	p.settleRawParameter()

	c := &p.cur
	switch {
	case p.tool != nil:
		if p.param != nil {
			p.tool.block.Params.Set(p.param.Name, strings.TrimSpace(c.slice(c.paramStart, len(c.buf))))
		}
		p.seal(p.tool.block)
	case p.textOpen:
		p.seal(&content.TextBlock{
			Content: strings.TrimSpace(c.slice(c.textStart, len(c.buf))),
			Partial: true,
		})
	}

	p.tool = nil
	p.param = nil
	p.textOpen = false
	p.done = true
	p.cur.buf = nil
	p.history = nil
	p.appended = nil

	return content.CloneBlocks(p.sealed)
}

// snapshot renders the open block the way Finalize would, without touching
// parser state. A trailing fragment that may still become a delimiter and a
// trailing cut UTF-8 sequence are left out.
func (p *Parser) snapshot() content.Block {
	c := &p.cur

	switch {
	case p.tool != nil:
		src := p
		if p.param != nil && p.param.Raw && c.lastIndex(c.paramStart, len(c.buf), p.param.Close) >= 0 {
			src = p.scratch()
			src.settleRawParameter()
		}

		block := src.tool.block.Clone()
		if src.param != nil {
			sc := &src.cur
			value := sc.slice(sc.paramStart, len(sc.buf))
			if src.param.Raw {
				value = trimPendingDelimiter(value, p.reg.MaxDelimiterLen(), src.tool.def.Close, src.param.Close)
			} else {
				value = trimPendingDelimiter(value, p.reg.MaxDelimiterLen(), src.param.Close)
			}
			block.Params.Set(src.param.Name, strings.TrimSpace(trimIncompleteRune(value)))
		}
		return block

	case p.textOpen:
		value := c.slice(c.textStart, len(c.buf))
		value = trimPendingDelimiter(value, p.reg.MaxDelimiterLen(), p.openTags...)
		return &content.TextBlock{
			Content: strings.TrimSpace(trimIncompleteRune(value)),
			Partial: true,
		}
	}

	return nil
}

// scratch copies the scan state of an open tool call so a snapshot can
// settle it without changing the parser.
func (p *Parser) scratch() *Parser {
	param := *p.param
	s := &Parser{
		reg:      p.reg,
		openTags: p.openTags,
		cur:      p.cur,
		tool:     &openTool{def: p.tool.def, block: p.tool.block.Clone()},
		param:    &param,
	}
	s.cur.buf = append([]byte(nil), p.cur.buf...)
	return s
}
