// Package content defines the blocks produced by segmenting a model's output
// stream: narration text and tool-use requests with named parameters.
package content

import "strings"

// Kind identifies the concrete type of a Block
type Kind string

const (
	// KindText is narration between or around tool calls
	KindText Kind = "text"

	// KindToolUse is a request to invoke a named tool
	KindToolUse Kind = "tool_use"
)

// Block is a unit of parsed output. It is a closed set: the only
// implementations are *TextBlock and *ToolUseBlock.
type Block interface {
	// Kind returns the block type
	Kind() Kind

	// IsPartial reports whether the block's closing boundary has not been observed
	IsPartial() bool

	// CloneBlock returns a deep copy of the block
	CloneBlock() Block

	block()
}

// TextBlock is narration text
type TextBlock struct {
	Content string `json:"content"`
	Partial bool   `json:"partial"`
}

// Kind implements Block
func (b *TextBlock) Kind() Kind { return KindText }

// IsPartial implements Block
func (b *TextBlock) IsPartial() bool { return b.Partial }

// CloneBlock implements Block
func (b *TextBlock) CloneBlock() Block {
	c := *b
	return &c
}

func (*TextBlock) block() {}

// IsEmpty reports whether the block has no content. Empty text blocks appear
// between adjacent tool calls separated only by whitespace; callers usually
// skip them.
func (b *TextBlock) IsEmpty() bool {
	return b.Content == ""
}

// ToolUseBlock is a tool invocation request. Name never changes after the
// block is created.
type ToolUseBlock struct {
	Name    string  `json:"name"`
	Params  *Params `json:"params"`
	Partial bool    `json:"partial"`
}

// NewToolUse creates a tool-use block with an empty parameter set
func NewToolUse(name string, partial bool) *ToolUseBlock {
	return &ToolUseBlock{
		Name:    name,
		Params:  NewParams(),
		Partial: partial,
	}
}

// Kind implements Block
func (b *ToolUseBlock) Kind() Kind { return KindToolUse }

// IsPartial implements Block
func (b *ToolUseBlock) IsPartial() bool { return b.Partial }

// CloneBlock implements Block
func (b *ToolUseBlock) CloneBlock() Block {
	return b.Clone()
}

func (*ToolUseBlock) block() {}

// Clone returns a deep copy of the tool-use block
func (b *ToolUseBlock) Clone() *ToolUseBlock {
	return &ToolUseBlock{
		Name:    b.Name,
		Params:  b.Params.Clone(),
		Partial: b.Partial,
	}
}

// Param returns the value of a parameter and whether it was present
func (b *ToolUseBlock) Param(name string) (string, bool) {
	return b.Params.Get(name)
}

// CloneBlocks deep-copies a block list
func CloneBlocks(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.CloneBlock()
	}
	return out
}

// Text joins the content of all non-empty text blocks with blank lines
func Text(blocks []Block) string {
	var parts []string
	for _, b := range blocks {
		if tb, ok := b.(*TextBlock); ok && !tb.IsEmpty() {
			parts = append(parts, tb.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ToolUses returns the tool-use blocks in order. When completeOnly is set,
// partial blocks are skipped; those must never be dispatched.
func ToolUses(blocks []Block, completeOnly bool) []*ToolUseBlock {
	var out []*ToolUseBlock
	for _, b := range blocks {
		tu, ok := b.(*ToolUseBlock)
		if !ok {
			continue
		}
		if completeOnly && tu.Partial {
			continue
		}
		out = append(out, tu)
	}
	return out
}

// HasPartial reports whether any block in the list is still partial
func HasPartial(blocks []Block) bool {
	for _, b := range blocks {
		if b.IsPartial() {
			return true
		}
	}
	return false
}

// Truncated reports whether the stream ended inside a tool call, i.e. the
// last block is a partial tool use. Trailing partial text does not count.
func Truncated(blocks []Block) bool {
	if len(blocks) == 0 {
		return false
	}
	tu, ok := blocks[len(blocks)-1].(*ToolUseBlock)
	return ok && tu.Partial
}
