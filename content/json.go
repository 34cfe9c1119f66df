package content

import (
	"encoding/json"
	"fmt"
)

// wireBlock is the tagged JSON form of a Block
type wireBlock struct {
	Type    Kind    `json:"type"`
	Content string  `json:"content,omitempty"`
	Name    string  `json:"name,omitempty"`
	Params  *Params `json:"params,omitempty"`
	Partial bool    `json:"partial"`
}

// MarshalBlocks encodes a block list as a JSON array. Each element carries a
// "type" discriminator; tool parameters keep their order.
func MarshalBlocks(blocks []Block) ([]byte, error) {
	wire := make([]wireBlock, 0, len(blocks))
	for i, b := range blocks {
		switch v := b.(type) {
		case *TextBlock:
			wire = append(wire, wireBlock{Type: KindText, Content: v.Content, Partial: v.Partial})
		case *ToolUseBlock:
			params := v.Params
			if params == nil {
				params = NewParams()
			}
			wire = append(wire, wireBlock{Type: KindToolUse, Name: v.Name, Params: params, Partial: v.Partial})
		default:
			return nil, fmt.Errorf("block %d: unsupported block type %T", i, b)
		}
	}
	return json.Marshal(wire)
}

// UnmarshalBlocks decodes the output of MarshalBlocks
func UnmarshalBlocks(data []byte) ([]Block, error) {
	var wire []wireBlock
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal blocks: %w", err)
	}

	blocks := make([]Block, 0, len(wire))
	for i, w := range wire {
		switch w.Type {
		case KindText:
			blocks = append(blocks, &TextBlock{Content: w.Content, Partial: w.Partial})
		case KindToolUse:
			if w.Name == "" {
				return nil, fmt.Errorf("block %d: tool_use without name", i)
			}
			params := w.Params
			if params == nil {
				params = NewParams()
			}
			blocks = append(blocks, &ToolUseBlock{Name: w.Name, Params: params, Partial: w.Partial})
		default:
			return nil, fmt.Errorf("block %d: unknown block type %q", i, w.Type)
		}
	}
	return blocks, nil
}
