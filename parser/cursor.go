package parser

import (
	"strings"
	"unicode/utf8"
)

// cursor is the scan accumulator plus the offsets marking where the open
// text block, tool call and parameter value begin. Offsets index into buf.
//
// buf only holds the suffix of the message needed by the open block: bytes
// before the last block boundary are dropped by compact. A delimiter cannot
// straddle a boundary because every boundary ends in '>' and names cannot
// contain one.
type cursor struct {
	buf []byte

	textStart  int
	toolStart  int
	paramStart int
}

// endsWith reports whether buf[from:] ends with delim
func (c *cursor) endsWith(from int, delim string) bool {
	n := len(c.buf)
	if n-from < len(delim) {
		return false
	}
	return string(c.buf[n-len(delim):]) == delim
}

// slice returns buf[from:to] as a string
func (c *cursor) slice(from, to int) string {
	return string(c.buf[from:to])
}

// lastIndex returns the index of the last occurrence of delim in buf[from:to],
// relative to buf, or -1.
func (c *cursor) lastIndex(from, to int, delim string) int {
	i := strings.LastIndex(string(c.buf[from:to]), delim)
	if i < 0 {
		return -1
	}
	return from + i
}

// compact drops buf[:keep] and shifts the offsets
func (c *cursor) compact(keep int) {
	if keep <= 0 {
		return
	}
	if keep > len(c.buf) {
		keep = len(c.buf)
	}
	n := copy(c.buf, c.buf[keep:])
	c.buf = c.buf[:n]
	c.textStart -= keep
	c.toolStart -= keep
	c.paramStart -= keep
}

func (c *cursor) reset() {
	c.buf = c.buf[:0]
	c.textStart, c.toolStart, c.paramStart = 0, 0, 0
}

// trimIncompleteRune drops a trailing UTF-8 sequence that was cut by a chunk
// boundary. Only snapshots need this; sealed values end at an ASCII delimiter.
func trimIncompleteRune(s string) string {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			if !utf8.FullRuneInString(s[i:]) {
				return s[:i]
			}
			return s
		}
	}
	return s
}

// trimPendingDelimiter cuts a trailing '<...' fragment that is a proper
// prefix of one of delims, so a snapshot never shows half a tag. Such a
// fragment is shorter than maxLen, so only the last maxLen bytes are searched.
func trimPendingDelimiter(s string, maxLen int, delims ...string) string {
	from := max(0, len(s)-maxLen)
	i := strings.LastIndexByte(s[from:], '<')
	if i < 0 {
		return s
	}
	i += from
	frag := s[i:]
	for _, d := range delims {
		if len(frag) < len(d) && strings.HasPrefix(d, frag) {
			return s[:i]
		}
	}
	return s
}
