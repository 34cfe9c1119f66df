package parser

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/youssefsiam38/tagstream/content"
	"github.com/youssefsiam38/tagstream/registry"
)

// dump renders blocks in a compact form that is easy to compare and diff
func dump(blocks []content.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch v := b.(type) {
		case *content.TextBlock:
			parts = append(parts, fmt.Sprintf("text(%v)%q", v.Partial, v.Content))
		case *content.ToolUseBlock:
			var params []string
			v.Params.Each(func(name, value string) {
				params = append(params, fmt.Sprintf("%s=%q", name, value))
			})
			parts = append(parts, fmt.Sprintf("tool(%v)%s{%s}", v.Partial, v.Name, strings.Join(params, ",")))
		}
	}
	return strings.Join(parts, " | ")
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "exact segmentation",
			input: "before <execute_command><command>ls -la</command><requires_approval>false</requires_approval></execute_command> after",
			want:  `text(false)"before" | tool(false)execute_command{command="ls -la",requires_approval="false"} | text(true)"after"`,
		},
		{
			name:  "unrecognized tag passthrough",
			input: "see <foo>bar</foo> tag",
			want:  `text(true)"see <foo>bar</foo> tag"`,
		},
		{
			name:  "truncated at stream end",
			input: "<write_to_file><path>a.txt</path><content>hello",
			want:  `tool(true)write_to_file{path="a.txt",content="hello"}`,
		},
		{
			name:  "parameter order follows the stream",
			input: "<execute_command><requires_approval>true</requires_approval><command>rm -rf build</command></execute_command>",
			want:  `tool(false)execute_command{requires_approval="true",command="rm -rf build"}`,
		},
		{
			name:  "values are trimmed",
			input: "<read_file>\n<path>\n  src/main.go \n</path>\n</read_file>",
			want:  `tool(false)read_file{path="src/main.go"}`,
		},
		{
			name:  "tool without params",
			input: "<new_task></new_task>",
			want:  `tool(false)new_task{}`,
		},
		{
			name:  "adjacent tool calls produce no text",
			input: "<read_file><path>a</path></read_file><read_file><path>b</path></read_file>",
			want:  `tool(false)read_file{path="a"} | tool(false)read_file{path="b"}`,
		},
		{
			name:  "whitespace between tool calls is an empty text block",
			input: "<read_file><path>a</path></read_file>\n\n<read_file><path>b</path></read_file>",
			want:  `tool(false)read_file{path="a"} | text(false)"" | tool(false)read_file{path="b"}`,
		},
		{
			name:  "unknown parameter inside a tool call is ignored",
			input: "<read_file><foo>x</foo><path>a</path></read_file>",
			want:  `tool(false)read_file{path="a"}`,
		},
		{
			name:  "parameter of another tool is ignored",
			input: "<read_file><command>ls</command></read_file>",
			want:  `tool(false)read_file{}`,
		},
		{
			name:  "parameter tag outside a tool call is text",
			input: "use <path>x</path> here",
			want:  `text(true)"use <path>x</path> here"`,
		},
		{
			name:  "tool tag inside a parameter value is kept",
			input: "<execute_command><command>echo <read_file></command></execute_command>",
			want:  `tool(false)execute_command{command="echo <read_file>"}`,
		},
		{
			name:  "tool closing tag inside a parameter value is kept",
			input: "<execute_command><command>echo </execute_command></command></execute_command>",
			want:  `tool(false)execute_command{command="echo </execute_command>"}`,
		},
		{
			name:  "repeated parameter keeps first position and last value",
			input: "<search_files><path>a</path><regex>x</regex><path>b</path></search_files>",
			want:  `tool(false)search_files{path="b",regex="x"}`,
		},
		{
			name:  "unclosed parameter at end",
			input: "<execute_command><command>npm te",
			want:  `tool(true)execute_command{command="npm te"}`,
		},
		{
			name:  "tool opened but nothing else",
			input: "Let me look. <read_file>",
			want:  `text(false)"Let me look." | tool(true)read_file{}`,
		},
		{
			name:  "partial opening tag at end stays text",
			input: "thinking <read_fi",
			want:  `text(true)"thinking <read_fi"`,
		},
		{
			name:  "empty input",
			input: "",
			want:  ``,
		},
		{
			name:  "whitespace only",
			input: "  \n ",
			want:  `text(true)""`,
		},
		{
			name:  "multibyte text around tools",
			input: "héllo → <read_file><path>dossier/été.txt</path></read_file> ✓",
			want:  `text(false)"héllo →" | tool(false)read_file{path="dossier/été.txt"} | text(true)"✓"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range []Strategy{StrategyResumable, StrategyRescan} {
				got := dump(Parse(registry.Default(), tt.input, WithStrategy(s)))
				if got != tt.want {
					t.Errorf("%s:\n got  %s\n want %s", s, got, tt.want)
				}
			}
		})
	}
}

func TestParse_RawParameter(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "body containing its own closing tag",
			input: "<write_to_file><path>t.xml</path><content>\n<a></content></a>\n</content></write_to_file>",
			want:  `tool(false)write_to_file{path="t.xml",content="<a></content></a>"}`,
		},
		{
			name:  "parameter after the body is still read",
			input: "<write_to_file><content>x</content>\n<path>a.txt</path>\n</write_to_file>",
			want:  `tool(false)write_to_file{content="x",path="a.txt"}`,
		},
		{
			name:  "body without closing tag ends at the tool closing tag",
			input: "<write_to_file><path>a</path><content>abc</write_to_file> done",
			want:  `tool(false)write_to_file{path="a",content="abc"} | text(true)"done"`,
		},
		{
			name:  "opening tag inside an earlier value is not the body start",
			input: "<write_to_file><path><content></path><content>body</content></write_to_file>",
			want:  `tool(false)write_to_file{path="<content>",content="body"}`,
		},
		{
			// Known limitation: the last closing tag wins, so a later value
			// holding the same text swallows the parameters in between.
			name:  "closing tag inside a later value extends the body",
			input: "<write_to_file><content>a</content><path>x</content></path></write_to_file>",
			want:  `tool(false)write_to_file{content="a</content><path>x"}`,
		},
		{
			name:  "non-raw content parameter closes at the first closing tag",
			input: "<attempt_completion><result>a</result>b</result></attempt_completion>",
			want:  `tool(false)attempt_completion{result="a"}`,
		},
		{
			name:  "unclosed body at end of stream",
			input: "<write_to_file><path>a</path><content>line</content>more",
			want:  `tool(true)write_to_file{path="a",content="line"}`,
		},
		{
			name:  "parameter after a closed body in a truncated call",
			input: "<write_to_file><content>hello</content>\n<path>a.txt</path>",
			want:  `tool(true)write_to_file{content="hello",path="a.txt"}`,
		},
		{
			// Known limitation: the tool's closing tag inside the body ends
			// the call, and the rest of the body becomes text.
			name:  "tool closing tag inside the body ends the call",
			input: "<write_to_file><content>echo</write_to_file>more</content></write_to_file>",
			want:  `tool(false)write_to_file{content="echo"} | text(true)"more</content></write_to_file>"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range []Strategy{StrategyResumable, StrategyRescan} {
				got := dump(Parse(registry.Default(), tt.input, WithStrategy(s)))
				if got != tt.want {
					t.Errorf("%s:\n got  %s\n want %s", s, got, tt.want)
				}
			}
		})
	}
}

var chunkingCorpus = []string{
	"before <execute_command><command>ls -la</command><requires_approval>false</requires_approval></execute_command> after",
	"see <foo>bar</foo> tag",
	"<write_to_file><path>a.txt</path><content>hello",
	"<write_to_file><path>t.xml</path><content>\n<a></content></a>\n</content></write_to_file>\n\nDone. <attempt_completion><result>ok</result></attempt_completion>",
	"I'll read both.\n<read_file><path>a</path></read_file>\n<read_file><path>b</path></read_file>",
	"héllo → <read_file><path>dossier/été.txt</path></read_file> ✓ 日本語",
	"<write_to_file><content>x</content>\n<path>a.txt</path>\n</write_to_file>",
	"<<read_file>><path><</path>>x</path></read_file>>",
	"<write_to_file><content>hello</content>\n<path>a.txt</path>",
}

func TestChunking_Idempotent(t *testing.T) {
	reg := registry.Default()

	for i, msg := range chunkingCorpus {
		want := dump(Parse(reg, msg))

		t.Run(fmt.Sprintf("msg%d/two_way", i), func(t *testing.T) {
			for cut := 0; cut <= len(msg); cut++ {
				for _, s := range []Strategy{StrategyResumable, StrategyRescan} {
					p := New(reg, WithStrategy(s))
					_, _ = p.WriteString(msg[:cut])
					_, _ = p.WriteString(msg[cut:])
					if got := dump(p.Finalize()); got != want {
						t.Fatalf("%s cut=%d:\n got  %s\n want %s", s, cut, got, want)
					}
				}
			}
		})

		t.Run(fmt.Sprintf("msg%d/byte_at_a_time", i), func(t *testing.T) {
			p := New(reg)
			for j := 0; j < len(msg); j++ {
				_, _ = p.Write([]byte{msg[j]})
			}
			if got := dump(p.Finalize()); got != want {
				t.Fatalf("\n got  %s\n want %s", got, want)
			}
		})

		t.Run(fmt.Sprintf("msg%d/random", i), func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(i) + 1))
			for round := 0; round < 50; round++ {
				chunks := randomChunks(rng, msg)
				for _, s := range []Strategy{StrategyResumable, StrategyRescan} {
					p := New(reg, WithStrategy(s))
					so := New(reg, WithStrategy(s))
					var sofar string
					for _, c := range chunks {
						_, _ = p.WriteString(c)
						sofar += c
						if err := so.Update(sofar); err != nil {
							t.Fatalf("Update: %v", err)
						}
					}
					if got := dump(p.Finalize()); got != want {
						t.Fatalf("%s chunks=%q:\n got  %s\n want %s", s, chunks, got, want)
					}
					if got := dump(so.Finalize()); got != want {
						t.Fatalf("%s Update chunks=%q:\n got  %s\n want %s", s, chunks, got, want)
					}
				}
			}
		})
	}
}

func randomChunks(rng *rand.Rand, s string) []string {
	var chunks []string
	for len(s) > 0 {
		n := 1 + rng.Intn(8)
		if n > len(s) {
			n = len(s)
		}
		chunks = append(chunks, s[:n])
		s = s[n:]
	}
	return chunks
}

func TestBlocks_IntermediateStates(t *testing.T) {
	msg := "before <execute_command><command>ls -la</command><requires_approval>false</requires_approval></execute_command> after"
	reg := registry.Default()
	final := Parse(reg, msg)

	p := New(reg)
	for i := 0; i < len(msg); i++ {
		_, _ = p.Write([]byte{msg[i]})
		blocks := p.Blocks()

		for j, b := range blocks[:max(0, len(blocks)-1)] {
			if b.IsPartial() {
				t.Fatalf("after %d bytes: block %d is partial but not last: %s", i+1, j, dump(blocks))
			}
		}
		// every closed block is already final
		for j := 0; j < p.NumSealed(); j++ {
			if dump(blocks[j:j+1]) != dump(final[j:j+1]) {
				t.Fatalf("after %d bytes: sealed block %d = %s, final %s", i+1, j, dump(blocks[j:j+1]), dump(final[j:j+1]))
			}
		}
	}
}

func TestBlocks_Snapshots(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "open parameter value",
			input: "before <execute_command><command>ls -l",
			want:  `text(false)"before" | tool(true)execute_command{command="ls -l"}`,
		},
		{
			name:  "half closing tag is hidden",
			input: "<execute_command><command>ls -la</comm",
			want:  `tool(true)execute_command{command="ls -la"}`,
		},
		{
			name:  "half opening tag is hidden",
			input: "Let me check <read_f",
			want:  `text(true)"Let me check"`,
		},
		{
			name:  "text that cannot become a tag is shown",
			input: "a < b",
			want:  `text(true)"a < b"`,
		},
		{
			name:  "raw body hides half tool closing tag",
			input: "<write_to_file><content>x</content></write_to",
			want:  `tool(true)write_to_file{content="x"}`,
		},
		{
			name:  "raw body hides half closing tag",
			input: "<write_to_file><content>x</cont",
			want:  `tool(true)write_to_file{content="x"}`,
		},
		{
			name:  "parameter after a closed raw body",
			input: "<write_to_file><content>x</content><path>a.t",
			want:  `tool(true)write_to_file{content="x",path="a.t"}`,
		},
		{
			name:  "cut multibyte rune is hidden",
			input: "h\xc3",
			want:  `text(true)"h"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(registry.Default())
			_, _ = p.WriteString(tt.input)
			if got := dump(p.Blocks()); got != tt.want {
				t.Errorf("\n got  %s\n want %s", got, tt.want)
			}
		})
	}
}

func TestBlocks_RawBodyAfterClosingTag(t *testing.T) {
	msg := "<write_to_file><content>hello</content>\n<path>a.txt</path>\n</write_to_file>"
	closed := strings.Index(msg, "</content>") + len("</content>")

	p := New(registry.Default())
	for i := 0; i < len(msg); i++ {
		_, _ = p.Write([]byte{msg[i]})
		if i+1 < closed {
			continue
		}
		call := p.Blocks()[0].(*content.ToolUseBlock)
		if got, _ := call.Param("content"); got != "hello" {
			t.Fatalf("after %d bytes: content = %q", i+1, got)
		}
	}

	final := p.Finalize()
	if got := dump(final); got != `tool(false)write_to_file{content="hello",path="a.txt"}` {
		t.Errorf("final = %s", got)
	}
}

func TestBlocks_SnapshotDoesNotChangeState(t *testing.T) {
	p := New(registry.Default())
	_, _ = p.WriteString("<write_to_file><content>a</content>b")

	_ = p.Blocks()
	if p.State() != InsideParameter {
		t.Fatalf("State() = %s after snapshot", p.State())
	}
	_, _ = p.WriteString("</content></write_to_file>")
	if got := dump(p.Finalize()); got != `tool(false)write_to_file{content="a</content>b"}` {
		t.Errorf("final = %s", got)
	}
}

func TestTrimPendingDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"half closing tag", "abc</pa", 8, "abc"},
		{"bare angle bracket", "abc<", 8, "abc"},
		{"full closing tag kept", "abc</path>", 8, "abc</path>"},
		{"not a delimiter prefix", "a <b", 8, "a <b"},
		{"angle bracket before the window", "</pa" + strings.Repeat("x", 8), 8, "</pa" + strings.Repeat("x", 8)},
		{"fragment at the window edge", "xx</path", 7, "xx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trimPendingDelimiter(tt.in, tt.maxLen, "</path>"); got != tt.want {
				t.Errorf("trimPendingDelimiter(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestBlocks_ReturnsCopies(t *testing.T) {
	p := New(registry.Default())
	_, _ = p.WriteString("<read_file><path>a</path></read_file>")

	blocks := p.Blocks()
	blocks[0].(*content.ToolUseBlock).Params.Set("path", "mutated")

	if got, _ := p.Blocks()[0].(*content.ToolUseBlock).Param("path"); got != "a" {
		t.Errorf("parser state was mutated through Blocks(): path = %q", got)
	}
}

func TestState(t *testing.T) {
	p := New(registry.Default())
	steps := []struct {
		chunk string
		want  State
	}{
		{"hi ", ScanningText},
		{"<execute_command>", InsideToolCall},
		{"<command>", InsideParameter},
		{"ls</command>", InsideToolCall},
		{"</execute_command>", ScanningText},
	}
	for _, s := range steps {
		_, _ = p.WriteString(s.chunk)
		if got := p.State(); got != s.want {
			t.Errorf("after %q: State() = %s, want %s", s.chunk, got, s.want)
		}
	}
}

func TestFinalize_Once(t *testing.T) {
	p := New(registry.Default())
	_, _ = p.WriteString("<read_file><path>a")

	first := dump(p.Finalize())
	if !p.Done() {
		t.Error("Done() = false after Finalize")
	}
	if second := dump(p.Finalize()); second != first {
		t.Errorf("second Finalize = %s, want %s", second, first)
	}
	if got := dump(p.Blocks()); got != first {
		t.Errorf("Blocks() after Finalize = %s, want %s", got, first)
	}

	if _, err := p.WriteString("more"); !errors.Is(err, ErrFinalized) {
		t.Errorf("Write after Finalize: err = %v, want ErrFinalized", err)
	}
	if err := p.Update("<read_file><path>ab"); !errors.Is(err, ErrFinalized) {
		t.Errorf("Update after Finalize: err = %v, want ErrFinalized", err)
	}

	p.Reset()
	_, _ = p.WriteString("fresh")
	if got := dump(p.Finalize()); got != `text(true)"fresh"` {
		t.Errorf("after Reset: %s", got)
	}
}

func TestUpdate_ShorterMessageStartsOver(t *testing.T) {
	for _, s := range []Strategy{StrategyResumable, StrategyRescan} {
		p := New(registry.Default(), WithStrategy(s))
		_ = p.Update("<read_file><path>abc")
		_ = p.Update("<read_file>")
		if got := p.Consumed(); got != len("<read_file>") {
			t.Errorf("%s: Consumed() = %d", s, got)
		}
		if got := dump(p.Finalize()); got != `tool(true)read_file{}` {
			t.Errorf("%s: %s", s, got)
		}
	}
}

func TestUpdate_RescanDetectsRewrite(t *testing.T) {
	p := New(registry.Default(), WithStrategy(StrategyRescan))
	_ = p.Update("hello <read_file><path>a")
	_ = p.Update("goodbye world")
	if got := dump(p.Finalize()); got != `text(true)"goodbye world"` {
		t.Errorf("got %s", got)
	}
}

func TestRetained_Bounded(t *testing.T) {
	call := "<read_file><path>some/long/path/to/a/file.go</path></read_file>\n"

	p := New(registry.Default())
	for i := 0; i < 200; i++ {
		_, _ = p.WriteString(call)
	}
	// only the whitespace after the last call is still open
	if got := p.Retained(); got > 1 {
		t.Errorf("resumable Retained() = %d, want <= 1", got)
	}

	r := New(registry.Default(), WithStrategy(StrategyRescan))
	for i := 0; i < 20; i++ {
		_, _ = r.WriteString(call)
	}
	if got := r.Retained(); got < 20*len(call) {
		t.Errorf("rescan Retained() = %d, want >= %d", got, 20*len(call))
	}
	if p.NumSealed() != 2*200-1 {
		t.Errorf("NumSealed() = %d, want %d", p.NumSealed(), 2*200-1)
	}
}

func TestSealedSince(t *testing.T) {
	p := New(registry.Default())
	_, _ = p.WriteString("a <read_file><path>x</path></read_file> b")

	if got := dump(p.SealedSince(1)); got != `tool(false)read_file{path="x"}` {
		t.Errorf("SealedSince(1) = %s", got)
	}
	if got := p.SealedSince(5); got != nil {
		t.Errorf("SealedSince(5) = %v, want nil", got)
	}
	if got := len(p.SealedSince(-1)); got != 2 {
		t.Errorf("SealedSince(-1) len = %d, want 2", got)
	}
}

func TestNilRegistry(t *testing.T) {
	got := dump(Parse(nil, "<read_file><path>a</path></read_file>"))
	if got != `text(true)"<read_file><path>a</path></read_file>"` {
		t.Errorf("got %s", got)
	}
}

func TestCustomRegistryOrder(t *testing.T) {
	reg := registry.MustNew(registry.Entry{Name: "deploy", Params: []string{"env", "version"}})
	got := dump(Parse(reg, "<deploy><version>1.2</version><env>prod</env></deploy>"))
	if got != `tool(false)deploy{version="1.2",env="prod"}` {
		t.Errorf("got %s", got)
	}
}

func TestWriter(t *testing.T) {
	p := New(registry.Default())
	n, err := fmt.Fprintf(p, "<read_file><path>%s</path></read_file>", "x.go")
	if err != nil {
		t.Fatalf("Fprintf: %v", err)
	}
	if n != len("<read_file><path>x.go</path></read_file>") {
		t.Errorf("n = %d", n)
	}
	if got := dump(p.Finalize()); got != `tool(false)read_file{path="x.go"}` {
		t.Errorf("got %s", got)
	}
}

func TestStrings(t *testing.T) {
	if InsideParameter.String() != "inside_parameter" || State(9).String() != "unknown" {
		t.Error("State.String")
	}
	if StrategyRescan.String() != "rescan" || Strategy(9).String() != "unknown" {
		t.Error("Strategy.String")
	}
}

func BenchmarkResumable(b *testing.B) {
	msg := strings.Repeat(chunkingCorpus[0]+"\n", 50)
	reg := registry.Default()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		p := New(reg)
		for j := 0; j < len(msg); j += 16 {
			_, _ = p.WriteString(msg[j:min(j+16, len(msg))])
		}
		p.Finalize()
	}
}

func TestAppend(t *testing.T) {
	call := content.NewToolUse("execute_command", true)
	call.Params.Set("command", "grep '</command>' a.xml")

	for _, s := range []Strategy{StrategyResumable, StrategyRescan} {
		t.Run(s.String(), func(t *testing.T) {
			p := New(registry.Default(), WithStrategy(s))
			_, _ = p.WriteString("Counting. ")
			if err := p.Append(call); err != nil {
				t.Fatalf("Append: %v", err)
			}
			_, _ = p.WriteString(" Done. <read_file><path>a</path></read_file>")

			want := `text(false)"Counting." | tool(false)execute_command{command="grep '</command>' a.xml"} | text(false)"Done." | tool(false)read_file{path="a"}`
			if got := dump(p.Finalize()); got != want {
				t.Errorf("\n got  %s\n want %s", got, want)
			}
			if !call.Partial {
				t.Error("Append modified the caller's block")
			}
		})
	}
}

func TestAppend_Errors(t *testing.T) {
	p := New(registry.Default())
	if err := p.Append(content.NewToolUse("web_search", false)); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("unknown tool: err = %v", err)
	}

	_, _ = p.WriteString("<read_file><path>a")
	if err := p.Append(content.NewToolUse("read_file", false)); !errors.Is(err, ErrToolCallOpen) {
		t.Errorf("open call: err = %v", err)
	}

	p.Finalize()
	if err := p.Append(&content.TextBlock{Content: "x"}); !errors.Is(err, ErrFinalized) {
		t.Errorf("after Finalize: err = %v", err)
	}
}
