// Package tagstream turns a streamed LLM response that calls tools with
// inline XML-like tags into a list of content blocks, while the response is
// still arriving.
//
// # Key Features
//
//   - Incremental parsing: feed chunks of any size, read a consistent block
//     list after every write
//   - Tool vocabulary from a registry (built in, YAML, or derived from tools)
//   - Raw parameters for file content that may itself contain closing tags
//   - Hooks for sealed blocks, tool calls, finalization and tool results
//   - Tool dispatch with validation and timeouts; truncated calls never run
//   - Persistence to PostgreSQL through pgx/v5 or database/sql
//
// # Quick Start
//
//	client, err := tagstream.NewClient(tagstream.Config{
//	    Registry: registry.Default(),
//	})
//	stream, _ := client.NewStream(ctx, "session-1")
//	for chunk := range chunks {
//	    stream.WriteString(chunk)
//	    show(stream.Blocks()) // the last block may be partial
//	}
//	result, err := stream.Close(ctx)
//
// Streams from the Anthropic API can be fed event by event:
//
//	acc := stream.Accumulator()
//	for s.Next() {
//	    acc.ProcessAnthropicEvent(s.Current())
//	}
//
// # Tools
//
// Register tools to have complete calls dispatched when a stream closes:
//
//	ws, _ := builtin.NewWorkspace(dir)
//	tools := tool.NewRegistry()
//	tools.RegisterAll(ws.Tools())
//	client, _ := tagstream.NewClient(tagstream.Config{Tools: tools})
//
// A tool call whose closing tag never arrived is reported with Partial set
// and is not dispatched.
//
// The parser on its own lives in package parser; package render turns blocks
// into HTML.
package tagstream
