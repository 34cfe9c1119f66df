package hooks

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/youssefsiam38/tagstream/content"
)

var info = StreamInfo{StreamID: uuid.New(), SessionID: "s1"}

func TestOnBlockSealed(t *testing.T) {
	r := NewRegistry()
	var got content.Block

	r.OnBlockSealed(func(ctx context.Context, i StreamInfo, block content.Block) error {
		got = block
		return nil
	})

	block := &content.TextBlock{Content: "hi"}
	if err := r.TriggerBlockSealed(context.Background(), info, block); err != nil {
		t.Errorf("TriggerBlockSealed returned error: %v", err)
	}
	if got != block {
		t.Error("hook was not called with the block")
	}
}

func TestOnToolUse(t *testing.T) {
	r := NewRegistry()
	var capturedName string
	var capturedInfo StreamInfo

	r.OnToolUse(func(ctx context.Context, i StreamInfo, call *content.ToolUseBlock) error {
		capturedName = call.Name
		capturedInfo = i
		return nil
	})

	if err := r.TriggerToolUse(context.Background(), info, content.NewToolUse("read_file", false)); err != nil {
		t.Errorf("TriggerToolUse returned error: %v", err)
	}
	if capturedName != "read_file" || capturedInfo != info {
		t.Errorf("captured %q %+v", capturedName, capturedInfo)
	}
}

func TestOnFinalizeAndToolResult(t *testing.T) {
	r := NewRegistry()
	var finalized int
	var resultErr error

	r.OnFinalize(func(ctx context.Context, i StreamInfo, blocks []content.Block) error {
		finalized = len(blocks)
		return nil
	})
	r.OnToolResult(func(ctx context.Context, i StreamInfo, call *content.ToolUseBlock, output string, err error) error {
		resultErr = err
		return nil
	})

	_ = r.TriggerFinalize(context.Background(), info, []content.Block{&content.TextBlock{}, &content.TextBlock{}})
	toolErr := errors.New("boom")
	_ = r.TriggerToolResult(context.Background(), info, content.NewToolUse("x", false), "", toolErr)

	if finalized != 2 {
		t.Errorf("finalize saw %d blocks", finalized)
	}
	if !errors.Is(resultErr, toolErr) {
		t.Errorf("tool result err = %v", resultErr)
	}
}

func TestMultipleHooks(t *testing.T) {
	r := NewRegistry()
	callOrder := []int{}

	for i := 1; i <= 3; i++ {
		r.OnBlockSealed(func(ctx context.Context, _ StreamInfo, _ content.Block) error {
			callOrder = append(callOrder, i)
			return nil
		})
	}

	if err := r.TriggerBlockSealed(context.Background(), info, &content.TextBlock{}); err != nil {
		t.Errorf("TriggerBlockSealed returned error: %v", err)
	}
	if len(callOrder) != 3 {
		t.Fatalf("expected 3 hooks to be called, got %d", len(callOrder))
	}
	for i, v := range callOrder {
		if v != i+1 {
			t.Errorf("expected call order %d at index %d, got %d", i+1, i, v)
		}
	}
}

func TestHookStopsOnError(t *testing.T) {
	r := NewRegistry()
	called := []int{}
	expectedErr := errors.New("stop here")

	r.OnToolUse(func(ctx context.Context, _ StreamInfo, _ *content.ToolUseBlock) error {
		called = append(called, 1)
		return nil
	})
	r.OnToolUse(func(ctx context.Context, _ StreamInfo, _ *content.ToolUseBlock) error {
		called = append(called, 2)
		return expectedErr
	})
	r.OnToolUse(func(ctx context.Context, _ StreamInfo, _ *content.ToolUseBlock) error {
		called = append(called, 3)
		return nil
	})

	err := r.TriggerToolUse(context.Background(), info, content.NewToolUse("x", false))
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if len(called) != 2 {
		t.Errorf("expected 2 hooks to be called before error, got %d", len(called))
	}
}

func TestConcurrentRegistrationAndTrigger(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		r.OnBlockSealed(func(ctx context.Context, _ StreamInfo, _ content.Block) error {
			return nil
		})
	}

	wg.Add(200)
	for i := 0; i < 100; i++ {
		go func() {
			defer wg.Done()
			r.OnBlockSealed(func(ctx context.Context, _ StreamInfo, _ content.Block) error {
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = r.TriggerBlockSealed(context.Background(), info, &content.TextBlock{})
		}()
	}
	wg.Wait()
}

func TestUse(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry()
	r.Use(NewVerboseLoggingHooks(log.New(&buf, "", 0)))

	metrics := map[string]float64{}
	r.Use(NewMetricsHooks(func(name string, value float64, tags map[string]string) {
		metrics[name] += value
	}))

	call := content.NewToolUse("execute_command", false)
	call.Params.Set("command", "ls")
	ctx := context.Background()

	_ = r.TriggerBlockSealed(ctx, info, &content.TextBlock{Content: "Running it."})
	_ = r.TriggerBlockSealed(ctx, info, call)
	_ = r.TriggerToolUse(ctx, info, call)
	_ = r.TriggerToolResult(ctx, info, call, "", errors.New("denied"))
	_ = r.TriggerFinalize(ctx, info, []content.Block{&content.TextBlock{Content: "Running it."}, call})

	out := buf.String()
	for _, want := range []string{`text block partial=false: "Running it."`, `command = "ls"`, "Error: denied", "Block 1: kind=tool_use"} {
		if !strings.Contains(out, want) {
			t.Errorf("verbose log missing %q:\n%s", want, out)
		}
	}

	if metrics["tagstream.blocks"] != 2 || metrics["tagstream.tool.error"] != 1 || metrics["tagstream.stream.blocks"] != 2 {
		t.Errorf("metrics = %v", metrics)
	}
	if _, ok := metrics["tagstream.stream.truncated"]; ok {
		t.Error("complete stream reported as truncated")
	}
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	h := NewLoggingHooks(log.New(&buf, "", 0))

	partial := content.NewToolUse("write_to_file", true)
	_ = h.Finalize(context.Background(), info, []content.Block{partial})
	_ = h.ToolResult(context.Background(), info, content.NewToolUse("read_file", false), strings.Repeat("x", 300), nil)

	out := buf.String()
	if !strings.Contains(out, "1 blocks (truncated)") {
		t.Errorf("missing truncation note:\n%s", out)
	}
	if !strings.Contains(out, "tool 'read_file' succeeded: "+strings.Repeat("x", 100)+"...") {
		t.Errorf("output preview not truncated:\n%s", out)
	}
}
