package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/youssefsiam38/tagstream/content"
	"github.com/youssefsiam38/tagstream/storage"
)

type fakeRow struct{ values []any }

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *[]byte:
			if r.values[i] != nil {
				*p = r.values[i].([]byte)
			}
		case *bool:
			*p = r.values[i].(bool)
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

func TestEncodeDecodeMessage(t *testing.T) {
	call := content.NewToolUse("write_to_file", true)
	call.Params.Set("path", "a.txt")
	call.Params.Set("content", "x <b>")
	msg := &storage.Message{
		SessionID: "s1",
		Role:      "assistant",
		Blocks:    []content.Block{&content.TextBlock{Content: "Writing."}, call},
		Text:      "Writing.<write_to_file><path>a.txt</path><content>x <b>",
		Partial:   true,
		Usage:     &storage.MessageUsage{InputTokens: 3, OutputTokens: 9},
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	enc, err := EncodeMessage(msg, now)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	if msg.ID == "" || !msg.CreatedAt.Equal(now) || !msg.UpdatedAt.Equal(now) {
		t.Errorf("message not stamped: %+v", msg)
	}
	if string(enc.Metadata) != "{}" {
		t.Errorf("Metadata = %s, want {}", enc.Metadata)
	}
	if args := enc.Args(); len(args) != 10 || args[0] != msg.ID || args[6] == nil {
		t.Errorf("Args = %v", args)
	}

	row := fakeRow{values: []any{enc.ID, enc.SessionID, enc.Role, enc.Blocks, enc.Text, enc.Partial, enc.Usage, enc.Metadata, enc.CreatedAt, enc.UpdatedAt}}
	got, err := ScanMessage(row)
	if err != nil {
		t.Fatalf("ScanMessage: %v", err)
	}
	if got.ID != msg.ID || !got.Partial || got.Usage.TotalTokens() != 12 || got.Metadata != nil {
		t.Errorf("decoded = %+v", got)
	}
	if len(got.Blocks) != 2 {
		t.Fatalf("got %d blocks", len(got.Blocks))
	}
	tu := got.Blocks[1].(*content.ToolUseBlock)
	if !tu.Partial || !tu.Params.Equal(call.Params) {
		t.Errorf("tool block = %+v", tu)
	}
}

func TestEncodeMessage_Validation(t *testing.T) {
	if _, err := EncodeMessage(&storage.Message{}, time.Now()); err == nil {
		t.Error("expected error for missing session")
	}
	if _, err := EncodeMessage(&storage.Message{SessionID: "s", ID: "nope"}, time.Now()); err == nil {
		t.Error("expected error for non-uuid id")
	}

	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := &storage.Message{SessionID: "s", CreatedAt: created}
	enc, err := EncodeMessage(msg, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !enc.CreatedAt.Equal(created) || enc.Args()[6] != nil {
		t.Errorf("created_at or usage changed: %+v", enc)
	}
}

func TestParseMessageSaved(t *testing.T) {
	want := MessageSavedPayload{MessageID: "m", SessionID: "s", Partial: true}
	got, err := ParseMessageSaved(Notification{Channel: ChannelMessageSaved, Payload: MessageSavedJSON(want)})
	if err != nil || got != want {
		t.Errorf("ParseMessageSaved = %+v, %v", got, err)
	}
	if _, err := ParseMessageSaved(Notification{Channel: "other", Payload: "{}"}); err == nil {
		t.Error("expected error for foreign channel")
	}
	if _, err := ParseMessageSaved(Notification{Channel: ChannelMessageSaved, Payload: "{"}); err == nil {
		t.Error("expected error for bad payload")
	}
}

type recordingNotifier struct{ channel, payload string }

func (n *recordingNotifier) Notify(ctx context.Context, channel, payload string) error {
	n.channel, n.payload = channel, payload
	return nil
}

func TestNotifyMessageSaved(t *testing.T) {
	n := &recordingNotifier{}
	if err := NotifyMessageSaved(context.Background(), n, MessageSavedPayload{MessageID: "m", SessionID: "s"}); err != nil {
		t.Fatal(err)
	}
	if n.channel != ChannelMessageSaved || n.payload != `{"message_id":"m","session_id":"s","partial":false}` {
		t.Errorf("notified %q %q", n.channel, n.payload)
	}
}

type fakeListener struct {
	ch       chan Notification
	channels []string
}

func (l *fakeListener) Listen(ctx context.Context, channels ...string) error {
	l.channels = channels
	return nil
}
func (l *fakeListener) Notifications() <-chan Notification { return l.ch }
func (l *fakeListener) Close() error                       { close(l.ch); return nil }

func TestWatchMessages(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	mine := &storage.Message{SessionID: "s1", Text: "hello"}
	other := &storage.Message{SessionID: "s2", Text: "elsewhere"}
	for _, m := range []*storage.Message{mine, other} {
		if err := store.SaveMessage(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	l := &fakeListener{ch: make(chan Notification, 8)}
	send := func(m *storage.Message) {
		l.ch <- Notification{Channel: ChannelMessageSaved, Payload: MessageSavedJSON(MessageSavedPayload{MessageID: m.ID, SessionID: m.SessionID})}
	}
	send(other)
	l.ch <- Notification{Channel: ChannelMessageSaved, Payload: "garbage"}
	l.ch <- Notification{Channel: ChannelMessageSaved, Payload: MessageSavedJSON(MessageSavedPayload{MessageID: "gone", SessionID: "s1"})}
	send(mine)
	_ = l.Close()

	var got []string
	err := WatchMessages(ctx, l, store, "s1", func(m *storage.Message) error {
		got = append(got, m.Text)
		return nil
	})
	if err != nil {
		t.Fatalf("WatchMessages: %v", err)
	}
	if len(got) != 1 || got[0] != "hello" {
		t.Errorf("got %v", got)
	}
	if len(l.channels) != 1 || l.channels[0] != ChannelMessageSaved {
		t.Errorf("listened on %v", l.channels)
	}
}

func TestWatchMessages_CallbackErrorStops(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := &storage.Message{SessionID: "s1"}
	_ = store.SaveMessage(ctx, m)

	l := &fakeListener{ch: make(chan Notification, 2)}
	l.ch <- Notification{Channel: ChannelMessageSaved, Payload: MessageSavedJSON(MessageSavedPayload{MessageID: m.ID, SessionID: "s1"})}

	stop := errors.New("stop")
	err := WatchMessages(ctx, l, store, "", func(*storage.Message) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("err = %v, want %v", err, stop)
	}
}

func TestWatchMessages_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := &fakeListener{ch: make(chan Notification)}
	err := WatchMessages(ctx, l, storage.NewMemoryStore(), "", func(*storage.Message) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestExecutorContext(t *testing.T) {
	ctx := context.Background()
	if ExecutorFromContext(ctx) != nil {
		t.Error("expected nil executor")
	}
	var tx ExecutorTx = nil
	if got := ExecutorFromContext(WithExecutor(ctx, tx)); got != nil {
		t.Errorf("nil tx round-tripped to %v", got)
	}
}
