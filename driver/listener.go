package driver

import (
	"context"
	"encoding/json"
	"fmt"
)

// Notification represents a PostgreSQL NOTIFY notification.
type Notification struct {
	// Channel is the notification channel name.
	Channel string

	// Payload is the notification payload (may be empty).
	Payload string
}

// Listener receives PostgreSQL notifications on a dedicated connection.
type Listener interface {
	// Listen subscribes to channels and starts delivering notifications.
	Listen(ctx context.Context, channels ...string) error

	// Notifications returns the delivery channel. It is closed by Close.
	Notifications() <-chan Notification

	// Close stops listening and releases the connection.
	Close() error
}

// Notifier sends NOTIFY notifications.
// Both drivers support this since NOTIFY is a regular SQL command.
type Notifier interface {
	// Notify sends a notification on the specified channel with an optional payload.
	Notify(ctx context.Context, channel, payload string) error
}

// ChannelMessageSaved is notified after a message is stored.
// Payload is a MessageSavedPayload as JSON.
const ChannelMessageSaved = "tagstream_message_saved"

// MessageSavedPayload is the payload of ChannelMessageSaved
type MessageSavedPayload struct {
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
	Partial   bool   `json:"partial"`
}

// MessageSavedJSON encodes a ChannelMessageSaved payload
func MessageSavedJSON(p MessageSavedPayload) string {
	data, _ := json.Marshal(p)
	return string(data)
}

// NotifyMessageSaved sends the ChannelMessageSaved notification
func NotifyMessageSaved(ctx context.Context, n Notifier, p MessageSavedPayload) error {
	return n.Notify(ctx, ChannelMessageSaved, MessageSavedJSON(p))
}

// ParseMessageSaved decodes a ChannelMessageSaved payload
func ParseMessageSaved(n Notification) (MessageSavedPayload, error) {
	var p MessageSavedPayload
	if n.Channel != ChannelMessageSaved {
		return p, fmt.Errorf("unexpected channel %q", n.Channel)
	}
	if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return p, nil
}
