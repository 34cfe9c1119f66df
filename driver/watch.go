package driver

import (
	"context"
	"errors"

	"github.com/youssefsiam38/tagstream/storage"
)

// WatchMessages listens on ChannelMessageSaved and sends every saved message
// of sessionID (all sessions when empty) to fn, loaded from store. It returns
// when ctx is done, the listener closes, or fn returns an error.
func WatchMessages(ctx context.Context, l Listener, store storage.Store, sessionID string, fn func(*storage.Message) error) error {
	if err := l.Listen(ctx, ChannelMessageSaved); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-l.Notifications():
			if !ok {
				return nil
			}
			p, err := ParseMessageSaved(n)
			if err != nil {
				continue
			}
			if sessionID != "" && p.SessionID != sessionID {
				continue
			}
			msg, err := store.GetMessage(ctx, p.MessageID)
			if errors.Is(err, storage.ErrMessageNotFound) {
				// deleted before we got to it
				continue
			}
			if err != nil {
				return err
			}
			if err := fn(msg); err != nil {
				return err
			}
		}
	}
}
