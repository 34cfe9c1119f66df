package databasesql

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/youssefsiam38/tagstream/driver"
)

// Notifier implements driver.Notifier using database/sql.
type Notifier struct {
	db *sql.DB
}

// Notify sends a notification on the specified channel.
func (n *Notifier) Notify(ctx context.Context, channel, payload string) error {
	_, err := n.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	return err
}

// Listener implements driver.Listener with pq.Listener, which reconnects on
// its own after connection loss.
type Listener struct {
	connStr string
	notifCh chan driver.Notification
	pql     *pq.Listener
	stop    chan struct{}
	loop    chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewListener creates a listener that connects with connStr on Listen.
func NewListener(connStr string) *Listener {
	return &Listener{
		connStr: connStr,
		notifCh: make(chan driver.Notification, 100),
		stop:    make(chan struct{}),
	}
}

// Listen subscribes to channels and starts delivering notifications until ctx
// is done or Close is called. It may be called once.
func (l *Listener) Listen(ctx context.Context, channels ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errors.New("listener closed")
	}
	if l.pql != nil {
		return errors.New("listener already started")
	}

	pql := pq.NewListener(l.connStr, 10*time.Second, time.Minute, nil)
	for _, channel := range channels {
		if err := pql.Listen(channel); err != nil {
			_ = pql.Close()
			return err
		}
	}

	l.pql = pql
	l.loop = make(chan struct{})
	go l.listenLoop(ctx)
	return nil
}

func (l *Listener) listenLoop(ctx context.Context) {
	defer close(l.loop)
	defer close(l.notifCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case n, ok := <-l.pql.Notify:
			if !ok {
				return
			}
			// nil after a reconnect; notifications may have been missed
			if n == nil {
				continue
			}
			select {
			case l.notifCh <- driver.Notification{Channel: n.Channel, Payload: n.Extra}:
			case <-ctx.Done():
				return
			case <-l.stop:
				return
			}
		}
	}
}

// Notifications returns a channel for receiving notifications.
func (l *Listener) Notifications() <-chan driver.Notification {
	return l.notifCh
}

// Close stops listening and closes the connection.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	pql, loop := l.pql, l.loop
	l.mu.Unlock()

	close(l.stop)
	if pql == nil {
		close(l.notifCh)
		return nil
	}
	<-loop
	return pql.Close()
}

var (
	_ driver.Notifier = (*Notifier)(nil)
	_ driver.Listener = (*Listener)(nil)
)
