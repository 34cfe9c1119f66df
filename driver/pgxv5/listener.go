package pgxv5

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/youssefsiam38/tagstream/driver"
)

// ErrListenerClosed is returned by Listen after Close
var ErrListenerClosed = errors.New("listener closed")

// Listener implements driver.Listener using pgx/v5.
type Listener struct {
	pool    *pgxpool.Pool
	notifCh chan driver.Notification
	cancel  context.CancelFunc
	loop    chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewListener creates a new Listener using the provided connection pool.
func NewListener(pool *pgxpool.Pool) *Listener {
	return &Listener{
		pool:    pool,
		notifCh: make(chan driver.Notification, 100),
	}
}

// Listen acquires a dedicated connection, subscribes to channels and starts
// delivering notifications until ctx is done or Close is called. It may be
// called once.
func (l *Listener) Listen(ctx context.Context, channels ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrListenerClosed
	}
	if l.loop != nil {
		return errors.New("listener already started")
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	for _, channel := range channels {
		if _, err := conn.Exec(ctx, `LISTEN "`+channel+`"`); err != nil {
			conn.Release()
			return err
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.loop = make(chan struct{})
	go l.listenLoop(loopCtx, conn)

	return nil
}

// listenLoop owns conn and the notification channel.
func (l *Listener) listenLoop(ctx context.Context, conn *pgxpool.Conn) {
	defer close(l.loop)
	defer close(l.notifCh)
	defer func() {
		// the connection still has LISTEN state, so don't return it to the pool
		_ = conn.Hijack().Close(context.Background())
	}()

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			// Canceled, or the connection broke. Either way this listener is done;
			// callers see the closed channel and can start a new one.
			return
		}

		select {
		case l.notifCh <- driver.Notification{
			Channel: notification.Channel,
			Payload: notification.Payload,
		}:
		case <-ctx.Done():
			return
		}
	}
}

// Notifications returns a channel for receiving notifications.
func (l *Listener) Notifications() <-chan driver.Notification {
	return l.notifCh
}

// Close stops listening and releases the connection.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	loop := l.loop
	l.mu.Unlock()

	if loop == nil {
		close(l.notifCh)
		return nil
	}
	l.cancel()
	<-loop
	return nil
}

var _ driver.Listener = (*Listener)(nil)
