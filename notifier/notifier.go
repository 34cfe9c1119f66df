// Package notifier fans out message-saved notifications to subscribers.
//
// A Notifier keeps one Listener open on driver.ChannelMessageSaved, reopens
// it after the connection drops, and hands every decoded payload to the
// handlers subscribed to its session. Sending goes through driver.Notifier,
// which both drivers support.
package notifier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/youssefsiam38/tagstream/driver"
)

// Event is a decoded message-saved notification.
type Event struct {
	driver.MessageSavedPayload

	// ReceivedAt is when the event was received.
	ReceivedAt time.Time
}

// Handler is called when an event is received.
type Handler func(event *Event)

// Config holds configuration for the notifier.
type Config struct {
	// ReconnectDelay is how long to wait before reopening the listener.
	// Default: 5 seconds
	ReconnectDelay time.Duration

	// OnError is called when the listener fails.
	OnError func(err error)

	// OnReconnect is called before the listener is reopened.
	OnReconnect func()
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ReconnectDelay: 5 * time.Second,
	}
}

// Subscription represents an active subscription to events.
type Subscription struct {
	sessionID string
	handler   Handler
	id        int64
}

// Notifier delivers message-saved events to subscribers.
type Notifier struct {
	getListener func() driver.Listener
	notifier    driver.Notifier
	config      *Config

	mu            sync.RWMutex
	subscriptions map[string][]*Subscription
	nextSubID     int64

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewNotifier creates a new notifier. getListener is called for every
// connection attempt and may return nil for send-only use; pass
// Driver.GetListener. notifier may be nil when nothing is sent.
func NewNotifier(getListener func() driver.Listener, notifier driver.Notifier, config *Config) *Notifier {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DefaultConfig().ReconnectDelay
	}

	return &Notifier{
		getListener:   getListener,
		notifier:      notifier,
		config:        config,
		subscriptions: make(map[string][]*Subscription),
	}
}

// Start begins listening in the background until ctx is done or Stop is called.
func (n *Notifier) Start(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	go n.run(ctx)

	return nil
}

// Stop stops the notifier and waits for the listener to close.
func (n *Notifier) Stop(ctx context.Context) error {
	if !n.started.Load() {
		return ErrNotStarted
	}

	n.cancel()
	select {
	case <-n.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	n.started.Store(false)
	return nil
}

// Subscribe registers a handler for messages of sessionID. An empty
// sessionID receives every session. It returns a function to unsubscribe.
func (n *Notifier) Subscribe(sessionID string, handler Handler) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	sub := &Subscription{
		sessionID: sessionID,
		handler:   handler,
		id:        n.nextSubID,
	}
	n.nextSubID++

	n.subscriptions[sessionID] = append(n.subscriptions[sessionID], sub)

	return func() {
		n.unsubscribe(sessionID, sub.id)
	}
}

func (n *Notifier) unsubscribe(sessionID string, id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs := n.subscriptions[sessionID]
	for i, sub := range subs {
		if sub.id == id {
			n.subscriptions[sessionID] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(n.subscriptions[sessionID]) == 0 {
		delete(n.subscriptions, sessionID)
	}
}

// Notify announces a saved message.
func (n *Notifier) Notify(ctx context.Context, payload driver.MessageSavedPayload) error {
	if n.notifier == nil {
		return ErrNotifyNotSupported
	}
	if payload.MessageID == "" || payload.SessionID == "" {
		return ErrInvalidPayload
	}
	return driver.NotifyMessageSaved(ctx, n.notifier, payload)
}

func (n *Notifier) run(ctx context.Context) {
	defer close(n.done)

	for {
		err := n.listenLoop(ctx)
		if ctx.Err() != nil {
			return
		}
		if n.config.OnError != nil && err != nil {
			n.config.OnError(err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(n.config.ReconnectDelay):
			if n.config.OnReconnect != nil {
				n.config.OnReconnect()
			}
		}
	}
}

// listenLoop opens a listener and dispatches notifications until it fails.
func (n *Notifier) listenLoop(ctx context.Context) error {
	var l driver.Listener
	if n.getListener != nil {
		l = n.getListener()
	}
	if l == nil {
		// send-only
		<-ctx.Done()
		return ctx.Err()
	}
	defer func() { _ = l.Close() }()

	if err := l.Listen(ctx, driver.ChannelMessageSaved); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notification, ok := <-l.Notifications():
			if !ok {
				return ErrListenerClosed
			}
			payload, err := driver.ParseMessageSaved(notification)
			if err != nil {
				if n.config.OnError != nil {
					n.config.OnError(err)
				}
				continue
			}
			n.dispatch(&Event{MessageSavedPayload: payload, ReceivedAt: time.Now()})
		}
	}
}

// dispatch calls the session's handlers, then the catch-all ones.
func (n *Notifier) dispatch(event *Event) {
	n.mu.RLock()
	subs := make([]*Subscription, 0, len(n.subscriptions[event.SessionID])+len(n.subscriptions[""]))
	subs = append(subs, n.subscriptions[event.SessionID]...)
	if event.SessionID != "" {
		subs = append(subs, n.subscriptions[""]...)
	}
	n.mu.RUnlock()

	// Handlers run on the listener goroutine to keep ordering; slow work
	// belongs in a goroutine of their own.
	for _, sub := range subs {
		sub.handler(event)
	}
}

// IsRunning returns true if the notifier is running.
func (n *Notifier) IsRunning() bool {
	return n.started.Load()
}
