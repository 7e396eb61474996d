package operations

import (
	"context"
	"log"
	"time"

	"github.com/battlewithbytes/lxd-console/internal/eventqueue"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
)

// DefaultReconnectDelay is the wait between event stream connection attempts.
const DefaultReconnectDelay = 5 * time.Second

// Stream yields daemon events. *lxd.EventStream implements it.
type Stream interface {
	Next(ctx context.Context) (*lxd.Event, error)
	Close() error
}

// DialFunc opens a new operation event stream.
type DialFunc func(ctx context.Context) (Stream, error)

// Listener resolves queue entries from the daemon's operation events.
type Listener struct {
	dial  DialFunc
	queue *eventqueue.Queue
	delay time.Duration

	// OnConnect runs after every successful connect, before events are read.
	// Completions that happened while disconnected are only visible by polling.
	OnConnect func(ctx context.Context)
}

// NewListener creates a listener on the client's event websocket.
func NewListener(client *lxd.Client, q *eventqueue.Queue) *Listener {
	dial := func(ctx context.Context) (Stream, error) {
		stream, err := client.Events(ctx, "operation")
		if err != nil {
			return nil, err
		}
		return stream, nil
	}
	return NewListenerWithDialer(dial, q, DefaultReconnectDelay)
}

// NewListenerWithDialer creates a listener using a custom dialer.
func NewListenerWithDialer(dial DialFunc, q *eventqueue.Queue, reconnectDelay time.Duration) *Listener {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Listener{dial: dial, queue: q, delay: reconnectDelay}
}

// Run reads events until ctx is done, reconnecting after stream errors.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := l.session(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[events] stream error: %v (reconnecting in %v)", err, l.delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.delay):
		}
	}
}

// session handles one connection.
func (l *Listener) session(ctx context.Context) error {
	stream, err := l.dial(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	log.Printf("[events] connected to operation event stream")
	if l.OnConnect != nil {
		l.OnConnect(ctx)
	}

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			return err
		}
		l.handle(ev)
	}
}

func (l *Listener) handle(ev *lxd.Event) {
	if ev.Type != "operation" {
		return
	}
	op, err := ev.Operation()
	if err != nil {
		log.Printf("[events] %v", err)
		return
	}
	if op.ID == "" {
		return
	}
	resolve(l.queue, op)
}
