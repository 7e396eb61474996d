// Package notify holds the console's shared notification banner and fans
// every change out to connected browser sessions.
package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the banner style.
type Kind string

const (
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
	KindFailure Kind = "failure"
	// KindClear is only published to subscribers; it is never the current banner.
	KindClear Kind = "clear"
)

const subscriberBuffer = 16

// Action is a follow-up link or button shown with a banner.
type Action struct {
	Label string `json:"label"`
	Href  string `json:"href,omitempty"`
	// Payload carries data the front end needs to perform the action,
	// e.g. the submitted configuration for "Check configuration".
	Payload interface{} `json:"payload,omitempty"`
}

// Notification is one banner.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	Actions   []Action  `json:"actions,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder persists banners. The history store implements it.
type Recorder interface {
	RecordNotification(n Notification) error
}

// Notifier owns the current banner.
type Notifier struct {
	mu       sync.RWMutex
	current  *Notification
	subs     map[chan Notification]struct{}
	recorder Recorder
}

// New creates a notifier. recorder may be nil.
func New(recorder Recorder) *Notifier {
	return &Notifier{
		subs:     make(map[chan Notification]struct{}),
		recorder: recorder,
	}
}

// Success shows a success banner.
func (n *Notifier) Success(message string, actions ...Action) Notification {
	return n.show(Notification{Kind: KindSuccess, Message: message, Actions: actions})
}

// Info shows an informational banner.
func (n *Notifier) Info(message string) Notification {
	return n.show(Notification{Kind: KindInfo, Message: message})
}

// Failure shows a failure banner. The error text becomes the message.
func (n *Notifier) Failure(title string, err error, detail string, actions ...Action) Notification {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return n.show(Notification{Kind: KindFailure, Title: title, Message: msg, Detail: detail, Actions: actions})
}

// Clear removes the current banner.
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = nil
	n.publishLocked(Notification{Kind: KindClear, CreatedAt: time.Now()})
}

// Current returns the banner being shown, if any.
func (n *Notifier) Current() (Notification, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.current == nil {
		return Notification{}, false
	}
	return *n.current, true
}

func (n *Notifier) show(note Notification) Notification {
	note.ID = uuid.NewString()
	note.CreatedAt = time.Now()

	if n.recorder != nil {
		if err := n.recorder.RecordNotification(note); err != nil {
			log.Printf("[notify] recording notification: %v", err)
		}
	}

	// Subscribers see updates in the same order current changes.
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = &note
	n.publishLocked(note)
	return note
}

// Subscribe returns a channel that receives every new banner and clear.
// The channel is closed when ctx is done. Slow subscribers miss updates
// rather than block the notifier.
func (n *Notifier) Subscribe(ctx context.Context) <-chan Notification {
	ch := make(chan Notification, subscriberBuffer)

	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subs, ch)
		close(ch)
		n.mu.Unlock()
	}()

	return ch
}

// SubscriberCount returns the number of open subscriptions.
func (n *Notifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// publishLocked must be called with n.mu held for writing.
func (n *Notifier) publishLocked(note Notification) {
	for ch := range n.subs {
		select {
		case ch <- note:
		default:
		}
	}
}
