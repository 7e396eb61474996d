// Package eventqueue tracks daemon operations that were submitted but have not
// completed yet, and dispatches their completion to the callbacks registered
// by whoever submitted them.
package eventqueue

import (
	"log"
	"sort"
	"sync"
)

// Status is the outcome carried by a completion.
type Status int

const (
	Success Status = iota
	Failure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

type registration struct {
	onSuccess func()
	onFailure func(message string)
}

// Queue maps operation ids to their pending completion callbacks.
// At most one registration exists per id; the latest Register wins.
type Queue struct {
	mu      sync.Mutex
	entries map[string]registration
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{entries: make(map[string]registration)}
}

// Register stores the callback pair for id, replacing any earlier pair.
// Nil callbacks are allowed and do nothing when selected.
func (q *Queue) Register(id string, onSuccess func(), onFailure func(message string)) {
	q.mu.Lock()
	_, replaced := q.entries[id]
	q.entries[id] = registration{onSuccess: onSuccess, onFailure: onFailure}
	q.mu.Unlock()

	if replaced {
		log.Printf("[queue] operation %s registered again, previous callbacks dropped", id)
	}
}

// Resolve removes the registration for id and runs the callback matching
// status on the calling goroutine. Unknown ids are ignored. The message is
// only passed to the failure callback.
func (q *Queue) Resolve(id string, status Status, message string) {
	q.mu.Lock()
	reg, ok := q.entries[id]
	if ok {
		delete(q.entries, id)
	}
	q.mu.Unlock()

	if !ok {
		return
	}

	switch status {
	case Success:
		if reg.onSuccess != nil {
			reg.onSuccess()
		}
	default:
		if reg.onFailure != nil {
			reg.onFailure(message)
		}
	}
}

// Pending returns the registered ids in sorted order.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	ids := make([]string, 0, len(q.entries))
	for id := range q.entries {
		ids = append(ids, id)
	}
	q.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of pending registrations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
