package operations

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/battlewithbytes/lxd-console/internal/eventqueue"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
)

// outcome captures what a registration received.
type outcome struct {
	mu       sync.Mutex
	success  map[string]int
	failures map[string][]string
}

func newOutcome() *outcome {
	return &outcome{success: map[string]int{}, failures: map[string][]string{}}
}

func (o *outcome) register(q *eventqueue.Queue, id string) {
	q.Register(id, func() {
		o.mu.Lock()
		o.success[id]++
		o.mu.Unlock()
	}, func(msg string) {
		o.mu.Lock()
		o.failures[id] = append(o.failures[id], msg)
		o.mu.Unlock()
	})
}

func (o *outcome) successes(id string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.success[id]
}

func (o *outcome) failed(id string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.failures[id]...)
}

func opEvent(t *testing.T, op lxd.Operation) *lxd.Event {
	t.Helper()
	data, err := json.Marshal(op)
	require.NoError(t, err)
	return &lxd.Event{Type: "operation", Metadata: data}
}

// fakeStream replays events and then blocks until the context ends.
type fakeStream struct {
	events chan *lxd.Event
	closed chan struct{}
	once   sync.Once
}

func newFakeStream(events ...*lxd.Event) *fakeStream {
	ch := make(chan *lxd.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	return &fakeStream{events: ch, closed: make(chan struct{})}
}

func (s *fakeStream) Next(ctx context.Context) (*lxd.Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.closed:
		return nil, errors.New("stream closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func TestListenerResolvesOutcomes(t *testing.T) {
	q := eventqueue.New()
	o := newOutcome()
	for _, id := range []string{"op-ok", "op-fail", "op-cancel", "op-running"} {
		o.register(q, id)
	}

	stream := newFakeStream(
		&lxd.Event{Type: "logging", Metadata: json.RawMessage(`{}`)},
		opEvent(t, lxd.Operation{ID: "op-running", StatusCode: lxd.Running}),
		opEvent(t, lxd.Operation{ID: "op-ok", StatusCode: lxd.Success}),
		opEvent(t, lxd.Operation{ID: "op-fail", StatusCode: lxd.Failure, Err: "disk full"}),
		opEvent(t, lxd.Operation{ID: "op-cancel", StatusCode: lxd.Cancelled}),
		opEvent(t, lxd.Operation{ID: "op-unknown", StatusCode: lxd.Success}),
	)

	l := NewListenerWithDialer(func(ctx context.Context) (Stream, error) { return stream, nil }, q, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	assert.Eventually(t, func() bool { return q.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, 1, o.successes("op-ok"))
	assert.Equal(t, []string{"disk full"}, o.failed("op-fail"))
	assert.Equal(t, []string{"Cancelled"}, o.failed("op-cancel"))
	assert.Equal(t, []string{"op-running"}, q.Pending())
}

func TestListenerReconnects(t *testing.T) {
	q := eventqueue.New()
	o := newOutcome()
	o.register(q, "op-1")

	var mu sync.Mutex
	dials := 0
	dial := func(ctx context.Context) (Stream, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		switch dials {
		case 1:
			return nil, errors.New("connection refused")
		case 2:
			s := newFakeStream()
			s.Close()
			return s, nil
		default:
			return newFakeStream(opEvent(t, lxd.Operation{ID: "op-1", StatusCode: lxd.Success})), nil
		}
	}

	connects := 0
	l := NewListenerWithDialer(dial, q, 5*time.Millisecond)
	l.OnConnect = func(ctx context.Context) {
		mu.Lock()
		connects++
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	assert.Eventually(t, func() bool { return o.successes("op-1") == 1 }, 2*time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, dials, 3)
	assert.GreaterOrEqual(t, connects, 2)
}

type fakeGetter struct {
	mu  sync.Mutex
	ops map[string]*lxd.Operation
	err map[string]error
}

func (g *fakeGetter) GetOperation(ctx context.Context, id string) (*lxd.Operation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.err[id]; ok {
		return nil, err
	}
	if op, ok := g.ops[id]; ok {
		return op, nil
	}
	return nil, &lxd.Error{StatusCode: 404, Message: "Operation not found"}
}

func TestPollOnce(t *testing.T) {
	q := eventqueue.New()
	o := newOutcome()
	for _, id := range []string{"done", "broken", "running", "gone", "flaky"} {
		o.register(q, id)
	}

	g := &fakeGetter{
		ops: map[string]*lxd.Operation{
			"done":    {ID: "done", StatusCode: lxd.Success},
			"broken":  {StatusCode: lxd.Failure, Status: "Failure"},
			"running": {ID: "running", StatusCode: lxd.Running},
		},
		err: map[string]error{"flaky": errors.New("connection reset")},
	}

	p := NewPoller(g, q, time.Minute)
	p.PollOnce(context.Background())

	assert.Equal(t, 1, o.successes("done"))
	assert.Equal(t, []string{"Failure"}, o.failed("broken"), "empty err falls back to status text")
	assert.Equal(t, []string{"operation not found"}, o.failed("gone"))
	assert.Equal(t, []string{"flaky", "running"}, q.Pending())
}

func TestCheckResolvesOneOperation(t *testing.T) {
	q := eventqueue.New()
	o := newOutcome()

	// The listener delivers "fast" before anything is registered; the queue
	// drops it.
	q.Resolve("fast", eventqueue.Success, "")
	o.register(q, "fast")
	o.register(q, "other")

	g := &fakeGetter{ops: map[string]*lxd.Operation{
		"fast":  {ID: "fast", StatusCode: lxd.Success},
		"other": {ID: "other", StatusCode: lxd.Success},
	}}
	p := NewPoller(g, q, time.Minute)
	p.Check(context.Background(), "fast")

	assert.Equal(t, 1, o.successes("fast"))
	assert.Equal(t, 0, o.successes("other"), "Check touches only the given id")
	assert.Equal(t, []string{"other"}, q.Pending())

	p.Check(context.Background(), "missing")
	assert.Equal(t, []string{"other"}, q.Pending(), "unknown ids are ignored")
}

func TestPollerRun(t *testing.T) {
	q := eventqueue.New()
	o := newOutcome()
	o.register(q, "op-2")

	g := &fakeGetter{ops: map[string]*lxd.Operation{
		"op-2": {ID: "op-2", StatusCode: lxd.Running},
	}}

	p := NewPoller(g, q, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, q.Len(), "running operation stays pending")

	g.mu.Lock()
	g.ops["op-2"] = &lxd.Operation{ID: "op-2", StatusCode: lxd.Failure, Err: "disk full"}
	g.mu.Unlock()

	assert.Eventually(t, func() bool { return len(o.failed("op-2")) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"disk full"}, o.failed("op-2"))
}

func TestNewPollerDefaultInterval(t *testing.T) {
	p := NewPoller(&fakeGetter{}, eventqueue.New(), 0)
	assert.Equal(t, DefaultPollInterval, p.interval)
}
