package eventqueue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// counter records how often each callback of one registration fired.
type counter struct {
	successes int
	failures  []string
}

func (c *counter) register(q *Queue, id string) {
	q.Register(id, func() { c.successes++ }, func(msg string) { c.failures = append(c.failures, msg) })
}

func TestResolveSuccess(t *testing.T) {
	q := New()
	var c counter
	c.register(q, "op-1")

	q.Resolve("op-1", Success, "")

	assert.Equal(t, 1, c.successes)
	assert.Empty(t, c.failures)
	assert.Equal(t, 0, q.Len())
}

func TestResolveFailureMessage(t *testing.T) {
	q := New()
	var c counter
	c.register(q, "op-2")

	q.Resolve("op-2", Failure, "disk full")

	assert.Equal(t, 0, c.successes)
	assert.Equal(t, []string{"disk full"}, c.failures)
}

func TestResolveUnknownIsNoop(t *testing.T) {
	q := New()
	var c counter
	c.register(q, "op-1")

	require.NotPanics(t, func() { q.Resolve("op-unknown", Success, "") })
	require.NotPanics(t, func() { q.Resolve("op-unknown", Failure, "x") })

	assert.Equal(t, 0, c.successes)
	assert.Empty(t, c.failures)
	assert.Equal(t, []string{"op-1"}, q.Pending())
}

func TestRegisterTwiceLastWins(t *testing.T) {
	q := New()
	var first, second counter
	first.register(q, "op-1")
	second.register(q, "op-1")

	assert.Equal(t, 1, q.Len())
	q.Resolve("op-1", Success, "")

	assert.Equal(t, 0, first.successes)
	assert.Empty(t, first.failures)
	assert.Equal(t, 1, second.successes)
}

func TestResolveTwiceIsNoop(t *testing.T) {
	q := New()
	var c counter
	c.register(q, "op-1")

	q.Resolve("op-1", Failure, "boom")
	q.Resolve("op-1", Failure, "boom")
	q.Resolve("op-1", Success, "")

	assert.Equal(t, []string{"boom"}, c.failures)
	assert.Equal(t, 0, c.successes)
}

func TestRegisterAgainAfterResolve(t *testing.T) {
	q := New()
	var c counter
	c.register(q, "op-1")
	q.Resolve("op-1", Success, "")
	c.register(q, "op-1")
	q.Resolve("op-1", Success, "")

	assert.Equal(t, 2, c.successes)
}

func TestNilCallbacks(t *testing.T) {
	q := New()
	q.Register("a", nil, nil)
	q.Register("b", nil, nil)

	require.NotPanics(t, func() {
		q.Resolve("a", Success, "")
		q.Resolve("b", Failure, "boom")
	})
	assert.Equal(t, 0, q.Len())
}

func TestCallbackPanicPropagates(t *testing.T) {
	q := New()
	q.Register("op-1", func() { panic("callback exploded") }, nil)

	assert.PanicsWithValue(t, "callback exploded", func() { q.Resolve("op-1", Success, "") })
	// The entry was removed before the callback ran.
	assert.Equal(t, 0, q.Len())
}

func TestCallbackMayRegister(t *testing.T) {
	q := New()
	var started bool
	q.Register("create", func() {
		q.Register("start", func() { started = true }, nil)
	}, nil)

	q.Resolve("create", Success, "")
	assert.Equal(t, []string{"start"}, q.Pending())

	q.Resolve("start", Success, "")
	assert.True(t, started)
}

func TestPendingSorted(t *testing.T) {
	q := New()
	for _, id := range []string{"c", "a", "b"} {
		q.Register(id, nil, nil)
	}
	assert.Equal(t, []string{"a", "b", "c"}, q.Pending())
}

func TestConcurrentRegisterResolve(t *testing.T) {
	q := New()
	var mu sync.Mutex
	fired := make(map[string]int)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("op-%d", i)
		q.Register(id, func() {
			mu.Lock()
			fired[id]++
			mu.Unlock()
		}, nil)
	}
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("op-%d", i)
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				q.Resolve(id, Success, "")
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, 0, q.Len())
	for i := 0; i < 50; i++ {
		assert.Equal(t, 1, fired[fmt.Sprintf("op-%d", i)])
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "failure", Failure.String())
	assert.Equal(t, "unknown", Status(9).String())
}

// Property tests

func TestProperty_ResolveWithoutRegisterHasNoEffect(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q := New()
		registered := rapid.SliceOfDistinct(rapid.StringMatching(`op-[a-z0-9]{1,6}`), rapid.ID[string]).Draw(t, "registered")
		fired := 0
		for _, id := range registered {
			q.Register(id, func() { fired++ }, func(string) { fired++ })
		}

		id := rapid.StringMatching(`other-[a-z0-9]{1,6}`).Draw(t, "id")
		status := Status(rapid.IntRange(0, 1).Draw(t, "status"))
		q.Resolve(id, status, "msg")

		if fired != 0 {
			t.Fatalf("resolving unregistered id %q fired %d callbacks", id, fired)
		}
		if q.Len() != len(registered) {
			t.Fatalf("Len() = %d, want %d", q.Len(), len(registered))
		}
	})
}

func TestProperty_ExactlyOneCallbackOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q := New()
		id := rapid.String().Draw(t, "id")
		status := Status(rapid.IntRange(0, 1).Draw(t, "status"))
		msg := rapid.String().Draw(t, "message")
		repeats := rapid.IntRange(1, 5).Draw(t, "repeats")

		var c counter
		c.register(q, id)
		for i := 0; i < repeats; i++ {
			q.Resolve(id, status, msg)
		}

		switch status {
		case Success:
			if c.successes != 1 || len(c.failures) != 0 {
				t.Fatalf("success: successes=%d failures=%v", c.successes, c.failures)
			}
		case Failure:
			if c.successes != 0 || len(c.failures) != 1 || c.failures[0] != msg {
				t.Fatalf("failure: successes=%d failures=%v, want [%q]", c.successes, c.failures, msg)
			}
		}
	})
}

func TestProperty_LastRegistrationWins(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q := New()
		id := rapid.String().Draw(t, "id")
		n := rapid.IntRange(2, 6).Draw(t, "registrations")

		counters := make([]counter, n)
		for i := range counters {
			counters[i].register(q, id)
		}
		q.Resolve(id, Success, "")

		for i := 0; i < n-1; i++ {
			if counters[i].successes != 0 || len(counters[i].failures) != 0 {
				t.Fatalf("registration %d of %d fired", i, n)
			}
		}
		if counters[n-1].successes != 1 {
			t.Fatalf("last registration fired %d times, want 1", counters[n-1].successes)
		}
	})
}

// TestProperty_MatchesModel replays random register/resolve sequences against
// a plain map and checks the queue agrees on every dispatch.
func TestProperty_MatchesModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q := New()
		model := make(map[string]int) // id -> generation of the live registration
		var fired []string
		gen := 0

		ids := []string{"op-1", "op-2", "op-3"}
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			id := rapid.SampledFrom(ids).Draw(t, "id")
			if rapid.Bool().Draw(t, "register") {
				gen++
				g := gen
				q.Register(id,
					func() { fired = append(fired, fmt.Sprintf("%s/%d/ok", id, g)) },
					func(m string) { fired = append(fired, fmt.Sprintf("%s/%d/%s", id, g, m)) },
				)
				model[id] = g
				continue
			}

			before := len(fired)
			ok := rapid.Bool().Draw(t, "success")
			if ok {
				q.Resolve(id, Success, "")
			} else {
				q.Resolve(id, Failure, "err")
			}

			g, live := model[id]
			delete(model, id)
			if !live {
				if len(fired) != before {
					t.Fatalf("resolve of unregistered %s fired %v", id, fired[before:])
				}
				continue
			}
			want := fmt.Sprintf("%s/%d/ok", id, g)
			if !ok {
				want = fmt.Sprintf("%s/%d/err", id, g)
			}
			if len(fired) != before+1 || fired[before] != want {
				t.Fatalf("resolve %s fired %v, want [%s]", id, fired[before:], want)
			}
		}

		if q.Len() != len(model) {
			t.Fatalf("Len() = %d, model has %d", q.Len(), len(model))
		}
	})
}
