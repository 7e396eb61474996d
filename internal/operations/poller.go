package operations

import (
	"context"
	"log"
	"time"

	"github.com/battlewithbytes/lxd-console/internal/eventqueue"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
)

// DefaultPollInterval is how often pending operations are checked.
const DefaultPollInterval = 2 * time.Second

const notFoundMessage = "operation not found"

// OperationGetter fetches the current state of one operation.
type OperationGetter interface {
	GetOperation(ctx context.Context, id string) (*lxd.Operation, error)
}

// Poller resolves queue entries by polling each pending operation.
type Poller struct {
	ops      OperationGetter
	queue    *eventqueue.Queue
	interval time.Duration
}

// NewPoller creates a poller. A non-positive interval uses DefaultPollInterval.
func NewPoller(ops OperationGetter, q *eventqueue.Queue, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{ops: ops, queue: q, interval: interval}
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce checks every pending operation once.
func (p *Poller) PollOnce(ctx context.Context) {
	for _, id := range p.queue.Pending() {
		if ctx.Err() != nil {
			return
		}
		p.Check(ctx, id)
	}
}

// Check fetches one operation and resolves it if it has finished. Callers use
// it right after registering, since the completion event may already have
// gone by.
func (p *Poller) Check(ctx context.Context, id string) {
	op, err := p.ops.GetOperation(ctx, id)
	if err != nil {
		if lxd.IsNotFound(err) {
			p.queue.Resolve(id, eventqueue.Failure, notFoundMessage)
			return
		}
		log.Printf("[poller] %v", err)
		return
	}
	if op.ID == "" {
		op.ID = id
	}
	resolve(p.queue, op)
}
