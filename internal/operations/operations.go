// Package operations feeds daemon operation completions into the event queue.
//
// Two sources exist: a Listener on the daemon's event websocket and a Poller
// that asks the daemon about every pending id. Either one calls Resolve; the
// queue ignores ids it no longer tracks, so running both is harmless.
package operations

import (
	"github.com/battlewithbytes/lxd-console/internal/eventqueue"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
)

const cancelledMessage = "Cancelled"

// resolve dispatches a finished operation. It reports false for operations
// that are still running.
func resolve(q *eventqueue.Queue, op *lxd.Operation) bool {
	switch op.StatusCode {
	case lxd.Success:
		q.Resolve(op.ID, eventqueue.Success, "")
	case lxd.Failure:
		msg := op.Err
		if msg == "" {
			msg = op.Status
		}
		q.Resolve(op.ID, eventqueue.Failure, msg)
	case lxd.Cancelled:
		q.Resolve(op.ID, eventqueue.Failure, cancelledMessage)
	default:
		return false
	}
	return true
}
