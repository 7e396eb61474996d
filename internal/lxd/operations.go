package lxd

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// StatusCode is the numeric state LXD attaches to operations.
type StatusCode int

const (
	OperationCreated StatusCode = 100
	Started          StatusCode = 101
	Stopped          StatusCode = 102
	Running          StatusCode = 103
	Cancelling       StatusCode = 104
	Pending          StatusCode = 105
	Success          StatusCode = 200
	Failure          StatusCode = 400
	Cancelled        StatusCode = 401
)

// IsFinal reports whether the operation can no longer change state.
func (s StatusCode) IsFinal() bool {
	return s == Success || s == Failure || s == Cancelled
}

// Operation is a background task on the daemon.
type Operation struct {
	ID          string                 `json:"id"`
	Class       string                 `json:"class"`
	Description string                 `json:"description"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Status      string                 `json:"status"`
	StatusCode  StatusCode             `json:"status_code"`
	Resources   map[string][]string    `json:"resources,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	MayCancel   bool                   `json:"may_cancel"`
	Err         string                 `json:"err"`
	Location    string                 `json:"location,omitempty"`
}

// InstanceName returns the name of the first instance the operation touches.
// Resource entries look like /1.0/instances/web1?project=demo.
func (op *Operation) InstanceName() string {
	if op == nil {
		return ""
	}
	for _, key := range []string{"instances", "containers", "virtual-machines"} {
		for _, res := range op.Resources[key] {
			if i := strings.IndexByte(res, '?'); i >= 0 {
				res = res[:i]
			}
			name := res[strings.LastIndexByte(res, '/')+1:]
			if name != "" {
				return name
			}
		}
	}
	return ""
}

// GetOperation fetches the current state of an operation.
func (c *Client) GetOperation(ctx context.Context, id string) (*Operation, error) {
	var op Operation
	if _, err := c.doRequest(ctx, "GET", "/1.0/operations/"+url.PathEscape(id), nil, nil, &op); err != nil {
		return nil, fmt.Errorf("getting operation %s: %w", id, err)
	}
	return &op, nil
}
