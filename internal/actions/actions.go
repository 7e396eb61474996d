// Package actions submits long-running daemon operations on behalf of the
// console and reports their outcome through the notification banner.
//
// Every action follows the same shape: call the daemon, get an operation id
// back, register completion callbacks in the event queue and return. A
// submission error is reported straight away and never reaches the queue.
// Callbacks run on whichever goroutine resolves the operation, long after the
// originating request is gone, so they only touch process-wide state.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/battlewithbytes/lxd-console/internal/cache"
	"github.com/battlewithbytes/lxd-console/internal/eventqueue"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
	"github.com/battlewithbytes/lxd-console/internal/notify"
	"github.com/battlewithbytes/lxd-console/internal/store"
)

// Daemon is the part of the daemon client the actions need.
type Daemon interface {
	GetInstance(ctx context.Context, project, name string) (*lxd.Instance, error)
	CreateInstance(ctx context.Context, project, target string, req lxd.InstancesPost) (*lxd.Operation, error)
	UpdateInstance(ctx context.Context, project, name string, put lxd.InstancePut) (*lxd.Operation, error)
	UpdateInstanceState(ctx context.Context, project, name string, state lxd.InstanceStatePut) (*lxd.Operation, error)
	MigrateInstance(ctx context.Context, project, name, target string) (*lxd.Operation, error)
}

// History records submitted operations and their outcome.
type History interface {
	CreateOperation(rec *store.OperationRecord) error
	CompleteOperation(id, status, message string) error
}

// ValidationError rejects a request before anything is sent to the daemon.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Service runs the console's instance actions.
type Service struct {
	daemon  Daemon
	queue   *eventqueue.Queue
	notify  *notify.Notifier
	cache   *cache.Cache
	history History
	checker OperationChecker
	base    context.Context
}

// Option configures a Service.
type Option func(*Service)

// WithHistory records every submitted operation.
func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

// OperationChecker resolves an operation that finished before its callbacks
// were registered.
type OperationChecker interface {
	Check(ctx context.Context, id string)
}

// WithOperationCheck looks up every operation once right after it is
// registered. Without it, a completion event that arrives before the daemon's
// response is lost.
func WithOperationCheck(c OperationChecker) Option {
	return func(s *Service) { s.checker = c }
}

// WithBaseContext sets the context for daemon calls made from completion
// callbacks, such as starting an instance once it is created.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Service) { s.base = ctx }
}

// New creates a Service.
func New(daemon Daemon, q *eventqueue.Queue, n *notify.Notifier, c *cache.Cache, opts ...Option) *Service {
	s := &Service{
		daemon: daemon,
		queue:  q,
		notify: n,
		cache:  c,
		base:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// track records the operation and registers its callbacks. The history row
// is completed before the caller's callback runs.
func (s *Service) track(op *lxd.Operation, action, project, resource string, onSuccess func(), onFailure func(msg string)) {
	if s.history != nil {
		rec := &store.OperationRecord{ID: op.ID, Action: action, Project: project, Resource: resource}
		if err := s.history.CreateOperation(rec); err != nil {
			log.Printf("[actions] recording %s operation %s: %v", action, op.ID, err)
		}
	}

	s.queue.Register(op.ID,
		func() {
			s.complete(op.ID, store.StatusSuccess, "")
			onSuccess()
		},
		func(msg string) {
			s.complete(op.ID, store.StatusFailure, msg)
			onFailure(msg)
		},
	)
	log.Printf("[actions] %s %s: waiting for operation %s", action, resource, op.ID)

	if s.checker != nil {
		s.checker.Check(s.base, op.ID)
	}
}

func (s *Service) complete(id, status, message string) {
	if s.history == nil {
		return
	}
	if err := s.history.CompleteOperation(id, status, message); err != nil {
		log.Printf("[actions] completing operation %s: %v", id, err)
	}
}

func instanceURL(project, name string) string {
	return fmt.Sprintf("/ui/project/%s/instances/detail/%s", project, name)
}

func consoleURL(project, name string) string {
	return instanceURL(project, name) + "/console"
}

func projectOrDefault(project string) string {
	if project == "" {
		return "default"
	}
	return project
}
