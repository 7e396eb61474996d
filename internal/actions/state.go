package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/battlewithbytes/lxd-console/internal/cache"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
)

// StartInstance starts an instance.
func (s *Service) StartInstance(ctx context.Context, project, name string) (*lxd.Operation, error) {
	return s.changeState(ctx, project, name, lxd.InstanceStatePut{Action: "start", Timeout: -1}, "started", "Instance start failed")
}

// StopInstance stops an instance. force kills it instead of a clean shutdown.
func (s *Service) StopInstance(ctx context.Context, project, name string, force bool) (*lxd.Operation, error) {
	return s.changeState(ctx, project, name, lxd.InstanceStatePut{Action: "stop", Timeout: -1, Force: force}, "stopped", "Instance stop failed")
}

func (s *Service) changeState(ctx context.Context, project, name string, state lxd.InstanceStatePut, done, failTitle string) (*lxd.Operation, error) {
	project = projectOrDefault(project)

	op, err := s.daemon.UpdateInstanceState(ctx, project, name, state)
	if err != nil {
		if !lxd.IsCancelled(err) {
			s.notify.Failure(failTitle, err, "")
			s.cache.Invalidate(cache.Instances)
		}
		return nil, err
	}

	s.track(op, state.Action, project, name,
		func() {
			s.notify.Success(fmt.Sprintf("Instance %s %s.", name, done))
			s.cache.Invalidate(cache.Instances)
		},
		func(msg string) {
			s.notify.Failure(failTitle, errors.New(msg), "")
			s.cache.Invalidate(cache.Instances)
		},
	)
	return op, nil
}
