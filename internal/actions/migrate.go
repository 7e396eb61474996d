package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/battlewithbytes/lxd-console/internal/cache"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
)

// MigrateInstance moves an instance to the cluster member target.
func (s *Service) MigrateInstance(ctx context.Context, project, name, target string) (*lxd.Operation, error) {
	project = projectOrDefault(project)
	if target == "" {
		return nil, &ValidationError{Field: "target", Message: "Target member is required"}
	}
	failTitle := fmt.Sprintf("Migration failed on instance %s", name)

	op, err := s.daemon.MigrateInstance(ctx, project, name, target)
	if err != nil {
		if !lxd.IsCancelled(err) {
			s.notify.Failure(failTitle, err, "")
		}
		return nil, err
	}

	s.track(op, "migrate", project, name,
		func() {
			s.notify.Success(fmt.Sprintf("Migration finished for instance %s", name))
			s.cache.Invalidate(cache.Instances, name)
		},
		func(msg string) {
			s.notify.Failure(failTitle, errors.New(msg), "")
			s.cache.Invalidate(cache.Instances, name)
		},
	)
	s.notify.Info("Migration started")
	return op, nil
}
