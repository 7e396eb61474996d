package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/battlewithbytes/lxd-console/internal/cache"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
)

// ErrISOAttached is returned when attaching to an instance that already has an ISO.
var ErrISOAttached = errors.New("an ISO is already attached")

// ErrNoISO is returned when detaching from an instance without an ISO.
var ErrNoISO = errors.New("no ISO attached")

// AttachISO attaches the custom ISO volume pool/volume to an instance.
func (s *Service) AttachISO(ctx context.Context, project, name, pool, volume string) (*lxd.Operation, error) {
	project = projectOrDefault(project)
	const failTitle = "Attaching ISO failed"

	if pool == "" || volume == "" {
		return nil, &ValidationError{Field: "volume", Message: "Storage pool and volume are required"}
	}

	return s.updateISO(ctx, project, name, failTitle, "attach-iso",
		func(put *lxd.InstancePut) (string, error) {
			if _, ok := put.Devices[ISODevice]; ok {
				return "", ErrISOAttached
			}
			put.Devices[ISODevice] = isoDevice(pool, volume)
			return fmt.Sprintf("ISO %s attached", volume), nil
		})
}

// DetachISO removes the attached ISO from an instance.
func (s *Service) DetachISO(ctx context.Context, project, name string) (*lxd.Operation, error) {
	project = projectOrDefault(project)
	const failTitle = "Detach ISO failed"

	return s.updateISO(ctx, project, name, failTitle, "detach-iso",
		func(put *lxd.InstancePut) (string, error) {
			dev, ok := put.Devices[ISODevice]
			if !ok {
				return "", ErrNoISO
			}
			delete(put.Devices, ISODevice)
			return fmt.Sprintf("ISO %s detached", dev["source"]), nil
		})
}

// updateISO rewrites the instance devices with edit and tracks the update.
// edit returns the success message.
func (s *Service) updateISO(ctx context.Context, project, name, failTitle, action string, edit func(put *lxd.InstancePut) (string, error)) (*lxd.Operation, error) {
	invalidate := func() { s.cache.Invalidate(cache.Instances, name, project) }

	fail := func(err error) (*lxd.Operation, error) {
		if !lxd.IsCancelled(err) {
			s.notify.Failure(failTitle, err, "")
			invalidate()
		}
		return nil, err
	}

	inst, err := s.daemon.GetInstance(ctx, project, name)
	if err != nil {
		return fail(err)
	}
	put := inst.Writable()
	successMsg, err := edit(&put)
	if err != nil {
		return fail(err)
	}

	op, err := s.daemon.UpdateInstance(ctx, project, name, put)
	if err != nil {
		return fail(err)
	}

	s.track(op, action, project, name,
		func() {
			s.notify.Success(successMsg)
			invalidate()
		},
		func(msg string) {
			s.notify.Failure(failTitle, errors.New(msg), "")
			invalidate()
		},
	)
	return op, nil
}
