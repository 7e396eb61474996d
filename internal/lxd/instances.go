package lxd

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Instance types.
const (
	TypeContainer      = "container"
	TypeVirtualMachine = "virtual-machine"
)

// InstanceSource describes where a new instance's root filesystem comes from.
type InstanceSource struct {
	Type              string `json:"type" yaml:"type"`
	Alias             string `json:"alias,omitempty" yaml:"alias,omitempty"`
	Server            string `json:"server,omitempty" yaml:"server,omitempty"`
	Protocol          string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Mode              string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Certificate       string `json:"certificate,omitempty" yaml:"certificate,omitempty"`
	AllowInconsistent bool   `json:"allow_inconsistent,omitempty" yaml:"allow_inconsistent,omitempty"`
}

// InstancePut holds the writable fields of an instance.
type InstancePut struct {
	Architecture string                       `json:"architecture,omitempty" yaml:"architecture,omitempty"`
	Config       map[string]string            `json:"config" yaml:"config,omitempty"`
	Devices      map[string]map[string]string `json:"devices" yaml:"devices,omitempty"`
	Ephemeral    bool                         `json:"ephemeral" yaml:"ephemeral,omitempty"`
	Profiles     []string                     `json:"profiles" yaml:"profiles,omitempty"`
	Stateful     bool                         `json:"stateful" yaml:"stateful,omitempty"`
	Description  string                       `json:"description" yaml:"description,omitempty"`
}

// InstancesPost is the request body for creating an instance.
type InstancesPost struct {
	InstancePut `yaml:",inline"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Type        string         `json:"type" yaml:"type"`
	Source      InstanceSource `json:"source" yaml:"source"`
}

// Instance is an instance as returned by GET /1.0/instances/{name}.
type Instance struct {
	InstancePut
	Name            string                       `json:"name"`
	Type            string                       `json:"type"`
	Status          string                       `json:"status"`
	StatusCode      StatusCode                   `json:"status_code"`
	Location        string                       `json:"location"`
	Project         string                       `json:"project"`
	CreatedAt       time.Time                    `json:"created_at"`
	LastUsedAt      time.Time                    `json:"last_used_at"`
	ExpandedConfig  map[string]string            `json:"expanded_config,omitempty"`
	ExpandedDevices map[string]map[string]string `json:"expanded_devices,omitempty"`
}

// Writable returns the PUT representation of the instance.
func (i *Instance) Writable() InstancePut {
	put := i.InstancePut
	put.Config = copyStringMap(i.Config)
	put.Devices = make(map[string]map[string]string, len(i.Devices))
	for name, dev := range i.Devices {
		put.Devices[name] = copyStringMap(dev)
	}
	return put
}

// InstanceStatePut is the request body for PUT /1.0/instances/{name}/state.
type InstanceStatePut struct {
	Action   string `json:"action"`
	Timeout  int    `json:"timeout"`
	Force    bool   `json:"force"`
	Stateful bool   `json:"stateful"`
}

// ListInstances returns all instances of a project.
func (c *Client) ListInstances(ctx context.Context, project string) ([]Instance, error) {
	q := c.projectQuery(project)
	q.Set("recursion", "1")
	var instances []Instance
	if _, err := c.doRequest(ctx, "GET", "/1.0/instances", q, nil, &instances); err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	return instances, nil
}

// GetInstance returns a single instance.
func (c *Client) GetInstance(ctx context.Context, project, name string) (*Instance, error) {
	var inst Instance
	if _, err := c.doRequest(ctx, "GET", "/1.0/instances/"+url.PathEscape(name), c.projectQuery(project), nil, &inst); err != nil {
		return nil, fmt.Errorf("getting instance %s: %w", name, err)
	}
	return &inst, nil
}

// CreateInstance submits an instance creation. target selects a cluster member and may be empty.
func (c *Client) CreateInstance(ctx context.Context, project, target string, req InstancesPost) (*Operation, error) {
	q := c.projectQuery(project)
	if target != "" {
		q.Set("target", target)
	}
	op, err := c.doAsync(ctx, "POST", "/1.0/instances", q, req)
	if err != nil {
		return nil, fmt.Errorf("creating instance %s: %w", req.Name, err)
	}
	return op, nil
}

// UpdateInstance replaces the writable configuration of an instance.
func (c *Client) UpdateInstance(ctx context.Context, project, name string, put InstancePut) (*Operation, error) {
	op, err := c.doAsync(ctx, "PUT", "/1.0/instances/"+url.PathEscape(name), c.projectQuery(project), put)
	if err != nil {
		return nil, fmt.Errorf("updating instance %s: %w", name, err)
	}
	return op, nil
}

// UpdateInstanceState starts, stops, restarts, freezes or unfreezes an instance.
func (c *Client) UpdateInstanceState(ctx context.Context, project, name string, state InstanceStatePut) (*Operation, error) {
	path := "/1.0/instances/" + url.PathEscape(name) + "/state"
	op, err := c.doAsync(ctx, "PUT", path, c.projectQuery(project), state)
	if err != nil {
		return nil, fmt.Errorf("changing state of instance %s to %s: %w", name, state.Action, err)
	}
	return op, nil
}

// MigrateInstance moves an instance to another cluster member.
func (c *Client) MigrateInstance(ctx context.Context, project, name, target string) (*Operation, error) {
	q := c.projectQuery(project)
	q.Set("target", target)
	body := map[string]interface{}{"migration": true}
	op, err := c.doAsync(ctx, "POST", "/1.0/instances/"+url.PathEscape(name), q, body)
	if err != nil {
		return nil, fmt.Errorf("migrating instance %s to %s: %w", name, target, err)
	}
	return op, nil
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
