package actions

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/battlewithbytes/lxd-console/internal/cache"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
	"github.com/battlewithbytes/lxd-console/internal/notify"
)

// LocalISO is the image server value for custom ISO volumes.
const LocalISO = "local-iso"

// ISODevice is the device name used for an attached installation ISO.
const ISODevice = "iso-volume"

var (
	nameChars = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	nameStart = regexp.MustCompile(`^[A-Za-z]`)
)

// ImageSelection is the image chosen in the create form.
type ImageSelection struct {
	Alias  string `json:"alias"`
	Server string `json:"server"`
	OS     string `json:"os,omitempty"`
	// Pool holds the storage pool of a LocalISO volume; Alias is the volume name.
	Pool string `json:"pool,omitempty"`
	// VMOnly and ContainerOnly force the instance type.
	VMOnly        bool `json:"vm_only,omitempty"`
	ContainerOnly bool `json:"container_only,omitempty"`
}

// ResourceLimits map to limits.* keys.
type ResourceLimits struct {
	CPU       string `json:"cpu,omitempty"`
	Memory    string `json:"memory,omitempty"`
	Processes string `json:"processes,omitempty"`
}

// SecurityPolicies map to security.* keys. Nil leaves the profile default.
type SecurityPolicies struct {
	Privileged       *bool `json:"privileged,omitempty"`
	Nesting          *bool `json:"nesting,omitempty"`
	ProtectionDelete *bool `json:"protection_delete,omitempty"`
	SecureBoot       *bool `json:"secureboot,omitempty"`
}

// Snapshots map to snapshots.* keys.
type Snapshots struct {
	Schedule        string `json:"schedule,omitempty"`
	ScheduleStopped *bool  `json:"schedule_stopped,omitempty"`
	Pattern         string `json:"pattern,omitempty"`
	Expiry          string `json:"expiry,omitempty"`
}

// CloudInit maps to cloud-init.* keys.
type CloudInit struct {
	UserData      string `json:"user_data,omitempty"`
	VendorData    string `json:"vendor_data,omitempty"`
	NetworkConfig string `json:"network_config,omitempty"`
}

// CreateInstanceRequest holds the create form values.
type CreateInstanceRequest struct {
	Name         string                       `json:"name,omitempty"`
	Description  string                       `json:"description,omitempty"`
	InstanceType string                       `json:"instance_type"`
	Profiles     []string                     `json:"profiles,omitempty"`
	Target       string                       `json:"target,omitempty"`
	Image        *ImageSelection              `json:"image,omitempty"`
	RootPool     string                       `json:"root_pool,omitempty"`
	Devices      map[string]map[string]string `json:"devices,omitempty"`
	Limits       ResourceLimits               `json:"limits"`
	Security     SecurityPolicies             `json:"security"`
	Snapshots    Snapshots                    `json:"snapshots"`
	CloudInit    CloudInit                    `json:"cloud_init"`
	Config       map[string]string            `json:"config,omitempty"`

	// YAML, when set, is the complete instance payload and the form fields are ignored.
	YAML string `json:"yaml,omitempty"`

	// Start defaults to true.
	Start *bool `json:"start,omitempty"`
}

func (r *CreateInstanceRequest) shouldStart() bool {
	return r.Start == nil || *r.Start
}

func (r *CreateInstanceRequest) isISO() bool {
	return r.Image != nil && r.Image.Server == LocalISO
}

// ValidateName checks an instance name. An empty name lets the daemon pick one.
func ValidateName(name string) error {
	if name == "" {
		return nil
	}
	if !nameChars.MatchString(name) {
		return &ValidationError{Field: "name", Message: "Only alphanumeric and hyphen characters are allowed"}
	}
	if !nameStart.MatchString(name) {
		return &ValidationError{Field: "name", Message: "Instance name must start with a letter"}
	}
	return nil
}

func isoDevice(pool, volume string) map[string]string {
	return map[string]string{
		"type":          "disk",
		"pool":          pool,
		"source":        volume,
		"boot.priority": "10",
	}
}

func setFlag(config map[string]string, key string, v *bool) {
	if v == nil {
		return
	}
	if *v {
		config[key] = "true"
	} else {
		config[key] = "false"
	}
}

func setString(config map[string]string, key, v string) {
	if v != "" {
		config[key] = v
	}
}

// Payload builds the daemon request for the form values.
func Payload(req CreateInstanceRequest) (lxd.InstancesPost, error) {
	if strings.TrimSpace(req.YAML) != "" {
		var post lxd.InstancesPost
		if err := yaml.Unmarshal([]byte(req.YAML), &post); err != nil {
			return lxd.InstancesPost{}, &ValidationError{Field: "yaml", Message: fmt.Sprintf("invalid YAML: %v", err)}
		}
		return post, nil
	}

	if req.Image == nil {
		return lxd.InstancesPost{}, &ValidationError{Field: "image", Message: "Image is required"}
	}

	instanceType := req.InstanceType
	switch {
	case req.isISO(), req.Image.VMOnly:
		instanceType = lxd.TypeVirtualMachine
	case req.Image.ContainerOnly:
		instanceType = lxd.TypeContainer
	case instanceType == "":
		instanceType = lxd.TypeContainer
	}
	if instanceType != lxd.TypeContainer && instanceType != lxd.TypeVirtualMachine {
		return lxd.InstancesPost{}, &ValidationError{Field: "instance_type", Message: fmt.Sprintf("unknown instance type %q", instanceType)}
	}

	post := lxd.InstancesPost{
		Name: req.Name,
		Type: instanceType,
		InstancePut: lxd.InstancePut{
			Description: req.Description,
			Profiles:    req.Profiles,
			Config:      make(map[string]string),
			Devices:     make(map[string]map[string]string),
		},
	}
	if post.Profiles == nil {
		post.Profiles = []string{"default"}
	}

	if req.isISO() {
		post.Source = lxd.InstanceSource{Type: "none"}
	} else {
		post.Source = lxd.InstanceSource{
			Type:     "image",
			Alias:    strings.Split(req.Image.Alias, ",")[0],
			Server:   req.Image.Server,
			Protocol: "simplestreams",
			Mode:     "pull",
		}
	}

	for name, dev := range req.Devices {
		post.Devices[name] = dev
	}
	if req.RootPool != "" {
		post.Devices["root"] = map[string]string{"type": "disk", "path": "/", "pool": req.RootPool}
	}
	if req.isISO() {
		post.Devices[ISODevice] = isoDevice(req.Image.Pool, req.Image.Alias)
	}

	c := post.Config
	setString(c, "limits.cpu", req.Limits.CPU)
	setString(c, "limits.memory", req.Limits.Memory)
	setString(c, "limits.processes", req.Limits.Processes)
	setFlag(c, "security.privileged", req.Security.Privileged)
	setFlag(c, "security.nesting", req.Security.Nesting)
	setFlag(c, "security.protection.delete", req.Security.ProtectionDelete)
	setFlag(c, "security.secureboot", req.Security.SecureBoot)
	setString(c, "snapshots.schedule", req.Snapshots.Schedule)
	setFlag(c, "snapshots.schedule.stopped", req.Snapshots.ScheduleStopped)
	setString(c, "snapshots.pattern", req.Snapshots.Pattern)
	setString(c, "snapshots.expiry", req.Snapshots.Expiry)
	setString(c, "cloud-init.user-data", req.CloudInit.UserData)
	setString(c, "cloud-init.vendor-data", req.CloudInit.VendorData)
	setString(c, "cloud-init.network-config", req.CloudInit.NetworkConfig)
	for k, v := range req.Config {
		c[k] = v
	}

	return post, nil
}

// PayloadYAML renders the form values as the YAML the configuration editor shows.
func PayloadYAML(req CreateInstanceRequest) (string, error) {
	req.YAML = ""
	post, err := Payload(req)
	if err != nil {
		return "", err
	}
	out, err := yaml.Marshal(post)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	return string(out), nil
}

// CreateInstance submits an instance creation.
func (s *Service) CreateInstance(ctx context.Context, project string, req CreateInstanceRequest) (*lxd.Operation, error) {
	project = projectOrDefault(project)

	post, err := Payload(req)
	if err != nil {
		return nil, err
	}
	if err := ValidateName(post.Name); err != nil {
		return nil, err
	}
	if post.Name != "" {
		if _, err := s.daemon.GetInstance(ctx, project, post.Name); err == nil {
			return nil, &ValidationError{Field: "name", Message: "An instance with this name already exists"}
		} else if !lxd.IsNotFound(err) {
			return nil, fmt.Errorf("checking instance name: %w", err)
		}
	}

	op, err := s.daemon.CreateInstance(ctx, project, req.Target, post)
	if err != nil {
		if !lxd.IsCancelled(err) {
			s.launchFailed(project, err, req)
		}
		return nil, err
	}

	name := op.InstanceName()
	if name == "" {
		return op, nil
	}

	start := req.shouldStart()
	iso := req.isISO()
	s.track(op, "create", project, name,
		func() { s.creationCompleted(project, name, start, iso) },
		func(msg string) { s.launchFailed(project, errors.New(msg), req) },
	)
	return op, nil
}

func (s *Service) launchFailed(project string, err error, req CreateInstanceRequest) {
	s.notify.Failure("Instance creation failed", err, "", notify.Action{
		Label:   "Check configuration",
		Href:    fmt.Sprintf("/ui/project/%s/instances/create", project),
		Payload: req,
	})
	s.cache.Invalidate(cache.Instances)
}

func (s *Service) creationCompleted(project, name string, start, iso bool) {
	link := notify.Action{Label: name, Href: instanceURL(project, name)}

	if !start {
		msg := fmt.Sprintf("Launched instance %s.", name)
		actions := []notify.Action{link}
		if iso {
			msg += " Continue the installation process from its console."
			actions = append(actions, notify.Action{Label: "Open console", Href: consoleURL(project, name)})
		}
		s.notify.Success(msg, actions...)
		s.cache.Invalidate(cache.Instances)
		return
	}

	startFailed := func(err error) {
		s.notify.Failure("Error", err, fmt.Sprintf("The instance %s was created, but could not be started.", name), link)
		s.cache.Invalidate(cache.Instances)
	}

	op, err := s.daemon.UpdateInstanceState(s.base, project, name, lxd.InstanceStatePut{Action: "start", Timeout: -1})
	if err != nil {
		startFailed(err)
		return
	}
	s.track(op, "start", project, name,
		func() {
			s.notify.Success(fmt.Sprintf("Launched and started instance %s.", name), link)
			s.cache.Invalidate(cache.Instances)
		},
		func(msg string) { startFailed(errors.New(msg)) },
	)
}
