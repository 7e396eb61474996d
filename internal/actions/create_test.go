package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/battlewithbytes/lxd-console/internal/lxd"
)

func TestValidateName(t *testing.T) {
	valid := []string{"", "web1", "a", "Web-Server-2"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), name)
	}
	invalid := []string{"-web", "1web", "web_1", "web.1", "web 1"}
	for _, name := range invalid {
		assert.Error(t, ValidateName(name), name)
	}
}

func TestPayloadFromForm(t *testing.T) {
	yes, no := true, false
	req := CreateInstanceRequest{
		Name:         "web1",
		Description:  "front end",
		InstanceType: lxd.TypeContainer,
		Profiles:     []string{"default", "web"},
		Image:        &ImageSelection{Alias: "ubuntu/24.04,noble", Server: "https://cloud-images.ubuntu.com/releases"},
		RootPool:     "fast",
		Devices:      map[string]map[string]string{"eth0": {"type": "nic", "network": "lxdbr0"}},
		Limits:       ResourceLimits{CPU: "2", Memory: "2GiB"},
		Security:     SecurityPolicies{Nesting: &yes, Privileged: &no},
		Snapshots:    Snapshots{Schedule: "@daily", Expiry: "7d"},
		CloudInit:    CloudInit{UserData: "#cloud-config\npackages: [nginx]\n"},
		Config:       map[string]string{"user.owner": "ops"},
	}

	post, err := Payload(req)
	require.NoError(t, err)

	assert.Equal(t, "web1", post.Name)
	assert.Equal(t, "front end", post.Description)
	assert.Equal(t, lxd.TypeContainer, post.Type)
	assert.Equal(t, []string{"default", "web"}, post.Profiles)
	assert.Equal(t, lxd.InstanceSource{
		Type:     "image",
		Alias:    "ubuntu/24.04",
		Server:   "https://cloud-images.ubuntu.com/releases",
		Protocol: "simplestreams",
		Mode:     "pull",
	}, post.Source)
	assert.Equal(t, map[string]string{"type": "disk", "path": "/", "pool": "fast"}, post.Devices["root"])
	assert.Equal(t, "lxdbr0", post.Devices["eth0"]["network"])
	assert.Equal(t, map[string]string{
		"limits.cpu":           "2",
		"limits.memory":        "2GiB",
		"security.nesting":     "true",
		"security.privileged":  "false",
		"snapshots.schedule":   "@daily",
		"snapshots.expiry":     "7d",
		"cloud-init.user-data": "#cloud-config\npackages: [nginx]\n",
		"user.owner":           "ops",
	}, post.Config)
}

func TestPayloadDefaults(t *testing.T) {
	post, err := Payload(CreateInstanceRequest{Image: &ImageSelection{Alias: "alpine/edge", Server: "https://images.linuxcontainers.org"}})
	require.NoError(t, err)
	assert.Equal(t, lxd.TypeContainer, post.Type)
	assert.Equal(t, []string{"default"}, post.Profiles)
	assert.Empty(t, post.Name)
}

func TestPayloadImageForcesType(t *testing.T) {
	post, err := Payload(CreateInstanceRequest{
		InstanceType: lxd.TypeContainer,
		Image:        &ImageSelection{Alias: "windows", Server: "https://example", VMOnly: true},
	})
	require.NoError(t, err)
	assert.Equal(t, lxd.TypeVirtualMachine, post.Type)

	post, err = Payload(CreateInstanceRequest{
		InstanceType: lxd.TypeVirtualMachine,
		Image:        &ImageSelection{Alias: "alpine", Server: "https://example", ContainerOnly: true},
	})
	require.NoError(t, err)
	assert.Equal(t, lxd.TypeContainer, post.Type)
}

func TestPayloadRequiresImage(t *testing.T) {
	_, err := Payload(CreateInstanceRequest{Name: "web1"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestPayloadUnknownType(t *testing.T) {
	_, err := Payload(CreateInstanceRequest{InstanceType: "jail", Image: &ImageSelection{Alias: "x"}})
	assert.True(t, IsValidation(err))
}

func TestPayloadFromYAML(t *testing.T) {
	req := CreateInstanceRequest{
		Name: "ignored",
		YAML: `
name: db1
type: virtual-machine
description: database
profiles: [default]
source:
  type: image
  alias: debian/12
  server: https://images.linuxcontainers.org
  protocol: simplestreams
config:
  limits.cpu: "4"
devices:
  root:
    type: disk
    path: /
    pool: default
`,
	}

	post, err := Payload(req)
	require.NoError(t, err)
	assert.Equal(t, "db1", post.Name)
	assert.Equal(t, lxd.TypeVirtualMachine, post.Type)
	assert.Equal(t, "database", post.Description)
	assert.Equal(t, "debian/12", post.Source.Alias)
	assert.Equal(t, "4", post.Config["limits.cpu"])
	assert.Equal(t, "default", post.Devices["root"]["pool"])
}

func TestPayloadInvalidYAML(t *testing.T) {
	_, err := Payload(CreateInstanceRequest{YAML: "name: [unclosed"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestPayloadYAMLRoundTrip(t *testing.T) {
	req := containerRequest("web1", false)
	req.Limits.CPU = "2"

	out, err := PayloadYAML(req)
	require.NoError(t, err)
	assert.Contains(t, out, "name: web1")

	post, err := Payload(CreateInstanceRequest{YAML: out})
	require.NoError(t, err)
	want, err := Payload(req)
	require.NoError(t, err)
	assert.Equal(t, want.Name, post.Name)
	assert.Equal(t, want.Source, post.Source)
	assert.Equal(t, want.Config, post.Config)
}
