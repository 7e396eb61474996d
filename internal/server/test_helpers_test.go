package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/battlewithbytes/lxd-console/internal/actions"
	"github.com/battlewithbytes/lxd-console/internal/cache"
	"github.com/battlewithbytes/lxd-console/internal/config"
	"github.com/battlewithbytes/lxd-console/internal/eventqueue"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
	"github.com/battlewithbytes/lxd-console/internal/notify"
	"github.com/battlewithbytes/lxd-console/internal/store"
)

func notFound(kind, name string) error {
	return &lxd.Error{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("%s %q not found", kind, name)}
}

// fakeDaemon is an in-memory daemon serving both the API reads and the actions.
type fakeDaemon struct {
	mu        sync.Mutex
	instances map[string]*lxd.Instance
	networks  map[string]*lxd.Network
	profiles  map[string]*lxd.Profile
	isos      []lxd.StorageVolume
	members   []lxd.ClusterMember
	calls     map[string]int
	nextOp    int

	// submitErr fails every async submission.
	submitErr error
	// readErr fails every list call.
	readErr error

	lastState   lxd.InstanceStatePut
	lastNetwork lxd.NetworkPut
	lastCreate  lxd.InstancesPost
	deleted     []string
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{
		instances: map[string]*lxd.Instance{},
		networks:  map[string]*lxd.Network{},
		profiles:  map[string]*lxd.Profile{},
		calls:     map[string]int{},
	}
}

func (d *fakeDaemon) addInstance(name, typ, status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	code := lxd.Stopped
	if status == "Running" {
		code = lxd.Running
	}
	d.instances[name] = &lxd.Instance{
		InstancePut: lxd.InstancePut{
			Config:   map[string]string{},
			Devices:  map[string]map[string]string{},
			Profiles: []string{"default"},
		},
		Name:       name,
		Type:       typ,
		Status:     status,
		StatusCode: code,
		Project:    "default",
	}
}

func (d *fakeDaemon) count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[name]
}

func (d *fakeDaemon) record(name string) {
	d.mu.Lock()
	d.calls[name]++
	d.mu.Unlock()
}

func (d *fakeDaemon) operation(instance string) (*lxd.Operation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitErr != nil {
		return nil, d.submitErr
	}
	d.nextOp++
	return &lxd.Operation{
		ID:         fmt.Sprintf("op-%d", d.nextOp),
		Class:      "task",
		StatusCode: lxd.Running,
		Resources:  map[string][]string{"instances": {"/1.0/instances/" + instance}},
	}, nil
}

func (d *fakeDaemon) GetServer(ctx context.Context) (*lxd.Server, error) {
	d.record("GetServer")
	return &lxd.Server{APIStatus: "stable", Auth: "trusted", Environment: lxd.ServerEnvironment{ServerName: "lab1"}}, nil
}

func (d *fakeDaemon) ListInstances(ctx context.Context, project string) ([]lxd.Instance, error) {
	d.record("ListInstances")
	if d.readErr != nil {
		return nil, d.readErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []lxd.Instance
	for _, inst := range d.instances {
		out = append(out, *inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *fakeDaemon) GetInstance(ctx context.Context, project, name string) (*lxd.Instance, error) {
	d.record("GetInstance")
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, ok := d.instances[name]
	if !ok {
		return nil, notFound("Instance", name)
	}
	cp := *inst
	return &cp, nil
}

func (d *fakeDaemon) ListImages(ctx context.Context, project string) ([]lxd.Image, error) {
	return []lxd.Image{{Fingerprint: "abc123", Type: "container"}}, nil
}

func (d *fakeDaemon) ListISOVolumes(ctx context.Context, project string) ([]lxd.StorageVolume, error) {
	d.record("ListISOVolumes")
	return d.isos, nil
}

func (d *fakeDaemon) DeleteStorageVolume(ctx context.Context, project, pool, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, pool+"/"+name)
	return nil
}

func (d *fakeDaemon) ListNetworks(ctx context.Context, project string) ([]lxd.Network, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []lxd.Network
	for _, n := range d.networks {
		out = append(out, *n)
	}
	return out, nil
}

func (d *fakeDaemon) GetNetwork(ctx context.Context, project, name string) (*lxd.Network, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.networks[name]
	if !ok {
		return nil, notFound("Network", name)
	}
	return n, nil
}

func (d *fakeDaemon) CreateNetwork(ctx context.Context, project, target string, req lxd.NetworksPost) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.networks[req.Name] = &lxd.Network{NetworkPut: req.NetworkPut, Name: req.Name, Type: req.Type, Managed: true}
	return nil
}

func (d *fakeDaemon) UpdateNetwork(ctx context.Context, project, name string, put lxd.NetworkPut) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastNetwork = put
	d.networks[name].NetworkPut = put
	return nil
}

func (d *fakeDaemon) DeleteNetwork(ctx context.Context, project, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.networks, name)
	return nil
}

func (d *fakeDaemon) ListProfiles(ctx context.Context, project string) ([]lxd.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []lxd.Profile
	for _, p := range d.profiles {
		out = append(out, *p)
	}
	return out, nil
}

func (d *fakeDaemon) GetProfile(ctx context.Context, project, name string) (*lxd.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.profiles[name]
	if !ok {
		return nil, notFound("Profile", name)
	}
	return p, nil
}

func (d *fakeDaemon) CreateProfile(ctx context.Context, project string, req lxd.ProfilesPost) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[req.Name] = &lxd.Profile{ProfilePut: req.ProfilePut, Name: req.Name}
	return nil
}

func (d *fakeDaemon) UpdateProfile(ctx context.Context, project, name string, put lxd.ProfilePut) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.profiles[name]
	if !ok {
		return notFound("Profile", name)
	}
	p.ProfilePut = put
	return nil
}

func (d *fakeDaemon) DeleteProfile(ctx context.Context, project, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.profiles, name)
	return nil
}

func (d *fakeDaemon) ListStoragePools(ctx context.Context, project string) ([]lxd.StoragePool, error) {
	return []lxd.StoragePool{{Name: "default", Driver: "zfs", Status: "Created"}}, nil
}

func (d *fakeDaemon) ListStorageVolumes(ctx context.Context, project, pool string) ([]lxd.StorageVolume, error) {
	if pool != "default" {
		return nil, notFound("Storage pool", pool)
	}
	return []lxd.StorageVolume{{Name: "web1", Type: "container", Pool: pool}}, nil
}

func (d *fakeDaemon) ListClusterMembers(ctx context.Context) ([]lxd.ClusterMember, error) {
	d.record("ListClusterMembers")
	return d.members, nil
}

func (d *fakeDaemon) CreateInstance(ctx context.Context, project, target string, req lxd.InstancesPost) (*lxd.Operation, error) {
	d.mu.Lock()
	d.lastCreate = req
	d.mu.Unlock()
	return d.operation(req.Name)
}

func (d *fakeDaemon) UpdateInstance(ctx context.Context, project, name string, put lxd.InstancePut) (*lxd.Operation, error) {
	return d.operation(name)
}

func (d *fakeDaemon) UpdateInstanceState(ctx context.Context, project, name string, state lxd.InstanceStatePut) (*lxd.Operation, error) {
	d.mu.Lock()
	d.lastState = state
	d.mu.Unlock()
	return d.operation(name)
}

func (d *fakeDaemon) MigrateInstance(ctx context.Context, project, name, target string) (*lxd.Operation, error) {
	return d.operation(name)
}

// testEnv bundles a server with the collaborators tests poke at.
type testEnv struct {
	srv      *Server
	daemon   *fakeDaemon
	queue    *eventqueue.Queue
	notifier *notify.Notifier
	cache    *cache.Cache
	store    *store.Store
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.DataDir = "/tmp/lxd-console-test"
	cfg.Service.BindAddress = "127.0.0.1"
	cfg.Service.Port = 0
	return cfg
}

func newTestEnv(t *testing.T, cfg *config.Config, opts ...Option) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}

	st, err := store.NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	env := &testEnv{
		daemon: newFakeDaemon(),
		queue:  eventqueue.New(),
		cache:  cache.New(cache.DefaultTTL),
		store:  st,
	}
	env.notifier = notify.New(st)
	svc := actions.New(env.daemon, env.queue, env.notifier, env.cache, actions.WithHistory(st))

	env.srv = New(cfg, Deps{
		Daemon:   env.daemon,
		Actions:  svc,
		Queue:    env.queue,
		Notifier: env.notifier,
		Cache:    env.cache,
		History:  st,
	}, opts...)
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}
