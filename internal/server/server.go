package server

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/battlewithbytes/lxd-console/internal/actions"
	"github.com/battlewithbytes/lxd-console/internal/cache"
	"github.com/battlewithbytes/lxd-console/internal/config"
	"github.com/battlewithbytes/lxd-console/internal/eventqueue"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
	"github.com/battlewithbytes/lxd-console/internal/notify"
	"github.com/battlewithbytes/lxd-console/internal/store"
)

// Daemon is the read and CRUD side of the daemon client used by the API.
type Daemon interface {
	GetServer(ctx context.Context) (*lxd.Server, error)
	ListInstances(ctx context.Context, project string) ([]lxd.Instance, error)
	GetInstance(ctx context.Context, project, name string) (*lxd.Instance, error)
	ListImages(ctx context.Context, project string) ([]lxd.Image, error)
	ListISOVolumes(ctx context.Context, project string) ([]lxd.StorageVolume, error)
	DeleteStorageVolume(ctx context.Context, project, pool, name string) error
	ListNetworks(ctx context.Context, project string) ([]lxd.Network, error)
	GetNetwork(ctx context.Context, project, name string) (*lxd.Network, error)
	CreateNetwork(ctx context.Context, project, target string, req lxd.NetworksPost) error
	UpdateNetwork(ctx context.Context, project, name string, put lxd.NetworkPut) error
	DeleteNetwork(ctx context.Context, project, name string) error
	ListProfiles(ctx context.Context, project string) ([]lxd.Profile, error)
	GetProfile(ctx context.Context, project, name string) (*lxd.Profile, error)
	CreateProfile(ctx context.Context, project string, req lxd.ProfilesPost) error
	UpdateProfile(ctx context.Context, project, name string, put lxd.ProfilePut) error
	DeleteProfile(ctx context.Context, project, name string) error
	ListStoragePools(ctx context.Context, project string) ([]lxd.StoragePool, error)
	ListStorageVolumes(ctx context.Context, project, pool string) ([]lxd.StorageVolume, error)
	ListClusterMembers(ctx context.Context) ([]lxd.ClusterMember, error)
}

// History is the read side of the operation history store.
type History interface {
	ListOperations(limit int) ([]*store.OperationRecord, error)
	ListNotifications(limit int) ([]*store.NotificationRecord, error)
}

// Deps are the process-wide collaborators the API serves from.
type Deps struct {
	Daemon   Daemon
	Actions  *actions.Service
	Queue    *eventqueue.Queue
	Notifier *notify.Notifier
	Cache    *cache.Cache
	History  History
}

// Server is the HTTP server for the console.
type Server struct {
	cfg      *config.Config
	daemon   Daemon
	actions  *actions.Service
	queue    *eventqueue.Queue
	notify   *notify.Notifier
	cache    *cache.Cache
	history  History
	console  consoleCommand
	sessions *sessionStore
	http     *http.Server
	spa      fs.FS // front end build; nil serves the API only
}

// Option configures the server.
type Option func(*Server)

// WithSPA serves the front end from fsys instead of service.web_dir.
func WithSPA(fsys fs.FS) Option {
	return func(s *Server) { s.spa = fsys }
}

// WithConsoleCommand replaces the command spawned for instance consoles.
func WithConsoleCommand(fn consoleCommand) Option {
	return func(s *Server) { s.console = fn }
}

// New creates a new Server.
func New(cfg *config.Config, deps Deps, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		daemon:   deps.Daemon,
		actions:  deps.Actions,
		queue:    deps.Queue,
		notify:   deps.Notifier,
		cache:    deps.Cache,
		history:  deps.History,
		console:  lxcConsoleCommand,
		sessions: newSessionStore(),
	}
	if dir := cfg.Service.WebDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			s.spa = os.DirFS(dir)
		}
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/settings", s.withAuth(s.handleSettings))

	// API routes: instances
	mux.HandleFunc("GET /api/instances", s.withAuth(s.handleListInstances))
	mux.HandleFunc("POST /api/instances", s.withAuth(s.handleCreateInstance))
	mux.HandleFunc("POST /api/instances/preview", s.withAuth(s.handlePreviewInstance))
	mux.HandleFunc("GET /api/instances/{name}", s.withAuth(s.handleGetInstance))
	mux.HandleFunc("POST /api/instances/{name}/start", s.withAuth(s.handleStartInstance))
	mux.HandleFunc("POST /api/instances/{name}/stop", s.withAuth(s.handleStopInstance))
	mux.HandleFunc("POST /api/instances/{name}/migrate", s.withAuth(s.handleMigrateInstance))
	mux.HandleFunc("POST /api/instances/{name}/attach-iso", s.withAuth(s.handleAttachISO))
	mux.HandleFunc("POST /api/instances/{name}/detach-iso", s.withAuth(s.handleDetachISO))
	mux.HandleFunc("GET /api/instances/{name}/console", s.withAuth(s.handleConsole))

	// API routes: images and ISOs
	mux.HandleFunc("GET /api/images", s.withAuth(s.handleListImages))
	mux.HandleFunc("GET /api/isos", s.withAuth(s.handleListISOs))
	mux.HandleFunc("DELETE /api/isos/{pool}/{volume}", s.withAuth(s.handleDeleteISO))

	// API routes: networks
	mux.HandleFunc("GET /api/networks", s.withAuth(s.handleListNetworks))
	mux.HandleFunc("POST /api/networks", s.withAuth(s.handleCreateNetwork))
	mux.HandleFunc("GET /api/networks/{name}", s.withAuth(s.handleGetNetwork))
	mux.HandleFunc("PUT /api/networks/{name}", s.withAuth(s.handleUpdateNetwork))
	mux.HandleFunc("DELETE /api/networks/{name}", s.withAuth(s.handleDeleteNetwork))

	// API routes: profiles
	mux.HandleFunc("GET /api/profiles", s.withAuth(s.handleListProfiles))
	mux.HandleFunc("POST /api/profiles", s.withAuth(s.handleCreateProfile))
	mux.HandleFunc("GET /api/profiles/{name}", s.withAuth(s.handleGetProfile))
	mux.HandleFunc("PUT /api/profiles/{name}", s.withAuth(s.handleUpdateProfile))
	mux.HandleFunc("DELETE /api/profiles/{name}", s.withAuth(s.handleDeleteProfile))

	// API routes: storage and cluster
	mux.HandleFunc("GET /api/storage/pools", s.withAuth(s.handleListStoragePools))
	mux.HandleFunc("GET /api/storage/pools/{pool}/volumes", s.withAuth(s.handleListStorageVolumes))
	mux.HandleFunc("GET /api/cluster/members", s.withAuth(s.handleListClusterMembers))

	// API routes: operations and notifications
	mux.HandleFunc("GET /api/operations", s.withAuth(s.handleListOperations))
	mux.HandleFunc("GET /api/operations/pending", s.withAuth(s.handlePendingOperations))
	mux.HandleFunc("GET /api/notifications", s.withAuth(s.handleCurrentNotification))
	mux.HandleFunc("DELETE /api/notifications", s.withAuth(s.handleClearNotification))
	mux.HandleFunc("GET /api/notifications/history", s.withAuth(s.handleNotificationHistory))
	mux.HandleFunc("GET /api/notifications/stream", s.withAuth(s.handleNotificationStream))

	// Auth
	if cfg.Auth.Mode == config.AuthModePassword {
		mux.HandleFunc("POST /api/auth/login", s.handleLogin)
		mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
		mux.HandleFunc("GET /api/auth/check", s.handleAuthCheck)
	}

	// SPA fallback: serve index.html for all non-API routes
	if s.spa != nil {
		mux.Handle("/", s.spaHandler())
	}

	var handler http.Handler = mux
	handler = maxBodyMiddleware(handler, 1<<20) // 1 MB limit for API requests
	handler = corsMiddleware(handler)
	handler = logMiddleware(handler)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Service.BindAddress, cfg.Service.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// project returns the ?project= query value or the configured default.
func (s *Server) project(r *http.Request) string {
	if p := r.URL.Query().Get("project"); p != "" {
		return p
	}
	return s.cfg.LXD.Project
}

func maxBodyMiddleware(next http.Handler, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only limit request body for API POST/PUT/DELETE, not WebSocket upgrades or static assets
		if r.Body != nil && strings.HasPrefix(r.URL.Path, "/api/") && r.Method != "GET" &&
			!strings.Contains(r.Header.Get("Upgrade"), "websocket") {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is needed by the websocket endpoints.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		fmt.Printf("[%s] %s %s %d %s\n", time.Now().Format("15:04:05"), r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			// Reflect the request origin only if it matches this server's host.
			host := r.Host
			if strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			// Front end dev servers run on localhost
			if strings.Contains(origin, "://localhost:") || strings.Contains(origin, "://127.0.0.1:") {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Upgrade, Connection")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allowedOriginPatterns returns WebSocket origin patterns matching the server's host.
func (s *Server) allowedOriginPatterns(r *http.Request) []string {
	patterns := []string{"localhost:*", "127.0.0.1:*"}
	if host := r.Host; host != "" {
		h := host
		if idx := strings.LastIndex(h, ":"); idx > 0 {
			h = h[:idx]
		}
		patterns = append(patterns, h+":*", host)
	}
	return patterns
}

func (s *Server) spaHandler() http.Handler {
	fileServer := http.FileServerFS(s.spa)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		path := r.URL.Path
		if path == "/" {
			path = "index.html"
		}

		// fs.FS.Open expects paths without leading slash
		cleanPath := strings.TrimPrefix(path, "/")

		if f, err := s.spa.Open(cleanPath); err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}

		// Fallback to index.html for client-side routing
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
