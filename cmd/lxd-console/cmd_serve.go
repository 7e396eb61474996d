package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/battlewithbytes/lxd-console/internal/actions"
	"github.com/battlewithbytes/lxd-console/internal/cache"
	"github.com/battlewithbytes/lxd-console/internal/config"
	"github.com/battlewithbytes/lxd-console/internal/eventqueue"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
	"github.com/battlewithbytes/lxd-console/internal/notify"
	"github.com/battlewithbytes/lxd-console/internal/operations"
	"github.com/battlewithbytes/lxd-console/internal/server"
	"github.com/battlewithbytes/lxd-console/internal/store"
)

// envPrefix namespaces the environment overrides, e.g. LXD_CONSOLE_PORT.
const envPrefix = "LXD_CONSOLE"

func getPrimaryIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}
	return ""
}

var serveViper = newServeViper()

func newServeViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("config", config.DefaultConfigPath)
	return v
}

func init() {
	f := serveCmd.Flags()
	f.String("config", config.DefaultConfigPath, "path to config file")
	f.String("data-dir", "", "path to data directory (overrides data_dir)")
	f.Int("port", 0, "listen port (overrides service.port)")
	for _, name := range []string{"config", "data-dir", "port"} {
		_ = serveViper.BindPFlag(name, f.Lookup(name))
	}
	rootCmd.AddCommand(serveCmd)
}

// loadServeConfig reads the config file named by v and applies flag and
// environment overrides on top of it.
func loadServeConfig(v *viper.Viper) (*config.Config, string, error) {
	path := v.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}

	if dir := v.GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if port := v.GetInt("port"); port != 0 {
		cfg.Service.Port = port
	}
	if u := v.GetString("lxd-url"); u != "" {
		cfg.LXD.URL = u
	}
	if p := v.GetString("project"); p != "" {
		cfg.LXD.Project = p
	}
	if m := v.GetString("events-mode"); m != "" {
		cfg.Events.Mode = m
	}

	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("validating overrides: %w", err)
	}
	return cfg, path, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the LXD Console service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, configPath, err := loadServeConfig(serveViper)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to load config: %w (run `lxd-console config init` first)", err)
			}
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Printf("LXD Console starting...\n")
		fmt.Printf("  config:  %s\n", configPath)
		fmt.Printf("  daemon:  %s (project %s)\n", cfg.LXD.URL, cfg.LXD.Project)
		fmt.Printf("  listen:  %s:%d\n", cfg.Service.BindAddress, cfg.Service.Port)
		fmt.Printf("  auth:    %s\n", cfg.Auth.Mode)

		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		st, err := store.NewStore(cfg.HistoryPath())
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer st.Close()
		if n, err := st.RecoverPendingOperations(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: recovering pending operations: %v\n", err)
		} else if n > 0 {
			fmt.Printf("  history: %d operations interrupted by the last shutdown\n", n)
		}
		fmt.Printf("  history: %s\n", cfg.HistoryPath())

		client, err := lxd.NewClient(lxd.ClientConfig{
			URL:            cfg.LXD.URL,
			Project:        cfg.LXD.Project,
			ClientCertPath: cfg.LXD.ClientCert,
			ClientKeyPath:  cfg.LXD.ClientKey,
			TLSCACertPath:  cfg.LXD.TLSCACertPath,
			TLSSkipVerify:  cfg.LXD.TLSSkipVerify,
		})
		if err != nil {
			return fmt.Errorf("creating lxd client: %w", err)
		}

		ctx, stop := context.WithCancel(context.Background())
		defer stop()

		queue := eventqueue.New()
		notifier := notify.New(st)
		queryCache := cache.New(time.Duration(cfg.Cache.TTL))
		poller := operations.NewPoller(client, queue, time.Duration(cfg.Events.PollInterval))
		svc := actions.New(client, queue, notifier, queryCache,
			actions.WithHistory(st),
			actions.WithBaseContext(ctx),
			actions.WithOperationCheck(poller),
		)

		var source eventSource = poller
		switch cfg.Events.Mode {
		case config.EventsModePoll:
			fmt.Printf("  events:  polling every %s\n", time.Duration(cfg.Events.PollInterval))
		default:
			listener := operations.NewListener(client, queue)
			listener.OnConnect = poller.PollOnce
			source = listener
			fmt.Printf("  events:  daemon event stream\n")
		}
		waitSources := startEventSources(ctx, source)

		srv := server.New(cfg, server.Deps{
			Daemon:   client,
			Actions:  svc,
			Queue:    queue,
			Notifier: notifier,
			Cache:    queryCache,
			History:  st,
		})
		if cfg.Service.WebDir != "" {
			fmt.Printf("  spa:     serving from %s\n", cfg.Service.WebDir)
		} else {
			fmt.Println("  spa:     no web_dir configured (API-only mode)")
		}

		// Graceful shutdown
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			addr := srv.Addr()
			if strings.HasPrefix(addr, "0.0.0.0:") {
				if ip := getPrimaryIP(); ip != "" {
					fmt.Printf("\nListening on http://%s (http://%s)\n", addr, ip+addr[len("0.0.0.0"):])
				} else {
					fmt.Printf("\nListening on http://%s\n", addr)
				}
			} else {
				fmt.Printf("\nListening on http://%s\n", addr)
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "server error: %v\n", err)
				os.Exit(1)
			}
		}()

		<-sig
		fmt.Println("\nShutting down...")
		if n := queue.Len(); n > 0 {
			fmt.Printf("  %d operations still pending; they will be marked interrupted on next start\n", n)
		}
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)

		// Callbacks write to the store; it closes only after the last one.
		waitSources()
		return err
	},
}

// eventSource is a completion feed for the queue: the listener or the poller.
type eventSource interface {
	Run(ctx context.Context) error
}

// startEventSources runs each source on its own goroutine. The returned
// function blocks until every source has returned, which happens once ctx is
// done.
func startEventSources(ctx context.Context, sources ...eventSource) (wait func()) {
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src eventSource) {
			defer wg.Done()
			if err := src.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintf(os.Stderr, "warning: event source stopped: %v\n", err)
			}
		}(src)
	}
	return wg.Wait
}
