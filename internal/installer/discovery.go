package installer

import (
	"context"
	"os"
	"time"

	"github.com/battlewithbytes/lxd-console/internal/lxd"
)

// socketCandidates are the unix socket locations of the common daemon packages.
var socketCandidates = []string{
	"/var/snap/lxd/common/lxd/unix.socket",
	"/var/lib/lxd/unix.socket",
	"/var/lib/incus/unix.socket",
}

// DaemonInfo describes one reachable local daemon.
type DaemonInfo struct {
	URL        string
	ServerName string
	Version    string
	Clustered  bool
	Members    []string
}

// DiscoveredResources holds everything we detect on the local host.
type DiscoveredResources struct {
	Hostname string
	Daemons  []DaemonInfo
	// Unreachable lists sockets that exist but could not be queried.
	Unreachable []string
}

// Discover probes the local host for daemons listening on a unix socket.
func Discover(ctx context.Context) *DiscoveredResources {
	res := &DiscoveredResources{}
	res.Hostname, _ = os.Hostname()

	for _, path := range socketCandidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		info, err := probe(ctx, "unix://"+path)
		if err != nil {
			res.Unreachable = append(res.Unreachable, path)
			continue
		}
		res.Daemons = append(res.Daemons, *info)
	}
	return res
}

func probe(ctx context.Context, rawURL string) (*DaemonInfo, error) {
	client, err := lxd.NewClient(lxd.ClientConfig{URL: rawURL})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	srv, err := client.GetServer(ctx)
	if err != nil {
		return nil, err
	}
	info := &DaemonInfo{
		URL:        rawURL,
		ServerName: srv.Environment.ServerName,
		Version:    srv.Environment.ServerVersion,
		Clustered:  srv.Environment.ServerClustered,
	}
	if info.Clustered {
		if members, err := client.ListClusterMembers(ctx); err == nil {
			for _, m := range members {
				info.Members = append(info.Members, m.ServerName)
			}
		}
	}
	return info, nil
}
