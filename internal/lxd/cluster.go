package lxd

import (
	"context"
	"fmt"
)

// ClusterMember is a member of an LXD cluster.
type ClusterMember struct {
	ServerName   string   `json:"server_name"`
	URL          string   `json:"url"`
	Database     bool     `json:"database"`
	Status       string   `json:"status"`
	Message      string   `json:"message"`
	Architecture string   `json:"architecture"`
	Roles        []string `json:"roles"`
	Description  string   `json:"description"`
}

// ServerEnvironment is the read-only environment block of GET /1.0.
type ServerEnvironment struct {
	Architectures   []string `json:"architectures"`
	OSName          string   `json:"os_name,omitempty"`
	ServerVersion   string   `json:"server_version"`
	ServerClustered bool     `json:"server_clustered"`
	ServerName      string   `json:"server_name"`
}

// Server holds the daemon settings returned by GET /1.0.
type Server struct {
	APIStatus      string            `json:"api_status"`
	APIVersion     string            `json:"api_version"`
	Config         map[string]string `json:"config"`
	Environment    ServerEnvironment `json:"environment"`
	Auth           string            `json:"auth"`
	AuthMethods    []string          `json:"auth_methods,omitempty"`
	AuthUserMethod string            `json:"auth_user_method,omitempty"`
	AuthUserName   string            `json:"auth_user_name,omitempty"`
}

// GetServer returns the daemon settings.
func (c *Client) GetServer(ctx context.Context) (*Server, error) {
	var srv Server
	if _, err := c.doRequest(ctx, "GET", "/1.0", nil, nil, &srv); err != nil {
		return nil, fmt.Errorf("getting server settings: %w", err)
	}
	return &srv, nil
}

// ListClusterMembers returns the cluster members, or an empty list on a standalone daemon.
func (c *Client) ListClusterMembers(ctx context.Context) ([]ClusterMember, error) {
	srv, err := c.GetServer(ctx)
	if err != nil {
		return nil, err
	}
	if !srv.Environment.ServerClustered {
		return []ClusterMember{}, nil
	}
	var members []ClusterMember
	q := map[string][]string{"recursion": {"1"}}
	if _, err := c.doRequest(ctx, "GET", "/1.0/cluster/members", q, nil, &members); err != nil {
		return nil, fmt.Errorf("listing cluster members: %w", err)
	}
	return members, nil
}
