package lxd

import (
	"context"
	"fmt"
	"net/url"
)

// NetworkPut holds the writable fields of a network.
type NetworkPut struct {
	Config      map[string]string `json:"config"`
	Description string            `json:"description"`
}

// Network is a managed or unmanaged network.
type Network struct {
	NetworkPut
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Managed bool     `json:"managed"`
	Status  string   `json:"status"`
	UsedBy  []string `json:"used_by"`
}

// NetworksPost is the request body for creating a network.
type NetworksPost struct {
	NetworkPut
	Name string `json:"name"`
	Type string `json:"type"`
}

func (c *Client) ListNetworks(ctx context.Context, project string) ([]Network, error) {
	q := c.projectQuery(project)
	q.Set("recursion", "1")
	var networks []Network
	if _, err := c.doRequest(ctx, "GET", "/1.0/networks", q, nil, &networks); err != nil {
		return nil, fmt.Errorf("listing networks: %w", err)
	}
	return networks, nil
}

func (c *Client) GetNetwork(ctx context.Context, project, name string) (*Network, error) {
	var n Network
	if _, err := c.doRequest(ctx, "GET", "/1.0/networks/"+url.PathEscape(name), c.projectQuery(project), nil, &n); err != nil {
		return nil, fmt.Errorf("getting network %s: %w", name, err)
	}
	return &n, nil
}

func (c *Client) CreateNetwork(ctx context.Context, project, target string, req NetworksPost) error {
	q := c.projectQuery(project)
	if target != "" {
		q.Set("target", target)
	}
	if _, err := c.doRequest(ctx, "POST", "/1.0/networks", q, req, nil); err != nil {
		return fmt.Errorf("creating network %s: %w", req.Name, err)
	}
	return nil
}

func (c *Client) UpdateNetwork(ctx context.Context, project, name string, put NetworkPut) error {
	if _, err := c.doRequest(ctx, "PUT", "/1.0/networks/"+url.PathEscape(name), c.projectQuery(project), put, nil); err != nil {
		return fmt.Errorf("updating network %s: %w", name, err)
	}
	return nil
}

func (c *Client) DeleteNetwork(ctx context.Context, project, name string) error {
	if _, err := c.doRequest(ctx, "DELETE", "/1.0/networks/"+url.PathEscape(name), c.projectQuery(project), nil, nil); err != nil {
		return fmt.Errorf("deleting network %s: %w", name, err)
	}
	return nil
}
