package lxd

import (
	"context"
	"fmt"
	"net/url"
)

// ProfilePut holds the writable fields of a profile.
type ProfilePut struct {
	Config      map[string]string            `json:"config"`
	Description string                       `json:"description"`
	Devices     map[string]map[string]string `json:"devices"`
}

// Profile is a configuration profile applied to instances.
type Profile struct {
	ProfilePut
	Name   string   `json:"name"`
	UsedBy []string `json:"used_by"`
}

// ProfilesPost is the request body for creating a profile.
type ProfilesPost struct {
	ProfilePut
	Name string `json:"name"`
}

func (c *Client) ListProfiles(ctx context.Context, project string) ([]Profile, error) {
	q := c.projectQuery(project)
	q.Set("recursion", "1")
	var profiles []Profile
	if _, err := c.doRequest(ctx, "GET", "/1.0/profiles", q, nil, &profiles); err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return profiles, nil
}

func (c *Client) GetProfile(ctx context.Context, project, name string) (*Profile, error) {
	var p Profile
	if _, err := c.doRequest(ctx, "GET", "/1.0/profiles/"+url.PathEscape(name), c.projectQuery(project), nil, &p); err != nil {
		return nil, fmt.Errorf("getting profile %s: %w", name, err)
	}
	return &p, nil
}

func (c *Client) CreateProfile(ctx context.Context, project string, req ProfilesPost) error {
	if _, err := c.doRequest(ctx, "POST", "/1.0/profiles", c.projectQuery(project), req, nil); err != nil {
		return fmt.Errorf("creating profile %s: %w", req.Name, err)
	}
	return nil
}

func (c *Client) UpdateProfile(ctx context.Context, project, name string, put ProfilePut) error {
	if _, err := c.doRequest(ctx, "PUT", "/1.0/profiles/"+url.PathEscape(name), c.projectQuery(project), put, nil); err != nil {
		return fmt.Errorf("updating profile %s: %w", name, err)
	}
	return nil
}

func (c *Client) DeleteProfile(ctx context.Context, project, name string) error {
	if _, err := c.doRequest(ctx, "DELETE", "/1.0/profiles/"+url.PathEscape(name), c.projectQuery(project), nil, nil); err != nil {
		return fmt.Errorf("deleting profile %s: %w", name, err)
	}
	return nil
}
