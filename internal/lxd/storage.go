package lxd

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// StoragePool is a storage pool from GET /1.0/storage-pools.
type StoragePool struct {
	Name        string            `json:"name"`
	Driver      string            `json:"driver"`
	Description string            `json:"description"`
	Status      string            `json:"status"`
	Config      map[string]string `json:"config"`
	UsedBy      []string          `json:"used_by"`
}

// StorageVolume is a volume inside a storage pool.
type StorageVolume struct {
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	ContentType string            `json:"content_type"`
	Description string            `json:"description"`
	Location    string            `json:"location"`
	Project     string            `json:"project"`
	Config      map[string]string `json:"config"`
	UsedBy      []string          `json:"used_by"`
	CreatedAt   time.Time         `json:"created_at"`

	// Pool is filled in by the client; the API omits it.
	Pool string `json:"pool,omitempty"`
}

// ListStoragePools returns all storage pools.
func (c *Client) ListStoragePools(ctx context.Context, project string) ([]StoragePool, error) {
	q := c.projectQuery(project)
	q.Set("recursion", "1")
	var pools []StoragePool
	if _, err := c.doRequest(ctx, "GET", "/1.0/storage-pools", q, nil, &pools); err != nil {
		return nil, fmt.Errorf("listing storage pools: %w", err)
	}
	return pools, nil
}

// ListStorageVolumes returns the volumes of a pool.
func (c *Client) ListStorageVolumes(ctx context.Context, project, pool string) ([]StorageVolume, error) {
	q := c.projectQuery(project)
	q.Set("recursion", "1")
	var volumes []StorageVolume
	path := "/1.0/storage-pools/" + url.PathEscape(pool) + "/volumes"
	if _, err := c.doRequest(ctx, "GET", path, q, nil, &volumes); err != nil {
		return nil, fmt.Errorf("listing volumes of pool %s: %w", pool, err)
	}
	for i := range volumes {
		volumes[i].Pool = pool
	}
	return volumes, nil
}

// ListISOVolumes returns the custom ISO volumes across every pool of a project.
func (c *Client) ListISOVolumes(ctx context.Context, project string) ([]StorageVolume, error) {
	pools, err := c.ListStoragePools(ctx, project)
	if err != nil {
		return nil, err
	}
	var isos []StorageVolume
	for _, pool := range pools {
		volumes, err := c.ListStorageVolumes(ctx, project, pool.Name)
		if err != nil {
			return nil, err
		}
		for _, v := range volumes {
			if v.Type == "custom" && strings.EqualFold(v.ContentType, "iso") {
				isos = append(isos, v)
			}
		}
	}
	return isos, nil
}

// DeleteStorageVolume removes a custom volume from a pool.
func (c *Client) DeleteStorageVolume(ctx context.Context, project, pool, name string) error {
	path := "/1.0/storage-pools/" + url.PathEscape(pool) + "/volumes/custom/" + url.PathEscape(name)
	if _, err := c.doRequest(ctx, "DELETE", path, c.projectQuery(project), nil, nil); err != nil {
		return fmt.Errorf("deleting volume %s from pool %s: %w", name, pool, err)
	}
	return nil
}
