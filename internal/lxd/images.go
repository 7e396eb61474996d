package lxd

import (
	"context"
	"fmt"
	"time"
)

// ImageAlias is a name pointing at an image fingerprint.
type ImageAlias struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Image is an image in the daemon's local image store.
type Image struct {
	Fingerprint  string            `json:"fingerprint"`
	Filename     string            `json:"filename"`
	Size         int64             `json:"size"`
	Type         string            `json:"type"`
	Architecture string            `json:"architecture"`
	Public       bool              `json:"public"`
	Properties   map[string]string `json:"properties"`
	Aliases      []ImageAlias      `json:"aliases"`
	CreatedAt    time.Time         `json:"created_at"`
	UploadedAt   time.Time         `json:"uploaded_at"`
}

// ListImages returns the images cached or published on the daemon.
func (c *Client) ListImages(ctx context.Context, project string) ([]Image, error) {
	q := c.projectQuery(project)
	q.Set("recursion", "1")
	var images []Image
	if _, err := c.doRequest(ctx, "GET", "/1.0/images", q, nil, &images); err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	return images, nil
}
