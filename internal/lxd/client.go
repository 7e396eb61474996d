// Package lxd is a typed client for the LXD REST API.
package lxd

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// unixHost is the placeholder host used for requests over the unix socket.
const unixHost = "unix.socket"

// ClientConfig holds the parameters for creating a new Client.
type ClientConfig struct {
	// URL is either https://host:8443 or unix:///path/to/unix.socket.
	URL            string
	Project        string
	ClientCertPath string
	ClientKeyPath  string
	TLSCACertPath  string
	TLSSkipVerify  bool
}

// Client is an HTTP client for the LXD REST API.
type Client struct {
	baseURL    string
	project    string
	socketPath string
	transport  *http.Transport
	httpClient *http.Client
}

// NewClient creates a new LXD API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("lxd URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing lxd URL: %w", err)
	}

	c := &Client{project: cfg.Project}
	if c.project == "" {
		c.project = "default"
	}

	switch u.Scheme {
	case "unix":
		c.socketPath = u.Path
		if err := checkSocket(c.socketPath); err != nil {
			return nil, err
		}
		c.baseURL = "http://" + unixHost
		c.transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", c.socketPath)
			},
		}
	case "https":
		tlsCfg, err := clientTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		c.baseURL = strings.TrimRight(cfg.URL, "/")
		c.transport = &http.Transport{TLSClientConfig: tlsCfg}
	default:
		return nil, fmt.Errorf("unsupported lxd URL scheme %q (want https or unix)", u.Scheme)
	}

	c.httpClient = &http.Client{
		Timeout:   30 * time.Second,
		Transport: c.transport,
	}
	return c, nil
}

func clientTLSConfig(cfg ClientConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{}

	if cfg.ClientCertPath != "" || cfg.ClientKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	if cfg.TLSCACertPath != "" {
		caCert, err := os.ReadFile(cfg.TLSCACertPath)
		if err != nil {
			return nil, fmt.Errorf("reading CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA cert from %s", cfg.TLSCACertPath)
		}
		tlsCfg.RootCAs = pool
	} else if cfg.TLSSkipVerify {
		tlsCfg.InsecureSkipVerify = true
	}

	return tlsCfg, nil
}

// Project returns the project used when a call does not name one.
func (c *Client) Project() string {
	return c.project
}

// response is the standard LXD response envelope.
type response struct {
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Operation  string          `json:"operation"`
	ErrorCode  int             `json:"error_code"`
	Error      string          `json:"error"`
	Metadata   json.RawMessage `json:"metadata"`
}

func (c *Client) projectQuery(project string) url.Values {
	q := url.Values{}
	if project == "" {
		project = c.project
	}
	q.Set("project", project)
	return q
}

// doRequest performs an HTTP request against the LXD API and decodes the
// envelope metadata into result when result is non-nil.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body, result interface{}) (*response, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("executing request: %w", ErrCancelled)
		}
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var envelope response
	decodeErr := json.Unmarshal(respBody, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || envelope.Type == "error" {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Message = envelope.Error
			if envelope.ErrorCode != 0 {
				apiErr.StatusCode = envelope.ErrorCode
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding response: %w", decodeErr)
	}

	if result != nil && len(envelope.Metadata) > 0 {
		if err := json.Unmarshal(envelope.Metadata, result); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
	}
	return &envelope, nil
}

// doAsync performs a request that must create a background operation.
func (c *Client) doAsync(ctx context.Context, method, path string, query url.Values, body interface{}) (*Operation, error) {
	var op Operation
	resp, err := c.doRequest(ctx, method, path, query, body, &op)
	if err != nil {
		return nil, err
	}
	if resp.Type != "async" {
		return nil, fmt.Errorf("expected async response from %s %s, got %q", method, path, resp.Type)
	}
	if op.ID == "" {
		op.ID = strings.TrimPrefix(resp.Operation, "/1.0/operations/")
	}
	return &op, nil
}
