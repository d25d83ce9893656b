package fleet

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// DeviceResponse is the normalised JSON body from a device filesystem
// endpoint. Firmware builds disagree on the envelope key; after
// normalisation "ok" is always present.
type DeviceResponse map[string]any

// SpiffsClient proxies filesystem operations to the HTTP server the
// firmware exposes on the device itself.
type SpiffsClient struct {
	secure   *http.Client
	insecure *http.Client
	// allowInsecure permits skipping TLS verification, and only toward
	// loopback or RFC1918 addresses.
	allowInsecure bool
}

// NewSpiffsClient builds the proxy. When allowInsecure is false every
// HTTPS request verifies the device certificate.
func NewSpiffsClient(allowInsecure bool) *SpiffsClient {
	c := &SpiffsClient{
		secure:        &http.Client{Timeout: 10 * time.Second},
		allowInsecure: allowInsecure,
	}
	if allowInsecure {
		c.insecure = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}
	return c
}

// List enumerates files on the device filesystem.
func (c *SpiffsClient) List(ctx context.Context, host string) (DeviceResponse, error) {
	return c.get(ctx, host, "/spiffs/list", nil)
}

// Read fetches one file's content.
func (c *SpiffsClient) Read(ctx context.Context, host, path string) (DeviceResponse, error) {
	return c.get(ctx, host, "/spiffs/read", url.Values{"path": {path}})
}

// Write stores content into a file on the device.
func (c *SpiffsClient) Write(ctx context.Context, host, path, content string) (DeviceResponse, error) {
	return c.post(ctx, host, "/spiffs/write", map[string]string{"path": path, "content": content})
}

// Delete removes a file from the device.
func (c *SpiffsClient) Delete(ctx context.Context, host, path string) (DeviceResponse, error) {
	return c.post(ctx, host, "/spiffs/delete", map[string]string{"path": path})
}

// Info reports filesystem usage totals.
func (c *SpiffsClient) Info(ctx context.Context, host string) (DeviceResponse, error) {
	return c.get(ctx, host, "/spiffs/info", nil)
}

// Format wipes the device filesystem.
func (c *SpiffsClient) Format(ctx context.Context, host string) (DeviceResponse, error) {
	return c.post(ctx, host, "/spiffs/format", nil)
}

func (c *SpiffsClient) get(ctx context.Context, host, path string, query url.Values) (DeviceResponse, error) {
	u, client, err := c.resolve(host, path)
	if err != nil {
		return nil, err
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(client, req, host)
}

func (c *SpiffsClient) post(ctx context.Context, host, path string, body any) (DeviceResponse, error) {
	u, client, err := c.resolve(host, path)
	if err != nil {
		return nil, err
	}
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), payload)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(client, req, host)
}

// resolve validates the device host and picks the right client. A bare
// host defaults to plain HTTP, matching what the firmware serves.
func (c *SpiffsClient) resolve(host, path string) (*url.URL, *http.Client, error) {
	scheme := "http"
	if strings.Contains(host, "://") {
		parsed, err := url.Parse(host)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: device host %q", domain.ErrInvalidInput, host)
		}
		scheme = parsed.Scheme
		host = parsed.Host
	}
	if scheme != "http" && scheme != "https" {
		return nil, nil, fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidInput, scheme)
	}
	if !domain.IsValidDeviceHost(host) {
		return nil, nil, fmt.Errorf("%w: device host %q", domain.ErrInvalidInput, host)
	}

	client := c.secure
	if scheme == "https" && c.allowInsecure && isPrivateHost(host) {
		client = c.insecure
	}
	return &url.URL{Scheme: scheme, Host: host, Path: path}, client, nil
}

func (c *SpiffsClient) do(client *http.Client, req *http.Request, host string) (DeviceResponse, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDeviceUnreachable, host, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDeviceUnreachable, host, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: %s returned %d", domain.ErrDeviceUnreachable, host, resp.StatusCode)
	}

	var body DeviceResponse
	if err := json.Unmarshal(data, &body); err != nil {
		// Plain-text bodies (some firmware error paths) become an error
		// envelope.
		body = DeviceResponse{"ok": resp.StatusCode < 400, "raw": strings.TrimSpace(string(data))}
		return body, nil
	}
	return normalizeEnvelope(body, resp.StatusCode), nil
}

// normalizeEnvelope folds the "success" variant into "ok" so callers see
// one shape regardless of firmware build.
func normalizeEnvelope(body DeviceResponse, status int) DeviceResponse {
	if _, ok := body["ok"]; ok {
		return body
	}
	if v, ok := body["success"]; ok {
		body["ok"] = v
		delete(body, "success")
		return body
	}
	body["ok"] = status < 400
	return body
}

// isPrivateHost reports whether the host resolves textually to loopback
// or an RFC1918 range. Hostnames other than localhost are never treated
// as private.
func isPrivateHost(host string) bool {
	h := host
	if i := strings.LastIndex(h, ":"); i >= 0 {
		h = h[:i]
	}
	if h == "localhost" {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}
