package pterodactyl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	appKeyPrefix    = "ptla_"
	clientKeyPrefix = "ptlc_"
)

// Client talks to a Pterodactyl panel. Application-scoped calls (users,
// nodes, allocations, server management) use the application API key;
// per-server detail and resource reads use the client API key. The two
// key flavors are validated at construction so a swapped configuration
// fails fast instead of sending privileged requests with the wrong scope.
type Client struct {
	baseURL    string
	appKey     string
	clientKey  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewClient(baseURL, appKey, clientKey string, timeout time.Duration, rps float64, burst int, logger *slog.Logger) (*Client, error) {
	if !strings.HasPrefix(appKey, appKeyPrefix) {
		return nil, errors.Errorf("panel application API key must start with %q; got a key with prefix %q (keys swapped?)", appKeyPrefix, keyPrefix(appKey))
	}
	if !strings.HasPrefix(clientKey, clientKeyPrefix) {
		return nil, errors.Errorf("panel client API key must start with %q; got a key with prefix %q (keys swapped?)", clientKeyPrefix, keyPrefix(clientKey))
	}

	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid panel URL")
	}

	return &Client{
		baseURL:    normalized,
		appKey:     appKey,
		clientKey:  clientKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		logger:     logger,
	}, nil
}

func keyPrefix(key string) string {
	if i := strings.Index(key, "_"); i >= 0 {
		return key[:i+1]
	}
	return ""
}

// normalizeBaseURL prepends https:// when the scheme is missing and
// strips any trailing slash.
func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("panel URL is empty")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}

func (c *Client) do(ctx context.Context, key, method, path string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiting")
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "panel request %s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read panel response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("panel API error",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", string(data))
		return errors.Errorf("panel API error (%d): %s", resp.StatusCode, string(data))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrap(err, "decode panel response")
		}
	}

	return nil
}

// FindUserByEmail returns the panel user with the given email, or nil
// when none exists.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var res listResponse[User]
	path := "/api/application/users?filter%5Bemail%5D=" + url.QueryEscape(email)
	if err := c.do(ctx, c.appKey, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}

	for _, env := range res.Data {
		if strings.EqualFold(env.Attributes.Email, email) {
			user := env.Attributes
			return &user, nil
		}
	}
	return nil, nil
}

func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	var res objectEnvelope[User]
	if err := c.do(ctx, c.appKey, http.MethodPost, "/api/application/users", req, &res); err != nil {
		return nil, err
	}
	user := res.Attributes
	return &user, nil
}

func (c *Client) ListNodes(ctx context.Context) ([]Node, error) {
	var res listResponse[Node]
	if err := c.do(ctx, c.appKey, http.MethodGet, "/api/application/nodes", nil, &res); err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(res.Data))
	for _, env := range res.Data {
		nodes = append(nodes, env.Attributes)
	}
	return nodes, nil
}

// ListFreeAllocations returns the node's unassigned allocations.
func (c *Client) ListFreeAllocations(ctx context.Context, nodeID int64) ([]Allocation, error) {
	var res listResponse[Allocation]
	path := fmt.Sprintf("/api/application/nodes/%d/allocations?per_page=100", nodeID)
	if err := c.do(ctx, c.appKey, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}

	var free []Allocation
	for _, env := range res.Data {
		if !env.Attributes.Assigned {
			free = append(free, env.Attributes)
		}
	}
	return free, nil
}

func (c *Client) CreateServer(ctx context.Context, req CreateServerRequest) (*Server, error) {
	var res objectEnvelope[Server]
	if err := c.do(ctx, c.appKey, http.MethodPost, "/api/application/servers", req, &res); err != nil {
		return nil, err
	}
	server := res.Attributes
	return &server, nil
}

func (c *Client) SuspendServer(ctx context.Context, serverID int64) error {
	path := fmt.Sprintf("/api/application/servers/%d/suspend", serverID)
	return c.do(ctx, c.appKey, http.MethodPost, path, nil, nil)
}

func (c *Client) UnsuspendServer(ctx context.Context, serverID int64) error {
	path := fmt.Sprintf("/api/application/servers/%d/unsuspend", serverID)
	return c.do(ctx, c.appKey, http.MethodPost, path, nil, nil)
}

// ServerDetails fetches the client-scoped server view for the given
// public identifier. Limits in the response are MB.
func (c *Client) ServerDetails(ctx context.Context, identifier string) (*ServerDetails, error) {
	var res objectEnvelope[ServerDetails]
	path := "/api/client/servers/" + url.PathEscape(identifier)
	if err := c.do(ctx, c.clientKey, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	details := res.Attributes
	return &details, nil
}

// ServerResources fetches the live usage snapshot for the given public
// identifier.
func (c *Client) ServerResources(ctx context.Context, identifier string) (*ServerStats, error) {
	var res objectEnvelope[ServerStats]
	path := "/api/client/servers/" + url.PathEscape(identifier) + "/resources"
	if err := c.do(ctx, c.clientKey, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	stats := res.Attributes
	return &stats, nil
}
