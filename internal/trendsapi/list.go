package trendsapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// List performs an authenticated GET on a collection endpoint and returns
// the raw body for the grid layer to parse.
func (c *Client) List(ctx context.Context, token, env, endpoint string, params url.Values) ListOutcome {
	return c.raw(ctx, c.dataTimeout, http.MethodGet, env, endpoint, token, params, nil)
}

// Resource fetches a single record or one of its sub-resources, e.g.
// /execution/{id}/log.
func (c *Client) Resource(ctx context.Context, token, env, path string, params url.Values) ListOutcome {
	return c.raw(ctx, c.dataTimeout, http.MethodGet, env, path, token, params, nil)
}

// DockerLogs reads the container output of an execution. The API only
// answers it for admins.
func (c *Client) DockerLogs(ctx context.Context, token, env, executionID string) ListOutcome {
	path := "/execution/" + url.PathEscape(executionID) + "/docker-logs"
	return c.raw(ctx, c.logTimeout, http.MethodGet, env, path, token, nil, nil)
}

// Send issues a write (PATCH, POST) and returns the raw 2xx body.
func (c *Client) Send(ctx context.Context, token, env, method, path string, payload any) ListOutcome {
	return c.raw(ctx, c.dataTimeout, method, env, path, token, nil, payload)
}

func (c *Client) raw(ctx context.Context, timeout time.Duration, method, env, path, token string, params url.Values, payload any) ListOutcome {
	u := c.Environment(env).Base + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	resp, err := c.call(ctx, timeout, method, u, token, payload)
	if err != nil {
		return ListOutcome{Outcome: networkOutcome(err)}
	}
	if !resp.success() {
		return ListOutcome{Outcome: authOutcome(resp.status, resp.apiMessage())}
	}
	return ListOutcome{Outcome: okOutcome(resp.status), Body: resp.body}
}
