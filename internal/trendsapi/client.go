package trendsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Skotchmaster/trends_dashboard/internal/config"
)

var ErrUnknownEnvironment = errors.New("unknown api environment")

const maxBodyBytes = 16 << 20

type Options struct {
	Environments       map[string]config.APIEnvironment
	DefaultEnvironment string
	AuthTimeout        time.Duration
	DataTimeout        time.Duration
	// LogTimeout bounds container log downloads, which are slow upstream.
	LogTimeout time.Duration
	HTTPClient *http.Client
}

// Client talks to the Trends.Earth REST API. Timeouts are applied per call
// through the request context.
type Client struct {
	envs        map[string]config.APIEnvironment
	defaultEnv  string
	authTimeout time.Duration
	dataTimeout time.Duration
	logTimeout  time.Duration
	httpClient  *http.Client
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 5 * time.Second
	}
	if opts.DataTimeout <= 0 {
		opts.DataTimeout = 10 * time.Second
	}
	if opts.LogTimeout <= 0 {
		opts.LogTimeout = 30 * time.Second
	}
	return &Client{
		envs:        opts.Environments,
		defaultEnv:  opts.DefaultEnvironment,
		authTimeout: opts.AuthTimeout,
		dataTimeout: opts.DataTimeout,
		logTimeout:  opts.LogTimeout,
		httpClient:  hc,
	}
}

// Environment resolves a name, falling back to the default environment.
func (c *Client) Environment(name string) config.APIEnvironment {
	if env, ok := c.envs[name]; ok {
		return env
	}
	return c.envs[c.defaultEnv]
}

func (c *Client) Lookup(name string) (config.APIEnvironment, error) {
	env, ok := c.envs[name]
	if !ok {
		return config.APIEnvironment{}, fmt.Errorf("%w: %q", ErrUnknownEnvironment, name)
	}
	return env, nil
}

func (c *Client) DefaultEnvironment() string { return c.defaultEnv }

type response struct {
	status int
	body   []byte
}

func (r response) success() bool { return r.status >= 200 && r.status < 300 }

// apiMessage extracts {"msg": "..."} from an error body.
func (r response) apiMessage() string {
	var payload struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(r.body, &payload); err != nil {
		return ""
	}
	return payload.Msg
}

func (c *Client) call(ctx context.Context, timeout time.Duration, method, url, token string, payload any) (response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return response{}, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("read body: %w", err)
	}
	return response{status: resp.StatusCode, body: b}, nil
}
