package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultContentType = "application/json"
	maxErrorBody       = 256
)

// Client is a session-keeping HTTP client bound to one device.
type Client struct {
	baseURL     string
	contentType string
	http        *http.Client
}

// NewClient builds a client for cfg. Cookies set by the device are kept
// for the lifetime of the client.
func NewClient(cfg types.ConnectionConfig) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// AirMedia units ship with self-signed certificates
	if !cfg.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return NewClientWithHTTPClient(cfg, &http.Client{Timeout: timeout, Transport: transport})
}

// NewClientWithHTTPClient uses httpClient as is, adding a cookie jar when it has none.
func NewClientWithHTTPClient(cfg types.ConnectionConfig, httpClient *http.Client) (*Client, error) {
	base, err := BaseURL(cfg)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	return &Client{
		baseURL:     base,
		contentType: defaultContentType,
		http:        httpClient,
	}, nil
}

// BaseURL renders protocol://host[:port] for cfg.
func BaseURL(cfg types.ConnectionConfig) (string, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return "", fmt.Errorf("device host is required")
	}

	protocol := strings.ToLower(strings.TrimSpace(cfg.Protocol))
	if protocol == "" {
		protocol = "https"
	}
	if protocol != "https" && protocol != "http" {
		return "", fmt.Errorf("unsupported protocol %q", cfg.Protocol)
	}

	if cfg.Port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	}
	return protocol + "://" + host, nil
}

// Get issues a GET for uri relative to the device root.
func (c *Client) Get(ctx context.Context, uri string, headers http.Header) ([]byte, error) {
	return c.do(ctx, http.MethodGet, uri, "", headers)
}

// Post issues a POST with body for uri relative to the device root.
func (c *Client) Post(ctx context.Context, uri string, body string, headers http.Header) ([]byte, error) {
	return c.do(ctx, http.MethodPost, uri, body, headers)
}

func (c *Client) do(ctx context.Context, method, uri, body string, headers http.Header) ([]byte, error) {
	endpoint := c.baseURL + "/" + strings.TrimPrefix(uri, "/")

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &types.TransportError{Method: method, URI: uri, Err: err}
	}

	req.Header.Set("Content-Type", c.contentType)
	for key, values := range headers {
		// net/http takes the host from req.Host, never from the header map
		if strings.EqualFold(key, "Host") {
			if len(values) > 0 {
				req.Host = values[0]
			}
			continue
		}
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &types.TransportError{Method: method, URI: uri, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &types.TransportError{
			Method:     method,
			URI:        uri,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.TransportError{Method: method, URI: uri, StatusCode: resp.StatusCode, Err: err}
	}
	return data, nil
}
