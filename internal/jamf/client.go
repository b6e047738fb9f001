// Package jamf implements the Jamf Pro API client used by every job:
// token acquisition, collection enumeration and per-resource detail fetches.
package jamf

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/macadmin-tools/jamfkit/internal/config"
	"github.com/macadmin-tools/jamfkit/internal/resource"
)

const (
	// version is used in the User-Agent header.
	version = "0.1.0"

	// maxResponseBodySize limits API response bodies to 50MB to prevent memory exhaustion.
	maxResponseBodySize = 50 * 1024 * 1024

	// maxRedirects limits the number of HTTP redirects followed.
	maxRedirects = 5
)

var (
	// ErrAuth marks a failure to obtain a credential. It is fatal to a run.
	ErrAuth = errors.New("authentication failed")
	// ErrEnumeration marks a failure to list a collection. It is fatal to a run.
	ErrEnumeration = errors.New("enumeration failed")
)

// Client is the Jamf Pro API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       TokenProvider
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the hardened default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new Jamf Pro API client.
func NewClient(cfg config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	baseURL, err := NormalizeURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	var auth TokenProvider
	switch cfg.AuthMethod {
	case config.AuthBasic, "":
		if cfg.Username == "" || cfg.Password == "" {
			return nil, fmt.Errorf("username and password are required for basic auth")
		}
		auth = PasswordGrant{Username: cfg.Username, Password: cfg.Password}
	case config.AuthOAuth:
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, fmt.Errorf("client_id and client_secret are required for OAuth")
		}
		auth = ClientCredentials{ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret}
	default:
		return nil, fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
		auth:       auth,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NormalizeURL ensures HTTPS and strips trailing slashes.
func NormalizeURL(raw string) (string, error) {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return "", fmt.Errorf("instance URL is required")
	}
	if !strings.HasPrefix(u, "https://") {
		if strings.HasPrefix(u, "http://") {
			return "", fmt.Errorf("HTTP is not allowed; use HTTPS for instance URL")
		}
		u = "https://" + u
	}
	return u, nil
}

// newHTTPClient builds a client with TLS 1.2 minimum, same-host redirects
// only and a fixed timeout.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("exceeded maximum redirects (%d)", maxRedirects)
			}
			if len(via) > 0 && req.URL.Host != via[0].URL.Host {
				return fmt.Errorf("redirect to different host %q blocked", req.URL.Host)
			}
			return nil
		},
	}
}

// BaseURL returns the normalised instance URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authenticate obtains the run's credential. Any failure wraps ErrAuth.
func (c *Client) Authenticate(ctx context.Context) (resource.Credential, error) {
	cred, err := c.auth.Token(ctx, c.httpClient, c.baseURL)
	if err != nil {
		return resource.Credential{}, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if cred.ExpiresAt.IsZero() {
		c.logger.Info("Bearer token generated", "method", c.auth.Method())
	} else {
		c.logger.Info("Bearer token generated", "method", c.auth.Method(), "expires_at", cred.ExpiresAt.Format(time.RFC3339))
	}
	return cred, nil
}

// setHeaders applies the headers every API call carries.
func setHeaders(req *http.Request, cred resource.Credential) {
	req.Header.Set("User-Agent", "jamfkit/"+version)
	req.Header.Set("Accept", "application/json")
	if cred.Token != "" {
		req.Header.Set("Authorization", cred.Header())
	}
}

// get performs an authenticated GET and returns the status and body.
func (c *Client) get(ctx context.Context, path string, cred resource.Credential) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request for %s: %w", path, err)
	}
	setHeaders(req, cred)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := readLimitedBody(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response for %s: %w", path, err)
	}
	return resp.StatusCode, body, nil
}

// PostJSON performs an authenticated POST with a JSON body. Only the status
// code of the response is checked.
func (c *Client) PostJSON(ctx context.Context, path string, cred resource.Credential, payload interface{}) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("creating request for %s: %w", path, err)
	}
	setHeaders(req, cred)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, _ := readLimitedBody(resp.Body)
	if !isSuccess(resp.StatusCode) {
		return resp.StatusCode, fmt.Errorf("POST %s failed (status %d): %s", path, resp.StatusCode, sanitizeErrorBody(body))
	}
	return resp.StatusCode, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// readLimitedBody reads at most maxResponseBodySize bytes from the response body.
// Returns an error if the body exceeds the limit.
func readLimitedBody(body io.Reader) ([]byte, error) {
	limited := io.LimitReader(body, maxResponseBodySize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(data) > maxResponseBodySize {
		return nil, errors.New("response body exceeds maximum allowed size")
	}
	return data, nil
}

// sanitizeErrorBody truncates response bodies for error messages so that
// tokens or large payloads do not end up in logs.
func sanitizeErrorBody(body []byte) string {
	const maxErrorBodyLen = 256
	s := string(body)
	if len(s) > maxErrorBodyLen {
		s = s[:maxErrorBodyLen] + "...(truncated)"
	}
	return s
}
