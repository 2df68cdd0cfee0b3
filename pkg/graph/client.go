package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultBaseURL is the Microsoft Graph v1.0 endpoint
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	defaultScope   = "https://graph.microsoft.com/.default"
	defaultTimeout = 15 * time.Second

	// maxPages bounds nextLink chains so a misbehaving server cannot loop forever
	maxPages = 100
)

var (
	// ErrNotConfigured is returned when required Graph settings are missing
	ErrNotConfigured = errors.New("microsoft graph is not configured")

	// ErrForeignNextLink is returned when a page links outside the Graph endpoint
	ErrForeignNextLink = errors.New("graph nextLink points outside the configured endpoint")
)

// Config holds app-only Graph credentials
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	BaseURL      string // defaults to DefaultBaseURL
	TokenURL     string // defaults to the tenant's v2.0 token endpoint
}

// StatusError is a non-2xx Graph response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graph request failed with status %d: %s", e.StatusCode, e.Body)
}

// Client issues authenticated Graph requests
type Client struct {
	http    *http.Client
	baseURL string
	log     *logrus.Logger
}

// NewClient builds a client that obtains app-only tokens with the client
// credentials grant. Tokens are cached and refreshed by the token source.
func NewClient(ctx context.Context, cfg Config, log *logrus.Logger) (*Client, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{defaultScope},
	}

	httpClient := cc.Client(ctx)
	httpClient.Timeout = defaultTimeout
	// Client spans per Graph call; a no-op until tracing is initialized
	httpClient.Transport = otelhttp.NewTransport(httpClient.Transport)

	return NewClientWithHTTP(httpClient, cfg.BaseURL, log), nil
}

// NewClientWithHTTP wraps an already authenticated HTTP client
func NewClientWithHTTP(httpClient *http.Client, baseURL string, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.New()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// page is one collection response
type page struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// getAll fetches a collection and every following page, handing each item to fn
func (c *Client) getAll(ctx context.Context, path string, fn func(json.RawMessage) error) error {
	next := c.baseURL + path

	for pages := 0; next != ""; pages++ {
		if pages >= maxPages {
			return fmt.Errorf("graph collection %s exceeded %d pages", path, maxPages)
		}

		var p page
		if err := c.get(ctx, next, &p); err != nil {
			return err
		}

		for _, item := range p.Value {
			if err := fn(item); err != nil {
				return err
			}
		}
		if p.NextLink != "" {
			if err := c.checkNextLink(p.NextLink); err != nil {
				return err
			}
		}
		next = p.NextLink
	}

	return nil
}

// checkNextLink keeps the client's token on the configured scheme and host
func (c *Client) checkNextLink(link string) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid graph base URL: %w", err)
	}
	next, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid graph nextLink: %w", err)
	}
	if !strings.EqualFold(next.Scheme, base.Scheme) || !strings.EqualFold(next.Host, base.Host) {
		return fmt.Errorf("%w: %s://%s", ErrForeignNextLink, next.Scheme, next.Host)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build graph request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	c.log.WithFields(logrus.Fields{
		"url":         req.URL.Path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Graph request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode graph response: %w", err)
	}
	return nil
}
