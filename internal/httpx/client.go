package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	contentTypeJSON = "application/json"
	acceptEncoding  = "br, gzip"
)

// Options configures an authenticated Client.
//
// Authentication is picked in this order: client credentials (ClientID + TokenURL),
// a static AccessToken, or none.
type Options struct {
	Timeout time.Duration
	Retry   RetryConfig

	// RequestsPerSecond <= 0 disables rate limiting.
	RequestsPerSecond float64
	Burst             int

	AccessToken  string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string

	UserAgent string

	// Logger receives retry notices at debug level. Nil disables them.
	Logger *zap.Logger
}

// Client executes JSON requests against the platform with auth, rate limiting and retries.
type Client struct {
	HTTP      *http.Client
	Limiter   *rate.Limiter
	Retry     RetryConfig
	UserAgent string

	log *zap.Logger
}

// New builds a Client. ctx is only used by the client credentials token source
// to fetch tokens; it should outlive the client.
func New(ctx context.Context, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	base := &http.Client{Timeout: opts.Timeout, Transport: tr}

	var hc *http.Client
	switch {
	case opts.ClientID != "" && opts.TokenURL != "":
		cc := clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			Scopes:       opts.Scopes,
		}
		hc = cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
		hc.Timeout = opts.Timeout
	case opts.AccessToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken, TokenType: "Bearer"})
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: &oauth2.Transport{Source: ts, Base: tr},
		}
	default:
		hc = base
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		HTTP:      hc,
		Limiter:   limiter,
		Retry:     opts.Retry,
		UserAgent: opts.UserAgent,
		log:       log,
	}
}

// GetJSON issues a GET and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	return c.doJSON(ctx, http.MethodGet, url, nil, out, c.Retry)
}

// PostJSON issues a POST exactly once; POSTs are not safe to replay.
func (c *Client) PostJSON(ctx context.Context, url string, in any, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpx: marshal body: %w", err)
		}
		payload = b
	}
	return c.doJSON(ctx, http.MethodPost, url, payload, out, NoRetry())
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload []byte, out any, cfg RetryConfig) error {
	cfg.OnRetry = func(attempt int, err error) {
		c.log.Debug("retrying platform request",
			zap.String("method", method), zap.String("url", url),
			zap.Int("attempt", attempt), zap.Error(err))
	}
	_, body, err := DoWithRetry(ctx, c.HTTP, func(ctx context.Context) (*http.Request, error) {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		r, err := http.NewRequestWithContext(ctx, method, url, rdr)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			r.Header.Set("Content-Type", contentTypeJSON)
		}
		r.Header.Set("Accept", contentTypeJSON)
		r.Header.Set("Accept-Encoding", acceptEncoding)
		if c.UserAgent != "" {
			r.Header.Set("User-Agent", c.UserAgent)
		}
		return r, nil
	}, cfg)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return DecodeJSON(body, out)
}
