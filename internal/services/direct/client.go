// Package direct searches LinkedIn over plain HTTP using a captured li_at
// session cookie, without a browser.
package direct

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the site origin
	DefaultBaseURL = "https://www.linkedin.com"

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default request rate (requests per second)
	DefaultRateLimit = 1.0

	// DefaultUserAgent mimics a desktop Chrome
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	sessionCookie = "li_at"
	csrfCookie    = "JSESSIONID"
	csrfKeyPrefix = "linkedin_csrf:"
)

// Client implements interfaces.DirectClient. It is safe for concurrent use.
type Client struct {
	baseURL      string
	userAgent    string
	timeout      time.Duration
	transport    http.RoundTripper
	logger       arbor.ILogger
	limiter      *rate.Limiter
	retry        *RetryPolicy
	kv           interfaces.KeyValueStorage
	csrfTTL      time.Duration
	maxHTMLPages int

	mu         sync.RWMutex
	token      string
	csrf       string
	jar        http.CookieJar
	httpClient *http.Client
	noRedirect *http.Client
}

var _ interfaces.DirectClient = (*Client)(nil)

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom site origin
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTransport sets the HTTP transport shared by every rebuilt client
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithUserAgent overrides the desktop user agent
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithLogger sets a logger
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the outbound request rate
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// WithRetryPolicy replaces the retry policy
func WithRetryPolicy(policy *RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithCSRFCache keeps captured anti-forgery tokens in kv for ttl
func WithCSRFCache(kv interfaces.KeyValueStorage, ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.kv = kv
		c.csrfTTL = ttl
	}
}

// WithMaxHTMLPages bounds the HTML search fallback
func WithMaxHTMLPages(pages int) ClientOption {
	return func(c *Client) {
		if pages > 0 {
			c.maxHTMLPages = pages
		}
	}
}

// NewClient creates a client with no session token
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		userAgent:    DefaultUserAgent,
		timeout:      DefaultTimeout,
		transport:    http.DefaultTransport,
		logger:       arbor.NewLogger(),
		limiter:      rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		retry:        NewRetryPolicy(2),
		maxHTMLPages: 5,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.rebuildLocked()
	return c
}

// rebuildLocked replaces the cookie jar and HTTP clients for the current token
func (c *Client) rebuildLocked() {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}

	jar, _ := cookiejar.New(nil)
	if c.token != "" {
		if base, err := url.Parse(c.baseURL); err == nil {
			jar.SetCookies(base, []*http.Cookie{{Name: sessionCookie, Value: c.token, Path: "/"}})
		}
	}

	c.jar = jar
	c.httpClient = &http.Client{
		Transport: c.transport,
		Jar:       jar,
		Timeout:   c.timeout,
	}
	c.noRedirect = &http.Client{
		Transport: c.transport,
		Jar:       jar,
		Timeout:   c.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// SetSessionToken installs a new li_at token, dropping cookies and the
// anti-forgery token of the previous one
func (c *Client) SetSessionToken(token string) {
	token = strings.TrimSpace(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	if token == c.token {
		return
	}
	c.token = token
	c.csrf = ""
	c.rebuildLocked()

	c.logger.Info().Int("cookie_length", len(token)).Msg("Direct client session token set")
}

// HasSessionToken reports whether a token is installed
func (c *Client) HasSessionToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// Close releases idle connections
func (c *Client) Close() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.httpClient.CloseIdleConnections()
}

func (c *Client) clients() (*http.Client, *http.Client, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.httpClient, c.noRedirect, c.token
}

type response struct {
	status   int
	header   http.Header
	cookies  []*http.Cookie
	body     []byte
	finalURL *url.URL
}

// get performs a paced GET with retries
func (c *Client) get(ctx context.Context, client *http.Client, target string, headers http.Header) (*response, error) {
	var result *response

	_, err := c.retry.ExecuteWithRetry(ctx, c.logger, func() (int, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}
		for key, values := range headers {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			return 0, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
		}

		result = &response{
			status:   resp.StatusCode,
			header:   resp.Header,
			cookies:  resp.Cookies(),
			body:     body,
			finalURL: resp.Request.URL,
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) pageHeaders(referer string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", c.userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")
	h.Set("Sec-Ch-Ua", `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`)
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Upgrade-Insecure-Requests", "1")
	if referer != "" {
		h.Set("Referer", referer)
	}
	return h
}

func (c *Client) apiHeaders(csrf string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", c.userAgent)
	h.Set("Accept", "application/vnd.linkedin.normalized+json+2.1")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("X-Li-Lang", "en_US")
	h.Set("X-RestLi-Protocol-Version", "2.0.0")
	h.Set("X-Li-Track", `{"clientVersion":"1.13.0","mpVersion":"1.13.0","osName":"web","timezoneOffset":2,"timezone":"Europe/Paris","deviceFormFactor":"DESKTOP","mpName":"voyager-web","displayDensity":1,"displayWidth":1920,"displayHeight":1080}`)
	if csrf != "" {
		h.Set("Csrf-Token", csrf)
	}
	return h
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// ValidateSession probes the feed without following redirects. A 200 means
// the token is live; a redirect to the login wall means it is not.
func (c *Client) ValidateSession(ctx context.Context) (bool, error) {
	httpClient, noRedirect, token := c.clients()
	if token == "" {
		c.logger.Warn().Msg("No session token set")
		return false, nil
	}

	feedURL := c.baseURL + "/feed/"
	resp, err := c.get(ctx, noRedirect, feedURL, c.pageHeaders(""))
	if err != nil {
		c.logger.Error().Err(err).Msg("Session validation request failed")
		return false, fmt.Errorf("%w: validate session: %v", models.ErrConnection, err)
	}

	location := resp.header.Get("Location")
	c.logger.Info().Int("status", resp.status).Str("location", location).Msg("Direct session validation")

	switch {
	case resp.status == http.StatusOK:
		c.captureCSRF(ctx, token, resp)
		return true, nil

	case isRedirect(resp.status):
		lower := strings.ToLower(location)
		if strings.Contains(lower, "login") || strings.Contains(lower, "authwall") {
			c.logger.Warn().Msg("Session invalid - redirected to login")
			return false, nil
		}

		followed, err := c.get(ctx, httpClient, feedURL, c.pageHeaders(""))
		if err != nil {
			return false, nil
		}
		if followed.status == http.StatusOK && !strings.Contains(strings.ToLower(followed.finalURL.Path), "login") {
			c.captureCSRF(ctx, token, followed)
			return true, nil
		}
		return false, nil
	}

	return false, nil
}

func csrfCacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return csrfKeyPrefix + hex.EncodeToString(sum[:8])
}

// captureCSRF records the anti-forgery token carried by resp, if any
func (c *Client) captureCSRF(ctx context.Context, token string, resp *response) string {
	csrf := ""
	for _, cookie := range resp.cookies {
		if cookie.Name == csrfCookie {
			csrf = strings.Trim(cookie.Value, `"`)
			break
		}
	}

	if csrf == "" {
		c.mu.RLock()
		jar := c.jar
		c.mu.RUnlock()
		if base, err := url.Parse(c.baseURL); err == nil {
			for _, cookie := range jar.Cookies(base) {
				if cookie.Name == csrfCookie {
					csrf = strings.Trim(cookie.Value, `"`)
					break
				}
			}
		}
	}

	if csrf == "" {
		csrf = csrfFromHTML(resp.body)
	}

	if csrf == "" {
		c.logger.Warn().Msg("Could not extract CSRF token from any source")
		return ""
	}

	c.mu.Lock()
	if c.token == token {
		c.csrf = csrf
	}
	c.mu.Unlock()

	if c.kv != nil {
		if err := c.kv.Set(ctx, csrfCacheKey(token), csrf, c.csrfTTL); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache CSRF token")
		}
	}
	return csrf
}

// restoreCSRFCookieLocked puts the JSESSIONID cookie matching csrf back into
// a jar rebuilt since the token was captured. The API rejects a Csrf-Token
// header without it.
func (c *Client) restoreCSRFCookieLocked(csrf string) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return
	}
	for _, cookie := range c.jar.Cookies(base) {
		if cookie.Name == csrfCookie {
			return
		}
	}
	c.jar.SetCookies(base, []*http.Cookie{{Name: csrfCookie, Value: csrf, Quoted: true, Path: "/"}})
}

// ensureCSRF returns the anti-forgery token, from memory, the cache or a
// feed fetch, in that order
func (c *Client) ensureCSRF(ctx context.Context) string {
	c.mu.RLock()
	token, csrf, httpClient := c.token, c.csrf, c.httpClient
	c.mu.RUnlock()
	if csrf != "" {
		return csrf
	}

	if c.kv != nil {
		cached, err := c.kv.Get(ctx, csrfCacheKey(token))
		if err == nil && cached != "" {
			c.mu.Lock()
			if c.token == token {
				c.csrf = cached
				c.restoreCSRFCookieLocked(cached)
			}
			c.mu.Unlock()
			return cached
		}
		if err != nil && !errors.Is(err, interfaces.ErrKeyNotFound) {
			c.logger.Warn().Err(err).Msg("Failed to read cached CSRF token")
		}
	}

	c.logger.Info().Msg("Fetching CSRF token")
	resp, err := c.get(ctx, httpClient, c.baseURL+"/feed/", c.pageHeaders(""))
	if err != nil {
		c.logger.Warn().Err(err).Msg("Feed fetch for CSRF token failed")
		return ""
	}
	return c.captureCSRF(ctx, token, resp)
}
