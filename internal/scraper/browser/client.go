// Package browser provides the scripted-browser primitives the scrapers build
// on: page loading with a persistent cookie jar, faithful form submission, and
// Rod helpers for capturing fixtures from a real browser.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	maxRedirects = 10
)

var (
	ErrOffDomain      = errors.New("request leaves the site's domain")
	ErrInsecureScheme = errors.New("request is not sent over https")
)

// InsecureSchemeError names the refused plain-text URL.
type InsecureSchemeError struct {
	URL *url.URL
}

func (e *InsecureSchemeError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInsecureScheme, e.URL.Redacted())
}

func (e *InsecureSchemeError) Unwrap() error {
	return ErrInsecureScheme
}

// OffDomainError names the refused URL.
type OffDomainError struct {
	URL *url.URL
}

func (e *OffDomainError) Error() string {
	return fmt.Sprintf("%v: %s", ErrOffDomain, e.URL)
}

func (e *OffDomainError) Unwrap() error {
	return ErrOffDomain
}

// StatusError is returned for responses with a 4xx or 5xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Client loads pages for one site. Every request, including each redirect hop,
// carries the client's Jar, and redirects off the jar's domain are refused.
type Client struct {
	httpClient *http.Client
	jar        *Jar
	header     http.Header
	httpsOnly  bool
}

type ClientOption func(*Client)

// WithTransport replaces the network transport, e.g. with a HAR replayer.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.header.Set("User-Agent", ua)
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// WithHTTPSOnly refuses plain-http requests and redirects, and keeps the jar
// from handing cookies to them.
func WithHTTPSOnly() ClientOption {
	return func(c *Client) {
		c.httpsOnly = true
		c.jar.httpsOnly = true
	}
}

func NewClient(host string, opts ...ClientOption) *Client {
	jar := NewJar(host)

	c := &Client{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: DefaultTimeout,
		},
		jar:    jar,
		header: http.Header{},
	}
	c.header.Set("User-Agent", DefaultUserAgent)
	c.httpClient.CheckRedirect = c.checkRedirect

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Jar() *Jar {
	return c.jar
}

// Get loads u as a page.
func (c *Client) Get(ctx context.Context, u *url.URL) (*Page, error) {
	return c.Load(ctx, &FormRequest{Method: http.MethodGet, URL: u})
}

// Load executes the request, follows redirects and parses the final response.
func (c *Client) Load(ctx context.Context, fr *FormRequest) (*Page, error) {
	resp, err := c.do(ctx, fr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	page, err := parsePage(resp)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", resp.Request.URL, err)
	}
	return page, nil
}

// Stream executes the request and hands back the raw response body, which the
// caller must close. Cookies of the response still land in the jar.
func (c *Client) Stream(ctx context.Context, fr *FormRequest) (io.ReadCloser, error) {
	resp, err := c.do(ctx, fr)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, fr *FormRequest) (*http.Response, error) {
	if !c.jar.Owns(fr.URL) {
		return nil, &OffDomainError{URL: fr.URL}
	}
	if c.httpsOnly && fr.URL.Scheme != "https" {
		return nil, &InsecureSchemeError{URL: fr.URL}
	}

	req, err := fr.NewRequest(ctx)
	if err != nil {
		return nil, err
	}
	for key, values := range c.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", fr.Method, fr.URL, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &StatusError{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode}
	}

	return resp, nil
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if !c.jar.Owns(req.URL) {
		return &OffDomainError{URL: req.URL}
	}
	if c.httpsOnly && req.URL.Scheme != "https" {
		return &InsecureSchemeError{URL: req.URL}
	}
	return nil
}
