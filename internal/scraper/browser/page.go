package browser

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Page is a loaded and parsed HTML document. A new Page replaces the old one
// on every navigation.
type Page struct {
	Document   *goquery.Document
	URL        *url.URL
	StatusCode int
	// Cookies set by the final response of the load.
	Cookies []*http.Cookie
}

// parsePage decodes the body to UTF-8 according to its declared charset and
// parses it.
func parsePage(resp *http.Response) (*Page, error) {
	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}

	return NewPage(body, resp.Request.URL, resp.StatusCode, resp.Cookies())
}

// NewPage parses an already-fetched document located at u.
func NewPage(r io.Reader, u *url.URL, statusCode int, cookies []*http.Cookie) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	doc.Url = u

	return &Page{
		Document:   doc,
		URL:        u,
		StatusCode: statusCode,
		Cookies:    cookies,
	}, nil
}

// Base is the URL relative references on the page resolve against: the first
// <base href> if present, otherwise the page URL.
func (p *Page) Base() *url.URL {
	href, ok := p.Document.Find("base[href]").First().Attr("href")
	if !ok || p.URL == nil {
		return p.URL
	}

	base, err := p.URL.Parse(href)
	if err != nil {
		return p.URL
	}
	return base
}

// Resolve turns ref into an absolute URL relative to the page.
func (p *Page) Resolve(ref string) (*url.URL, error) {
	base := p.Base()
	if base == nil {
		return url.Parse(ref)
	}
	return base.Parse(ref)
}

// Path is the page URL's path, "/" when empty.
func (p *Page) Path() string {
	if p.URL == nil || p.URL.Path == "" {
		return "/"
	}
	return p.URL.Path
}
