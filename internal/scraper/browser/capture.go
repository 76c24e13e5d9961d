package browser

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// WaitForFrames waits for DOM stability on the page and, recursively, on all
// visible iframes. The portal still renders some dialogs into frames.
func WaitForFrames(page *rod.Page) {
	page.MustWaitDOMStable()

	iframes, err := page.Elements("iframe")
	if err != nil {
		return
	}

	for _, iframe := range iframes {
		if visible, _ := iframe.Visible(); !visible {
			continue
		}

		frame, err := iframe.Frame()
		if err != nil {
			continue
		}

		WaitForFrames(frame)
	}
}

// Capture is a snapshot of a live browser page, suitable for a fixture.
type Capture struct {
	URL         string
	HTML        string
	CookieNames []string
}

// CapturePage waits for the page to settle and snapshots its HTML. Cookie
// values are never captured, only their names.
func CapturePage(page *rod.Page) (*Capture, error) {
	WaitForFrames(page)

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page HTML: %w", err)
	}

	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("read page info: %w", err)
	}

	cookies, err := page.Cookies([]string{info.URL})
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}

	return &Capture{
		URL:         info.URL,
		HTML:        html,
		CookieNames: cookieNames(cookies),
	}, nil
}

func cookieNames(cookies []*proto.NetworkCookie) []string {
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if strings.TrimSpace(c.Name) != "" {
			names = append(names, c.Name)
		}
	}
	return names
}

// Page parses the captured HTML the way Client would have loaded it.
func (c *Capture) Page() (*Page, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("parse capture URL: %w", err)
	}
	return NewPage(strings.NewReader(c.HTML), u, http.StatusOK, nil)
}
