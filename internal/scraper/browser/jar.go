package browser

import (
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Jar accumulates cookies by name for a single site. New values overlay old
// ones; nothing is ever removed, so the jar only grows over a session.
//
// Jar implements http.CookieJar and only hands cookies to URLs within the
// registrable domain it was created for. A jar of an https-only client hands
// nothing to plain-http URLs.
type Jar struct {
	mu        sync.Mutex
	domain    string
	values    map[string]string
	httpsOnly bool
}

func NewJar(host string) *Jar {
	host = strings.ToLower(host)

	domain := host
	if net.ParseIP(host) == nil {
		if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			domain = d
		}
	}

	return &Jar{
		domain: domain,
		values: make(map[string]string),
	}
}

// Domain is the registrable domain the jar is scoped to.
func (j *Jar) Domain() string {
	return j.domain
}

// Owns reports whether u belongs to the jar's domain.
func (j *Jar) Owns(u *url.URL) bool {
	if u == nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == j.domain || strings.HasSuffix(host, "."+j.domain)
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if !j.Owns(u) {
		return
	}
	j.Merge(cookies)
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	if !j.Owns(u) || (j.httpsOnly && u.Scheme != "https") {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	cookies := make([]*http.Cookie, 0, len(j.values))
	for _, name := range j.sortedNames() {
		cookies = append(cookies, &http.Cookie{Name: name, Value: j.values[name]})
	}
	return cookies
}

// Merge overlays cookies onto the jar.
func (j *Jar) Merge(cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		j.values[c.Name] = c.Value
	}
}

// Value returns the current value of the named cookie.
func (j *Jar) Value(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	v, ok := j.values[name]
	return v, ok
}

// Names lists the cookie names in the jar, sorted. Values are deliberately not
// exposed in bulk so they stay out of logs.
func (j *Jar) Names() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.sortedNames()
}

func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	return len(j.values)
}

func (j *Jar) sortedNames() []string {
	names := make([]string, 0, len(j.values))
	for name := range j.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
