package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// RecordedRequest is what the Replayer saw of one request. Cookie values are
// kept out on purpose; tests assert on names only.
type RecordedRequest struct {
	Method      string
	URL         string
	Path        string
	Body        string
	CookieNames []string
	Header      http.Header
}

// Form parses Body as a urlencoded form.
func (r RecordedRequest) Form() url.Values {
	values, _ := url.ParseQuery(r.Body)
	return values
}

// Replayer serves recorded responses as an http.RoundTripper. Entries with the
// same method and URL are served in recorded order; the last one repeats.
type Replayer struct {
	mu sync.Mutex

	// exactMatches maps "METHOD URL" to the queue of recorded entries
	exactMatches map[string][]*HAREntry

	// pathMatches maps "METHOD scheme://host/path" to the first entry, used
	// when the query string differs
	pathMatches map[string]*HAREntry

	served   map[string]int
	requests []RecordedRequest

	verbose bool
	log     logrus.FieldLogger
}

type ReplayerOption func(*Replayer)

// WithVerbose enables logging of request matching.
func WithVerbose(enabled bool) ReplayerOption {
	return func(r *Replayer) {
		r.verbose = enabled
	}
}

func WithLogger(log logrus.FieldLogger) ReplayerOption {
	return func(r *Replayer) {
		r.log = log
	}
}

func NewReplayer(har *HARLog, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		exactMatches: make(map[string][]*HAREntry),
		pathMatches:  make(map[string]*HAREntry),
		served:       make(map[string]int),
		log:          logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	for i := range har.Entries {
		entry := &har.Entries[i]
		method := strings.ToUpper(entry.Request.Method)

		exactKey := method + " " + entry.Request.URL
		r.exactMatches[exactKey] = append(r.exactMatches[exactKey], entry)

		if pathKey, ok := pathKeyFor(method, entry.Request.URL); ok {
			if _, exists := r.pathMatches[pathKey]; !exists {
				r.pathMatches[pathKey] = entry
			}
		}
	}

	return r
}

func (r *Replayer) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.record(req, body)

	entry := r.match(req)
	if entry == nil {
		if r.verbose {
			r.log.Infof("[replayer] no match for: %s %s", req.Method, req.URL)
		}
		return notFound(req), nil
	}

	if r.verbose {
		r.log.Infof("[replayer] matched: %s %s -> %d", req.Method, req.URL, entry.Response.Status)
	}

	return recordedResponse(req, entry), nil
}

func (r *Replayer) match(req *http.Request) *HAREntry {
	exactKey := req.Method + " " + req.URL.String()
	if queue := r.exactMatches[exactKey]; len(queue) > 0 {
		n := r.served[exactKey]
		r.served[exactKey]++
		if n >= len(queue) {
			n = len(queue) - 1
		}
		return queue[n]
	}

	if pathKey, ok := pathKeyFor(req.Method, req.URL.String()); ok {
		return r.pathMatches[pathKey]
	}
	return nil
}

func (r *Replayer) record(req *http.Request, body []byte) {
	var names []string
	for _, c := range req.Cookies() {
		names = append(names, c.Name)
	}

	r.requests = append(r.requests, RecordedRequest{
		Method:      req.Method,
		URL:         req.URL.String(),
		Path:        req.URL.Path,
		Body:        string(body),
		CookieNames: names,
		Header:      req.Header.Clone(),
	})
}

// Requests returns every request seen so far, in order.
func (r *Replayer) Requests() []RecordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RecordedRequest, len(r.requests))
	copy(out, r.requests)
	return out
}

// Count returns how many requests hit path with method.
func (r *Replayer) Count(method, path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, req := range r.requests {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

// Stats returns statistics about the replayer's index.
func (r *Replayer) Stats() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return map[string]int{
		"exact_matches": len(r.exactMatches),
		"path_matches":  len(r.pathMatches),
		"requests":      len(r.requests),
	}
}

func recordedResponse(req *http.Request, entry *HAREntry) *http.Response {
	resp := entry.Response
	header := http.Header{}

	for _, h := range resp.Headers {
		name := strings.ToLower(h.Name)
		// The body is served decoded and re-measured.
		if name == "content-encoding" || name == "content-length" {
			continue
		}
		header.Add(h.Name, h.Value)
	}

	if header.Get("Content-Type") == "" && resp.Content.MimeType != "" {
		header.Set("Content-Type", resp.Content.MimeType)
	}

	body := resp.Content.Body()

	return &http.Response{
		Status:        http.StatusText(resp.Status),
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func notFound(req *http.Request) *http.Response {
	body := []byte(`{"error": "no recording found for URL"}`)

	return &http.Response{
		Status:        http.StatusText(http.StatusNotFound),
		StatusCode:    http.StatusNotFound,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func pathKeyFor(method, rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	return strings.ToUpper(method) + " " + parsed.Scheme + "://" + parsed.Host + parsed.Path, true
}
