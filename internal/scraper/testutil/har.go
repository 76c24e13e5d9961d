// Package testutil provides testing utilities for the scraper packages:
// HAR recordings, a replaying http.RoundTripper and a sanitizer that strips
// credentials and session material before recordings are committed.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
)

// HARLog is the simplified HAR (HTTP Archive) format the recordings are
// stored in.
type HARLog struct {
	Entries []HAREntry `json:"entries"`
}

type HAREntry struct {
	Request  HARRequest  `json:"request"`
	Response HARResponse `json:"response"`
}

type HARRequest struct {
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Headers []HARHeader `json:"headers,omitempty"`
	Body    string      `json:"body,omitempty"`
}

type HARResponse struct {
	Status  int         `json:"status"`
	Headers []HARHeader `json:"headers,omitempty"`
	Content HARContent  `json:"content"`
}

type HARHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type HARContent struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`               // Plain text or base64 encoded
	Encoding string `json:"encoding,omitempty"` // "base64" if binary content
	Size     int    `json:"size,omitempty"`
}

// Body returns the decoded response body.
func (c HARContent) Body() []byte {
	if c.Encoding == "base64" {
		if data, err := base64.StdEncoding.DecodeString(c.Text); err == nil {
			return data
		}
	}
	return []byte(c.Text)
}

// Add appends entries and returns the log for chaining.
func (h *HARLog) Add(entries ...HAREntry) *HARLog {
	h.Entries = append(h.Entries, entries...)
	return h
}

// HTMLEntry records a 200 text/html response. Cookies are "name=value" pairs
// sent as Set-Cookie headers.
func HTMLEntry(method, rawURL, html string, cookies ...string) HAREntry {
	return HAREntry{
		Request: HARRequest{Method: method, URL: rawURL},
		Response: HARResponse{
			Status:  http.StatusOK,
			Headers: setCookieHeaders(cookies),
			Content: HARContent{MimeType: "text/html; charset=utf-8", Text: html, Size: len(html)},
		},
	}
}

// RedirectEntry records a 302 to location.
func RedirectEntry(method, rawURL, location string, cookies ...string) HAREntry {
	headers := append(setCookieHeaders(cookies), HARHeader{Name: "Location", Value: location})
	return HAREntry{
		Request:  HARRequest{Method: method, URL: rawURL},
		Response: HARResponse{Status: http.StatusFound, Headers: headers},
	}
}

// BinaryEntry records a 200 response with an arbitrary, possibly non-UTF-8
// body, stored base64 encoded.
func BinaryEntry(method, rawURL, mimeType string, body []byte, cookies ...string) HAREntry {
	return HAREntry{
		Request: HARRequest{Method: method, URL: rawURL},
		Response: HARResponse{
			Status:  http.StatusOK,
			Headers: setCookieHeaders(cookies),
			Content: HARContent{
				MimeType: mimeType,
				Text:     base64.StdEncoding.EncodeToString(body),
				Encoding: "base64",
				Size:     len(body),
			},
		},
	}
}

func setCookieHeaders(cookies []string) []HARHeader {
	var headers []HARHeader
	for _, c := range cookies {
		headers = append(headers, HARHeader{Name: "Set-Cookie", Value: c + "; Path=/"})
	}
	return headers
}

// chromeHAR is the HAR 1.2 format exported by Chrome DevTools: entries are
// wrapped in a "log" object and request bodies live in postData.
type chromeHAR struct {
	Log struct {
		Entries []struct {
			Request struct {
				Method   string      `json:"method"`
				URL      string      `json:"url"`
				Headers  []HARHeader `json:"headers,omitempty"`
				PostData *struct {
					Text string `json:"text"`
				} `json:"postData,omitempty"`
			} `json:"request"`
			Response HARResponse `json:"response"`
		} `json:"entries"`
	} `json:"log"`
}

// LoadHAR reads a HAR file, accepting both Chrome's HAR 1.2 export and the
// simplified format.
func LoadHAR(path string) (*HARLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read HAR file: %w", err)
	}

	var chrome chromeHAR
	if err := json.Unmarshal(data, &chrome); err == nil && len(chrome.Log.Entries) > 0 {
		har := &HARLog{Entries: make([]HAREntry, 0, len(chrome.Log.Entries))}
		for _, ce := range chrome.Log.Entries {
			var body string
			if ce.Request.PostData != nil {
				body = ce.Request.PostData.Text
			}
			har.Entries = append(har.Entries, HAREntry{
				Request: HARRequest{
					Method:  ce.Request.Method,
					URL:     ce.Request.URL,
					Headers: ce.Request.Headers,
					Body:    body,
				},
				Response: ce.Response,
			})
		}
		return har, nil
	}

	var har HARLog
	if err := json.Unmarshal(data, &har); err != nil {
		return nil, fmt.Errorf("parse HAR JSON: %w", err)
	}

	return &har, nil
}

// SaveHAR writes a HAR log with pretty formatting.
func SaveHAR(path string, har *HARLog) error {
	data, err := json.MarshalIndent(har, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal HAR: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write HAR file: %w", err)
	}

	return nil
}

// MustLoadHAR loads a HAR file and fails the test if it cannot be loaded.
func MustLoadHAR(t *testing.T, path string) *HARLog {
	t.Helper()

	har, err := LoadHAR(path)
	if err != nil {
		t.Fatalf("failed to load HAR file %s: %v", path, err)
	}

	return har
}
