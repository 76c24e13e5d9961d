package testutil

import (
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayer_ServesQueuedEntriesInOrder(t *testing.T) {
	har := (&HARLog{}).Add(
		HTMLEntry(http.MethodGet, "https://www.ksktest.de/a.html", "<p>first</p>", "s=1"),
		HTMLEntry(http.MethodGet, "https://www.ksktest.de/a.html", "<p>second</p>"),
		HTMLEntry(http.MethodPost, "https://www.ksktest.de/a.html", "<p>posted</p>"),
	)
	replayer := NewReplayer(har)
	client := &http.Client{Transport: replayer}

	bodies := []string{}
	for i := 0; i < 3; i++ {
		resp, err := client.Get("https://www.ksktest.de/a.html")
		require.NoError(t, err)
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		bodies = append(bodies, string(data))
	}
	assert.Equal(t, []string{"<p>first</p>", "<p>second</p>", "<p>second</p>"}, bodies)

	resp, err := client.PostForm("https://www.ksktest.de/a.html", url.Values{"x": {"1"}})
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "<p>posted</p>", string(data))

	assert.Equal(t, 3, replayer.Count(http.MethodGet, "/a.html"))
	assert.Equal(t, 1, replayer.Count(http.MethodPost, "/a.html"))

	requests := replayer.Requests()
	require.Len(t, requests, 4)
	assert.Equal(t, "1", requests[3].Form().Get("x"))
}

func TestReplayer_PathFallbackAndNotFound(t *testing.T) {
	har := (&HARLog{}).Add(HTMLEntry(http.MethodGet, "https://www.ksktest.de/p.html?v=1", "<p>p</p>"))
	client := &http.Client{Transport: NewReplayer(har)}

	resp, err := client.Get("https://www.ksktest.de/p.html?v=2")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get("https://www.ksktest.de/missing.html")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReplayer_FollowsRedirects(t *testing.T) {
	har := (&HARLog{}).Add(
		RedirectEntry(http.MethodGet, "https://ksktest.de/", "https://www.ksktest.de/de/home.html", "a=1"),
		HTMLEntry(http.MethodGet, "https://www.ksktest.de/de/home.html", "<p>home</p>"),
	)
	replayer := NewReplayer(har)
	client := &http.Client{Transport: replayer}

	resp, err := client.Get("https://ksktest.de/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "/de/home.html", resp.Request.URL.Path)
	requests := replayer.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, "https://ksktest.de/", requests[0].URL)
}

func TestBinaryEntry_RoundTripsBytes(t *testing.T) {
	body := []byte("Betrag;W\xe4hrung\n")
	har := (&HARLog{}).Add(BinaryEntry(http.MethodPost, "https://www.ksktest.de/export", "text/csv", body))
	client := &http.Client{Transport: NewReplayer(har)}

	resp, err := client.Post("https://www.ksktest.de/export", "text/plain", strings.NewReader(""))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, body, data)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
}

func TestSanitizer_RedactsSecretsKeepsCookieNames(t *testing.T) {
	har := &HARLog{Entries: []HAREntry{{
		Request: HARRequest{
			Method: http.MethodPost,
			URL:    "https://www.ksktest.de/de/home.html?n=true&sessionId=abc",
			Headers: []HARHeader{
				{Name: "Cookie", Value: "JSESSIONID=s3cr3t; other=v"},
				{Name: "Accept", Value: "text/html"},
			},
			Body: "Xq7Lp=max&Jk2Pz=12345&next=Anmelden",
		},
		Response: HARResponse{
			Status: http.StatusFound,
			Headers: []HARHeader{
				{Name: "Set-Cookie", Value: "JSESSIONID=n3w; Path=/; Secure"},
				{Name: "Location", Value: "/de/home/onlinebanking/uebersicht.html"},
			},
		},
	}}}

	out := NewSanitizer("Xq7Lp", "Jk2Pz").Sanitize(har)
	entry := out.Entries[0]

	assert.Contains(t, entry.Request.URL, "sessionId=REDACTED")
	assert.Contains(t, entry.Request.URL, "n=true")
	assert.Equal(t, "JSESSIONID=REDACTED; other=REDACTED", entry.Request.Headers[0].Value)
	assert.Equal(t, "text/html", entry.Request.Headers[1].Value)
	assert.Equal(t, "Xq7Lp=REDACTED&Jk2Pz=REDACTED&next=Anmelden", entry.Request.Body)
	assert.Equal(t, "JSESSIONID=REDACTED; Path=/; Secure", entry.Response.Headers[0].Value)
	assert.Equal(t, "/de/home/onlinebanking/uebersicht.html", entry.Response.Headers[1].Value)

	// The input is left untouched.
	assert.Equal(t, "Xq7Lp=max&Jk2Pz=12345&next=Anmelden", har.Entries[0].Request.Body)
}

func TestSanitizer_JSONBody(t *testing.T) {
	har := &HARLog{Entries: []HAREntry{{
		Request: HARRequest{Method: http.MethodPost, URL: "https://www.ksktest.de/api", Body: `{"pin":"1234","user":"max"}`},
	}}}

	out := SanitizeHAR(har)

	assert.Equal(t, `{"pin": "REDACTED","user":"max"}`, out.Entries[0].Request.Body)
}

func TestSaveAndLoadHAR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.har.json")
	har := (&HARLog{}).Add(HTMLEntry(http.MethodGet, "https://www.ksktest.de/", "<p>x</p>"))

	require.NoError(t, SaveHAR(path, har))
	loaded := MustLoadHAR(t, path)

	assert.Equal(t, har, loaded)
}
