package testutil

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "REDACTED"

// sensitiveKeyPatterns match form field, query parameter and JSON keys whose
// values are secrets.
var sensitiveKeyPatterns = compileAll(
	`(?i)pin`,
	`(?i)passw`,
	`(?i)kennwort`,
	`(?i)secret`,
	`(?i)token`,
	`(?i)session`,
	`(?i)jsessionid`,
	`(?i)auth`,
	`(?i)^tan`,
	`(?i)anmeldename`,
	`(?i)legitimation`,
	`(?i)credential`,
)

// sensitiveHeaders are redacted outright.
var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"x-csrf-token":        true,
	"x-xsrf-token":        true,
}

// Sanitizer redacts secrets from recordings. The portal randomizes the names
// of its login inputs, so those names have to be supplied as extra keys.
type Sanitizer struct {
	extraKeys map[string]bool
}

func NewSanitizer(extraKeys ...string) *Sanitizer {
	s := &Sanitizer{extraKeys: make(map[string]bool, len(extraKeys))}
	for _, k := range extraKeys {
		s.extraKeys[k] = true
	}
	return s
}

// SanitizeHAR redacts sensitive data with the default key set.
func SanitizeHAR(har *HARLog) *HARLog {
	return NewSanitizer().Sanitize(har)
}

// Sanitize returns a copy of har with secrets replaced. Cookie names survive
// so a sanitized recording still replays; only their values are replaced.
func (s *Sanitizer) Sanitize(har *HARLog) *HARLog {
	out := &HARLog{Entries: make([]HAREntry, len(har.Entries))}

	for i, entry := range har.Entries {
		out.Entries[i] = HAREntry{
			Request: HARRequest{
				Method:  entry.Request.Method,
				URL:     s.sanitizeURL(entry.Request.URL),
				Headers: s.sanitizeHeaders(entry.Request.Headers),
				Body:    s.sanitizeBody(entry.Request.Body),
			},
			Response: HARResponse{
				Status:  entry.Response.Status,
				Headers: s.sanitizeHeaders(entry.Response.Headers),
				Content: entry.Response.Content,
			},
		}
	}

	return out
}

func (s *Sanitizer) isSensitiveKey(key string) bool {
	if s.extraKeys[key] {
		return true
	}
	for _, re := range sensitiveKeyPatterns {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

func (s *Sanitizer) sanitizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.RawQuery == "" {
		return rawURL
	}

	query := parsed.Query()
	changed := false
	for key := range query {
		if s.isSensitiveKey(key) {
			query.Set(key, redacted)
			changed = true
		}
	}
	if changed {
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

func (s *Sanitizer) sanitizeHeaders(headers []HARHeader) []HARHeader {
	out := make([]HARHeader, len(headers))

	for i, h := range headers {
		name := strings.ToLower(h.Name)
		switch {
		case name == "cookie":
			out[i] = HARHeader{Name: h.Name, Value: redactCookieHeader(h.Value)}
		case name == "set-cookie":
			out[i] = HARHeader{Name: h.Name, Value: redactSetCookie(h.Value)}
		case sensitiveHeaders[name], s.isSensitiveKey(h.Name):
			out[i] = HARHeader{Name: h.Name, Value: redacted}
		default:
			out[i] = h
		}
	}

	return out
}

func (s *Sanitizer) sanitizeBody(body string) string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return body
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return s.sanitizeJSONBody(body)
	}

	if strings.Contains(body, "=") {
		return s.sanitizeFormBody(body)
	}

	return body
}

func (s *Sanitizer) sanitizeFormBody(body string) string {
	values, err := url.ParseQuery(body)
	if err != nil {
		return body
	}

	// Rebuild in original order; url.Values.Encode would sort the keys.
	var b strings.Builder
	for i, pair := range strings.Split(body, "&") {
		if i > 0 {
			b.WriteByte('&')
		}
		rawKey, _, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil || !s.isSensitiveKey(key) {
			b.WriteString(pair)
			continue
		}
		b.WriteString(rawKey + "=" + redacted)
	}

	if len(values) == 0 {
		return body
	}
	return b.String()
}

var jsonStringField = regexp.MustCompile(`"([^"]+)"\s*:\s*"[^"]*"`)

func (s *Sanitizer) sanitizeJSONBody(body string) string {
	return jsonStringField.ReplaceAllStringFunc(body, func(match string) string {
		key := jsonStringField.FindStringSubmatch(match)[1]
		if !s.isSensitiveKey(key) {
			return match
		}
		return `"` + key + `": "` + redacted + `"`
	})
}

func redactCookieHeader(value string) string {
	parts := strings.Split(value, ";")
	for i, part := range parts {
		name, _, found := strings.Cut(strings.TrimSpace(part), "=")
		if found {
			parts[i] = name + "=" + redacted
		}
	}
	return strings.Join(parts, "; ")
}

func redactSetCookie(value string) string {
	pair, attrs, hasAttrs := strings.Cut(value, ";")
	name, _, found := strings.Cut(strings.TrimSpace(pair), "=")
	if !found {
		return redacted
	}
	if hasAttrs {
		return name + "=" + redacted + ";" + attrs
	}
	return name + "=" + redacted
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}
