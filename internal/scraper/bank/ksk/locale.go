package ksk

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Locale is the portal's language prefix, the first path segment of every
// online-banking URL (e.g. "/de/home/...").
type Locale string

const (
	LocaleDE Locale = "de"
	LocaleEN Locale = "en"

	DefaultLocale = LocaleDE
)

var localePattern = regexp.MustCompile(`^[a-z]{2}$`)

var ErrInvalidLocale = errors.New("invalid locale: want two letters")

// ParseLocale accepts a two-letter locale in any case.
func ParseLocale(s string) (Locale, error) {
	l := strings.ToLower(strings.TrimSpace(s))
	if !localePattern.MatchString(l) {
		return "", fmt.Errorf("%w, got %q", ErrInvalidLocale, s)
	}
	return Locale(l), nil
}

var (
	dateLayoutsMu sync.RWMutex
	// dateLayouts holds the short date format the portal's date inputs expect
	dateLayouts = map[Locale]string{
		LocaleDE: "02.01.06", // dd.MM.yy
		LocaleEN: "1/2/06",   // M/d/yy
	}
)

// RegisterLocale adds or replaces the short date layout (Go reference time
// notation) for a locale.
func RegisterLocale(l Locale, layout string) error {
	if !localePattern.MatchString(string(l)) {
		return fmt.Errorf("invalid locale %q: want two lowercase letters", l)
	}
	if layout == "" {
		return fmt.Errorf("empty date layout for locale %q", l)
	}

	dateLayoutsMu.Lock()
	defer dateLayoutsMu.Unlock()
	dateLayouts[l] = layout
	return nil
}

// DateLayout returns the short date layout of l, falling back to the default
// locale's for unregistered locales.
func (l Locale) DateLayout() string {
	dateLayoutsMu.RLock()
	defer dateLayoutsMu.RUnlock()

	if layout, ok := dateLayouts[l]; ok {
		return layout
	}
	return dateLayouts[DefaultLocale]
}

// FormatDate renders t the way the locale's date inputs expect it.
func (l Locale) FormatDate(t time.Time) string {
	return t.Format(l.DateLayout())
}

// BalancesPath is the path of the Finanzstatus page.
func (l Locale) BalancesPath() string {
	return "/" + string(l) + "/home/onlinebanking/finanzstatus.html"
}

// acceptLanguage is sent with the first request so the portal redirects to
// the wanted locale.
func (l Locale) acceptLanguage() string {
	return string(l) + "; en; de-de; de"
}

// LocaleFromURL reads the locale from the first path segment of u.
func LocaleFromURL(u *url.URL) (Locale, bool) {
	if u == nil {
		return "", false
	}

	segment, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	segment = strings.ToLower(segment)
	if !localePattern.MatchString(segment) {
		return "", false
	}
	return Locale(segment), true
}
