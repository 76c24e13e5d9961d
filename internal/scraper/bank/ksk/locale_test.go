package ksk

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocale_FormatDate(t *testing.T) {
	day := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "07.03.26", LocaleDE.FormatDate(day))
	assert.Equal(t, "3/7/26", LocaleEN.FormatDate(day))
	assert.Equal(t, "07.03.26", Locale("xx").FormatDate(day), "unknown locales fall back to German")
}

func TestLocale_BalancesPath(t *testing.T) {
	assert.Equal(t, "/de/home/onlinebanking/finanzstatus.html", LocaleDE.BalancesPath())
	assert.Equal(t, "/en/home/onlinebanking/finanzstatus.html", LocaleEN.BalancesPath())
}

func TestLocaleFromURL(t *testing.T) {
	tests := []struct {
		raw  string
		want Locale
		ok   bool
	}{
		{"https://www.ksktest.de/de/home/onlinebanking/uebersicht.html", LocaleDE, true},
		{"https://www.ksktest.de/EN/home.html", LocaleEN, true},
		{"https://www.ksktest.de/", "", false},
		{"https://www.ksktest.de/home.html", "", false},
		{"https://www.ksktest.de/deu/home.html", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)

			got, ok := LocaleFromURL(u)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegisterLocale(t *testing.T) {
	require.NoError(t, RegisterLocale("fr", "02/01/06"))
	t.Cleanup(func() {
		dateLayoutsMu.Lock()
		delete(dateLayouts, "fr")
		dateLayoutsMu.Unlock()
	})

	assert.Equal(t, "07/03/26", Locale("fr").FormatDate(time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)))

	assert.Error(t, RegisterLocale("FRA", "02/01/06"))
	assert.Error(t, RegisterLocale("it", ""))
}
