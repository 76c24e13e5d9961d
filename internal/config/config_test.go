package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/ksk"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{"KSK_HOST", "KSK_USERNAME", "KSK_PIN", "KSK_LOCALE", "KSK_TIMEOUT", "KSK_USER_AGENT", "LOG_LEVEL"}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range allKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestProcessEnvironmentVariables_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := ProcessEnvironmentVariables()
	require.NoError(t, err)

	assert.Equal(t, browser.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, browser.DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Locale)
	assert.Empty(t, cfg.Host)
}

func TestProcessEnvironmentVariables_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("KSK_HOST", "ksktest.de")
	t.Setenv("KSK_USERNAME", "max")
	t.Setenv("KSK_PIN", "12345")
	t.Setenv("KSK_LOCALE", "en")
	t.Setenv("KSK_TIMEOUT", "45s")
	t.Setenv("KSK_USER_AGENT", "test-agent")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := ProcessEnvironmentVariables()
	require.NoError(t, err)

	assert.Equal(t, &Config{
		Host:      "ksktest.de",
		Username:  "max",
		PIN:       "12345",
		Locale:    "en",
		Timeout:   45 * time.Second,
		UserAgent: "test-agent",
		LogLevel:  "debug",
	}, cfg)

	creds, err := cfg.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "max@ksktest.de", creds.String())
}

func TestProcessEnvironmentVariables_InvalidTimeout(t *testing.T) {
	for _, value := range []string{"soon", "-5s", "0s"} {
		t.Run(value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("KSK_TIMEOUT", value)

			_, err := ProcessEnvironmentVariables()
			assert.ErrorContains(t, err, "KSK_TIMEOUT")
		})
	}
}

func TestProcessEnvironmentVariables_Locale(t *testing.T) {
	clearEnv(t)
	t.Setenv("KSK_LOCALE", "EN")

	cfg, err := ProcessEnvironmentVariables()
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.Locale)

	for _, value := range []string{"deu", "d", "e1"} {
		t.Run(value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("KSK_LOCALE", value)

			_, err := ProcessEnvironmentVariables()
			assert.ErrorIs(t, err, ksk.ErrInvalidLocale)
		})
	}
}

func TestConfig_CredentialsRequireHost(t *testing.T) {
	cfg := &Config{Username: "max", PIN: "12345"}

	_, err := cfg.Credentials()
	assert.ErrorIs(t, err, bank.ErrInvalidCredentials)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("KSK_USERNAME", "from-env")
	require.NoError(t, os.Unsetenv("KSK_HOST"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KSK_HOST=ksktest.de\nKSK_USERNAME=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("KSK_HOST") })

	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "ksktest.de", os.Getenv("KSK_HOST"))
	assert.Equal(t, "from-env", os.Getenv("KSK_USERNAME"), "the environment wins over the file")

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
