package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/ksk"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/browser"
	"github.com/joho/godotenv"
)

type Config struct {
	Host      string
	Username  string
	PIN       string
	Locale    string
	Timeout   time.Duration
	UserAgent string
	LogLevel  string
}

// LoadDotEnv loads variables from path into the environment. Variables that
// are already set win; a missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func ProcessEnvironmentVariables() (*Config, error) {
	env := Config{
		Timeout:   browser.DefaultTimeout,
		UserAgent: browser.DefaultUserAgent,
		LogLevel:  "info",
	}

	envHost := os.Getenv("KSK_HOST")
	envUsername := os.Getenv("KSK_USERNAME")
	envPIN := os.Getenv("KSK_PIN")
	envLocale := os.Getenv("KSK_LOCALE")
	envTimeout := os.Getenv("KSK_TIMEOUT")
	envUserAgent := os.Getenv("KSK_USER_AGENT")
	envLogLevel := os.Getenv("LOG_LEVEL")

	if len(envHost) != 0 {
		env.Host = envHost
	}

	if len(envUsername) != 0 {
		env.Username = envUsername
	}

	if len(envPIN) != 0 {
		env.PIN = envPIN
	}

	// Empty means: take it from the URL the login lands on.
	if len(envLocale) != 0 {
		locale, err := ksk.ParseLocale(envLocale)
		if err != nil {
			return nil, fmt.Errorf("KSK_LOCALE: %w", err)
		}
		env.Locale = string(locale)
	}

	if len(envTimeout) != 0 {
		timeout, err := time.ParseDuration(envTimeout)
		if err != nil {
			return nil, fmt.Errorf("KSK_TIMEOUT: %w", err)
		}
		if timeout <= 0 {
			return nil, fmt.Errorf("KSK_TIMEOUT must be positive, got %s", timeout)
		}
		env.Timeout = timeout
	}

	if len(envUserAgent) != 0 {
		env.UserAgent = envUserAgent
	}

	if len(envLogLevel) != 0 {
		env.LogLevel = envLogLevel
	}

	return &env, nil
}

// Credentials builds the validated login from KSK_HOST, KSK_USERNAME and
// KSK_PIN.
func (c *Config) Credentials() (bank.Credentials, error) {
	return bank.NewCredentials(c.Host, c.Username, c.PIN)
}
