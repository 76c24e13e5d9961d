package bank

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/account"
	"github.com/shopspring/decimal"
)

// hostPattern accepts the bank's bare domain, e.g. "kskbb.de".
var hostPattern = regexp.MustCompile(`^\w+\.\w{2}$`)

// Credentials identify one online-banking login. Build them with
// NewCredentials so the host is validated.
type Credentials struct {
	Host     string
	Username string
	PIN      string
}

func NewCredentials(host, username, pin string) (Credentials, error) {
	c := Credentials{
		Host:     strings.ToLower(strings.TrimSpace(host)),
		Username: username,
		PIN:      pin,
	}
	if err := c.Validate(); err != nil {
		return Credentials{}, err
	}
	return c, nil
}

func (c Credentials) Validate() error {
	if !hostPattern.MatchString(c.Host) {
		return fmt.Errorf("%w: host must be the bank's domain, e.g. kskbb.de, got %q", ErrInvalidCredentials, c.Host)
	}
	if c.Username == "" {
		return fmt.Errorf("%w: username is empty", ErrInvalidCredentials)
	}
	if c.PIN == "" {
		return fmt.Errorf("%w: PIN is empty", ErrInvalidCredentials)
	}
	return nil
}

// String never includes the PIN.
func (c Credentials) String() string {
	return fmt.Sprintf("%s@%s", c.Username, c.Host)
}

type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ParseCurrency accepts any three-letter ISO 4217 style code.
func ParseCurrency(s string) (Currency, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if !currencyPattern.MatchString(code) {
		return "", fmt.Errorf("invalid currency code: %q", s)
	}
	return Currency(code), nil
}

// MoneyAmount is an amount in minor units (cents) of Currency.
type MoneyAmount struct {
	Minor    int64    `json:"minor"`
	Currency Currency `json:"currency"`
}

// Decimal returns the exact amount in major units.
func (m MoneyAmount) Decimal() decimal.Decimal {
	return decimal.New(m.Minor, -2)
}

func (m MoneyAmount) String() string {
	return m.Decimal().StringFixed(2) + " " + string(m.Currency)
}

// BankAccountFinancialStatus is one row of the balances page at the time it
// was fetched.
type BankAccountFinancialStatus struct {
	AccountID account.Identifier `json:"accountId"`
	Balance   MoneyAmount        `json:"balance"`
	FetchedAt time.Time          `json:"fetchedAt"`
}

// Transaction is one decoded row of the CSV-CAMT export. Optional text fields
// are empty when the export leaves them blank; ValuedAt is zero for entries
// without a value date.
type Transaction struct {
	PostedAt          time.Time          `json:"postedAt"`
	ValuedAt          time.Time          `json:"valuedAt"`
	Owner             account.Identifier `json:"owner"`
	Partner           account.Identifier `json:"partner"`
	PartnerName       string             `json:"partnerName,omitempty"`
	PartnerBIC        string             `json:"partnerBic,omitempty"`
	Amount            MoneyAmount        `json:"amount"`
	BookingText       string             `json:"bookingText,omitempty"`
	Purpose           string             `json:"purpose,omitempty"`
	CreditorID        string             `json:"creditorId,omitempty"`
	MandateReference  string             `json:"mandateReference,omitempty"`
	EndToEndReference string             `json:"endToEndReference,omitempty"`
	Info              string             `json:"info,omitempty"`
}

// IsCredit reports whether money flowed into the owner's account.
func (t *Transaction) IsCredit() bool {
	return t.Amount.Minor > 0
}
