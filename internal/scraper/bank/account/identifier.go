// Package account implements the identifiers the portal uses for bank
// accounts: validated IBANs and an opaque fallback for anything that does not
// parse as one.
package account

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrInvalidIBAN = errors.New("invalid IBAN")

// Identifier is either an IBAN or an Opaque value. The set is closed; consumers
// switch on the concrete type.
type Identifier interface {
	fmt.Stringer
	isIdentifier()
}

// IBAN is a validated International Bank Account Number. The zero value is not
// a valid IBAN; use NewIBAN or Parse.
type IBAN struct {
	country string
	branch  string
	account string
}

// Opaque carries an identifier text verbatim when it is not a valid IBAN.
type Opaque struct {
	value string
}

func (IBAN) isIdentifier()   {}
func (Opaque) isIdentifier() {}

// NewIBAN validates the fields against the country registry and returns the
// IBAN. The checksum is derived, never supplied.
func NewIBAN(country, branch, accountNumber string) (IBAN, error) {
	country = strings.ToUpper(country)

	spec, ok := LookupCountry(country)
	if !ok {
		return IBAN{}, fmt.Errorf("%w: unknown country code %q", ErrInvalidIBAN, country)
	}

	if !isNumeric(branch) {
		return IBAN{}, fmt.Errorf("%w: branch identifier must be numeric", ErrInvalidIBAN)
	}
	if len(branch) != spec.BranchLength {
		return IBAN{}, fmt.Errorf("%w: for %s the branch identifier must be %d digits", ErrInvalidIBAN, country, spec.BranchLength)
	}

	if !isNumeric(accountNumber) {
		return IBAN{}, fmt.Errorf("%w: account number must be numeric", ErrInvalidIBAN)
	}
	if len(accountNumber) != spec.AccountLength {
		return IBAN{}, fmt.Errorf("%w: for %s the account number must be %d digits", ErrInvalidIBAN, country, spec.AccountLength)
	}

	return IBAN{country: country, branch: branch, account: accountNumber}, nil
}

// ParseIBAN parses the textual IBAN form. Whitespace is ignored and letters
// are case-insensitive.
func ParseIBAN(s string) (IBAN, error) {
	normalized := normalize(s)
	if len(normalized) < 4 {
		return IBAN{}, fmt.Errorf("%w: too short", ErrInvalidIBAN)
	}

	country := normalized[:2]
	spec, ok := LookupCountry(country)
	if !ok {
		return IBAN{}, fmt.Errorf("%w: unknown country code %q", ErrInvalidIBAN, country)
	}

	if len(normalized) != 4+spec.BranchLength+spec.AccountLength {
		return IBAN{}, fmt.Errorf("%w: for %s an IBAN has %d characters", ErrInvalidIBAN, country, 4+spec.BranchLength+spec.AccountLength)
	}

	iban, err := NewIBAN(country, normalized[4:4+spec.BranchLength], normalized[4+spec.BranchLength:])
	if err != nil {
		return IBAN{}, err
	}

	if got := normalized[2:4]; got != iban.Checksum() {
		return IBAN{}, fmt.Errorf("%w: checksum mismatch", ErrInvalidIBAN)
	}

	return iban, nil
}

// Parse never fails: text that is not a valid IBAN comes back as Opaque,
// holding the text exactly as given.
func Parse(s string) Identifier {
	iban, err := ParseIBAN(s)
	if err != nil {
		return Opaque{value: s}
	}
	return iban
}

// NewOpaque wraps s without any validation.
func NewOpaque(s string) Opaque {
	return Opaque{value: s}
}

func (i IBAN) CountryCode() string   { return i.country }
func (i IBAN) BranchID() string      { return i.branch }
func (i IBAN) AccountNumber() string { return i.account }

// Checksum is the ISO 7064 MOD 97-10 check value, always two digits.
func (i IBAN) Checksum() string {
	digits := i.branch + i.account + countryDigits(i.country) + "00"
	return fmt.Sprintf("%02d", 98-mod97(digits))
}

// Format renders the electronic form: country, checksum, branch, account.
func (i IBAN) Format() string {
	return i.country + i.Checksum() + i.branch + i.account
}

func (i IBAN) String() string {
	return i.Format()
}

func (i IBAN) MarshalText() ([]byte, error) {
	return []byte(i.Format()), nil
}

func (o Opaque) String() string {
	return o.value
}

func (o Opaque) MarshalText() ([]byte, error) {
	return []byte(o.value), nil
}

// Equal reports whether a and b denote the same account.
func Equal(a, b Identifier) bool {
	switch x := a.(type) {
	case IBAN:
		y, ok := b.(IBAN)
		return ok && x == y
	case Opaque:
		y, ok := b.(Opaque)
		return ok && x == y
	default:
		return a == nil && b == nil
	}
}

func normalize(s string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// countryDigits maps each letter to its ISO 7064 value, A=10 ... Z=35.
func countryDigits(country string) string {
	var b strings.Builder
	for _, r := range country {
		fmt.Fprintf(&b, "%d", r-'A'+10)
	}
	return b.String()
}

// mod97 reduces an arbitrarily long decimal digit string modulo 97.
func mod97(digits string) int {
	rem := 0
	for i := 0; i < len(digits); i++ {
		rem = (rem*10 + int(digits[i]-'0')) % 97
	}
	return rem
}
