package account

import (
	"fmt"
	"sync"
)

// CountrySpec holds the BBAN field lengths of one IBAN country.
type CountrySpec struct {
	BranchLength  int
	AccountLength int
}

var (
	countriesMu sync.RWMutex
	countries   = map[string]CountrySpec{
		"DE": {BranchLength: 8, AccountLength: 10},
	}
)

// RegisterCountry adds or replaces the field lengths for a country code.
func RegisterCountry(code string, spec CountrySpec) error {
	if len(code) != 2 || !isUpperLetter(code[0]) || !isUpperLetter(code[1]) {
		return fmt.Errorf("country code must be two uppercase letters: %q", code)
	}
	if spec.BranchLength <= 0 || spec.AccountLength <= 0 {
		return fmt.Errorf("country %s: field lengths must be positive", code)
	}

	countriesMu.Lock()
	defer countriesMu.Unlock()
	countries[code] = spec

	return nil
}

func LookupCountry(code string) (CountrySpec, bool) {
	countriesMu.RLock()
	defer countriesMu.RUnlock()

	spec, ok := countries[code]
	return spec, ok
}

func isUpperLetter(b byte) bool {
	return b >= 'A' && b <= 'Z'
}
