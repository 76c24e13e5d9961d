package bank

import (
	"errors"
	"fmt"

	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/account"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthentication     = errors.New("authentication rejected")
	ErrSessionClosed      = errors.New("session closed")

	ErrOffHostNavigation  = errors.New("navigation off the bank host")
	ErrInsecureNavigation = errors.New("navigation without https")
	ErrStructuralMismatch = errors.New("page structure does not match")
	ErrUnexpectedStatus   = errors.New("unexpected HTTP status")

	ErrAccountNotFound  = errors.New("account not found")
	ErrInvalidDateRange = errors.New("invalid date range")

	ErrParsingFailed = errors.New("failed to parse bank response")
	ErrDecode        = errors.New("failed to decode export")
)

// ScraperError provides detailed error context
type ScraperError struct {
	BankCode  BankCode
	Operation string
	Cause     error
	Details   string
}

func (e *ScraperError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("[%s] %s failed: %v", e.BankCode, e.Operation, e.Cause)
	}
	return fmt.Sprintf("[%s] %s failed: %v - %s", e.BankCode, e.Operation, e.Cause, e.Details)
}

func (e *ScraperError) Unwrap() error {
	return e.Cause
}

// AuthenticationError carries the portal's own login error text.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrAuthentication, e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return ErrAuthentication
}

type OffHostNavigationError struct {
	From string
	To   string
}

func (e *OffHostNavigationError) Error() string {
	return fmt.Sprintf("%v: refusing to leave %s for %s", ErrOffHostNavigation, e.From, e.To)
}

func (e *OffHostNavigationError) Unwrap() error {
	return ErrOffHostNavigation
}

// InsecureNavigationError is a link or redirect that would leave https and
// expose the session cookies.
type InsecureNavigationError struct {
	URL string
}

func (e *InsecureNavigationError) Error() string {
	return fmt.Sprintf("%v: refusing %s", ErrInsecureNavigation, e.URL)
}

func (e *InsecureNavigationError) Unwrap() error {
	return ErrInsecureNavigation
}

// StructuralMismatchError reports a page element the portal no longer
// serves where it is expected.
type StructuralMismatchError struct {
	Page    string
	Element string
}

func (e *StructuralMismatchError) Error() string {
	return fmt.Sprintf("%v: %s not found on %s", ErrStructuralMismatch, e.Element, e.Page)
}

func (e *StructuralMismatchError) Unwrap() error {
	return ErrStructuralMismatch
}

type AccountNotFoundError struct {
	ID account.Identifier
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("%v: %s", ErrAccountNotFound, e.ID)
}

func (e *AccountNotFoundError) Unwrap() error {
	return ErrAccountNotFound
}

// DecodeError locates a malformed export cell. Row counts data rows from 1;
// row 0 is the header.
type DecodeError struct {
	Row    int
	Column string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%v: row %d: %v", ErrDecode, e.Row, e.Cause)
	}
	return fmt.Sprintf("%v: row %d, column %q: %v", ErrDecode, e.Row, e.Column, e.Cause)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Cause}
}

type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%v: %d from %s", ErrUnexpectedStatus, e.StatusCode, e.URL)
}

func (e *HTTPStatusError) Unwrap() error {
	return ErrUnexpectedStatus
}
