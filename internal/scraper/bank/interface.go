// Package bank defines the common structs and logic used throughout bank
// implementations.
package bank

import (
	"context"
	"time"

	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/account"
)

// BankSession is an authenticated, read-only view of one online-banking
// login. Implementations serialize their own calls.
type BankSession interface {
	GetFinancialStatus(ctx context.Context) ([]BankAccountFinancialStatus, error)
	GetTransactionsInTimeRange(ctx context.Context, id account.Identifier, from, to time.Time) ([]Transaction, error)
	Close(ctx context.Context) error
}

type BankCode string

const (
	BankKSK BankCode = "KSK"
)
