package ksk

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/account"
	"github.com/shopspring/decimal"
)

const (
	// Page names used in StructuralMismatchError
	PageLogin        = "login"
	PageBalances     = "finanzstatus"
	PageTransactions = "umsaetze"

	// ExportDateLayout is the dd.MM.yy format of the CSV-CAMT export.
	ExportDateLayout     = "02.01.06"
	exportDateLayoutLong = "02.01.2006"
)

// accountRow is one recognized account row of the balances table. The row
// selection is kept so its transactions control can be clicked.
type accountRow struct {
	row    *goquery.Selection
	status bank.BankAccountFinancialStatus
}

// --- PUBLIC API ---

// DetectLoginError returns an *bank.AuthenticationError carrying the portal's
// message when doc is the login page with an error box, nil otherwise.
func DetectLoginError(doc *goquery.Document) error {
	box := doc.Find(SelectorLoginError).First()
	if box.Length() == 0 {
		return nil
	}

	msg := strings.TrimSpace(box.Find(SelectorLoginErrorMessage).First().Text())
	if msg == "" {
		msg = strings.TrimSpace(box.Text())
	}

	return &bank.AuthenticationError{Message: collapseSpace(msg)}
}

// ParseBalances scans the balances table of the Finanzstatus page. Rows
// without an identifier or balance cell (headers, sums, ads) are skipped.
func ParseBalances(doc *goquery.Document, fetchedAt time.Time) ([]bank.BankAccountFinancialStatus, error) {
	rows, err := parseAccountRows(doc, fetchedAt)
	if err != nil {
		return nil, err
	}

	statuses := make([]bank.BankAccountFinancialStatus, len(rows))
	for i, r := range rows {
		statuses[i] = r.status
	}
	return statuses, nil
}

// ParseBalanceText parses the balance cell text, e.g. "-1.234,56 EUR": a
// German formatted amount followed by a three letter currency code.
func ParseBalanceText(text string) (bank.MoneyAmount, error) {
	text = strings.TrimSpace(text)
	if len(text) < 4 {
		return bank.MoneyAmount{}, fmt.Errorf("balance %q is too short", text)
	}

	currency, err := bank.ParseCurrency(text[len(text)-3:])
	if err != nil {
		return bank.MoneyAmount{}, fmt.Errorf("balance %q: %w", text, err)
	}

	minor, err := ParseGermanAmount(text[:len(text)-3])
	if err != nil {
		return bank.MoneyAmount{}, fmt.Errorf("balance %q: %w", text, err)
	}

	return bank.MoneyAmount{Minor: minor, Currency: currency}, nil
}

// --- PRIVATE DOMAIN LOGIC ---

func parseAccountRows(doc *goquery.Document, fetchedAt time.Time) ([]accountRow, error) {
	caption := doc.Find(SelectorAccountsCaption).First()
	if caption.Length() == 0 {
		return nil, &bank.StructuralMismatchError{Page: PageBalances, Element: SelectorAccountsCaption}
	}
	table := caption.Parent()

	var rows []accountRow
	var parseErr error

	table.Find(SelectorAccountRows).EachWithBreak(func(i int, tr *goquery.Selection) bool {
		idCell := tr.Find(SelectorAccountIdentifier).First()
		balanceCell := tr.Find(SelectorAccountBalance).First()
		if idCell.Length() == 0 || balanceCell.Length() == 0 {
			return true
		}

		id := account.Parse(collapseSpace(idCell.Text()))

		balance, err := ParseBalanceText(balanceCell.Text())
		if err != nil {
			parseErr = fmt.Errorf("%w: account %s: %v", bank.ErrParsingFailed, id, err)
			return false
		}

		rows = append(rows, accountRow{
			row: tr,
			status: bank.BankAccountFinancialStatus{
				AccountID: id,
				Balance:   balance,
				FetchedAt: fetchedAt,
			},
		})
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}

	return rows, nil
}

// --- LOW LEVEL UTILITIES ---

var errEmptyAmount = errors.New("empty amount")

// germanAmountPattern accepts an optional sign, integer digits either plain or
// grouped by '.' in threes, and an optional ',' fraction.
var germanAmountPattern = regexp.MustCompile(`^([-+]?)(\d+|\d{1,3}(?:\.\d{3})+)(?:,(\d+))?$`)

// ParseGermanAmount converts a German formatted decimal ("-1.234,5") into
// minor units. The sign is kept; more than two decimals are rejected rather
// than rounded.
func ParseGermanAmount(s string) (int64, error) {
	clean := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case r == '−': // minus sign
			return '-'
		}
		return r
	}, s)
	if clean == "" || clean == "-" || clean == "+" {
		return 0, errEmptyAmount
	}

	m := germanAmountPattern.FindStringSubmatch(clean)
	if m == nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	text := strings.ReplaceAll(m[2], ".", "")
	if m[3] != "" {
		text += "." + m[3]
	}
	if m[1] == "-" {
		text = "-" + text
	}

	amount, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	minor := amount.Shift(2)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than two decimals", s)
	}

	return minor.IntPart(), nil
}

// ParseExportDate parses the dd.MM.yy dates of the export. Two-digit years
// always land in 2000-2099.
func ParseExportDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	layout := ExportDateLayout
	if len(s) == len(exportDateLayoutLong) {
		layout = exportDateLayoutLong
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, err
	}

	if layout == ExportDateLayout && t.Year() < 2000 {
		t = t.AddDate(100, 0, 0)
	}
	return t, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
