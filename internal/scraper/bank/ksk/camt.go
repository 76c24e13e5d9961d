package ksk

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/account"
	"golang.org/x/text/encoding/charmap"
)

// Column headers of the CSV-CAMT export.
const (
	ColumnOwner             = "Auftragskonto"
	ColumnPostedAt          = "Buchungstag"
	ColumnValuedAt          = "Valutadatum"
	ColumnBookingText       = "Buchungstext"
	ColumnPurpose           = "Verwendungszweck"
	ColumnCreditorID        = "Glaeubiger ID"
	ColumnMandateReference  = "Mandatsreferenz"
	ColumnEndToEndReference = "Kundenreferenz (End-to-End)"
	ColumnPartnerName       = "Beguenstigter/Zahlungspflichtiger"
	ColumnPartner           = "Kontonummer/IBAN"
	ColumnPartnerBIC        = "BIC (SWIFT-Code)"
	ColumnAmount            = "Betrag"
	ColumnCurrency          = "Waehrung"
	ColumnInfo              = "Info"
)

var requiredColumns = []string{
	ColumnOwner,
	ColumnPostedAt,
	ColumnValuedAt,
	ColumnBookingText,
	ColumnAmount,
	ColumnCurrency,
}

var optionalColumns = []string{
	ColumnPurpose,
	ColumnCreditorID,
	ColumnMandateReference,
	ColumnEndToEndReference,
	ColumnPartnerName,
	ColumnPartner,
	ColumnPartnerBIC,
	ColumnInfo,
}

var (
	errMissingColumn = errors.New("column missing from header")
	errEmptyCell     = errors.New("value is empty")
	errNoHeader      = errors.New("export has no header row")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeTransactions decodes a CSV-CAMT export. The portal serves it in
// Windows-1252; input starting with a UTF-8 byte order mark is read as UTF-8.
// The first malformed row fails the whole decode with a *bank.DecodeError.
func DecodeTransactions(r io.Reader) ([]bank.Transaction, error) {
	reader, err := exportReader(r)
	if err != nil {
		return nil, &bank.DecodeError{Cause: err}
	}

	cr := csv.NewReader(reader)
	cr.Comma = ';'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &bank.DecodeError{Cause: errNoHeader}
	}
	if err != nil {
		return nil, &bank.DecodeError{Cause: err}
	}

	columns, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	var txs []bank.Transaction
	for row := 1; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &bank.DecodeError{Row: row, Cause: err}
		}

		tx, err := decodeRow(exportRow{columns: columns, record: record}, row)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

func exportReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)

	prefix, err := br.Peek(len(utf8BOM))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
		return br, nil
	}

	return charmap.Windows1252.NewDecoder().Reader(br), nil
}

// indexColumns maps the known column names to their position in header.
func indexColumns(header []string) (map[string]int, error) {
	byKey := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := byKey[key]; !dup {
			byKey[key] = i
		}
	}

	columns := make(map[string]int, len(requiredColumns)+len(optionalColumns))
	for _, name := range requiredColumns {
		i, ok := byKey[normalizeHeader(name)]
		if !ok {
			return nil, &bank.DecodeError{Column: name, Cause: errMissingColumn}
		}
		columns[name] = i
	}
	for _, name := range optionalColumns {
		if i, ok := byKey[normalizeHeader(name)]; ok {
			columns[name] = i
		}
	}

	return columns, nil
}

var umlauts = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// normalizeHeader makes "Gläubiger-ID" and "Glaeubiger ID" the same key.
func normalizeHeader(h string) string {
	h = umlauts.Replace(strings.ToLower(strings.TrimSpace(h)))

	var b strings.Builder
	for _, r := range h {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type exportRow struct {
	columns map[string]int
	record  []string
}

// text returns the trimmed cell of column, "" when the export lacks it.
func (r exportRow) text(column string) string {
	i, ok := r.columns[column]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func decodeRow(r exportRow, row int) (bank.Transaction, error) {
	fail := func(column string, err error) (bank.Transaction, error) {
		return bank.Transaction{}, &bank.DecodeError{Row: row, Column: column, Cause: err}
	}

	owner := r.text(ColumnOwner)
	if owner == "" {
		return fail(ColumnOwner, errEmptyCell)
	}

	postedAt, err := ParseExportDate(r.text(ColumnPostedAt))
	if err != nil {
		return fail(ColumnPostedAt, err)
	}

	// Pending entries have no value date yet.
	var valuedAt time.Time
	if v := r.text(ColumnValuedAt); v != "" {
		if valuedAt, err = ParseExportDate(v); err != nil {
			return fail(ColumnValuedAt, err)
		}
	}

	minor, err := ParseGermanAmount(r.text(ColumnAmount))
	if err != nil {
		return fail(ColumnAmount, err)
	}

	currency, err := bank.ParseCurrency(r.text(ColumnCurrency))
	if err != nil {
		return fail(ColumnCurrency, err)
	}

	var partner account.Identifier
	if p := r.text(ColumnPartner); p != "" {
		partner = account.Parse(p)
	}

	return bank.Transaction{
		PostedAt:          postedAt,
		ValuedAt:          valuedAt,
		Owner:             account.Parse(owner),
		Partner:           partner,
		PartnerName:       r.text(ColumnPartnerName),
		PartnerBIC:        r.text(ColumnPartnerBIC),
		Amount:            bank.MoneyAmount{Minor: minor, Currency: currency},
		BookingText:       r.text(ColumnBookingText),
		Purpose:           r.text(ColumnPurpose),
		CreditorID:        r.text(ColumnCreditorID),
		MandateReference:  r.text(ColumnMandateReference),
		EndToEndReference: r.text(ColumnEndToEndReference),
		Info:              r.text(ColumnInfo),
	}, nil
}

