package ksk

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/account"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const camtHeader = `"Auftragskonto";"Buchungstag";"Valutadatum";"Buchungstext";"Verwendungszweck";"Glaeubiger ID";"Mandatsreferenz";"Kundenreferenz (End-to-End)";"Sammlerreferenz";"Lastschrift Ursprungsbetrag";"Auslagenersatz Ruecklastschrift";"Beguenstigter/Zahlungspflichtiger";"Kontonummer/IBAN";"BIC (SWIFT-Code)";"Betrag";"Waehrung";"Info"`

func camtRow(posted, amount string) string {
	return `"DE27370501980000012345";"` + posted + `";"` + posted + `";"UEBERWEISUNG";"Test";"";"";"";"";"";"";"Max";"DE89370400440532013000";"COBADEFFXXX";"` + amount + `";"EUR";"Umsatz gebucht"`
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDecodeTransactions_Fixture(t *testing.T) {
	data := testutil.LoadFixtureBytes(t, "ksk", "umsaetze.csv")

	got, err := DecodeTransactions(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, got, 3)

	owner, err := account.ParseIBAN("DE27370501980000012345")
	require.NoError(t, err)
	landlord, err := account.ParseIBAN("DE89370400440532013000")
	require.NoError(t, err)

	rent := got[0]
	assert.Equal(t, owner, rent.Owner)
	assert.Equal(t, landlord, rent.Partner)
	assert.True(t, date(2026, 10, 1).Equal(rent.PostedAt))
	assert.True(t, date(2026, 10, 1).Equal(rent.ValuedAt))
	assert.Equal(t, "FOLGELASTSCHRIFT", rent.BookingText)
	assert.Equal(t, "Miete Oktober Whg. 3", rent.Purpose)
	assert.Equal(t, "DE98ZZZ09999999999", rent.CreditorID)
	assert.Equal(t, "M-2026-17", rent.MandateReference)
	assert.Equal(t, "E2E-4711", rent.EndToEndReference)
	assert.Equal(t, "Hausverwaltung Müller GmbH", rent.PartnerName)
	assert.Equal(t, "COBADEFFXXX", rent.PartnerBIC)
	assert.Equal(t, bank.MoneyAmount{Minor: -850_00, Currency: bank.CurrencyEUR}, rent.Amount)
	assert.Equal(t, "Umsatz gebucht", rent.Info)
	assert.False(t, rent.IsCredit())

	salary := got[1]
	assert.Equal(t, bank.MoneyAmount{Minor: 3_210_45, Currency: bank.CurrencyEUR}, salary.Amount)
	assert.Equal(t, "DE44500105175407324931", salary.Partner.String())
	assert.True(t, salary.IsCredit())

	pending := got[2]
	assert.True(t, pending.ValuedAt.IsZero(), "pending entries have no value date")
	assert.Nil(t, pending.Partner)
	assert.Equal(t, "Bäckerei Schön; Filiale Nord", pending.Purpose)
	assert.Equal(t, bank.MoneyAmount{Minor: -4_80, Currency: bank.CurrencyEUR}, pending.Amount)
}

func TestDecodeTransactions_KeepsInputOrder(t *testing.T) {
	const n = 25

	var b strings.Builder
	b.WriteString(camtHeader + "\r\n")
	for i := 1; i <= n; i++ {
		b.WriteString(camtRow(date(2026, 1, i).Format(ExportDateLayout), "1,00") + "\r\n")
	}

	got, err := DecodeTransactions(strings.NewReader(b.String()))
	require.NoError(t, err)
	require.Len(t, got, n)

	for i, tx := range got {
		assert.Equal(t, i+1, tx.PostedAt.Day())
	}
}

func TestDecodeTransactions_UTF8WithBOM(t *testing.T) {
	input := "\xEF\xBB\xBF" + strings.Replace(camtHeader, "Waehrung", "Währung", 1) + "\n" +
		strings.Replace(camtRow("02.10.26", "-1,50"), `"Max"`, `"Jürgen"`, 1) + "\n"

	got, err := DecodeTransactions(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Jürgen", got[0].PartnerName)
	assert.Equal(t, bank.CurrencyEUR, got[0].Amount.Currency)
}

func TestDecodeTransactions_MalformedRowFailsWholeDecode(t *testing.T) {
	tests := []struct {
		name   string
		row    string
		column string
	}{
		{"unparsable date", camtRow("2026-10-03", "1,00"), ColumnPostedAt},
		{"unparsable amount", camtRow("03.10.26", "eins"), ColumnAmount},
		{"amount with three decimals", camtRow("03.10.26", "1,005"), ColumnAmount},
		{"amount with a decimal point", camtRow("03.10.26", "12.50"), ColumnAmount},
		{"amount with an exponent", camtRow("03.10.26", "1e3"), ColumnAmount},
		{"empty owner", strings.Replace(camtRow("03.10.26", "1,00"), `"DE27370501980000012345"`, `""`, 1), ColumnOwner},
		{"bad currency", strings.Replace(camtRow("03.10.26", "1,00"), `"EUR"`, `"Euro"`, 1), ColumnCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := strings.Join([]string{
				camtHeader,
				camtRow("01.10.26", "1,00"),
				tt.row,
				camtRow("04.10.26", "1,00"),
			}, "\n")

			got, err := DecodeTransactions(strings.NewReader(input))

			assert.Nil(t, got, "no partial results")
			var decodeErr *bank.DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, 2, decodeErr.Row)
			assert.Equal(t, tt.column, decodeErr.Column)
			assert.ErrorIs(t, err, bank.ErrDecode)
		})
	}
}

func TestDecodeTransactions_ShortRow(t *testing.T) {
	input := camtHeader + "\n" + `"DE27370501980000012345";"01.10.26"` + "\n"

	_, err := DecodeTransactions(strings.NewReader(input))

	var decodeErr *bank.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 1, decodeErr.Row)
}

func TestDecodeTransactions_MissingRequiredColumn(t *testing.T) {
	input := strings.Replace(camtHeader, `"Betrag";`, "", 1) + "\n"

	_, err := DecodeTransactions(strings.NewReader(input))

	var decodeErr *bank.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 0, decodeErr.Row)
	assert.Equal(t, ColumnAmount, decodeErr.Column)
	assert.ErrorIs(t, err, errMissingColumn)
}

func TestDecodeTransactions_HeaderOnlyAndEmpty(t *testing.T) {
	got, err := DecodeTransactions(strings.NewReader(camtHeader + "\r\n"))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = DecodeTransactions(strings.NewReader(""))
	assert.ErrorIs(t, err, errNoHeader)
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, normalizeHeader(ColumnCreditorID), normalizeHeader("Gläubiger-ID"))
	assert.Equal(t, normalizeHeader(ColumnPartnerName), normalizeHeader("Begünstigter / Zahlungspflichtiger"))
	assert.Equal(t, "bicswiftcode", normalizeHeader(ColumnPartnerBIC))
}
