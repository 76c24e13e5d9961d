package export

import (
	"bytes"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustIBAN(t *testing.T, s string) account.IBAN {
	t.Helper()
	iban, err := account.ParseIBAN(s)
	require.NoError(t, err)
	return iban
}

func eur(minor int64) bank.MoneyAmount {
	return bank.MoneyAmount{Minor: minor, Currency: bank.CurrencyEUR}
}

func day(d int) time.Time {
	return time.Date(2026, 10, d, 0, 0, 0, 0, time.UTC)
}

func sampleStatement(t *testing.T) Statement {
	owner := mustIBAN(t, "DE27370501980000012345")
	landlord := mustIBAN(t, "DE89370400440532013000")

	return Statement{
		Account: owner,
		From:    day(1),
		To:      day(15),
		Balance: eur(-250_00),
		AsOf:    day(17),
		Transactions: []bank.Transaction{
			{
				PostedAt:    day(1),
				ValuedAt:    day(1),
				Owner:       owner,
				Partner:     landlord,
				PartnerName: "Hausverwaltung Müller GmbH",
				Amount:      eur(-850_00),
				BookingText: "FOLGELASTSCHRIFT",
				Purpose:     "Miete Oktober Whg. 3",
			},
			{
				PostedAt:    day(2),
				Owner:       owner,
				Amount:      eur(3_210_45),
				BookingText: "GUTSCHRIFT",
				Purpose:     "Gehalt",
			},
		},
	}
}

func parseStatement(t *testing.T, data []byte) *ofxgo.StatementResponse {
	t.Helper()

	resp, err := ofxgo.ParseResponse(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, resp.Bank, 1)

	stmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
	require.True(t, ok, "got %T", resp.Bank[0])
	return stmt
}

func TestWriteOFX_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOFX(&buf, sampleStatement(t)))

	stmt := parseStatement(t, buf.Bytes())

	assert.Equal(t, "37050198", string(stmt.BankAcctFrom.BankID))
	assert.Equal(t, "DE27370501980000012345", string(stmt.BankAcctFrom.AcctID))
	assert.Equal(t, "EUR", stmt.CurDef.String())
	assert.Zero(t, stmt.BalAmt.Rat.Cmp(big.NewRat(-250_00, 100)))
	assert.True(t, day(17).Equal(stmt.DtAsOf.Time))

	require.NotNil(t, stmt.BankTranList)
	assert.True(t, day(1).Equal(stmt.BankTranList.DtStart.Time))
	assert.True(t, day(15).Equal(stmt.BankTranList.DtEnd.Time))
	require.Len(t, stmt.BankTranList.Transactions, 2)

	rent := stmt.BankTranList.Transactions[0]
	assert.Equal(t, ofxgo.TrnTypeDebit, rent.TrnType)
	assert.Zero(t, rent.TrnAmt.Rat.Cmp(big.NewRat(-850_00, 100)))
	assert.Equal(t, "Hausverwaltung Müller GmbH", string(rent.Name))
	assert.Equal(t, "Miete Oktober Whg. 3", string(rent.Memo))
	require.NotNil(t, rent.DtAvail)

	salary := stmt.BankTranList.Transactions[1]
	assert.Equal(t, ofxgo.TrnTypeCredit, salary.TrnType)
	assert.Equal(t, "GUTSCHRIFT", string(salary.Name), "booking text stands in for a missing partner name")
	assert.Nil(t, salary.DtAvail)
}

func TestWriteOFX_StableFITIDs(t *testing.T) {
	s := sampleStatement(t)
	s.Transactions = append(s.Transactions, s.Transactions[0])

	var first, second bytes.Buffer
	require.NoError(t, WriteOFX(&first, s))
	require.NoError(t, WriteOFX(&second, s))

	a := parseStatement(t, first.Bytes()).BankTranList.Transactions
	b := parseStatement(t, second.Bytes()).BankTranList.Transactions

	for i := range a {
		assert.Equal(t, a[i].FiTID, b[i].FiTID)
	}
	assert.NotEqual(t, a[0].FiTID, a[2].FiTID, "identical bookings get distinct IDs")
}

func TestWriteOFX_Rejects(t *testing.T) {
	t.Run("non-IBAN account", func(t *testing.T) {
		s := sampleStatement(t)
		s.Account = account.NewOpaque("Kreditkarte 4711")

		assert.ErrorIs(t, WriteOFX(&bytes.Buffer{}, s), ErrNotIBAN)
	})

	t.Run("mixed currencies", func(t *testing.T) {
		s := sampleStatement(t)
		s.Transactions[1].Amount.Currency = bank.CurrencyUSD

		assert.ErrorIs(t, WriteOFX(&bytes.Buffer{}, s), ErrCurrencyMismatch)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Bäck", truncate("Bäckerei", 4))
	assert.Equal(t, "kurz", truncate("kurz", 32))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	status := []bank.BankAccountFinancialStatus{{
		AccountID: mustIBAN(t, "DE89370400440532013000"),
		Balance:   eur(1_234_56),
		FetchedAt: day(17),
	}}

	require.NoError(t, WriteJSON(&buf, status))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "DE89370400440532013000", got[0]["accountId"])
	assert.Equal(t, map[string]any{"minor": float64(123456), "currency": "EUR"}, got[0]["balance"])
	assert.Contains(t, buf.String(), "\n  ")
}
