package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/account"
)

// Field limits of the OFX 2 schema.
const (
	maxNameLen = 32
	maxMemoLen = 255
)

var (
	ErrNotIBAN          = errors.New("OFX statements need an IBAN account")
	ErrCurrencyMismatch = errors.New("transaction currency differs from statement currency")
)

// fitIDSpace namespaces the name-based UUIDs used as FITIDs.
var fitIDSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:ksk-scraper:fitid"))

// Statement is one account's transactions over [From, To] plus the balance
// reported at AsOf.
type Statement struct {
	Account      account.Identifier
	From, To     time.Time
	Balance      bank.MoneyAmount
	AsOf         time.Time
	Transactions []bank.Transaction
}

// WriteOFX writes s as an OFX 2.0.3 bank statement response.
func WriteOFX(w io.Writer, s Statement) error {
	iban, ok := s.Account.(account.IBAN)
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotIBAN, s.Account)
	}

	curDef, err := ofxgo.NewCurrSymbol(string(s.Balance.Currency))
	if err != nil {
		return fmt.Errorf("statement currency: %w", err)
	}

	txs, err := ofxTransactions(s.Balance.Currency, s.Transactions)
	if err != nil {
		return err
	}

	stmt := ofxgo.StatementResponse{
		TrnUID: ofxgo.UID(uuid.NewString()),
		Status: ofxgo.Status{
			Code:     0,
			Severity: "INFO",
		},
		CurDef: *curDef,
		BankAcctFrom: ofxgo.BankAcct{
			BankID:   ofxgo.String(iban.BranchID()),
			AcctID:   ofxgo.String(iban.String()),
			AcctType: ofxgo.AcctTypeChecking,
		},
		BankTranList: &ofxgo.TransactionList{
			DtStart:      ofxgo.Date{Time: s.From},
			DtEnd:        ofxgo.Date{Time: s.To},
			Transactions: txs,
		},
		BalAmt: amount(s.Balance),
		DtAsOf: ofxgo.Date{Time: s.AsOf},
	}

	resp := ofxgo.Response{
		Version: ofxgo.OfxVersion203,
		Signon: ofxgo.SignonResponse{
			Status: ofxgo.Status{
				Code:     0,
				Severity: "INFO",
			},
			DtServer: ofxgo.Date{Time: s.AsOf},
			Language: "DEU",
		},
		Bank: []ofxgo.Message{&stmt},
	}

	buf, err := resp.Marshal()
	if err != nil {
		return fmt.Errorf("marshal OFX: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}

func ofxTransactions(currency bank.Currency, in []bank.Transaction) ([]ofxgo.Transaction, error) {
	out := make([]ofxgo.Transaction, 0, len(in))
	seen := make(map[string]int, len(in))

	for i := range in {
		tx := &in[i]
		if tx.Amount.Currency != currency {
			return nil, fmt.Errorf("%w: row %d has %s, statement is %s", ErrCurrencyMismatch, i+1, tx.Amount.Currency, currency)
		}

		key := fitKey(tx)
		seen[key]++

		trnType := ofxgo.TrnTypeDebit
		if tx.IsCredit() {
			trnType = ofxgo.TrnTypeCredit
		}

		otx := ofxgo.Transaction{
			TrnType:  trnType,
			DtPosted: ofxgo.Date{Time: tx.PostedAt},
			TrnAmt:   amount(tx.Amount),
			FiTID:    ofxgo.String(fitID(key, seen[key])),
			Name:     ofxgo.String(truncate(name(tx), maxNameLen)),
			Memo:     ofxgo.String(truncate(tx.Purpose, maxMemoLen)),
		}
		if !tx.ValuedAt.IsZero() {
			otx.DtAvail = &ofxgo.Date{Time: tx.ValuedAt}
		}
		out = append(out, otx)
	}
	return out, nil
}

// fitKey is the content the FITID is derived from, so exporting the same
// range twice yields the same IDs.
func fitKey(tx *bank.Transaction) string {
	partner := ""
	if tx.Partner != nil {
		partner = tx.Partner.String()
	}
	return strings.Join([]string{
		tx.Owner.String(),
		tx.PostedAt.Format(time.DateOnly),
		tx.Amount.String(),
		partner,
		tx.EndToEndReference,
		tx.Purpose,
	}, "\x1f")
}

// fitID numbers identical bookings by their occurrence within the export.
func fitID(key string, occurrence int) string {
	return uuid.NewSHA1(fitIDSpace, []byte(fmt.Sprintf("%s\x1f%d", key, occurrence))).String()
}

func name(tx *bank.Transaction) string {
	if tx.PartnerName != "" {
		return tx.PartnerName
	}
	return tx.BookingText
}

func amount(m bank.MoneyAmount) ofxgo.Amount {
	var a ofxgo.Amount
	a.SetFrac64(m.Minor, 100)
	return a
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
