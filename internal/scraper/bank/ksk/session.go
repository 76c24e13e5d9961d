package ksk

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/account"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/browser"
	"github.com/sirupsen/logrus"
)

// Session is an authenticated portal login. All methods serialize on one
// mutex: every operation reads and then replaces the current page, and the
// cookies in the jar must stay paired with the page they came with.
type Session struct {
	ID uuid.UUID

	mu      sync.Mutex
	client  *browser.Client
	locale  Locale
	current *browser.Page
	closed  bool

	now func() time.Time
	log *logrus.Entry
}

var _ bank.BankSession = (*Session)(nil)

// Locale is the portal locale the session builds paths and dates with.
func (s *Session) Locale() Locale {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.locale
}

// GetFinancialStatus returns one snapshot per account row of the balances
// page.
func (s *Session) GetFinancialStatus(ctx context.Context) ([]bank.BankAccountFinancialStatus, error) {
	const op = "GetFinancialStatus"

	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("Session.GetFinancialStatus.Start")

	rows, err := s.scanBalances(ctx)
	if err != nil {
		return nil, s.fail(op, err)
	}

	statuses := make([]bank.BankAccountFinancialStatus, len(rows))
	for i, r := range rows {
		statuses[i] = r.status
	}

	s.log.WithField("accounts", len(statuses)).Info("Session.GetFinancialStatus.Complete")
	return statuses, nil
}

// GetTransactionsInTimeRange downloads the CSV-CAMT export of account id for
// the inclusive date range [from, to].
func (s *Session) GetTransactionsInTimeRange(ctx context.Context, id account.Identifier, from, to time.Time) ([]bank.Transaction, error) {
	const op = "GetTransactionsInTimeRange"

	if to.Before(from) {
		return nil, &bank.ScraperError{
			BankCode:  bank.BankKSK,
			Operation: op,
			Cause:     bank.ErrInvalidDateRange,
			Details:   fmt.Sprintf("%s is after %s", from.Format(time.DateOnly), to.Format(time.DateOnly)),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.WithFields(logrus.Fields{
		"from": from.Format(time.DateOnly),
		"to":   to.Format(time.DateOnly),
	})
	log.Info("Session.GetTransactionsInTimeRange.Start")

	txs, err := s.transactions(ctx, id, from, to)
	if err != nil {
		return nil, s.fail(op, err)
	}

	log.WithField("transactions", len(txs)).Info("Session.GetTransactionsInTimeRange.Complete")
	return txs, nil
}

// Close logs out. The session only counts as closed once the logout went
// through; closing a closed session does nothing.
func (s *Session) Close(ctx context.Context) error {
	const op = "Close"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.log.Info("Session.Close.Start")

	if err := s.logout(ctx); err != nil {
		err = s.wrap(op, err)
		s.log.WithError(err).Error("Session.Close.Error")
		return err
	}

	s.closed = true
	s.log.Info("Session.Close.Complete")
	return nil
}

// --- NAVIGATION ---

// navigate loads target, resolved against the current page. Leaving the
// current host is refused. When target is the page already loaded and force
// is false, nothing is fetched.
func (s *Session) navigate(ctx context.Context, target string, force bool) (*browser.Page, error) {
	if s.closed {
		return nil, bank.ErrSessionClosed
	}

	u, err := s.current.Resolve(target)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", target, err)
	}

	if err := s.checkTarget(u); err != nil {
		return nil, err
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	if !force && path == s.current.Path() {
		return s.current, nil
	}

	s.log.WithField("path", path).Debug("Session.navigate")

	page, err := s.client.Get(ctx, u)
	if err != nil {
		return nil, translate(s.current.URL.Hostname(), err)
	}

	s.setCurrent(page)
	return page, nil
}

// submit sends a form request and makes the response the current page.
func (s *Session) submit(ctx context.Context, req *browser.FormRequest) (*browser.Page, error) {
	if err := s.checkTarget(req.URL); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.URL.Path,
		"fields": len(req.Fields),
	}).Debug("Session.submit")

	page, err := s.client.Load(ctx, req)
	if err != nil {
		return nil, translate(s.current.URL.Hostname(), err)
	}

	s.setCurrent(page)
	return page, nil
}

// checkTarget refuses URLs off the current host or off https. The session
// cookies must never travel in plain text.
func (s *Session) checkTarget(u *url.URL) error {
	current := s.current.URL.Hostname()
	if !strings.EqualFold(u.Hostname(), current) {
		return &bank.OffHostNavigationError{From: current, To: u.Hostname()}
	}
	if u.Scheme != "https" {
		return &bank.InsecureNavigationError{URL: u.Redacted()}
	}
	return nil
}

func (s *Session) setCurrent(page *browser.Page) {
	s.current = page

	if s.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		s.log.WithFields(logrus.Fields{
			"path":         page.Path(),
			"cookie_names": s.client.Jar().Names(),
		}).Debug("Session.setCurrent")
	}
}

// --- OPERATIONS ---

func (s *Session) scanBalances(ctx context.Context) ([]accountRow, error) {
	page, err := s.navigate(ctx, s.locale.BalancesPath(), false)
	if err != nil {
		return nil, err
	}

	return parseAccountRows(page.Document, s.now())
}

func (s *Session) transactions(ctx context.Context, id account.Identifier, from, to time.Time) ([]bank.Transaction, error) {
	rows, err := s.scanBalances(ctx)
	if err != nil {
		return nil, err
	}

	var row *goquery.Selection
	for _, r := range rows {
		if account.Equal(r.status.AccountID, id) {
			row = r.row
			break
		}
	}
	if row == nil {
		return nil, &bank.AccountNotFoundError{ID: id}
	}

	// Balances page: open the account's transactions.
	button := row.Find(SelectorTransactionsButton).First()
	if button.Length() == 0 {
		return nil, &bank.StructuralMismatchError{Page: PageBalances, Element: SelectorTransactionsButton}
	}
	page, err := s.clickInEnclosingForm(ctx, PageBalances, button)
	if err != nil {
		return nil, err
	}

	// Transactions page: fill the date range and request the export.
	rangeBox := page.Document.Find(SelectorDateRange).First()
	if rangeBox.Length() == 0 {
		return nil, &bank.StructuralMismatchError{Page: PageTransactions, Element: SelectorDateRange}
	}
	inputs := rangeBox.Find(SelectorDateRangeInputs)
	if inputs.Length() < 2 {
		return nil, &bank.StructuralMismatchError{Page: PageTransactions, Element: SelectorDateRange + " " + SelectorDateRangeInputs}
	}
	inputs.Eq(0).SetAttr("value", s.locale.FormatDate(from))
	inputs.Eq(1).SetAttr("value", s.locale.FormatDate(to))

	form, ok := browser.FindAncestorMatching(rangeBox, formMatcher)
	if !ok {
		return nil, &bank.StructuralMismatchError{Page: PageTransactions, Element: "form around " + SelectorDateRange}
	}
	export := form.Find(SelectorExportCSVCAMT).First()
	if export.Length() == 0 {
		return nil, &bank.StructuralMismatchError{Page: PageTransactions, Element: SelectorExportCSVCAMT}
	}

	req, err := browser.SubmitByClicking(form, export, page.Base())
	if err != nil {
		return nil, &bank.StructuralMismatchError{Page: PageTransactions, Element: fmt.Sprintf("export form (%v)", err)}
	}
	if err := s.checkTarget(req.URL); err != nil {
		return nil, err
	}

	// The export is not a page; only its cookies are kept, by the jar.
	body, err := s.client.Stream(ctx, req)
	if err != nil {
		return nil, translate(s.current.URL.Hostname(), err)
	}
	defer body.Close()

	return DecodeTransactions(body)
}

func (s *Session) logout(ctx context.Context) error {
	if s.current.Document.Find(SelectorLogout).Length() == 0 {
		// Not every page carries the header; the balances page does.
		if _, err := s.navigate(ctx, s.locale.BalancesPath(), true); err != nil {
			return err
		}
	}

	control := s.current.Document.Find(SelectorLogout).First()
	if control.Length() == 0 {
		return &bank.StructuralMismatchError{Page: s.current.Path(), Element: SelectorLogout}
	}

	form, ok := browser.FindAncestorMatching(control, formMatcher)
	if !ok {
		return &bank.StructuralMismatchError{Page: s.current.Path(), Element: "form around " + SelectorLogout}
	}
	button := form.Find(SelectorLogoutButton).First()
	if button.Length() == 0 {
		return &bank.StructuralMismatchError{Page: s.current.Path(), Element: SelectorLogoutButton}
	}

	req, err := browser.SubmitByClicking(form, button, s.current.Base())
	if err != nil {
		return &bank.StructuralMismatchError{Page: s.current.Path(), Element: fmt.Sprintf("logout form (%v)", err)}
	}

	_, err = s.submit(ctx, req)
	return err
}

// clickInEnclosingForm clicks button inside the nearest form around it.
func (s *Session) clickInEnclosingForm(ctx context.Context, pageName string, button *goquery.Selection) (*browser.Page, error) {
	form, ok := browser.FindAncestorMatching(button, formMatcher)
	if !ok {
		return nil, &bank.StructuralMismatchError{Page: pageName, Element: "form around submit control"}
	}

	req, err := browser.SubmitByClicking(form, button, s.current.Base())
	if err != nil {
		return nil, &bank.StructuralMismatchError{Page: pageName, Element: fmt.Sprintf("form (%v)", err)}
	}

	return s.submit(ctx, req)
}

// --- ERRORS ---

// translate maps transport errors onto the bank error taxonomy.
func translate(from string, err error) error {
	var offDomain *browser.OffDomainError
	if errors.As(err, &offDomain) {
		return &bank.OffHostNavigationError{From: from, To: offDomain.URL.Hostname()}
	}

	var insecure *browser.InsecureSchemeError
	if errors.As(err, &insecure) {
		return &bank.InsecureNavigationError{URL: insecure.URL.Redacted()}
	}

	var status *browser.StatusError
	if errors.As(err, &status) {
		return &bank.HTTPStatusError{URL: status.URL, StatusCode: status.StatusCode}
	}

	return err
}

func (s *Session) wrap(op string, err error) error {
	var scraperErr *bank.ScraperError
	if errors.As(err, &scraperErr) {
		return err
	}
	return &bank.ScraperError{BankCode: bank.BankKSK, Operation: op, Cause: err}
}

// fail wraps err and logs it. Off-host navigation is logged as a warning of
// its own since it means a link or redirect tried to leave the bank.
func (s *Session) fail(op string, err error) error {
	err = s.wrap(op, err)

	entry := s.log.WithError(err)
	if errors.Is(err, bank.ErrOffHostNavigation) || errors.Is(err, bank.ErrInsecureNavigation) {
		entry.Warn("Session.OffHostNavigation")
	}
	entry.Errorf("Session.%s.Error", op)

	return err
}
