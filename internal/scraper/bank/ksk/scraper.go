// Package ksk drives the online-banking portal of the German savings banks
// (Sparkassen). It logs in the way a browser would, scrapes the balances
// page and downloads the CSV-CAMT transaction export.
package ksk

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/browser"
	"github.com/sirupsen/logrus"
)

type options struct {
	transport http.RoundTripper
	timeout   time.Duration
	userAgent string
	locale    Locale
	log       logrus.FieldLogger
	now       func() time.Time
}

type Option func(*options)

// WithTransport replaces the network transport, e.g. with a HAR replayer.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// WithTimeout bounds every single request, redirects included.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithLocale fixes the portal locale instead of reading it from the URL the
// login lands on.
func WithLocale(l Locale) Option {
	return func(o *options) {
		o.locale = l
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithClock overrides the time source used for FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Open logs in with creds and returns the authenticated session. A login the
// portal rejects fails with a *bank.AuthenticationError.
func Open(ctx context.Context, creds bank.Credentials, opts ...Option) (*Session, error) {
	const op = "Open"

	if err := creds.Validate(); err != nil {
		return nil, &bank.ScraperError{BankCode: bank.BankKSK, Operation: op, Cause: err}
	}

	o := options{
		timeout:   browser.DefaultTimeout,
		userAgent: browser.DefaultUserAgent,
		log:       logrus.StandardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.locale != "" {
		l, err := ParseLocale(string(o.locale))
		if err != nil {
			return nil, &bank.ScraperError{BankCode: bank.BankKSK, Operation: op, Cause: err}
		}
		o.locale = l
	}

	language := o.locale
	if language == "" {
		language = DefaultLocale
	}

	clientOpts := []browser.ClientOption{
		browser.WithTimeout(o.timeout),
		browser.WithUserAgent(o.userAgent),
		browser.WithHeader("Accept-Language", language.acceptLanguage()),
		browser.WithHTTPSOnly(),
	}
	if o.transport != nil {
		clientOpts = append(clientOpts, browser.WithTransport(o.transport))
	}

	s := &Session{
		ID:     uuid.New(),
		client: browser.NewClient(creds.Host, clientOpts...),
		now:    o.now,
	}
	s.log = o.log.WithFields(logrus.Fields{
		"session_id": s.ID.String(),
		"host":       creds.Host,
	})

	s.log.Info("Session.Open.Start")

	if err := s.login(ctx, creds, o.locale); err != nil {
		err = s.wrap(op, err)
		s.log.WithError(err).Error("Session.Open.Error")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"locale":  s.locale,
		"cookies": s.client.Jar().Len(),
	}).Info("Session.Open.Complete")

	return s, nil
}

// WithSession opens a session, runs body against it and always closes the
// session afterwards, also when body fails or panics. Errors of body and of
// the logout are joined.
func WithSession[T any](ctx context.Context, creds bank.Credentials, body func(*Session) (T, error), opts ...Option) (result T, err error) {
	s, err := Open(ctx, creds, opts...)
	if err != nil {
		return result, err
	}

	defer func() {
		if closeErr := s.Close(context.WithoutCancel(ctx)); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	return body(s)
}

func (s *Session) login(ctx context.Context, creds bank.Credentials, locale Locale) error {
	entry := &url.URL{Scheme: "https", Host: creds.Host, Path: "/"}

	front, err := s.client.Get(ctx, entry)
	if err != nil {
		return translate(creds.Host, err)
	}

	form := front.Document.Find(SelectorLoginForm).First()
	if form.Length() == 0 {
		return &bank.StructuralMismatchError{Page: PageLogin, Element: SelectorLoginForm}
	}

	username := form.Find(SelectorUsernameInput).First()
	if username.Length() == 0 {
		return &bank.StructuralMismatchError{Page: PageLogin, Element: SelectorUsernameInput}
	}
	pin := form.Find(SelectorPINInput).First()
	if pin.Length() == 0 {
		return &bank.StructuralMismatchError{Page: PageLogin, Element: SelectorPINInput}
	}
	submit := form.Find(SelectorLoginSubmit).First()
	if submit.Length() == 0 {
		return &bank.StructuralMismatchError{Page: PageLogin, Element: SelectorLoginSubmit}
	}

	username.SetAttr("value", creds.Username)
	pin.SetAttr("value", creds.PIN)

	req, err := browser.SubmitByClicking(form, submit, front.Base())
	if err != nil {
		return &bank.StructuralMismatchError{Page: PageLogin, Element: err.Error()}
	}

	s.current = front
	page, err := s.submit(ctx, req)
	if err != nil {
		return err
	}

	if err := DetectLoginError(page.Document); err != nil {
		return err
	}

	if locale == "" {
		detected, ok := LocaleFromURL(page.URL)
		if !ok {
			detected = DefaultLocale
		}
		locale = detected
	}
	s.locale = locale

	return nil
}
