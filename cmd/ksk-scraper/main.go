// ksk-scraper prints account balances or exports transactions from a
// Sparkasse online-banking login.
//
// Usage:
//
//	ksk-scraper status
//	ksk-scraper transactions -account=DE27370501980000012345 -from=2026-10-01 -to=2026-10-15 -format=ofx -out=oct.ofx
//
// Credentials come from KSK_HOST, KSK_USERNAME and KSK_PIN, optionally read
// from a .env file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grez-lucas/ksk-scraper/internal/config"
	"github.com/grez-lucas/ksk-scraper/internal/export"
	"github.com/grez-lucas/ksk-scraper/internal/logging"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/account"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/ksk"
	"github.com/sirupsen/logrus"
)

const defaultRangeDays = 30

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.ProcessEnvironmentVariables()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.SetupLogging(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: LOG_LEVEL: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		log.WithError(err).Error("Command.Error")
		os.Exit(1)
	}
}

// run executes one subcommand. Extra options are appended to the ones built
// from cfg.
func run(ctx context.Context, cfg *config.Config, log *logrus.Logger, args []string, stdout io.Writer, extra ...ksk.Option) error {
	if len(args) == 0 {
		return errUsage
	}

	creds, err := cfg.Credentials()
	if err != nil {
		return err
	}

	opts := []ksk.Option{
		ksk.WithTimeout(cfg.Timeout),
		ksk.WithUserAgent(cfg.UserAgent),
		ksk.WithLogger(log),
	}
	if cfg.Locale != "" {
		opts = append(opts, ksk.WithLocale(ksk.Locale(cfg.Locale)))
	}
	opts = append(opts, extra...)

	switch args[0] {
	case "status":
		return runStatus(ctx, creds, args[1:], stdout, opts)
	case "transactions":
		return runTransactions(ctx, creds, args[1:], stdout, opts)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func runStatus(ctx context.Context, creds bank.Credentials, args []string, stdout io.Writer, opts []ksk.Option) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	outPath := fs.String("out", "", "Output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	status, err := ksk.WithSession(ctx, creds, func(s *ksk.Session) ([]bank.BankAccountFinancialStatus, error) {
		return s.GetFinancialStatus(ctx)
	}, opts...)
	if err != nil {
		return err
	}

	return writeOutput(*outPath, stdout, func(w io.Writer) error {
		return export.WriteJSON(w, status)
	})
}

func runTransactions(ctx context.Context, creds bank.Credentials, args []string, stdout io.Writer, opts []ksk.Option) error {
	fs := flag.NewFlagSet("transactions", flag.ContinueOnError)
	accountFlag := fs.String("account", "", "IBAN or identifier of the account, as shown by status")
	fromFlag := fs.String("from", "", "First day, YYYY-MM-DD (default: 30 days before -to)")
	toFlag := fs.String("to", "", "Last day, YYYY-MM-DD (default: today)")
	format := fs.String("format", "json", "Output format: json, ofx")
	outPath := fs.String("out", "", "Output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if *accountFlag == "" {
		return fmt.Errorf("%w: -account is required", errUsage)
	}
	if *format != "json" && *format != "ofx" {
		return fmt.Errorf("%w: unknown format %q", errUsage, *format)
	}

	from, to, err := dateRange(*fromFlag, *toFlag, time.Now())
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	id := account.Parse(*accountFlag)

	stmt, err := ksk.WithSession(ctx, creds, func(s *ksk.Session) (export.Statement, error) {
		st := export.Statement{Account: id, From: from, To: to}

		// OFX carries the closing balance, which only the balances page has.
		if *format == "ofx" {
			balances, err := s.GetFinancialStatus(ctx)
			if err != nil {
				return st, err
			}
			for _, b := range balances {
				if account.Equal(b.AccountID, id) {
					st.Balance = b.Balance
					st.AsOf = b.FetchedAt
				}
			}
		}

		txs, err := s.GetTransactionsInTimeRange(ctx, id, from, to)
		st.Transactions = txs
		return st, err
	}, opts...)
	if err != nil {
		return err
	}

	return writeOutput(*outPath, stdout, func(w io.Writer) error {
		if *format == "ofx" {
			return export.WriteOFX(w, stmt)
		}
		return export.WriteJSON(w, stmt.Transactions)
	})
}

// dateRange parses the -from/-to flags as calendar days in UTC.
func dateRange(fromFlag, toFlag string, now time.Time) (time.Time, time.Time, error) {
	y, m, d := now.Date()
	to := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if toFlag != "" {
		parsed, err := time.Parse(time.DateOnly, toFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("-to: %w", err)
		}
		to = parsed
	}

	from := to.AddDate(0, 0, -defaultRangeDays)
	if fromFlag != "" {
		parsed, err := time.Parse(time.DateOnly, fromFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("-from: %w", err)
		}
		from = parsed
	}

	return from, to, nil
}

func writeOutput(path string, stdout io.Writer, write func(io.Writer) error) (err error) {
	if path == "" {
		return write(stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	return write(f)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "ksk-scraper - read balances and transactions from Sparkasse online banking")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  ksk-scraper status [-out=FILE]")
	fmt.Fprintln(w, "  ksk-scraper transactions -account=IBAN [-from=YYYY-MM-DD] [-to=YYYY-MM-DD] [-format=json|ofx] [-out=FILE]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  KSK_HOST        Bank domain, e.g. kskbb.de")
	fmt.Fprintln(w, "  KSK_USERNAME    Online-banking login name")
	fmt.Fprintln(w, "  KSK_PIN         Online-banking PIN")
	fmt.Fprintln(w, "  KSK_LOCALE      Portal locale (default: taken from the portal)")
	fmt.Fprintln(w, "  KSK_TIMEOUT     Per-request timeout (default: 30s)")
	fmt.Fprintln(w, "  KSK_USER_AGENT  User-Agent header")
	fmt.Fprintln(w, "  LOG_LEVEL       debug, info, warn, error (default: info)")
}
