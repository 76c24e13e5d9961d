// capture-fixtures walks through the portal in a visible browser and saves
// each page as an HTML fixture for the parser tests.
//
// Usage:
//
//	go run ./scripts/capture-fixtures/main.go -host=kskbb.de
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/ksk"
	"github.com/grez-lucas/ksk-scraper/internal/scraper/browser"
)

type PageCapture struct {
	Name         string
	Instructions string
	// Check parses the captured page the way the scraper would.
	Check func(*browser.Page) string
}

var capturePages = []PageCapture{
	{Name: "login", Instructions: "Open the login page (don't log in yet)"},
	{Name: "login_error", Instructions: "Submit INVALID credentials", Check: checkLoginError},
	{Name: "overview", Instructions: "Log in with VALID credentials and wait for the overview"},
	{Name: "finanzstatus", Instructions: "Open the Finanzstatus (balances) page", Check: checkBalances},
	{Name: "umsaetze", Instructions: "Open the Umsaetze page of one account"},
	{Name: "logout", Instructions: "Log out (or skip)"},
}

func main() {
	host := flag.String("host", "", "Bank domain, e.g. kskbb.de")
	outputDir := flag.String("output", filepath.Join("internal", "scraper", "bank", "ksk", "testdata", "fixtures"), "Output directory")
	chrome := flag.String("chrome", "", "Chrome binary (default: let rod find or download one)")
	flag.Parse()

	if *host == "" {
		fmt.Println("Usage: go run ./scripts/capture-fixtures/main.go -host=kskbb.de")
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Printf("Error creating directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("KSK fixture capture")
	fmt.Printf("  Host:   %s\n", *host)
	fmt.Printf("  Output: %s\n\n", *outputDir)

	l := launcher.New().
		Headless(false).
		Set("disable-blink-features", "AutomationControlled").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("window-size", "1920,1080")
	if *chrome != "" {
		l = l.Bin(*chrome)
	}

	rb := rod.New().ControlURL(l.MustLaunch()).MustConnect()
	defer rb.MustClose()

	page := stealth.MustPage(rb)
	page.MustNavigate("https://" + *host + "/")

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Follow the prompts in the opened browser window.")
	fmt.Println("Press ENTER after each step, type 'skip' to skip a page or 'quit' to stop.")
	fmt.Println()

	for _, c := range capturePages {
		fmt.Printf("-- %s.html: %s\n", c.Name, c.Instructions)
		fmt.Print("   ENTER when ready (or 'skip'/'quit'): ")

		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(strings.ToLower(input))

		if input == "quit" {
			break
		}
		if input == "skip" {
			fmt.Printf("   skipped %s\n\n", c.Name)
			continue
		}

		if err := capture(page, c, *outputDir); err != nil {
			fmt.Printf("   error: %v\n\n", err)
			continue
		}
		fmt.Println()
	}

	saveMetadata(*outputDir, *host)

	fmt.Println("Capture complete.")
	fmt.Println("Fixtures contain personal data. Replace names, IBANs and amounts before committing.")
}

func capture(page *rod.Page, c PageCapture, outDir string) error {
	snap, err := browser.CapturePage(page)
	if err != nil {
		return err
	}

	shotPath := filepath.Join(outDir, c.Name+".png")
	if buf, err := page.Screenshot(false, nil); err != nil {
		fmt.Printf("   screenshot failed: %v\n", err)
	} else if err := os.WriteFile(shotPath, buf, 0o644); err != nil {
		fmt.Printf("   error saving screenshot: %v\n", err)
	} else {
		fmt.Printf("   screenshot: %s\n", shotPath)
	}

	htmlPath := filepath.Join(outDir, c.Name+".html")
	if err := os.WriteFile(htmlPath, []byte(snap.HTML), 0o644); err != nil {
		return fmt.Errorf("save HTML: %w", err)
	}

	fmt.Printf("   saved %s\n", htmlPath)
	fmt.Printf("   url: %s\n", snap.URL)
	fmt.Printf("   cookies: %s\n", strings.Join(snap.CookieNames, ", "))

	if c.Check == nil {
		return nil
	}

	parsed, err := snap.Page()
	if err != nil {
		return fmt.Errorf("parse capture: %w", err)
	}
	fmt.Printf("   check: %s\n", c.Check(parsed))
	return nil
}

func checkLoginError(p *browser.Page) string {
	if err := ksk.DetectLoginError(p.Document); err != nil {
		return "login error detected: " + err.Error()
	}
	return "WARNING: no login error found, selectors may be stale"
}

func checkBalances(p *browser.Page) string {
	statuses, err := ksk.ParseBalances(p.Document, time.Now())
	if err != nil {
		return "WARNING: " + err.Error()
	}
	if len(statuses) == 0 {
		return "WARNING: no account rows found"
	}
	return fmt.Sprintf("%d account(s) parsed", len(statuses))
}

func saveMetadata(outDir, host string) {
	metadata := fmt.Sprintf(`# Fixture Metadata
host: %s
captured_at: %s
captured_by: %s

## Notes
- Replace personal data before committing
- Login input names are randomized per page load; tests look them up by type
- Re-run capture if parser tests start failing against the live portal
`, host, time.Now().Format(time.RFC3339), os.Getenv("USER"))

	metaPath := filepath.Join(outDir, "README.md")
	if err := os.WriteFile(metaPath, []byte(metadata), 0o644); err != nil {
		fmt.Printf("Error saving metadata: %v\n", err)
	}
}
