// sanitize-fixtures replaces personal data in captured fixtures. Every real
// IBAN is swapped for a generated one with a valid checksum, consistently
// across all files, so parser tests keep working.
//
// Usage:
//
//	go run ./scripts/sanitize-fixtures/main.go [-dry-run]
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/grez-lucas/ksk-scraper/internal/scraper/bank/account"
)

// testBranch is the BLZ used for generated IBANs.
const testBranch = "37040044"

var ibanPattern = regexp.MustCompile(`\bDE\d{2}(?: ?\d{4}){4} ?\d{2}\b`)

var sanitizePatterns = []struct {
	Pattern     *regexp.Regexp
	Replacement string
	Description string
}{
	{
		regexp.MustCompile(`(Guten (?:Tag|Morgen|Abend),?\s+(?:Herr|Frau)?\s*)[A-ZÄÖÜ][a-zäöüß]+(?:\s+[A-ZÄÖÜ][a-zäöüß]+)?`),
		"${1}Max Mustermann",
		"Greeting with name",
	},
	{
		regexp.MustCompile(`(?i)(token|csrf|session)(["\s:=]+["']?)[a-zA-Z0-9_-]{20,}`),
		"${1}${2}REDACTED",
		"Token",
	},
	{
		regexp.MustCompile(`(?i)document\.cookie\s*=\s*["'][^"']+["']`),
		`document.cookie="REDACTED"`,
		"Cookie",
	},
}

type ibanMapper struct {
	seen map[string]string
}

func (m *ibanMapper) replace(raw string) string {
	iban, err := account.ParseIBAN(raw)
	if err != nil {
		return raw
	}
	key := iban.String()
	if fake, ok := m.seen[key]; ok {
		return fake
	}

	fake, err := account.NewIBAN("DE", testBranch, fmt.Sprintf("%010d", len(m.seen)+1))
	if err != nil {
		return raw
	}
	m.seen[key] = fake.String()
	return m.seen[key]
}

func main() {
	dir := flag.String("dir", filepath.Join("internal", "scraper", "bank", "ksk", "testdata", "fixtures"), "Fixtures directory")
	dryRun := flag.Bool("dry-run", false, "Show what would be changed without modifying files")
	flag.Parse()

	var files []string
	for _, ext := range []string{"*.html", "*.csv"} {
		matches, err := filepath.Glob(filepath.Join(*dir, ext))
		if err != nil {
			fmt.Printf("Error listing %s: %v\n", *dir, err)
			os.Exit(1)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		fmt.Printf("No fixtures found in %s\n", *dir)
		os.Exit(1)
	}
	sort.Strings(files)

	mapper := &ibanMapper{seen: make(map[string]string)}
	for _, file := range files {
		sanitizeFile(file, mapper, *dryRun)
	}

	fmt.Printf("\n%d distinct IBAN(s) replaced\n", len(mapper.seen))
	if *dryRun {
		fmt.Println("[DRY RUN] Run without -dry-run to apply changes")
	}
}

func sanitizeFile(path string, mapper *ibanMapper, dryRun bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", path, err)
		return
	}

	sanitized := content
	var changes []string

	if n := len(ibanPattern.FindAll(sanitized, -1)); n > 0 {
		sanitized = ibanPattern.ReplaceAllFunc(sanitized, func(b []byte) []byte {
			return []byte(mapper.replace(string(b)))
		})
		changes = append(changes, fmt.Sprintf("  - IBAN: %d matched", n))
	}

	for _, p := range sanitizePatterns {
		if n := len(p.Pattern.FindAll(sanitized, -1)); n > 0 {
			sanitized = p.Pattern.ReplaceAll(sanitized, []byte(p.Replacement))
			changes = append(changes, fmt.Sprintf("  - %s: %d matched", p.Description, n))
		}
	}

	name := filepath.Base(path)
	if len(changes) == 0 {
		fmt.Printf("%s: nothing to sanitize\n", name)
		return
	}

	fmt.Printf("%s:\n", name)
	for _, c := range changes {
		fmt.Println(c)
	}

	if dryRun {
		return
	}
	if err := os.WriteFile(path, sanitized, 0o644); err != nil {
		fmt.Printf("  Error writing %s: %v\n", path, err)
	}
}
