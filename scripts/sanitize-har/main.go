// sanitize-har removes secrets from HAR recordings before committing.
//
// Usage:
//
//	go run ./scripts/sanitize-har/main.go -scenario=login_success -keys=Jk2PzQ9a,Mn4RtY7b
//	go run ./scripts/sanitize-har/main.go -input=recording.har.json -output=sanitized.har.json
//
// The portal randomizes the names of its login inputs per page load; pass
// the names seen in the recording with -keys.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grez-lucas/ksk-scraper/internal/scraper/testutil"
)

func main() {
	scenario := flag.String("scenario", "", "Scenario name under internal/scraper/bank/ksk/testdata/recordings")
	inputPath := flag.String("input", "", "Input HAR file path")
	outputPath := flag.String("output", "", "Output HAR file path (defaults to input path)")
	keys := flag.String("keys", "", "Comma-separated extra form field names to redact")
	dryRun := flag.Bool("dry-run", false, "Show what would be redacted without modifying")
	flag.Parse()

	var inPath, outPath string
	switch {
	case *scenario != "":
		inPath = filepath.Join("internal", "scraper", "bank", "ksk", "testdata", "recordings", *scenario+".har.json")
		outPath = inPath
	case *inputPath != "":
		inPath = *inputPath
		outPath = *inputPath
		if *outputPath != "" {
			outPath = *outputPath
		}
	default:
		printUsage()
		os.Exit(1)
	}

	har, err := testutil.LoadHAR(inPath)
	if err != nil {
		fmt.Printf("Error loading HAR: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d entries from %s\n", len(har.Entries), inPath)

	sanitized := testutil.NewSanitizer(splitKeys(*keys)...).Sanitize(har)

	changed := changedEntries(har, sanitized)
	fmt.Printf("Redacted values in %d entries\n", len(changed))

	if *dryRun {
		for _, i := range changed {
			e := har.Entries[i]
			fmt.Printf("  entry %d: %s %s\n", i+1, e.Request.Method, truncateURL(e.Request.URL))
		}
		fmt.Println("\n[DRY RUN] No changes written.")
		return
	}

	if err := testutil.SaveHAR(outPath, sanitized); err != nil {
		fmt.Printf("Error saving HAR: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Sanitized HAR saved to: %s\n", outPath)
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// changedEntries returns the indexes of entries the sanitizer touched.
func changedEntries(original, sanitized *testutil.HARLog) []int {
	var changed []int
	for i := range original.Entries {
		orig, san := original.Entries[i], sanitized.Entries[i]

		diff := orig.Request.URL != san.Request.URL ||
			orig.Request.Body != san.Request.Body ||
			!sameHeaders(orig.Request.Headers, san.Request.Headers) ||
			!sameHeaders(orig.Response.Headers, san.Response.Headers) ||
			orig.Response.Content.Text != san.Response.Content.Text
		if diff {
			changed = append(changed, i)
		}
	}
	return changed
}

func sameHeaders(a, b []testutil.HARHeader) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func printUsage() {
	fmt.Println("sanitize-har - Remove secrets from HAR recordings before committing")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  go run ./scripts/sanitize-har/main.go -scenario=login_success -keys=FIELD1,FIELD2")
	fmt.Println("  go run ./scripts/sanitize-har/main.go -input=in.har.json -output=out.har.json")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -scenario  Scenario name (login_success, export, ...)")
	fmt.Println("  -input     Input HAR file path")
	fmt.Println("  -output    Output HAR file path (defaults to input)")
	fmt.Println("  -keys      Extra form field names to redact")
	fmt.Println("  -dry-run   Show redactions without modifying file")
}

func truncateURL(url string) string {
	if len(url) > 80 {
		return url[:77] + "..."
	}
	return url
}
