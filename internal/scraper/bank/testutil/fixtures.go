package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// FixturePath returns the path of a fixture file of the given bank package.
// Fixtures live in bank/{bank}/testdata/fixtures and name includes the
// extension.
func FixturePath(bank, name string) string {
	_, filename, _, _ := runtime.Caller(0)
	baseDir := filepath.Dir(filepath.Dir(filename)) // up to bank/

	return filepath.Join(baseDir, bank, "testdata", "fixtures", name)
}

// LoadFixture reads a fixture file as text.
func LoadFixture(t *testing.T, bank, name string) string {
	t.Helper()

	return string(LoadFixtureBytes(t, bank, name))
}

// LoadFixtureBytes reads a fixture file verbatim. Exports are stored in the
// portal's legacy encoding, so they are not converted.
func LoadFixtureBytes(t *testing.T, bank, name string) []byte {
	t.Helper()

	data, err := os.ReadFile(FixturePath(bank, name))
	if err != nil {
		t.Fatalf("Failed to load fixture %s/%s: %v", bank, name, err)
	}

	return data
}
