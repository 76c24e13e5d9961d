package ksk

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goquery swallows selector syntax errors and matches nothing, so every
// selector is compiled explicitly.
func TestSelectors_Compile(t *testing.T) {
	selectors := map[string]string{
		"SelectorLoginForm":          SelectorLoginForm,
		"SelectorUsernameInput":      SelectorUsernameInput,
		"SelectorPINInput":           SelectorPINInput,
		"SelectorLoginSubmit":        SelectorLoginSubmit,
		"SelectorLoginError":         SelectorLoginError,
		"SelectorLoginErrorMessage":  SelectorLoginErrorMessage,
		"SelectorAccountsCaption":    SelectorAccountsCaption,
		"SelectorAccountRows":        SelectorAccountRows,
		"SelectorAccountIdentifier":  SelectorAccountIdentifier,
		"SelectorAccountBalance":     SelectorAccountBalance,
		"SelectorTransactionsButton": SelectorTransactionsButton,
		"SelectorDateRange":          SelectorDateRange,
		"SelectorDateRangeInputs":    SelectorDateRangeInputs,
		"SelectorExportCSVCAMT":      SelectorExportCSVCAMT,
		"SelectorLogout":             SelectorLogout,
		"SelectorLogoutButton":       SelectorLogoutButton,
	}

	for name, sel := range selectors {
		t.Run(name, func(t *testing.T) {
			_, err := cascadia.Compile(sel)
			assert.NoError(t, err, sel)
		})
	}
}

func TestSelectors_LoginFixture(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fixture(t, "login.html")))
	require.NoError(t, err)

	form := doc.Find(SelectorLoginForm).First()
	require.Equal(t, 1, form.Length())

	username := form.Find(SelectorUsernameInput)
	require.Equal(t, 1, username.Length(), "the honeypot input is skipped")
	assert.Equal(t, "Jk2PzQ9a", username.AttrOr("name", ""))

	assert.Equal(t, "Mn4RtY7b", form.Find(SelectorPINInput).AttrOr("name", ""))
}

func TestSelectors_ExportControl(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fixture(t, "umsaetze.html")))
	require.NoError(t, err)

	export := doc.Find(SelectorExportCSVCAMT)
	require.Equal(t, 1, export.Length())
	assert.Equal(t, "export.camt", export.AttrOr("name", ""))
}
